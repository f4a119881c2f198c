// Package blocks models the UI block payload returned to the chat widget and
// repairs model output that does not match it.
package blocks

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Component names a UI renderer on the client.
type Component string

const (
	Text         Component = "Text"
	Options      Component = "Options"
	PhoneInput   Component = "PhoneInput"
	OTPInput     Component = "OTPInput"
	ProjectTable Component = "ProjectTable"
	ImageGallery Component = "ImageGallery"
	ProjectLinks Component = "ProjectLinks"
	Actions      Component = "Actions"
)

var known = map[Component]struct{}{
	Text: {}, Options: {}, PhoneInput: {}, OTPInput: {}, ProjectTable: {},
	ImageGallery: {}, ProjectLinks: {}, Actions: {},
}

// Known reports whether c is a renderable component.
func (c Component) Known() bool {
	_, ok := known[c]
	return ok
}

// Block is a single UI directive.
type Block struct {
	Component Component      `json:"component"`
	Props     map[string]any `json:"props"`
}

// Payload is the response body rendered by the client.
type Payload struct {
	Blocks []Block `json:"blocks"`
}

// NewText builds a single Text block payload.
func NewText(text string) Payload {
	return Payload{Blocks: []Block{TextBlock(text)}}
}

// TextBlock builds a Text block.
func TextBlock(text string) Block {
	return Block{Component: Text, Props: map[string]any{"text": text}}
}

// Append adds blocks to the payload.
func (p *Payload) Append(b ...Block) {
	p.Blocks = append(p.Blocks, b...)
}

// Has reports whether any block renders component c.
func (p Payload) Has(c Component) bool {
	for _, b := range p.Blocks {
		if b.Component == c {
			return true
		}
	}
	return false
}

// Text concatenates the text of every Text block, one per line.
func (p Payload) Text() string {
	var parts []string
	for _, b := range p.Blocks {
		if b.Component != Text {
			continue
		}
		if s, ok := b.Props["text"].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// JSON encodes the payload. Encoding a payload built by this package does
// not fail; a failure still yields a valid payload.
func (p Payload) JSON() string {
	raw, err := json.Marshal(p)
	if err != nil {
		raw, _ = json.Marshal(NewText(p.Text()))
	}
	return string(raw)
}

// Parse reads a block payload out of raw model output. Markdown code fences
// and prose around the outermost JSON object are tolerated; blocks with
// unknown components are dropped.
func Parse(raw string) (Payload, bool) {
	body := extractObject(stripFences(raw))
	if body == "" {
		return Payload{}, false
	}

	var envelope struct {
		Blocks []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return Payload{}, false
	}

	var out Payload
	for _, item := range envelope.Blocks {
		var b Block
		if err := json.Unmarshal(item, &b); err != nil {
			continue
		}
		if !b.Component.Known() {
			continue
		}
		if b.Props == nil {
			b.Props = map[string]any{}
		}
		if b.Component == Text {
			if s, _ := b.Props["text"].(string); strings.TrimSpace(s) == "" {
				continue
			}
		}
		out.Blocks = append(out.Blocks, b)
	}
	if len(out.Blocks) == 0 {
		return Payload{}, false
	}
	return out, true
}

// Normalize always returns a renderable payload. Output that is not a block
// payload becomes a single Text block carrying the raw text.
func Normalize(raw, contact string) Payload {
	if p, ok := Parse(raw); ok {
		return p
	}
	text := strings.TrimSpace(stripFences(raw))
	if text == "" {
		return Fallback(contact)
	}
	return NewText(text)
}

// Fallback is the degraded reply used when an upstream call fails.
func Fallback(contact string) Payload {
	msg := "Sorry, I'm having trouble responding right now. Please try again in a moment."
	if contact = strings.TrimSpace(contact); contact != "" {
		msg = fmt.Sprintf("%s You can also reach our sales team directly at %s.", msg, contact)
	}
	return NewText(msg)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
