package main

import (
	"fmt"
	"strings"

	"github.com/wolfman30/realty-lead-agent/internal/blocks"
	"github.com/wolfman30/realty-lead-agent/internal/conversation"
)

// renderPayload flattens UI blocks into terminal text.
func renderPayload(p blocks.Payload) string {
	var b strings.Builder
	for _, block := range p.Blocks {
		switch block.Component {
		case blocks.Text:
			fmt.Fprintf(&b, "  %v\n", block.Props["text"])
		case blocks.Options, blocks.Actions:
			for i, label := range labels(block.Props) {
				fmt.Fprintf(&b, "  [%d] %s\n", i+1, label)
			}
		case blocks.PhoneInput:
			b.WriteString("  (enter your 10-digit mobile number)\n")
		case blocks.OTPInput:
			b.WriteString("  (enter the code sent to your phone)\n")
		default:
			fmt.Fprintf(&b, "  <%s>\n", block.Component)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// labels reads the first list prop, accepting plain strings or objects
// carrying a label or text field.
func labels(props map[string]any) []string {
	for _, key := range []string{"options", "actions", "items"} {
		raw, ok := props[key].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			switch v := item.(type) {
			case string:
				out = append(out, v)
			case map[string]any:
				if s, ok := v["label"].(string); ok {
					out = append(out, s)
				} else if s, ok := v["text"].(string); ok {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

func renderStatus(s *conversation.StatusSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session:   %s\n", s.SessionID)
	fmt.Fprintf(&b, "stage:     %s\n", s.Stage)
	fmt.Fprintf(&b, "customer:  %s\n", s.Lead.CustomerType)
	fmt.Fprintf(&b, "name:      %s\n", orDash(s.Lead.Name))
	fmt.Fprintf(&b, "phone:     %s (verified: %t)\n", orDash(s.Lead.Phone), s.Lead.PhoneVerified)
	fmt.Fprintf(&b, "project:   %s\n", orDash(s.Lead.InterestedProjectName))
	fmt.Fprintf(&b, "submitted: %t\n", s.Lead.LeadSubmitted)
	fmt.Fprintf(&b, "messages:  %d\n", s.MessageCount)
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
