// Package extract holds the heuristic field extractors run against visitor
// utterances. Every extractor is pure and reports a miss instead of failing.
package extract

import (
	"regexp"
	"strings"
	"unicode"
)

const maxNameWords = 4

var nameStopWords = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yes": {}, "no": {}, "okay": {}, "ok": {},
	"sure": {}, "haan": {}, "nahi": {}, "my": {}, "name": {}, "is": {},
	"i": {}, "am": {}, "i'm": {}, "im": {}, "me": {}, "this": {}, "it's": {},
	"its": {}, "mera": {}, "naam": {}, "hai": {}, "ji": {},
}

// nameBoundaryWords end a name captured by the "my name is" patterns.
var nameBoundaryWords = map[string]struct{}{
	"and": {}, "from": {}, "here": {}, "looking": {}, "interested": {},
	"want": {}, "calling": {}, "with": {}, "my": {},
}

var namePatternRE = regexp.MustCompile(`(?i)\b(?:my name is|i am|i'm)\s+([a-z]+(?:\s+[a-z]+){0,3})`)

// Name pulls a visitor name out of text. Pure stop-word input is a miss.
func Name(text string) (string, bool) {
	var kept []string
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.TrimFunc(raw, func(r rune) bool {
			return unicode.IsPunct(r) && r != '\''
		})
		word = strings.Trim(word, "'")
		if word == "" {
			continue
		}
		if _, stop := nameStopWords[word]; stop {
			continue
		}
		kept = append(kept, word)
	}

	if len(kept) > 0 && len(kept) <= maxNameWords && allLetters(kept) {
		return titleCase(kept), true
	}

	if m := namePatternRE.FindStringSubmatch(text); m != nil {
		var words []string
		for _, w := range strings.Fields(strings.ToLower(m[1])) {
			_, stop := nameStopWords[w]
			_, conn := nameBoundaryWords[w]
			if stop || conn {
				break
			}
			words = append(words, w)
		}
		if len(words) > 0 {
			return titleCase(words), true
		}
	}
	return "", false
}

func allLetters(words []string) bool {
	for _, w := range words {
		for _, r := range w {
			if !unicode.IsLetter(r) && r != '\'' && r != '.' {
				return false
			}
		}
	}
	return true
}

func titleCase(words []string) string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		out = append(out, string(runes))
	}
	return strings.Join(out, " ")
}
