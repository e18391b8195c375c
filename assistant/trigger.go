package assistant

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPrefixes address the assistant when no prefix is configured.
var DefaultPrefixes = []string{"@assistant", "/ai"}

// Trigger recognizes messages addressed to the assistant.
// A message matches when it starts with a prefix (any case) followed by a
// space, a colon or a comma, and something is left to ask.
type Trigger struct {
	prefixes []string
}

func NewTrigger(prefixes []string) Trigger {
	var cleaned []string
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		cleaned = DefaultPrefixes
	}
	return Trigger{prefixes: cleaned}
}

// Match returns the question carried by text when it addresses the assistant.
func (t Trigger) Match(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, prefix := range t.prefixes {
		if len(text) <= len(prefix) || !strings.EqualFold(text[:len(prefix)], prefix) {
			continue
		}
		rest := text[len(prefix):]
		r, _ := utf8.DecodeRuneInString(rest)
		if !unicode.IsSpace(r) && r != ':' && r != ',' {
			continue
		}
		question := strings.TrimSpace(strings.TrimLeftFunc(rest, func(r rune) bool {
			return unicode.IsSpace(r) || r == ':' || r == ','
		}))
		if question != "" {
			return question, true
		}
	}
	return "", false
}
