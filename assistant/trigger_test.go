package assistant

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrigger_Match(t *testing.T) {
	trigger := NewTrigger(DefaultPrefixes)

	tests := []struct {
		name     string
		text     string
		question string
		matched  bool
	}{
		{name: "Mention with a space", text: "@assistant what is Go?", question: "what is Go?", matched: true},
		{name: "Mention with a colon", text: "@Assistant: how are you", question: "how are you", matched: true},
		{name: "Mention with a comma", text: "@ASSISTANT, bonjour", question: "bonjour", matched: true},
		{name: "Slash command", text: "/ai  explain channels ", question: "explain channels", matched: true},
		{name: "Prefix glued to a word", text: "@assistants are cool", matched: false},
		{name: "Nothing to ask", text: "@assistant :  ", matched: false},
		{name: "Prefix only", text: "/ai", matched: false},
		{name: "Prefix in the middle", text: "hey @assistant what time is it", matched: false},
		{name: "Plain question", text: "what is Go?", matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			question, matched := trigger.Match(tt.text)
			req.Equal(tt.matched, matched)
			req.Equal(tt.question, question)
		})
	}
}

func TestTrigger_Custom_Prefixes(t *testing.T) {
	req := require.New(t)

	// Given a configured prefix with surrounding blanks and an empty entry
	trigger := NewTrigger([]string{" !bot ", ""})

	question, ok := trigger.Match("!bot what day is it")
	req.True(ok)
	req.Equal("what day is it", question)

	// Then the default prefixes are not active anymore
	_, ok = trigger.Match("@assistant what day is it")
	req.False(ok)
}

func TestTrigger_Falls_Back_To_Defaults(t *testing.T) {
	req := require.New(t)

	_, ok := NewTrigger(nil).Match("/ai hello there")
	req.True(ok)
}
