package translation

import (
	"context"
	"fmt"
	"polyglot-chat/contract"
	"polyglot-chat/errors"
	"strings"
)

var _ contract.Translator = Phrasebook{}

type langPair struct {
	source string
	target string
}

// Phrasebook translates a handful of common words and greetings offline.
// It is the last resort of a Chain when the online backend is down.
type Phrasebook map[langPair]map[string]string

func NewPhrasebook() Phrasebook {
	enHi := map[string]string{
		"hello":        "namaste",
		"hi":           "namaste",
		"how are you":  "kaise ho",
		"thank you":    "dhanyawad",
		"yes":          "haan",
		"no":           "nahi",
		"what":         "kya",
		"where":        "kahan",
		"when":         "kab",
		"why":          "kyun",
		"who":          "kaun",
		"good":         "acha",
		"bad":          "bura",
		"water":        "pani",
		"food":         "khana",
		"home":         "ghar",
		"work":         "kaam",
		"very":         "bahut",
		"tea":          "chai",
		"good morning": "suprabhat",
	}
	hiEn := make(map[string]string, len(enHi))
	for en, hi := range enHi {
		if _, exists := hiEn[hi]; !exists {
			hiEn[hi] = en
		}
	}
	hiEn["namaste"] = "hello"
	hiEn["accha"] = "good"

	return Phrasebook{
		{source: "en", target: "hi"}: enHi,
		{source: "hi", target: "en"}: hiEn,
	}
}

func (p Phrasebook) Translate(_ context.Context, text, source, target string) (string, error) {
	entries, ok := p[langPair{source: source, target: target}]
	if !ok {
		return "", fmt.Errorf("%w: no phrasebook for %s -> %s", errors.ErrServiceUnavailable, source, target)
	}
	translated, ok := entries[strings.ToLower(strings.TrimSpace(text))]
	if !ok {
		return "", fmt.Errorf("%w: no phrasebook entry", errors.ErrServiceUnavailable)
	}
	return translated, nil
}
