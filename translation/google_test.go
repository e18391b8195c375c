package translation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"polyglot-chat/errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestGoogleTranslator_Joins_Segments(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Then the query carries the web client parameters
		query := r.URL.Query()
		req.Equal("gtx", query.Get("client"))
		req.Equal("en", query.Get("sl"))
		req.Equal("fr", query.Get("tl"))
		req.Equal("t", query.Get("dt"))
		req.Equal("Hello. How are you?", query.Get("q"))
		req.NotEmpty(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[[["Bonjour. ","Hello. ",null,null,1],["Comment allez-vous ?","How are you?",null,null,1]],null,"en"]`))
	}))
	defer server.Close()

	translator := NewGoogleTranslator(server.Client(), server.URL)

	translated, err := translator.Translate(context.Background(), "Hello. How are you?", "en", "fr")

	req.NoError(err)
	req.Equal("Bonjour. Comment allez-vous ?", translated)
}

func TestGoogleTranslator_Status_Codes(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		expected error
	}{
		{name: "bad request", status: http.StatusBadRequest, expected: errors.ErrInvalidLang},
		{name: "rate limited", status: http.StatusTooManyRequests, expected: errors.ErrServiceUnavailable},
		{name: "server error", status: http.StatusInternalServerError, expected: errors.ErrServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			_, err := NewGoogleTranslator(server.Client(), server.URL).
				Translate(context.Background(), "Hello", "en", "fr")

			req.ErrorIs(err, tc.expected)
		})
	}
}

func TestGoogleTranslator_Unexpected_Body(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer server.Close()

	_, err := NewGoogleTranslator(server.Client(), server.URL).
		Translate(context.Background(), "Hello", "en", "fr")

	req.ErrorIs(err, errors.ErrServiceUnavailable)
}

func TestSplitChunks(t *testing.T) {
	req := require.New(t)

	// Given a short text
	req.Equal([]string{"Hello. World."}, splitChunks("Hello. World.", 4000))

	// Given sentences that do not fit together
	chunks := splitChunks("aaaa. bbbb. cccc.", 8)
	req.Equal([]string{"aaaa.", "bbbb.", "cccc."}, chunks)

	// Given a single sentence longer than the limit
	long := strings.Repeat("é", 25)
	chunks = splitChunks(long, 10)
	req.Len(chunks, 3)
	for _, chunk := range chunks {
		req.LessOrEqual(utf8.RuneCountInString(chunk), 10)
	}
	req.Equal(long, strings.Join(chunks, ""))
}
