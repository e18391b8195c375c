package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"polyglot-chat/contract"
	"polyglot-chat/errors"
	"strings"
	"unicode/utf8"
)

const (
	DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"
	// maxChunkSize is the largest text the public endpoint accepts in one request.
	maxChunkSize = 4000
	userAgent    = "Mozilla/5.0 (compatible; polyglot-chat)"
)

var _ contract.Translator = (*GoogleTranslator)(nil)

// GoogleTranslator calls the public Google Translate endpoint used by web clients.
type GoogleTranslator struct {
	client   *http.Client
	endpoint string
}

func NewGoogleTranslator(client *http.Client, endpoint string) *GoogleTranslator {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	return &GoogleTranslator{client: client, endpoint: endpoint}
}

// Translate sends long texts in sentence-aligned chunks and joins the results.
func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	chunks := splitChunks(text, maxChunkSize)
	translated := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		res, err := g.translateChunk(ctx, chunk, source, target)
		if err != nil {
			return "", err
		}
		translated = append(translated, res)
	}
	return strings.Join(translated, " "), nil
}

func (g *GoogleTranslator) translateChunk(ctx context.Context, text, source, target string) (string, error) {
	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("dt", "t")
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return "", fmt.Errorf("%w: %s -> %s", errors.ErrInvalidLang, source, target)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", errors.ErrServiceUnavailable, resp.StatusCode)
	}

	// The body is a nested array: [[["segment", "original", ...], ...], ...]
	var body []any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrServiceUnavailable, err)
	}
	return joinSegments(body)
}

func joinSegments(body []any) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("%w: empty response", errors.ErrServiceUnavailable)
	}
	segments, ok := body[0].([]any)
	if !ok || len(segments) == 0 {
		return "", fmt.Errorf("%w: no segments", errors.ErrServiceUnavailable)
	}
	var sb strings.Builder
	for _, s := range segments {
		segment, ok := s.([]any)
		if !ok || len(segment) == 0 {
			continue
		}
		if part, ok := segment[0].(string); ok {
			sb.WriteString(part)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no segments", errors.ErrServiceUnavailable)
	}
	return sb.String(), nil
}

// splitChunks cuts text at sentence boundaries so that no chunk exceeds size runes.
// A single sentence longer than size is cut at rune boundaries.
func splitChunks(text string, size int) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, sentence := range strings.SplitAfter(text, ". ") {
		if utf8.RuneCountInString(current.String())+utf8.RuneCountInString(sentence) > size {
			flush()
		}
		for utf8.RuneCountInString(sentence) > size {
			runes := []rune(sentence)
			chunks = append(chunks, string(runes[:size]))
			sentence = string(runes[size:])
		}
		current.WriteString(sentence)
	}
	flush()
	return chunks
}
