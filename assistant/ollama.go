package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"polyglot-chat/contract"
	"polyglot-chat/errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "gemma3:4b"
	// Shorter answers are usually a refusal or a truncated generation.
	minAnswerLength = 16
)

var _ contract.Answerer = (*OllamaAnswerer)(nil)

type OllamaAnswerer struct {
	client  *http.Client
	baseURL string
	model   string
}

func NewOllamaAnswerer(client *http.Client, baseURL, model string) *OllamaAnswerer {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaAnswerer{client: client, baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature   float64 `json:"temperature"`
	NumPredict    int     `json:"num_predict"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Answer asks the local model for an answer written in targetLang.
func (o *OllamaAnswerer) Answer(ctx context.Context, question, targetLang string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: prompt(question, targetLang),
		Stream: false,
		Options: generateOptions{
			Temperature:   0.7,
			NumPredict:    300,
			TopP:          0.9,
			RepeatPenalty: 1.1,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", errors.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ollama status %d", errors.ErrServiceUnavailable, resp.StatusCode)
	}
	var generated generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrServiceUnavailable, err)
	}

	answer := cleanAnswer(generated.Response)
	if utf8.RuneCountInString(answer) < minAnswerLength {
		return "", fmt.Errorf("%w: answer too short", errors.ErrServiceUnavailable)
	}
	return answer, nil
}

func prompt(question, targetLang string) string {
	return fmt.Sprintf("You are a helpful AI assistant. Please respond in %s only.\n\n"+
		"Question: %s\n\nAnswer:", languageName(targetLang), question)
}

// languageName turns "hi" into "Hindi". Unknown codes are used as is.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// cleanAnswer drops the prompt when the model echoes it back.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "Answer:"); i >= 0 {
		s = s[i+len("Answer:"):]
	}
	return strings.TrimSpace(s)
}
