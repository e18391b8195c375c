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
)

const (
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-3.5-turbo"
)

var _ contract.Answerer = (*OpenAIAnswerer)(nil)

// OpenAIAnswerer talks to any server exposing the OpenAI chat completions API.
// The key is optional, some compatible endpoints accept anonymous calls.
type OpenAIAnswerer struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
}

func NewOpenAIAnswerer(client *http.Client, baseURL, model, apiKey string) *OpenAIAnswerer {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIAnswerer{client: client, baseURL: strings.TrimRight(baseURL, "/"), model: model, apiKey: apiKey}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIAnswerer) Answer(ctx context.Context, question, targetLang string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(targetLang)},
			{Role: "user", Content: question},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.ErrTimeout
		}
		return "", fmt.Errorf("%w: %v", errors.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: completions status %d", errors.ErrServiceUnavailable, resp.StatusCode)
	}
	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrServiceUnavailable, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", errors.ErrServiceUnavailable)
	}

	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	if utf8.RuneCountInString(answer) < minAnswerLength {
		return "", fmt.Errorf("%w: answer too short", errors.ErrServiceUnavailable)
	}
	return answer, nil
}

func systemPrompt(targetLang string) string {
	return fmt.Sprintf("You are a helpful AI assistant. Always respond in %s. "+
		"Keep responses concise and informative.", languageName(targetLang))
}
