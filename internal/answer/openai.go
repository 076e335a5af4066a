// Package answer adapts the LLM answer backend behind a single Service
// capability, hiding whether answers come from a plain chat completion or
// a retrieval-augmented call grounded on a knowledge base.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/answerline/answerline/internal/config"
)

// Service produces one free-text answer for a question.
type Service interface {
	Answer(ctx context.Context, question string) (string, error)
}

// ErrEmptyAnswer is returned when the backend responds successfully but
// with no usable text. It is a hard failure for the event.
var ErrEmptyAnswer = errors.New("answer backend returned empty content")

// BackendError is a non-2xx response from the answer backend.
type BackendError struct {
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("answer backend returned status %d: %s", e.StatusCode, e.Body)
}

// Client calls an OpenAI-compatible API. When a vector store id is
// configured it uses the responses endpoint with the file_search tool;
// otherwise a plain chat completion.
type Client struct {
	http *resty.Client
	cfg  config.AnswerConfig
}

// NewClient creates an answer client from config.
func NewClient(cfg config.AnswerConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.APIBase).
		SetTimeout(cfg.Timeout.Std()).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http: httpClient,
		cfg:  cfg,
	}
}

func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	if c.cfg.VectorStoreID != "" {
		return c.answerWithRetrieval(ctx, question)
	}
	return c.answerChat(ctx, question)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) answerChat(ctx context.Context, question string) (string, error) {
	reqBody := chatRequest{
		Model:     c.cfg.Model,
		Messages:  c.conversation(question),
		MaxTokens: c.cfg.MaxOutputTokens,
	}

	var respBody chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("answer backend request failed: %w", err)
	}
	if resp.IsError() {
		return "", &BackendError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	if len(respBody.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	text := strings.TrimSpace(respBody.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

type responsesTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids"`
}

type responsesRequest struct {
	Model           string          `json:"model"`
	Input           []chatMessage   `json:"input"`
	MaxOutputTokens int             `json:"max_output_tokens"`
	Tools           []responsesTool `json:"tools"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func (c *Client) answerWithRetrieval(ctx context.Context, question string) (string, error) {
	reqBody := responsesRequest{
		Model:           c.cfg.Model,
		Input:           c.conversation(question),
		MaxOutputTokens: c.cfg.MaxOutputTokens,
		Tools: []responsesTool{
			{Type: "file_search", VectorStoreIDs: []string{c.cfg.VectorStoreID}},
		},
	}

	var respBody responsesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post("/responses")
	if err != nil {
		return "", fmt.Errorf("answer backend request failed: %w", err)
	}
	if resp.IsError() {
		return "", &BackendError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	// The output mixes tool-call items with message items; only message
	// output_text blocks carry the answer.
	var parts []string
	for _, item := range respBody.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" && content.Text != "" {
				parts = append(parts, content.Text)
			}
		}
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

func (c *Client) conversation(question string) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if c.cfg.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: c.cfg.SystemPrompt})
	}
	return append(msgs, chatMessage{Role: "user", Content: question})
}
