// Package line delivers replies through the chat platform's reply API.
package line

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/answerline/answerline/internal/config"
)

// DeliveryError is a non-2xx response from the reply endpoint. The reply
// is not retried; the user simply receives no answer.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("reply delivery returned status %d: %s", e.StatusCode, e.Body)
}

// Client sends reply messages authorized by single-use reply tokens.
type Client struct {
	http *resty.Client
}

// NewClient creates a reply client from config.
func NewClient(cfg config.LineConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.APIBase).
		SetTimeout(cfg.Timeout.Std()).
		SetAuthToken(cfg.ChannelToken).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// Reply delivers one text message to the conversation the reply token
// belongs to. Callers must not pass an empty token; an unfulfillable
// reply is skipped upstream, not errored here.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	reqBody := replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqBody).
		Post("/v2/bot/message/reply")
	if err != nil {
		return fmt.Errorf("reply delivery request failed: %w", err)
	}
	if resp.IsError() {
		return &DeliveryError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return nil
}
