package line

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Client pushes text messages through the LINE Messaging API.
type Client struct {
	http     *http.Client
	endpoint string
}

type Option func(*Client)

// WithEndpoint points the client at a different Messaging API host.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		c.endpoint = url
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Push(ctx context.Context, accessToken, to, text string) error {
	opts := []messaging_api.MessagingApiAPIOption{
		messaging_api.WithHTTPClient(c.http),
	}
	if c.endpoint != "" {
		opts = append(opts, messaging_api.WithEndpoint(c.endpoint))
	}

	bot, err := messaging_api.NewMessagingApiAPI(accessToken, opts...)
	if err != nil {
		return fmt.Errorf("line: %w", err)
	}

	_, err = bot.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To: to,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: text},
		},
	}, "")
	if err != nil {
		return fmt.Errorf("line: %w", err)
	}
	return nil
}
