package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

// Client pushes text messages through a Telegram bot. The bot token comes
// from the store settings, so a bot handle is built for every push.
type Client struct {
	http      *http.Client
	serverURL string
}

type Option func(*Client)

// WithServerURL points the client at a different Bot API host.
func WithServerURL(url string) Option {
	return func(c *Client) {
		c.serverURL = url
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

func (c *Client) Push(ctx context.Context, token, chatID, text string) error {
	opts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(c.http.Timeout, c.http),
	}
	if c.serverURL != "" {
		opts = append(opts, bot.WithServerURL(c.serverURL))
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatTarget(chatID),
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// chatTarget keeps @channel usernames as strings and sends numeric ids as int64.
func chatTarget(chatID string) any {
	chatID = strings.TrimSpace(chatID)
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		return id
	}
	return chatID
}
