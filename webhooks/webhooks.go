// Package webhooks posts to the incoming webhooks configured for the
// connection, addressed by name.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

var ErrUnknownWebhook = errors.New("webhooks: unknown webhook")

type Client struct {
	hooks  map[string]string
	client *http.Client
}

// New copies hooks so later changes to the caller's map are not observed.
func New(hooks map[string]string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	copied := make(map[string]string, len(hooks))
	for name, url := range hooks {
		copied[name] = url
	}
	return &Client{hooks: copied, client: httpClient}
}

// Names returns the configured webhook names in sorted order.
func (c *Client) Names() []string {
	names := make([]string, 0, len(c.hooks))
	for name := range c.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Send posts msg to the webhook registered under name.
func (c *Client) Send(ctx context.Context, name string, msg *slack.WebhookMessage) error {
	url, ok := c.hooks[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWebhook, name)
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, url, c.client, msg); err != nil {
		log.Error().Err(err).Str("webhook", name).Msg("Failed to post to webhook")
		return fmt.Errorf("webhooks: post %s: %w", name, err)
	}
	log.Debug().Str("webhook", name).Msg("Posted to webhook")
	return nil
}

// SendText is Send for a plain text message.
func (c *Client) SendText(ctx context.Context, name, text string) error {
	return c.Send(ctx, name, &slack.WebhookMessage{Text: text})
}
