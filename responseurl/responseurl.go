// Package responseurl wraps the response_url Slack hands out with slash
// commands and interactions. Slack accepts a bounded number of follow-up
// posts to that URL within a fixed window after the original request.
package responseurl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/NexusSwitchboard/nexus-conn-slack/metrics"
	"github.com/slack-go/slack"
)

const (
	MaxPosts = 5
	Lifetime = 30 * time.Minute
)

var (
	ErrNoURL     = errors.New("responseurl: request carried no response_url")
	ErrExpired   = errors.New("responseurl: response_url has expired")
	ErrExhausted = errors.New("responseurl: response_url has no posts left")
)

// Responder posts follow-up messages to a single response_url.
type Responder struct {
	url      string
	issuedAt time.Time
	client   *http.Client
	now      func() time.Time

	mu    sync.Mutex
	posts int
}

type Option func(*Responder)

// WithHTTPClient overrides the client used for posting.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Responder) { r.client = c }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) { r.now = now }
}

// New returns a Responder whose window starts at issuedAt.
func New(url string, issuedAt time.Time, opts ...Option) *Responder {
	r := &Responder{
		url:      url,
		issuedAt: issuedAt,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URL returns the wrapped response_url.
func (r *Responder) URL() string { return r.url }

// Remaining reports how many posts may still be made.
func (r *Responder) Remaining() int {
	if r == nil || r.url == "" {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.expired() {
		return 0
	}
	return MaxPosts - r.posts
}

// Post sends msg. A failed delivery still consumes one of the posts.
func (r *Responder) Post(ctx context.Context, msg *slack.WebhookMessage) error {
	if r == nil || r.url == "" {
		return ErrNoURL
	}

	r.mu.Lock()
	if r.expired() {
		r.mu.Unlock()
		metrics.IncResponseURLPost("expired")
		return ErrExpired
	}
	if r.posts >= MaxPosts {
		r.mu.Unlock()
		metrics.IncResponseURLPost("exhausted")
		return ErrExhausted
	}
	r.posts++
	r.mu.Unlock()

	if err := slack.PostWebhookCustomHTTPContext(ctx, r.url, r.client, msg); err != nil {
		metrics.IncResponseURLPost("error")
		return fmt.Errorf("responseurl: post: %w", err)
	}
	metrics.IncResponseURLPost("ok")
	return nil
}

// PostMsg converts a message built for a synchronous reply and posts it.
func (r *Responder) PostMsg(ctx context.Context, msg *slack.Msg) error {
	return r.Post(ctx, FromMsg(msg))
}

func (r *Responder) expired() bool {
	return r.now().Sub(r.issuedAt) >= Lifetime
}

// FromMsg maps the fields a response_url honours from a slack.Msg.
func FromMsg(msg *slack.Msg) *slack.WebhookMessage {
	if msg == nil {
		return &slack.WebhookMessage{}
	}
	wm := &slack.WebhookMessage{
		Text:            msg.Text,
		Attachments:     msg.Attachments,
		ResponseType:    msg.ResponseType,
		ReplaceOriginal: msg.ReplaceOriginal,
		DeleteOriginal:  msg.DeleteOriginal,
		ThreadTimestamp: msg.ThreadTimestamp,
	}
	if len(msg.Blocks.BlockSet) > 0 {
		blocks := msg.Blocks
		wm.Blocks = &blocks
	}
	return wm
}
