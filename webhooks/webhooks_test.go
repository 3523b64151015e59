package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PostsToNamedHook(t *testing.T) {
	var got slack.WebhookMessage
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(ts.Close)

	c := New(map[string]string{
		"alerts": ts.URL + "/services/alerts",
		"deploy": ts.URL + "/services/deploy",
	}, nil)

	require.NoError(t, c.SendText(context.Background(), "deploy", "shipped"))
	assert.Equal(t, "/services/deploy", path)
	assert.Equal(t, "shipped", got.Text)
}

func TestSend_UnknownHook(t *testing.T) {
	c := New(map[string]string{}, nil)
	err := c.SendText(context.Background(), "nope", "hello")
	assert.ErrorIs(t, err, ErrUnknownWebhook)
	assert.Contains(t, err.Error(), `"nope"`)
}

// Note: This test cannot use t.Parallel() because it mutates the global zerolog logger.
func TestSend_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	origLogger := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = origLogger }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(ts.Close)

	c := New(map[string]string{"alerts": ts.URL}, nil)
	err := c.SendText(context.Background(), "alerts", "hello")

	assert.Error(t, err)
	assert.Contains(t, buf.String(), "Failed to post to webhook")
	assert.Contains(t, buf.String(), "alerts")
}

func TestNames_SortedCopy(t *testing.T) {
	hooks := map[string]string{"b": "https://b", "a": "https://a"}
	c := New(hooks, nil)
	hooks["c"] = "https://c"

	assert.Equal(t, []string{"a", "b"}, c.Names())
}
