package permission_denied

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEventRoute_Metadata(t *testing.T) {
	route := GetEventRoute()

	assert.NotNil(t, route)
	assert.Equal(t, "permission_denied", route.Name)
	assert.Equal(t, []string{"*"}, route.Permissions)
	assert.NotNil(t, route.Plugin)
}

func TestGetSubCommandRoute_RepliesEphemeral(t *testing.T) {
	route := GetSubCommandRoute()
	assert.Equal(t, "permission_denied", route.Name)
	assert.Equal(t, []string{"*"}, route.Permissions)

	var cmd slack.SlashCommand
	cmd.UserID = "U1"
	msg, err := route.Execute(context.Background(), *router.NewRouter(), router.SubCommandRequest{Command: cmd})

	require.NoError(t, err)
	assert.Equal(t, router.ResponseEphemeral, msg.ResponseType)
	assert.Equal(t, "I'm sorry, <@U1>, but you're not allowed to do that.", msg.Text)
}

func TestGetEventRoute_ReactsAndReplies(t *testing.T) {
	var mu sync.Mutex
	var methods []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	GetEventRoute().Execute(context.Background(), *router.NewRouter(), router.EventRequest{
		User:      "U1",
		Channel:   "C1",
		TimeStamp: "1.1",
		API:       slack.New("xoxb-fake", slack.OptionAPIURL(ts.URL+"/")),
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/reactions.add", "/chat.postMessage"}, methods)
}
