package fallback

import (
	"context"

	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/helpers"
	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/slack-go/slack"
)

// GetMentionRoute answers mentions that no event route matched.
func GetMentionRoute() *router.EventRoute {
	var pluginRoute router.EventRoute
	pluginRoute.Permissions = append(pluginRoute.Permissions, "*")
	pluginRoute.Name = "fallback"
	pluginRoute.EventType = "app_mention"
	pluginRoute.Plugin = func(ctx context.Context, router router.Router, route router.Route, req router.EventRequest) {
		helpers.PostMessage(ctx, req.API, req.Channel, route.Name,
			slack.MsgOptionText("Hi there! I see you sent me a message, <@"+req.User+">, but I'm not sure what to do with that.", false),
			helpers.ThreadReplyOption(req.ThreadTimeStamp),
		)
	}
	return &pluginRoute
}
