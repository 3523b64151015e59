package permission_denied

import (
	"context"

	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/helpers"
	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/slack-go/slack"
)

func deniedText(user string) string {
	return "I'm sorry, <@" + user + ">, but you're not allowed to do that."
}

// GetEventRoute reacts to and answers events from users lacking permission.
func GetEventRoute() *router.EventRoute {
	var pluginRoute router.EventRoute
	pluginRoute.Permissions = append(pluginRoute.Permissions, "*")
	pluginRoute.Name = "permission_denied"
	pluginRoute.Plugin = func(ctx context.Context, router router.Router, route router.Route, req router.EventRequest) {
		if req.Channel == "" {
			return
		}
		if req.TimeStamp != "" {
			helpers.AddReaction(ctx, req.API, req.Channel, route.Name, "astonished", req.TimeStamp)
		}
		helpers.PostMessage(ctx, req.API, req.Channel, route.Name,
			slack.MsgOptionText(deniedText(req.User), false),
			helpers.ThreadReplyOption(req.ThreadTimeStamp),
		)
	}
	return &pluginRoute
}

// GetSubCommandRoute answers a denied slash command with an ephemeral reply.
func GetSubCommandRoute() *router.SubCommandRoute {
	var pluginRoute router.SubCommandRoute
	pluginRoute.Permissions = append(pluginRoute.Permissions, "*")
	pluginRoute.Name = "permission_denied"
	pluginRoute.Plugin = func(ctx context.Context, _ router.Router, route router.Route, req router.SubCommandRequest) (*slack.Msg, error) {
		return router.EphemeralMsg(deniedText(req.Command.UserID)), nil
	}
	return &pluginRoute
}
