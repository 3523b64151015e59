package user_info

import (
	"context"
	"fmt"
	"strings"

	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/helpers"
	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/slack-go/slack"
)

// GetSubCommandRoute answers `whois @user` with the user's Slack profile.
func GetSubCommandRoute() *router.SubCommandRoute {
	var pluginRoute router.SubCommandRoute
	pluginRoute.Permissions = append(pluginRoute.Permissions, "admins")
	pluginRoute.Name = "whois"
	pluginRoute.Description = "Responds with information about a Slack user"
	pluginRoute.Help = "whois @user"
	pluginRoute.Plugin = func(ctx context.Context, r router.Router, route router.Route, req router.SubCommandRequest) (*slack.Msg, error) {
		uid, ok := helpers.MentionedUser(strings.TrimSpace(req.Text))
		if !ok {
			return router.EphemeralMsg("Usage: `" + req.Command.Command + " " + route.Help + "`"), nil
		}

		foundUser := models.User{Uuid: uid}
		if r.DbConnection != nil {
			r.DbConnection.Where(models.User{Uuid: uid}).FirstOrCreate(&foundUser)
		}

		slackInfo := foundUser.Info(ctx, req.API)
		if slackInfo == nil {
			return router.EphemeralMsg(fmt.Sprintf("Sorry, I couldn't look up info for <@%s>.", uid)), nil
		}

		var response strings.Builder
		fmt.Fprintf(&response, "*<@%s>*\n", uid)
		fmt.Fprintf(&response, "- *Real Name:* %s\n", slackInfo.RealName)
		fmt.Fprintf(&response, "- *Time Zone:* %s\n", slackInfo.TZ)
		fmt.Fprintf(&response, "- *Email:* %s\n", slackInfo.Profile.Email)
		fmt.Fprintf(&response, "- *Locale:* %s", slackInfo.Locale)
		return router.EphemeralMsg(response.String()), nil
	}
	return &pluginRoute
}
