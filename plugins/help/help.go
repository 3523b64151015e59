package help

import (
	"context"
	"fmt"
	"strings"

	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/slack-go/slack"
)

// GetSubCommandRoute lists the actions of whichever slash command it is
// registered under. It is meant to be that command's default.
func GetSubCommandRoute() *router.SubCommandRoute {
	var pluginRoute router.SubCommandRoute
	pluginRoute.Permissions = append(pluginRoute.Permissions, "*")
	pluginRoute.Name = "help"
	pluginRoute.Description = "Lists the available actions"
	pluginRoute.Help = "help"
	pluginRoute.Plugin = func(ctx context.Context, r router.Router, route router.Route, req router.SubCommandRequest) (*slack.Msg, error) {
		command, ok := r.FindSlashCommandRouteByCommand(req.Command.Command)
		if !ok {
			return router.EphemeralMsg("I don't know anything about `" + req.Command.Command + "`."), nil
		}
		return router.EphemeralMsg(Describe(r, command, req)), nil
	}
	return &pluginRoute
}

// Describe renders one line per action of command that the requesting
// user is allowed to run.
func Describe(r router.Router, command router.SlashCommandRoute, req router.SubCommandRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Actions for `%s`:*\n", command.Command)

	listed := 0
	for _, action := range command.Actions() {
		sub := command.SubCommands[action]
		if !r.Can(req.User, sub.Permissions) {
			continue
		}
		listed++

		usage := sub.Help
		if usage == "" {
			usage = action
		}
		fmt.Fprintf(&b, "*-* `%s %s`", command.Command, usage)
		if sub.Description != "" {
			fmt.Fprintf(&b, " %s", sub.Description)
		}
		if action == command.DefaultSubCommand {
			b.WriteString(" _(default)_")
		}
		b.WriteString("\n")
	}

	if listed == 0 {
		return fmt.Sprintf("You can't run any actions of `%s`.", command.Command)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
