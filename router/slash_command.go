package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/NexusSwitchboard/nexus-conn-slack/responseurl"
	"github.com/slack-go/slack"
)

// ErrUnrecognizedAction is returned by Resolve when the text names no
// registered sub-command and the command has no default.
var ErrUnrecognizedAction = errors.New("unrecognized action")

// SlashCommandRoute handles one Slack slash command, e.g. "/deploy". The
// first word of the command text selects one of SubCommands.
//
// The sub-command plugin runs while Slack waits for the acknowledgement.
// A result returned within the connection's ack timeout becomes the
// synchronous response. A slower plugin is acknowledged (with
// ImmediateResponse when set) and its result is posted to the command's
// response_url once it arrives.
type SlashCommandRoute struct {
	Route
	Command           string
	SubCommands       map[string]SubCommandRoute
	DefaultSubCommand string
	ImmediateResponse string
}

// SubCommandRoute is one action of a slash command.
type SubCommandRoute struct {
	Route
	Plugin func(ctx context.Context, router Router, route Route, req SubCommandRequest) (*slack.Msg, error)
}

// SubCommandRequest is what a sub-command plugin receives.
type SubCommandRequest struct {
	Command slack.SlashCommand
	// Action is the sub-command name that was resolved.
	Action string
	// Text is the text following the action, or the whole command text when
	// the default sub-command was selected.
	Text      string
	Defaulted bool
	User      models.User
	API       *slack.Client
	Responder *responseurl.Responder
}

// Execute calls Plugin()
func (route SubCommandRoute) Execute(ctx context.Context, router Router, req SubCommandRequest) (*slack.Msg, error) {
	return route.Plugin(ctx, router, route.Route, req)
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Action    string
	Route     SubCommandRoute
	Text      string
	Defaulted bool
}

// Resolve picks the sub-command for the raw command text. The first
// whitespace separated token, lower-cased, is looked up among the
// sub-command names; on a match the remaining tokens become the text.
// Otherwise the default sub-command receives the whole text.
func (route SlashCommandRoute) Resolve(text string) (Resolution, error) {
	tokens := strings.Fields(text)
	if len(tokens) > 0 {
		action := strings.ToLower(tokens[0])
		if sub, ok := route.SubCommands[action]; ok {
			return Resolution{
				Action: action,
				Route:  sub,
				Text:   strings.Join(tokens[1:], " "),
			}, nil
		}
	}

	if route.DefaultSubCommand != "" {
		if sub, ok := route.SubCommands[route.DefaultSubCommand]; ok {
			return Resolution{
				Action:    route.DefaultSubCommand,
				Route:     sub,
				Text:      strings.TrimSpace(text),
				Defaulted: true,
			}, nil
		}
	}

	action := ""
	if len(tokens) > 0 {
		action = tokens[0]
	}
	return Resolution{Action: action}, fmt.Errorf("%s %q: %w", route.Command, action, ErrUnrecognizedAction)
}

// Actions returns the sub-command names in sorted order.
func (route SlashCommandRoute) Actions() []string {
	names := make([]string, 0, len(route.SubCommands))
	for name := range route.SubCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnrecognizedActionMsg is the ephemeral reply for text Resolve rejected.
func (route SlashCommandRoute) UnrecognizedActionMsg(action string) *slack.Msg {
	quoted := make([]string, 0, len(route.SubCommands))
	for _, name := range route.Actions() {
		quoted = append(quoted, "`"+name+"`")
	}
	valid := "This command has no actions."
	if len(quoted) > 0 {
		valid = "Valid actions are: " + strings.Join(quoted, ", ") + "."
	}

	text := fmt.Sprintf("Unrecognized action for `%s`. %s", route.Command, valid)
	if action != "" {
		text = fmt.Sprintf("Unrecognized action `%s` for `%s`. %s", action, route.Command, valid)
	}
	return EphemeralMsg(text)
}

// AddSlashCommandRoute registers route under its Command. Sub-command
// names and the default are stored lower-cased so Resolve can match them
// case-insensitively, so two names differing only in case panic.
func (router Router) AddSlashCommandRoute(route SlashCommandRoute) {
	subs := make(map[string]SubCommandRoute, len(route.SubCommands))
	for name, sub := range route.SubCommands {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := subs[key]; dup {
			panic(fmt.Sprintf("router: %s: sub-command %q is registered twice", route.Command, key))
		}
		subs[key] = sub
	}
	route.SubCommands = subs
	route.DefaultSubCommand = strings.ToLower(strings.TrimSpace(route.DefaultSubCommand))
	if route.DefaultSubCommand != "" {
		if _, ok := subs[route.DefaultSubCommand]; !ok {
			panic(fmt.Sprintf("router: %s: default sub-command %q is not registered", route.Command, route.DefaultSubCommand))
		}
	}
	if route.Name == "" {
		route.Name = route.Command
	}
	router.SlashCommandRoutes[route.Command] = route
}

// AddSlashCommandRoutes calls `AddSlashCommandRoute()` for each element in `routes`
func (router Router) AddSlashCommandRoutes(routes []SlashCommandRoute) {
	for _, route := range routes {
		router.AddSlashCommandRoute(route)
	}
}

// FindSlashCommandRouteByCommand looks up the route for a command such as "/deploy".
func (router Router) FindSlashCommandRouteByCommand(command string) (SlashCommandRoute, bool) {
	route, exists := router.SlashCommandRoutes[command]
	return route, exists
}
