package router

import (
	"context"
	"sort"

	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/NexusSwitchboard/nexus-conn-slack/responseurl"
	"github.com/slack-go/slack"
)

// InteractionRoute handles an interactive payload (block actions, view
// submissions, shortcuts, legacy message buttons). Pattern is matched
// against the payload's callback key, see CallbackKey. A non-empty Type
// restricts the route to that interaction type.
//
// The plugin's return value, when not nil, is written as the JSON body of
// the acknowledgement, e.g. a *slack.Msg replacing the original message or
// a *slack.ViewSubmissionResponse.
type InteractionRoute struct {
	Route
	Type   slack.InteractionType
	Plugin func(ctx context.Context, router Router, route Route, req InteractionRequest) (interface{}, error)
}

// InteractionRequest is what an interaction plugin receives.
type InteractionRequest struct {
	Callback  slack.InteractionCallback
	User      models.User
	API       *slack.Client
	Responder *responseurl.Responder
}

// Execute calls Plugin()
func (route InteractionRoute) Execute(ctx context.Context, router Router, req InteractionRequest) (interface{}, error) {
	return route.Plugin(ctx, router, route.Route, req)
}

// CallbackKey is the identifier interaction routes match on: the
// callback_id, the view's callback_id, or the first block action_id.
func CallbackKey(cb slack.InteractionCallback) string {
	if cb.CallbackID != "" {
		return cb.CallbackID
	}
	if cb.View.CallbackID != "" {
		return cb.View.CallbackID
	}
	for _, action := range cb.ActionCallback.BlockActions {
		if action != nil && action.ActionID != "" {
			return action.ActionID
		}
	}
	return ""
}

// ResponseURL returns the payload's response_url, falling back to the
// first one a modal submission collected.
func ResponseURL(cb slack.InteractionCallback) string {
	if cb.ResponseURL != "" {
		return cb.ResponseURL
	}
	for _, u := range cb.ResponseURLs {
		if u.ResponseURL != "" {
			return u.ResponseURL
		}
	}
	return ""
}

// AddInteractionRoute upserts route, keyed by its Name
func (router Router) AddInteractionRoute(route InteractionRoute) {
	route.matcher() // panics on a bad Pattern at registration
	router.InteractionRoutes[route.Name] = route
}

// AddInteractionRoutes calls `AddInteractionRoute()` for each element in `routes`
func (router Router) AddInteractionRoutes(routes []InteractionRoute) {
	for _, route := range routes {
		router.AddInteractionRoute(route)
	}
}

// FindInteractionRoute returns the highest priority route matching cb.
func (router Router) FindInteractionRoute(cb slack.InteractionCallback) (InteractionRoute, bool) {
	key := CallbackKey(cb)
	candidates := make([]InteractionRoute, 0, len(router.InteractionRoutes))
	for _, route := range router.InteractionRoutes {
		if route.Type == "" || route.Type == cb.Type {
			candidates = append(candidates, route)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return byPriority(candidates[i].Route, candidates[j].Route)
	})

	for _, route := range candidates {
		re := route.matcher()
		if re == nil || re.MatchString(key) {
			return route, true
		}
	}
	return InteractionRoute{}, false
}
