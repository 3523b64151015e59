package router

import (
	"context"
	"reflect"
	"sort"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// EventRoute handles an Events API callback of type EventType, e.g.
// "app_mention" or "reaction_added". When Pattern is set it must match the
// event's text.
type EventRoute struct {
	Route
	EventType string
	Plugin    func(ctx context.Context, router Router, route Route, req EventRequest)
}

// EventRequest carries the parsed event and the fields most plugins need.
type EventRequest struct {
	Event   slackevents.EventsAPIEvent
	Type    string
	User    string
	Channel string
	// Text has any mention of the bot removed.
	Text            string
	TimeStamp       string
	ThreadTimeStamp string
	API             *slack.Client
}

// Execute calls Plugin()
func (route EventRoute) Execute(ctx context.Context, router Router, req EventRequest) {
	route.Plugin(ctx, router, route.Route, req)
}

// NewEventRequest pulls the common fields out of the inner event data.
func NewEventRequest(ev slackevents.EventsAPIEvent, api *slack.Client) EventRequest {
	data := ev.InnerEvent.Data
	return EventRequest{
		Event:           ev,
		Type:            ev.InnerEvent.Type,
		User:            EventField(data, "User"),
		Channel:         EventField(data, "Channel"),
		Text:            EventField(data, "Text"),
		TimeStamp:       EventField(data, "TimeStamp"),
		ThreadTimeStamp: EventField(data, "ThreadTimeStamp"),
		API:             api,
	}
}

// EventField reads a string field from an inner event struct. Events
// without the field yield "".
func EventField(data interface{}, name string) string {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return ""
	}
	f := v.FieldByName(name)
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

// AddEventRoute upserts route, keyed by its Name
func (router Router) AddEventRoute(route EventRoute) {
	route.matcher() // panics on a bad Pattern at registration
	router.EventRoutes[route.Name] = route
}

// AddEventRoutes calls `AddEventRoute()` for each element in `routes`
func (router Router) AddEventRoutes(routes []EventRoute) {
	for _, route := range routes {
		router.AddEventRoute(route)
	}
}

// FindEventRoute returns the highest priority route for eventType whose
// Pattern matches text.
func (router Router) FindEventRoute(eventType, text string) (EventRoute, bool) {
	candidates := make([]EventRoute, 0, len(router.EventRoutes))
	for _, route := range router.EventRoutes {
		if route.EventType == eventType {
			candidates = append(candidates, route)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return byPriority(candidates[i].Route, candidates[j].Route)
	})

	for _, route := range candidates {
		re := route.matcher()
		if re == nil || re.MatchString(text) {
			return route, true
		}
	}
	return EventRoute{}, false
}
