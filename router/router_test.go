package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func noopEvent(name, eventType, pattern string, priority int) EventRoute {
	return EventRoute{
		Route:     Route{Name: name, Pattern: pattern, Priority: priority},
		EventType: eventType,
		Plugin:    func(ctx context.Context, router Router, route Route, req EventRequest) {},
	}
}

func TestRegisteredRoutes_Empty(t *testing.T) {
	r := NewRouter()
	assert.Empty(t, r.RegisteredRoutes())
}

func TestRegisteredRoutes_IncludesAllTypes(t *testing.T) {
	r := NewRouter()
	r.AddSlashCommandRoute(SlashCommandRoute{
		Command:     "/deploy",
		SubCommands: map[string]SubCommandRoute{"status": noopSub("deploy.status")},
	})
	r.AddEventRoute(noopEvent("event1", "app_mention", "", 1))
	r.AddInteractionRoute(InteractionRoute{Route: Route{Name: "interaction1"}})

	routes := r.RegisteredRoutes()
	assert.Len(t, routes, 4)

	types := map[string]bool{}
	for _, route := range routes {
		types[route.Type] = true
	}
	assert.True(t, types[RouteTypeSlashCommand])
	assert.True(t, types[RouteTypeSubCommand])
	assert.True(t, types[RouteTypeEvent])
	assert.True(t, types[RouteTypeInteraction])
}

func TestRegisteredRoutes_SortedByPriorityThenName(t *testing.T) {
	r := NewRouter()
	r.AddEventRoute(noopEvent("low", "message", "", 1))
	r.AddEventRoute(noopEvent("high", "message", "", 10))
	r.AddEventRoute(noopEvent("beta", "message", "", 5))
	r.AddEventRoute(noopEvent("alpha", "message", "", 5))

	routes := r.RegisteredRoutes()
	names := []string{}
	for _, route := range routes {
		names = append(names, route.Name)
	}
	assert.Equal(t, []string{"high", "alpha", "beta", "low"}, names)
}

func TestRegisteredRoutes_ExcludesDefaultAndDenied(t *testing.T) {
	r := NewRouter()
	r.DefaultMentionRoute = EventRoute{Route: Route{Name: "fallback"}}
	r.DeniedEventRoute = EventRoute{Route: Route{Name: "permission_denied"}}
	r.DeniedSlashCommandRoute = SubCommandRoute{Route: Route{Name: "permission_denied"}}
	r.AddEventRoute(noopEvent("real_route", "app_mention", "", 1))

	routes := r.RegisteredRoutes()
	require.Len(t, routes, 1)
	assert.Equal(t, "real_route", routes[0].Name)
}

func TestFindEventRoute_PriorityAndPattern(t *testing.T) {
	r := NewRouter()
	r.AddEventRoute(noopEvent("catch-all", "app_mention", "", -10))
	r.AddEventRoute(noopEvent("deploy", "app_mention", `(?i)^deploy`, 5))
	r.AddEventRoute(noopEvent("deploy-msg", "message", `(?i)^deploy`, 100))

	route, ok := r.FindEventRoute("app_mention", "Deploy prod")
	require.True(t, ok)
	assert.Equal(t, "deploy", route.Name)

	route, ok = r.FindEventRoute("app_mention", "hello")
	require.True(t, ok)
	assert.Equal(t, "catch-all", route.Name)

	_, ok = r.FindEventRoute("reaction_added", "deploy")
	assert.False(t, ok)
}

func TestAddEventRoute_BadPatternPanics(t *testing.T) {
	r := NewRouter()
	assert.Panics(t, func() { r.AddEventRoute(noopEvent("bad", "message", "(", 0)) })
}

func TestNewEventRequest_ExtractsFields(t *testing.T) {
	ev := slackevents.EventsAPIEvent{
		Type: slackevents.CallbackEvent,
		InnerEvent: slackevents.EventsAPIInnerEvent{
			Type: "app_mention",
			Data: &slackevents.AppMentionEvent{
				User:            "U1",
				Channel:         "C1",
				Text:            "hello",
				TimeStamp:       "1.1",
				ThreadTimeStamp: "0.9",
			},
		},
	}

	req := NewEventRequest(ev, nil)

	assert.Equal(t, "app_mention", req.Type)
	assert.Equal(t, "U1", req.User)
	assert.Equal(t, "C1", req.Channel)
	assert.Equal(t, "hello", req.Text)
	assert.Equal(t, "1.1", req.TimeStamp)
	assert.Equal(t, "0.9", req.ThreadTimeStamp)
}

func TestEventField_Tolerant(t *testing.T) {
	var nilMention *slackevents.AppMentionEvent
	assert.Equal(t, "", EventField(nil, "User"))
	assert.Equal(t, "", EventField(nilMention, "User"))
	assert.Equal(t, "", EventField("text", "User"))
	assert.Equal(t, "", EventField(&slackevents.AppMentionEvent{}, "Missing"))
	assert.Equal(t, "U2", EventField(slackevents.MessageEvent{User: "U2"}, "User"))
}

func TestFindInteractionRoute(t *testing.T) {
	r := NewRouter()
	r.AddInteractionRoute(InteractionRoute{
		Route: Route{Name: "approve", Pattern: `^approve_`},
		Type:  slack.InteractionTypeBlockActions,
	})
	r.AddInteractionRoute(InteractionRoute{
		Route: Route{Name: "modal", Pattern: `^deploy_modal$`},
		Type:  slack.InteractionTypeViewSubmission,
	})

	var cb slack.InteractionCallback
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "block_actions",
		"actions": [{"action_id": "approve_123", "block_id": "b1", "type": "button", "value": "yes"}]
	}`), &cb))

	assert.Equal(t, "approve_123", CallbackKey(cb))
	route, ok := r.FindInteractionRoute(cb)
	require.True(t, ok)
	assert.Equal(t, "approve", route.Name)

	view := slack.InteractionCallback{Type: slack.InteractionTypeViewSubmission}
	view.View.CallbackID = "deploy_modal"
	route, ok = r.FindInteractionRoute(view)
	require.True(t, ok)
	assert.Equal(t, "modal", route.Name)

	wrongType := slack.InteractionCallback{Type: slack.InteractionTypeShortcut, CallbackID: "deploy_modal"}
	_, ok = r.FindInteractionRoute(wrongType)
	assert.False(t, ok)
}

func TestResponseURL_FallsBackToViewURLs(t *testing.T) {
	cb := slack.InteractionCallback{ResponseURL: "https://hooks.slack.com/a"}
	assert.Equal(t, "https://hooks.slack.com/a", ResponseURL(cb))

	var view slack.InteractionCallback
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "view_submission",
		"response_urls": [{"block_id": "b", "action_id": "a", "channel_id": "C1", "response_url": "https://hooks.slack.com/b"}]
	}`), &view))
	assert.Equal(t, "https://hooks.slack.com/b", ResponseURL(view))

	assert.Equal(t, "", ResponseURL(slack.InteractionCallback{}))
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func TestCan(t *testing.T) {
	r := NewRouter()
	r.DbConnection = setupTestDB(t)
	db := r.DbConnection

	admin := models.User{Uuid: "U_ADMIN"}
	deployer := models.User{Uuid: "U_DEPLOYER"}
	nobody := models.User{Uuid: "U_NOBODY"}
	db.Create(&admin)
	db.Create(&deployer)
	db.Create(&nobody)

	admins := models.Group{Name: models.GlobalAdminsGroup}
	deployers := models.Group{Name: "deployers"}
	db.Create(&admins)
	db.Create(&deployers)
	require.NoError(t, db.Model(&admins).Association("Members").Append(&admin))
	require.NoError(t, db.Model(&deployers).Association("Members").Append(&deployer))

	assert.True(t, r.Can(nobody, nil), "no permissions means open")
	assert.True(t, r.Can(nobody, []string{"*"}))
	assert.False(t, r.Can(nobody, []string{"deployers"}))
	assert.True(t, r.Can(deployer, []string{"ops", "deployers"}))
	assert.False(t, r.Can(deployer, []string{"ops"}))
	assert.True(t, r.Can(admin, []string{"ops"}), "global admins pass every check")
}

func TestCan_WithoutDatabase(t *testing.T) {
	r := NewRouter()
	assert.True(t, r.Can(models.User{Uuid: "U1"}, []string{"*"}))
	assert.False(t, r.Can(models.User{Uuid: "U1"}, []string{"admins"}))
}
