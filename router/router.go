package router

import (
	"regexp"
	"sort"

	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	RouteTypeSlashCommand = "slash_command"
	RouteTypeSubCommand   = "sub_command"
	RouteTypeEvent        = "event"
	RouteTypeInteraction  = "interaction"
)

// Route The fields shared by every kind of route
type Route struct {
	Name        string
	Pattern     string
	Description string
	Help        string
	Permissions []string
	Priority    int
}

// matcher compiles Pattern; an empty Pattern matches everything.
func (route Route) matcher() *regexp.Regexp {
	if route.Pattern == "" {
		return nil
	}
	return regexp.MustCompile(route.Pattern)
}

// RouteInfo describes a registered route for help output.
type RouteInfo struct {
	Route
	Type string
}

// Router holds every route the connection dispatches to
type Router struct {
	SlashCommandRoutes map[string]SlashCommandRoute
	EventRoutes        map[string]EventRoute
	InteractionRoutes  map[string]InteractionRoute

	DefaultMentionRoute     EventRoute
	DeniedEventRoute        EventRoute
	DeniedSlashCommandRoute SubCommandRoute

	DbConnection *gorm.DB
}

// NewRouter returns a new Router
func NewRouter() *Router {
	return &Router{
		SlashCommandRoutes: make(map[string]SlashCommandRoute),
		EventRoutes:        make(map[string]EventRoute),
		InteractionRoutes:  make(map[string]InteractionRoute),
	}
}

// SetupDb migrates the schemas
func (router Router) SetupDb() error {
	return models.AutoMigrate(router.DbConnection)
}

// Can Returns true if `u` possesses the provided permissions
func (router Router) Can(u models.User, permissions []string) bool {
	open := len(permissions) == 0
	for _, p := range permissions {
		if p == "*" {
			open = true
		}
	}
	if open {
		return true
	}
	if router.DbConnection == nil {
		return false
	}

	var userGroups []models.Group
	if err := router.DbConnection.Model(&u).Association("Groups").Find(&userGroups); err != nil {
		log.Error().Err(err).Str("user", u.Uuid).Msg("Failed to load user groups")
		return false
	}

	for _, group := range userGroups {
		if group.Name == models.GlobalAdminsGroup {
			return true
		}
		for _, allowed := range permissions {
			if allowed == group.Name {
				return true
			}
		}
	}
	return false
}

// RegisteredRoutes lists every added route, highest priority first and by
// name within a priority. Default and denied routes are not included.
func (router Router) RegisteredRoutes() []RouteInfo {
	var routes []RouteInfo
	for _, r := range router.SlashCommandRoutes {
		routes = append(routes, RouteInfo{Route: r.Route, Type: RouteTypeSlashCommand})
		for _, sub := range r.SubCommands {
			routes = append(routes, RouteInfo{Route: sub.Route, Type: RouteTypeSubCommand})
		}
	}
	for _, r := range router.EventRoutes {
		routes = append(routes, RouteInfo{Route: r.Route, Type: RouteTypeEvent})
	}
	for _, r := range router.InteractionRoutes {
		routes = append(routes, RouteInfo{Route: r.Route, Type: RouteTypeInteraction})
	}
	sort.SliceStable(routes, func(i, j int) bool {
		return byPriority(routes[i].Route, routes[j].Route)
	})
	return routes
}

// byPriority orders higher priority first, then by name.
func byPriority(a, b Route) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Name < b.Name
}
