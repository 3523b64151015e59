package core

import (
	"encoding/json"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

func stripBotMention(body string, botUID string) string {
	if botUID == "" {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(strings.ReplaceAll(body, "<@"+botUID+">", ""))
}

// botUIDFromBody reads the bot user from an event callback's
// authorizations list.
func botUIDFromBody(body []byte) string {
	var envelope struct {
		Authorizations []struct {
			UserID string `json:"user_id"`
		} `json:"authorizations"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	for _, auth := range envelope.Authorizations {
		if auth.UserID != "" {
			return auth.UserID
		}
	}
	return ""
}

// outerType returns the top-level "type" of an Events API body.
func outerType(body []byte) string {
	var envelope struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(body, &envelope)
	return envelope.Type
}

// eventIDs remembers the last size event IDs so that deliveries Slack
// retries are dispatched once.
type eventIDs struct {
	mu    sync.Mutex
	size  int
	order []string
	ids   map[string]struct{}
}

func newEventIDs(size int) *eventIDs {
	return &eventIDs{size: size, ids: make(map[string]struct{}, size)}
}

// Seen records id and reports whether it was already present.
func (s *eventIDs) Seen(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return true
	}
	if len(s.order) >= s.size {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	s.order = append(s.order, id)
	s.ids[id] = struct{}{}
	return false
}

func safeGo(routeName string, logger zerolog.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Interface("panic", r).
					Str("route", routeName).
					Str("stack", string(debug.Stack())).
					Msg("Plugin panicked")
			}
		}()
		fn()
	}()
}
