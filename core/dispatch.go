package core

import (
	"context"
	"errors"
	"time"

	"github.com/NexusSwitchboard/nexus-conn-slack/metrics"
	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/NexusSwitchboard/nexus-conn-slack/responseurl"
	"github.com/rs/zerolog"
)

var errPluginPanicked = errors.New("plugin panicked")

type pluginResult struct {
	body     interface{}
	err      error
	duration time.Duration
}

// ackWithin starts fn and waits for it up to the ack timeout. When fn is
// late, ok is false and its result arrives on late once fn returns. fn's
// context outlives the request: it ends with the response_url lifetime or
// on Disconnect. ErrDisconnected is returned without running fn once
// Disconnect has started.
func (conn *Connection) ackWithin(kind, routeName string, logger zerolog.Logger, fn func(ctx context.Context) (interface{}, error)) (res pluginResult, ok bool, late <-chan pluginResult, err error) {
	if !conn.track() {
		return pluginResult{}, false, nil, ErrDisconnected
	}
	done := make(chan pluginResult, 1)
	ctx, cancel := context.WithTimeout(conn.baseContext(), responseurl.Lifetime)
	start := time.Now()

	safeGo(routeName, logger, func() {
		defer conn.inflight.Done()
		defer cancel()
		out := pluginResult{err: errPluginPanicked}
		defer func() {
			out.duration = time.Since(start)
			metrics.ObservePlugin(kind, out.duration)
			done <- out
		}()
		out.body, out.err = fn(ctx)
	})

	timer := time.NewTimer(conn.config.Slack.AckTimeout)
	defer timer.Stop()
	select {
	case res = <-done:
		return res, true, nil, nil
	case <-timer.C:
		return pluginResult{duration: time.Since(start)}, false, done, nil
	}
}

// deliverLate waits for a late plugin result and hands it to deliver. After
// Disconnect has started the result is dropped.
func (conn *Connection) deliverLate(routeName string, logger zerolog.Logger, late <-chan pluginResult, deliver func(ctx context.Context, res pluginResult)) {
	if !conn.track() {
		logger.Warn().Str("route", routeName).Msg("Dropping late result, connection is disconnecting")
		return
	}
	safeGo(routeName, logger, func() {
		defer conn.inflight.Done()
		res := <-late
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		deliver(ctx, res)
	})
}

func (conn *Connection) recordInvocation(logger zerolog.Logger, inv models.Invocation) {
	db := conn.Router.DbConnection
	if db == nil {
		return
	}
	if err := db.Create(&inv).Error; err != nil {
		logger.Warn().Err(err).Str("command", inv.Command).Msg("Failed to record invocation")
	}
}

// userFor loads or creates the user row for a Slack user ID.
func (conn *Connection) userFor(logger zerolog.Logger, uuid string) models.User {
	user := models.User{Uuid: uuid}
	db := conn.Router.DbConnection
	if db == nil || uuid == "" {
		return user
	}
	if err := db.FirstOrCreate(&user, models.User{Uuid: uuid}).Error; err != nil {
		logger.Warn().Err(err).Str("user", uuid).Msg("Failed to load user")
	}
	return user
}
