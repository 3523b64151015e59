package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/NexusSwitchboard/nexus-conn-slack/metrics"
	"github.com/NexusSwitchboard/nexus-conn-slack/models"
	"github.com/NexusSwitchboard/nexus-conn-slack/responseurl"
	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/NexusSwitchboard/nexus-conn-slack/verify"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const (
	loggerKey = "nexus.slack.logger"
	deniedKey = "nexus.slack.denied"
)

// requestLog attaches a request-scoped logger and writes one access line
// per request once the handler is done.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		logger := log.With().Str("request_id", requestID).Logger()
		c.Set(loggerKey, logger)

		c.Next()

		code := c.Writer.Status()
		event := logger.Info().
			Str("method", c.Request.Method).
			Int("code", code).
			Str("uri", c.Request.URL.String())
		if c.GetBool(deniedKey) {
			event = event.Str("access", "denied")
		}
		event.Msg("")

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncRequest(endpoint, code)
	}
}

func requestLogger(c *gin.Context) zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if logger, ok := v.(zerolog.Logger); ok {
			return logger
		}
	}
	return log.Logger
}

func (conn *Connection) requireOpen(c *gin.Context) {
	if conn.isClosed() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	c.Next()
}

// Handler returns an http.Handler with all Slack endpoints registered
// under the configured base path.
func (conn *Connection) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLog())

	engine.GET("/healthz", conn.handleHealth)
	if conn.config.Server.Metrics {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	slackRoutes := engine.Group(conn.config.Server.BasePath, conn.requireOpen, verify.Middleware(conn.config.Slack.SigningSecret))
	slackRoutes.POST("/events", conn.handleEvents)
	slackRoutes.POST("/interactions", conn.handleInteractions)
	slackRoutes.POST("/commands", conn.handleCommands)

	return engine
}

func (conn *Connection) handleHealth(c *gin.Context) {
	connected := conn.Connected()
	status := http.StatusOK
	if !connected {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"connected": connected, "bot_user_id": conn.BotUserID()})
}

func (conn *Connection) handleEvents(c *gin.Context) {
	logger := requestLogger(c)
	body := verify.RawBody(c)

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		// Callback events of types slackevents does not model still need an
		// ack, or Slack keeps retrying them.
		if outerType(body) == slackevents.CallbackEvent {
			logger.Debug().Err(err).Msg("Ignoring unsupported event")
			c.Status(http.StatusOK)
			return
		}
		logger.Warn().Err(err).Msg("Failed to parse event")
		c.Status(http.StatusInternalServerError)
		return
	}

	switch eventsAPIEvent.Type {
	case slackevents.URLVerification:
		var res slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &res); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "text", []byte(res.Challenge))
	case slackevents.CallbackEvent:
		if !conn.dispatchEvent(c, logger, eventsAPIEvent, body) {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	default:
		c.Status(http.StatusOK)
	}
}

// dispatchEvent reports false only when the connection is disconnecting.
func (conn *Connection) dispatchEvent(c *gin.Context, logger zerolog.Logger, ev slackevents.EventsAPIEvent, body []byte) bool {
	if cb, ok := ev.Data.(*slackevents.EventsAPICallbackEvent); ok {
		if conn.seen.Seen(cb.EventID) {
			logger.Debug().Str("event_id", cb.EventID).Str("retry", c.GetHeader("X-Slack-Retry-Num")).Msg("Duplicate event")
			return true
		}
	}

	if conn.BotUserID() == "" {
		conn.setBotUserID(botUIDFromBody(body))
	}
	botUID := conn.BotUserID()

	req := router.NewEventRequest(ev, conn.Client)
	// Ignore all events the bot produces to avoid infinite loops
	if req.User != "" && req.User == botUID {
		return true
	}
	req.Text = stripBotMention(req.Text, botUID)

	route, exists := conn.Router.FindEventRoute(req.Type, req.Text)
	if !exists {
		if req.Type != string(slackevents.AppMention) || conn.Router.DefaultMentionRoute.Plugin == nil {
			logger.Debug().Str("event", req.Type).Msg("No route for event")
			return true
		}
		route = conn.Router.DefaultMentionRoute
	}

	currentUser := conn.userFor(logger, req.User)
	if !conn.Router.Can(currentUser, route.Permissions) {
		logger.Warn().Str("user", currentUser.Uuid).Str("route", route.Name).Msg("Permission failure")
		c.Set(deniedKey, true)
		metrics.IncDispatch("event", route.Name, models.OutcomeDenied)
		if conn.Router.DeniedEventRoute.Plugin == nil {
			return true
		}
		route = conn.Router.DeniedEventRoute
	}

	logger.Debug().Str("user", currentUser.Uuid).Str("route", route.Name).Str("event", req.Type).Msg(req.Text)
	metrics.IncDispatch("event", route.Name, "dispatched")

	if !conn.track() {
		return false
	}
	ctx := conn.baseContext()
	safeGo(route.Name, logger, func() {
		defer conn.inflight.Done()
		start := time.Now()
		route.Execute(ctx, conn.Router, req)
		metrics.ObservePlugin("event", time.Since(start))
	})
	return true
}

func (conn *Connection) handleInteractions(c *gin.Context) {
	logger := requestLogger(c)

	payload := c.PostForm("payload")
	if payload == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		logger.Warn().Err(err).Msg("Failed to parse interaction payload")
		c.Status(http.StatusBadRequest)
		return
	}

	route, exists := conn.Router.FindInteractionRoute(callback)
	if !exists {
		logger.Debug().Str("type", string(callback.Type)).Str("callback", router.CallbackKey(callback)).Msg("No route for interaction")
		c.Status(http.StatusOK)
		return
	}

	currentUser := conn.userFor(logger, callback.User.ID)
	if !conn.Router.Can(currentUser, route.Permissions) {
		logger.Warn().Str("user", currentUser.Uuid).Str("route", route.Name).Msg("Permission failure")
		c.Set(deniedKey, true)
		metrics.IncDispatch("interaction", route.Name, models.OutcomeDenied)
		// A view submission only accepts response_action bodies. The empty
		// ack closes the modal without applying it.
		if callback.Type == slack.InteractionTypeViewSubmission {
			c.Status(http.StatusOK)
			return
		}
		c.JSON(http.StatusOK, responseurl.FromMsg(router.EphemeralMsg("Permission denied.")))
		return
	}

	req := router.InteractionRequest{
		Callback:  callback,
		User:      currentUser,
		API:       conn.Client,
		Responder: responseurl.New(router.ResponseURL(callback), time.Now(), responseurl.WithHTTPClient(conn.httpClient)),
	}
	logger.Debug().Str("user", currentUser.Uuid).Str("route", route.Name).Str("type", string(callback.Type)).Msg("Interaction")

	res, inTime, late, err := conn.ackWithin("interaction", route.Name, logger, func(ctx context.Context) (interface{}, error) {
		return route.Execute(ctx, conn.Router, req)
	})
	if err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	if !inTime {
		metrics.IncDispatch("interaction", route.Name, models.OutcomeDeferred)
		c.Status(http.StatusOK)
		conn.deliverLate(route.Name, logger, late, func(ctx context.Context, res pluginResult) {
			if res.err != nil {
				logger.Error().Err(res.err).Str("route", route.Name).Msg("Interaction plugin failed")
				return
			}
			msg, ok := res.body.(*slack.Msg)
			if !ok {
				if res.body != nil {
					logger.Warn().Str("route", route.Name).Msg("Dropping late interaction response that is not a message")
				}
				return
			}
			if err := req.Responder.PostMsg(ctx, msg); err != nil {
				logger.Error().Err(err).Str("route", route.Name).Msg("Failed to post late interaction response")
			}
		})
		return
	}

	if res.err != nil {
		logger.Error().Err(res.err).Str("route", route.Name).Msg("Interaction plugin failed")
		metrics.IncDispatch("interaction", route.Name, models.OutcomeFailed)
		c.Status(http.StatusOK)
		return
	}
	metrics.IncDispatch("interaction", route.Name, models.OutcomeReplied)
	writeReply(c, res.body)
}

func (conn *Connection) handleCommands(c *gin.Context) {
	logger := requestLogger(c)
	received := time.Now()

	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	route, exists := conn.Router.FindSlashCommandRouteByCommand(cmd.Command)
	if !exists {
		c.JSON(http.StatusOK, gin.H{"response_type": router.ResponseEphemeral, "text": "Unknown command."})
		return
	}

	audit := models.Invocation{Command: cmd.Command, UserUuid: cmd.UserID, ChannelID: cmd.ChannelID}

	resolution, err := route.Resolve(cmd.Text)
	if err != nil {
		logger.Debug().Err(err).Str("user", cmd.UserID).Msg("Unrecognized action")
		metrics.IncDispatch("command", route.Command, models.OutcomeUnrecognized)
		audit.SubCommand = resolution.Action
		audit.Outcome = models.OutcomeUnrecognized
		conn.recordInvocation(logger, audit)
		writeReply(c, route.UnrecognizedActionMsg(resolution.Action))
		return
	}
	audit.SubCommand = resolution.Action

	currentUser := conn.userFor(logger, cmd.UserID)
	sub := resolution.Route
	outcome := ""
	if !conn.Router.Can(currentUser, route.Permissions) || !conn.Router.Can(currentUser, sub.Permissions) {
		logger.Warn().Str("user", currentUser.Uuid).Str("route", sub.Name).Msg("Permission failure")
		c.Set(deniedKey, true)
		outcome = models.OutcomeDenied
		if conn.Router.DeniedSlashCommandRoute.Plugin == nil {
			metrics.IncDispatch("command", route.Command, outcome)
			audit.Outcome = outcome
			conn.recordInvocation(logger, audit)
			c.JSON(http.StatusOK, gin.H{"response_type": router.ResponseEphemeral, "text": "Permission denied."})
			return
		}
		sub = conn.Router.DeniedSlashCommandRoute
	}

	req := router.SubCommandRequest{
		Command:   cmd,
		Action:    resolution.Action,
		Text:      resolution.Text,
		Defaulted: resolution.Defaulted,
		User:      currentUser,
		API:       conn.Client,
		Responder: responseurl.New(cmd.ResponseURL, received, responseurl.WithHTTPClient(conn.httpClient)),
	}
	logger.Debug().Str("user", currentUser.Uuid).Str("route", sub.Name).Str("command", cmd.Command).Str("action", resolution.Action).Msg("Slash command")

	res, inTime, late, err := conn.ackWithin("command", sub.Name, logger, func(ctx context.Context) (interface{}, error) {
		msg, err := sub.Execute(ctx, conn.Router, req)
		if msg == nil {
			return nil, err
		}
		return msg, err
	})
	if err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	if !inTime {
		if outcome == "" {
			outcome = models.OutcomeDeferred
		}
		metrics.IncDispatch("command", route.Command, outcome)
		if route.ImmediateResponse != "" {
			writeReply(c, router.EphemeralMsg(route.ImmediateResponse))
		} else {
			c.Status(http.StatusOK)
		}
		conn.deliverLate(sub.Name, logger, late, func(ctx context.Context, res pluginResult) {
			audit.Duration = time.Since(received)
			audit.Outcome = outcome
			msg, _ := res.body.(*slack.Msg)
			if res.err != nil {
				logger.Error().Err(res.err).Str("route", sub.Name).Msg("Slash command plugin failed")
				audit.Outcome = models.OutcomeFailed
				msg = failureMsg(cmd, resolution.Action)
			}
			conn.recordInvocation(logger, audit)
			if msg == nil {
				return
			}
			if err := req.Responder.PostMsg(ctx, msg); err != nil {
				logger.Error().Err(err).Str("route", sub.Name).Msg("Failed to post late slash command response")
			}
		})
		return
	}

	audit.Duration = res.duration
	if res.err != nil {
		logger.Error().Err(res.err).Str("route", sub.Name).Msg("Slash command plugin failed")
		audit.Outcome = models.OutcomeFailed
		metrics.IncDispatch("command", route.Command, audit.Outcome)
		conn.recordInvocation(logger, audit)
		writeReply(c, failureMsg(cmd, resolution.Action))
		return
	}

	if outcome == "" {
		outcome = models.OutcomeReplied
	}
	audit.Outcome = outcome
	metrics.IncDispatch("command", route.Command, outcome)
	conn.recordInvocation(logger, audit)
	writeReply(c, res.body)
}

func failureMsg(cmd slack.SlashCommand, action string) *slack.Msg {
	return router.EphemeralMsg(fmt.Sprintf("Sorry, something went wrong running `%s %s`.", cmd.Command, action))
}

// writeReply writes a plugin result as the acknowledgement body. Messages
// are written in response_url form so that empty fields are omitted.
func writeReply(c *gin.Context, body interface{}) {
	switch v := body.(type) {
	case nil:
		c.Status(http.StatusOK)
	case *slack.Msg:
		if v == nil {
			c.Status(http.StatusOK)
			return
		}
		c.JSON(http.StatusOK, responseurl.FromMsg(v))
	default:
		c.JSON(http.StatusOK, v)
	}
}
