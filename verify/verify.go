// Package verify authenticates inbound Slack requests by their signing
// secret and keeps the raw body available to the handlers downstream.
package verify

import (
	"bytes"
	"io"
	"net/http"

	"github.com/NexusSwitchboard/nexus-conn-slack/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"
)

const rawBodyKey = "nexus.slack.rawBody"

// SlackRequest reads the request body, verifies the Slack signature over it
// and returns the body bytes. On failure the returned status is the one the
// caller should answer with.
func SlackRequest(r *http.Request, signingSecret string) ([]byte, int, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.IncSignatureFailure("body")
		return nil, http.StatusBadRequest, err
	}

	sv, err := slack.NewSecretsVerifier(r.Header, signingSecret)
	if err != nil {
		metrics.IncSignatureFailure("headers")
		return nil, http.StatusUnauthorized, err
	}
	if _, err := sv.Write(body); err != nil {
		metrics.IncSignatureFailure("hash")
		return nil, http.StatusInternalServerError, err
	}
	if err := sv.Ensure(); err != nil {
		metrics.IncSignatureFailure("mismatch")
		return nil, http.StatusUnauthorized, err
	}

	return body, http.StatusOK, nil
}

// Middleware aborts unsigned requests. Verified requests continue with
// Request.Body rewound and the raw bytes stored for RawBody.
func Middleware(signingSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, code, err := SlackRequest(c.Request, signingSecret)
		if err != nil {
			log.Warn().
				Err(err).
				Str("uri", c.Request.URL.Path).
				Str("remote", c.ClientIP()).
				Msg("Slack request verification failed")
			c.AbortWithStatus(code)
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(rawBodyKey, body)
		c.Next()
	}
}

// RawBody returns the verified request body.
func RawBody(c *gin.Context) []byte {
	if v, ok := c.Get(rawBodyKey); ok {
		if body, ok := v.([]byte); ok {
			return body
		}
	}
	return nil
}
