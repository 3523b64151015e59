package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(dispatches.WithLabelValues("command", "/deploy", "ok"))
	IncDispatch("command", "/deploy", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(dispatches.WithLabelValues("command", "/deploy", "ok")))

	before = testutil.ToFloat64(signatureFailures.WithLabelValues("mismatch"))
	IncSignatureFailure("mismatch")
	assert.Equal(t, before+1, testutil.ToFloat64(signatureFailures.WithLabelValues("mismatch")))
}

func TestHandler_ExposesSeries(t *testing.T) {
	IncRequest("commands", http.StatusOK)
	IncResponseURLPost("ok")
	ObservePlugin("command", 150*time.Millisecond)

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `nexus_slack_requests_total{code="200",endpoint="commands"}`)
	assert.Contains(t, body, "nexus_slack_response_url_posts_total")
	assert.Contains(t, body, "nexus_slack_plugin_duration_seconds_bucket")
}
