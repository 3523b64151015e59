package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_slack_requests_total",
		Help: "Slack HTTP requests handled, by endpoint and status code",
	}, []string{"endpoint", "code"})
	signatureFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_slack_signature_failures_total",
		Help: "Requests rejected by signature verification",
	}, []string{"reason"})
	dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_slack_dispatch_total",
		Help: "Plugin dispatches, by kind, route and outcome",
	}, []string{"kind", "route", "outcome"})
	responseURLPosts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_slack_response_url_posts_total",
		Help: "Follow-up posts to response URLs",
	}, []string{"status"})
	pluginLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nexus_slack_plugin_duration_seconds",
		Help:    "Plugin execution time",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5, 10, 30},
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(requests, signatureFailures, dispatches, responseURLPosts, pluginLatency)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func IncRequest(endpoint string, code int) {
	requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

func IncSignatureFailure(reason string) { signatureFailures.WithLabelValues(reason).Inc() }

func IncDispatch(kind, route, outcome string) {
	dispatches.WithLabelValues(kind, route, outcome).Inc()
}

func IncResponseURLPost(status string) { responseURLPosts.WithLabelValues(status).Inc() }

func ObservePlugin(kind string, d time.Duration) {
	pluginLatency.WithLabelValues(kind).Observe(d.Seconds())
}
