package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var TotalRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Number of HTTP requests by route, status and method.",
	},
	[]string{"path", "code", "method"},
)

var HttpDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_response_time_seconds",
		Help:    "Duration of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"path", "code", "method"},
)

var ConversationOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "conversation_requests_total",
		Help: "Conversation requests by outcome.",
	},
	[]string{"outcome"},
)

var CompletionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "completion_request_duration_seconds",
		Help:    "Latency of completion provider calls.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	},
	[]string{"model", "result"},
)

var WebsocketSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "websocket_sessions_open",
		Help: "Open websocket sessions receiving usage updates.",
	},
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(TotalRequests, HttpDuration, ConversationOutcomes, CompletionDuration, WebsocketSessions)
	})
}
