// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by method, route pattern and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anidao_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks API latency by method and route pattern
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "anidao_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// BotMessagesTotal counts inbound bot messages by kind (command, text, photo, document, ignored)
	BotMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anidao_bot_messages_total",
			Help: "Total number of messages handled by the admin bot",
		},
		[]string{"kind"},
	)

	// BotDraftsTotal counts finished conversations by flow and outcome
	BotDraftsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anidao_bot_drafts_total",
			Help: "Total number of bot drafts that reached a terminal state",
		},
		[]string{"flow", "outcome"},
	)

	// BotActiveConversations is the number of chats with an open draft
	BotActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "anidao_bot_active_conversations",
			Help: "Number of chats with an in-progress draft",
		},
	)
)

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordBotMessage records one inbound bot message
func RecordBotMessage(kind string) {
	BotMessagesTotal.WithLabelValues(kind).Inc()
}

// RecordBotDraft records the terminal outcome of a bot conversation
func RecordBotDraft(flow, outcome string) {
	BotDraftsTotal.WithLabelValues(flow, outcome).Inc()
}
