package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 交易所调用结果标签，取值有限。
const (
	ResultOK          = "ok"
	ResultUnavailable = "unavailable"
	ResultRejected    = "rejected"
	ResultUnreachable = "unreachable"
	ResultError       = "error"
)

var (
	venueCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genie_venue_calls_total",
			Help: "Venue adapter calls by venue, operation and result",
		},
		[]string{"venue", "op", "result"},
	)

	venueLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genie_venue_call_duration_seconds",
			Help:    "Venue adapter call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"venue", "op"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genie_venue_breaker_state",
			Help: "Venue circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"venue"},
	)

	scanCandidates = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "genie_scan_candidates",
			Help: "Eligible candidates found by the last scan per venue",
		},
		[]string{"venue"},
	)

	dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genie_dispatch_total",
			Help: "Trade dispatch outcomes",
		},
		[]string{"venue", "outcome"},
	)

	messages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genie_messages_total",
			Help: "Inbound chat messages by handling result",
		},
		[]string{"result"},
	)
)

// ObserveVenueCall 记录一次交易所调用。
func ObserveVenueCall(venue, op, result string, elapsed time.Duration) {
	venueCalls.WithLabelValues(venue, op, result).Inc()
	venueLatency.WithLabelValues(venue, op).Observe(elapsed.Seconds())
}

// SetBreakerState 更新熔断器状态。
func SetBreakerState(venue string, state float64) {
	breakerState.WithLabelValues(venue).Set(state)
}

// SetScanCandidates 记录扫描得到的候选数量。
func SetScanCandidates(venue string, n int) {
	scanCandidates.WithLabelValues(venue).Set(float64(n))
}

// IncDispatch 记录一次调度结果。
func IncDispatch(venue, outcome string) {
	dispatches.WithLabelValues(venue, outcome).Inc()
}

// IncMessage 记录一次消息处理。
func IncMessage(result string) {
	messages.WithLabelValues(result).Inc()
}
