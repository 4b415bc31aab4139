package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		chatTurnsTotal,
		chatStreamLatency,
		chatStreamBytes,
		quotaBlocksTotal,
	)
}

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Chat turns by outcome (completed/truncated/upstream_error).",
		},
		[]string{"outcome"},
	)

	chatStreamLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_stream_duration_seconds",
			Help:    "Wall time of the streaming relay per turn.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	chatStreamBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_stream_bytes",
			Help:    "Answer size per turn in bytes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		},
	)

	quotaBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_blocks_total",
			Help: "Chat turns refused by a quota, labeled by the binding scope.",
		},
		[]string{"scope"}, // 'trial', 'plan', 'conversation'
	)
)

func IncChatTurn(outcome string) {
	chatTurnsTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveChatStream(seconds float64, bytes int) {
	chatStreamLatency.Observe(seconds)
	chatStreamBytes.Observe(float64(bytes))
}

func IncQuotaBlock(scope string) {
	quotaBlocksTotal.WithLabelValues(norm(scope)).Inc()
}
