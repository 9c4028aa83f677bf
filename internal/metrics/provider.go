package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Model provider metrics. The "kind" label is "embedding" or "generation".
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Calls to the model provider by outcome",
		},
		[]string{"kind", "provider", "model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Successful model provider call latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind", "provider", "model"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Tokens reported by the model provider",
		},
		[]string{"kind", "provider", "model", "type"}, // "prompt" / "completion"
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	registerProvider sync.Once
)

// Provider kinds.
const (
	KindEmbedding  = "embedding"
	KindGeneration = "generation"
)

// RegisterProviderMetrics registers the model provider and cache metrics.
func RegisterProviderMetrics() {
	registerProvider.Do(func() {
		prometheus.MustRegister(
			ProviderRequestsTotal,
			ProviderRequestDuration,
			ProviderTokensTotal,
			EmbeddingCacheTotal,
		)
	})
}
