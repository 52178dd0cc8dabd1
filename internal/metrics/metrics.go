package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MatchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_requests_total",
			Help: "Total number of itinerary match requests by outcome",
		},
		[]string{"outcome"},
	)
	MatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "match_duration_seconds",
			Help:    "Itinerary match pipeline duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"strategy"},
	)
	MatchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_candidates",
			Help:    "Number of candidates returned by the store per match request",
			Buckets: []float64{0, 1, 3, 5, 10, 25, 50, 100},
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_requests_total",
			Help: "Total number of embedding provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	EmbeddingFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_fallbacks_total",
			Help: "Match requests ranked without the vector axis, by reason",
		},
		[]string{"reason"},
	)
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cache_total",
			Help: "Embedding cache lookups by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MatchRequestsTotal,
			MatchDuration,
			MatchCandidates,
			EmbeddingRequestsTotal,
			EmbeddingFallbacksTotal,
			EmbeddingCacheTotal,
		)
	})
}
