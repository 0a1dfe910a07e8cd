package metrics

import "github.com/prometheus/client_golang/prometheus"

// Dedup engine Prometheus metrics.
var (
	DocumentsSigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "neardup",
			Name:      "documents_signed_total",
			Help:      "Total number of MinHash signatures generated",
		},
	)

	TokensPerDocument = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "neardup",
			Name:      "tokens_per_document",
			Help:      "Token count per tokenized document",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 8),
		},
	)

	SearchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "neardup",
			Name:      "search_candidates",
			Help:      "Candidates returned per similarity search",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)
)

var dedupMetricsRegistered bool

// RegisterDedupMetrics registers Prometheus dedup metrics. Must be called once from main.
func RegisterDedupMetrics() {
	if dedupMetricsRegistered {
		return
	}
	prometheus.MustRegister(DocumentsSigned)
	prometheus.MustRegister(TokensPerDocument)
	prometheus.MustRegister(SearchCandidates)
	dedupMetricsRegistered = true
}
