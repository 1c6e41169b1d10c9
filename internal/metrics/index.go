package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Vector index metrics, recorded by the vector engine.
var (
	IndexRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_records",
		Help:      "Chunk vectors in the live index",
	})

	IndexDocuments = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "index_documents",
		Help:      "Documents in the live catalog",
	})

	IndexCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_commits_total",
			Help:      "Index checkpoint commits by operation and outcome",
		},
		[]string{"op", "status"},
	)

	IndexCommitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_commit_duration_seconds",
			Help:      "Time spent committing an index checkpoint",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"op"},
	)

	IndexSearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "index_search_duration_seconds",
		Help:      "Similarity search time under the read lock",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)

// ObserveCommit records one commit attempt.
func ObserveCommit(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	IndexCommitsTotal.WithLabelValues(op, status).Inc()
	IndexCommitDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetIndexSize publishes the live index size.
func SetIndexSize(records, documents int) {
	IndexRecords.Set(float64(records))
	IndexDocuments.Set(float64(documents))
}

func indexCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		IndexRecords,
		IndexDocuments,
		IndexCommitsTotal,
		IndexCommitDuration,
		IndexSearchDuration,
	}
}
