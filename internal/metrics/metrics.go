package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed analyses.
	OutcomeSuccess = "success"
	// OutcomeError labels failed analyses (provider or validation issues).
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dlp_behavior",
			Name:      "analyses_total",
			Help:      "Total number of entity analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dlp_behavior",
			Name:      "analysis_seconds",
			Help:      "Entity analysis latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
		},
	)

	overviewDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dlp_behavior",
			Name:      "overview_seconds",
			Help:      "Overview aggregation latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	overviewEntities = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dlp_behavior",
			Name:      "overview_entities",
			Help:      "Number of entities analyzed per overview pass.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000},
		},
	)
)

// Register attaches the engine's collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		overviewDurationSeconds,
		overviewEntities,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an entity analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveOverview records an overview pass duration and its entity count.
func ObserveOverview(duration time.Duration, entities int) {
	if duration < 0 {
		duration = 0
	}
	overviewDurationSeconds.Observe(duration.Seconds())
	overviewEntities.Observe(float64(entities))
}
