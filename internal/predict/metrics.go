package predict

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricPredictions            = "predictions_total"
	MetricPartitionQueryDuration = "partition_query_duration_seconds"
	MetricPartitionResults       = "partition_query_results"
)

// Prediction outcomes used as the "outcome" label.
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeDataSourceError = "data_source_error"
)

// Metrics contains Prometheus metrics for the prediction engine.
// All operations are thread-safe.
type Metrics struct {
	predictions            *prometheus.CounterVec
	partitionQueryDuration *prometheus.HistogramVec
	partitionResults       *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPredictions,
				Help: "Total number of college predictions by outcome",
			},
			[]string{"outcome"},
		),
		partitionQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPartitionQueryDuration,
				Help:    "Duration of a single counselling phase query in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"partition"},
		),
		partitionResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPartitionResults,
				Help:    "Number of colleges returned by a counselling phase query",
				Buckets: []float64{0, 1, 5, 10, 20, 30, 40, 50},
			},
			[]string{"partition"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.predictions,
		m.partitionQueryDuration,
		m.partitionResults,
	}
}

// IncPredictions increments the prediction counter for outcome.
func (m *Metrics) IncPredictions(outcome string) {
	m.predictions.WithLabelValues(outcome).Inc()
}

// ObservePartitionQuery records the latency and result size of one phase query.
func (m *Metrics) ObservePartitionQuery(partition string, seconds float64, results int) {
	m.partitionQueryDuration.WithLabelValues(partition).Observe(seconds)
	m.partitionResults.WithLabelValues(partition).Observe(float64(results))
}
