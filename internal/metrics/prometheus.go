package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relayhq/relay-core/internal/automation"
)

// PrometheusSink records engine measurements in a Prometheus registry.
type PrometheusSink struct {
	scansTotal   prometheus.Counter
	scanDuration prometheus.Histogram

	lastTriggersFound prometheus.Gauge
	lastSuccesses     prometheus.Gauge
	lastFailures      prometheus.Gauge

	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
}

// NewPrometheusSink creates a sink with all series registered.
//
// Parameters:
//   - reg: Target registry; pass prometheus.DefaultRegisterer for the
//     process-wide default
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	factory := promauto.With(reg)

	return &PrometheusSink{
		scansTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_scans_total",
			Help: "Total number of scan passes started.",
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_scan_duration_seconds",
			Help:    "Duration of complete scan passes.",
			Buckets: prometheus.DefBuckets,
		}),
		lastTriggersFound: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_last_scan_triggers_found",
			Help: "Candidates found by the most recent scan pass.",
		}),
		lastSuccesses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_last_scan_successes",
			Help: "Successful executions in the most recent scan pass.",
		}),
		lastFailures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_last_scan_failures",
			Help: "Failed executions in the most recent scan pass.",
		}),
		executionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_executions_total",
			Help: "Total automation executions by trigger type and outcome.",
		}, []string{"trigger_type", "status"}),
		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_execution_duration_seconds",
			Help:    "Duration of individual candidate dispatches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger_type"}),
	}
}

// ScanStarted counts the beginning of a scan pass.
func (s *PrometheusSink) ScanStarted() {
	s.scansTotal.Inc()
}

// ScanCompleted records the outcome of a scan pass.
func (s *PrometheusSink) ScanCompleted(summary automation.ScanSummary, duration time.Duration) {
	s.scanDuration.Observe(duration.Seconds())
	s.lastTriggersFound.Set(float64(summary.TriggersFound))
	s.lastSuccesses.Set(float64(summary.Successes))
	s.lastFailures.Set(float64(summary.Failures))
}

// ExecutionRecorded counts one attempted execution.
func (s *PrometheusSink) ExecutionRecorded(triggerType, status string, duration time.Duration) {
	s.executionsTotal.WithLabelValues(triggerType, status).Inc()
	s.executionDuration.WithLabelValues(triggerType).Observe(duration.Seconds())
}
