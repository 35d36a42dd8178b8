package client

import (
	"time"

	"logguard/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds the counters the batch processor and dispatcher report into.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	// Batch metrics
	RecordsProcessed prometheus.Counter
	RecordsSkipped   prometheus.Counter
	BatchDuration    prometheus.Histogram
	BatchSize        prometheus.Histogram

	// Detection metrics
	Anomalies        *prometheus.CounterVec
	ErrorCount       prometheus.Counter
	FailedLoginCount prometheus.Counter

	// Sink metrics
	SinkWrites   prometheus.Counter
	SinkFailures prometheus.Counter

	// Alert metrics
	AlertsSent    prometheus.Counter
	AlertFailures *prometheus.CounterVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		RecordsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "logguard_records_processed_total",
			Help: "Total number of records received in batches",
		}),

		RecordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "logguard_records_skipped_total",
			Help: "Total number of malformed records skipped",
		}),

		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "logguard_batch_duration_seconds",
			Help:    "Time spent processing a batch",
			Buckets: prometheus.DefBuckets,
		}),

		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "logguard_batch_size_records",
			Help:    "Number of records per batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		Anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logguard_anomalies_total",
			Help: "Total number of anomalies detected",
		}, []string{"type", "severity"}),

		ErrorCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "logguard_error_spike_total",
			Help: "ERROR_SPIKE anomalies counted per batch",
		}),

		FailedLoginCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "logguard_failed_login_total",
			Help: "FAILED_LOGIN anomalies counted per batch",
		}),

		SinkWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "logguard_sink_writes_total",
			Help: "Anomalies written to the persistence sink",
		}),

		SinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "logguard_sink_failures_total",
			Help: "Anomaly writes that failed",
		}),

		AlertsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "logguard_alerts_sent_total",
			Help: "Alerts delivered to the notification transport",
		}),

		AlertFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "logguard_alert_failures_total",
			Help: "Alerts that could not be delivered",
		}, []string{"reason"}),
	}
}

// ObserveBatch records the counts of one aggregated batch.
func (m *PipelineMetrics) ObserveBatch(result *model.BatchResult, elapsed time.Duration) {
	if m == nil || result == nil {
		return
	}

	m.RecordsProcessed.Add(float64(result.Processed))
	m.RecordsSkipped.Add(float64(result.Skipped))
	m.BatchSize.Observe(float64(result.Processed))
	m.BatchDuration.Observe(elapsed.Seconds())
	m.ErrorCount.Add(float64(result.ErrorCount))
	m.FailedLoginCount.Add(float64(result.FailedLoginCount))

	for _, a := range result.Anomalies {
		m.Anomalies.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}
}

func (m *PipelineMetrics) ObserveSinkWrite(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SinkFailures.Inc()
		return
	}
	m.SinkWrites.Inc()
}

// ObserveAlert records an alert outcome. reason is ignored on success.
func (m *PipelineMetrics) ObserveAlert(reason string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.AlertFailures.WithLabelValues(reason).Inc()
		return
	}
	m.AlertsSent.Inc()
}
