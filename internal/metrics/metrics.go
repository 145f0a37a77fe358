package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rotation results used as the "result" label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// RotationMetrics records rotation engine and source selection metrics.
// A nil *RotationMetrics is valid and records nothing.
type RotationMetrics struct {
	rotationsTotal   *prometheus.CounterVec
	rotationDuration *prometheus.HistogramVec
	expiryTimestamp  *prometheus.GaugeVec
	engineStatus     *prometheus.GaugeVec
	selectionsTotal  *prometheus.CounterVec
	fallthroughTotal *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	notifyDropped    prometheus.Counter
}

// NewRotationMetrics registers the metrics with reg.
func NewRotationMetrics(reg prometheus.Registerer) *RotationMetrics {
	factory := promauto.With(reg)

	return &RotationMetrics{
		rotationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolecreds_rotations_total",
				Help: "Total number of credential retrievals, including bootstrap",
			},
			[]string{"label", "result"},
		),
		rotationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rolecreds_rotation_duration_seconds",
				Help:    "Duration of credential retrievals in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"label"},
		),
		expiryTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rolecreds_credentials_expiry_timestamp_seconds",
				Help: "Unix time the current credentials expire at (0 = never)",
			},
			[]string{"label"},
		),
		engineStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rolecreds_engine_status",
				Help: "Rotation engine status (0=initialized, 1=running, 2=shutting down, 3=stopped)",
			},
			[]string{"label"},
		),
		selectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolecreds_source_selected_total",
				Help: "Number of times a credentials source was selected",
			},
			[]string{"source"},
		),
		fallthroughTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolecreds_source_fallthrough_total",
				Help: "Number of times a credentials source applied but failed to bootstrap",
			},
			[]string{"source"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolecreds_notifications_total",
				Help: "Number of event notifications delivered, by notifier and result",
			},
			[]string{"notifier", "result"},
		),
		notifyDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rolecreds_notifications_dropped_total",
				Help: "Number of event notifications dropped due to queue overflow",
			},
		),
	}
}

// RecordRetrieval records one retrieval attempt.
func (m *RotationMetrics) RecordRetrieval(label, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.rotationsTotal.WithLabelValues(label, result).Inc()
	m.rotationDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordExpiry records the expiration of the snapshot now being served.
func (m *RotationMetrics) RecordExpiry(label string, expiration time.Time) {
	if m == nil {
		return
	}
	value := 0.0
	if !expiration.IsZero() {
		value = float64(expiration.Unix())
	}
	m.expiryTimestamp.WithLabelValues(label).Set(value)
}

// RecordStatus records an engine status transition.
func (m *RotationMetrics) RecordStatus(label string, status int) {
	if m == nil {
		return
	}
	m.engineStatus.WithLabelValues(label).Set(float64(status))
}

// RecordSelection records the source chosen by the selection chain.
func (m *RotationMetrics) RecordSelection(source string) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(source).Inc()
}

// RecordFallthrough records a source that applied but failed to bootstrap.
func (m *RotationMetrics) RecordFallthrough(source string) {
	if m == nil {
		return
	}
	m.fallthroughTotal.WithLabelValues(source).Inc()
}

// RecordNotification records one notification delivery.
func (m *RotationMetrics) RecordNotification(notifier, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notifier, result).Inc()
}

// RecordNotificationDropped records an event lost to a full queue.
func (m *RotationMetrics) RecordNotificationDropped() {
	if m == nil {
		return
	}
	m.notifyDropped.Inc()
}
