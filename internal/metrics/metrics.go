package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline label values.
const (
	PipelineInvoice = "invoice"
	PipelineAlerts  = "alerts"
)

// Error kind label values.
const (
	KindConnection = "connection"
	KindSearch     = "search"
	KindFetch      = "fetch"
	KindDecode     = "decode"
	KindStorage    = "storage"
	KindLedger     = "ledger"
)

var (
	EmailsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailagent_emails_scanned_total",
			Help: "Messages fetched and decoded",
		},
		[]string{"pipeline"},
	)

	AttachmentsUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailagent_attachments_uploaded_total",
			Help: "Attachments stored successfully",
		},
		[]string{"backend"},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailagent_errors_total",
			Help: "Failures by pipeline and kind",
		},
		[]string{"pipeline", "kind"},
	)

	AlertsFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailagent_alerts_total",
			Help: "Messages classified as alerts",
		},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailagent_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3m
		},
		[]string{"pipeline", "status"},
	)
)

// IncrementEmailsScanned counts one scanned message.
func IncrementEmailsScanned(pipeline string) {
	EmailsScanned.WithLabelValues(pipeline).Inc()
}

// IncrementAttachmentsUploaded counts one stored attachment.
func IncrementAttachmentsUploaded(backend string) {
	AttachmentsUploaded.WithLabelValues(backend).Inc()
}

// IncrementError counts one failure of the given kind.
func IncrementError(pipeline, kind string) {
	Errors.WithLabelValues(pipeline, kind).Inc()
}

// IncrementAlerts counts one alert.
func IncrementAlerts() {
	AlertsFound.Inc()
}

// RecordRunDuration observes the wall time of a finished run.
func RecordRunDuration(pipeline, status string, duration time.Duration) {
	RunDuration.WithLabelValues(pipeline, status).Observe(duration.Seconds())
}
