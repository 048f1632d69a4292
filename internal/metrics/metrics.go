package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	ScanCount         prometheus.Counter
	ScanFailures      prometheus.Counter
	EmailsProcessed   prometheus.Counter
	EmailFailures     prometheus.Counter
	DocumentsArchived prometheus.Counter
	ScanDuration      prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ScanCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "invoice_vault_scan_count",
			Help: "Total number of scan cycles started",
		}),
		ScanFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "invoice_vault_scan_failures",
			Help: "Total number of scan cycles that failed outside the per-email boundary",
		}),
		EmailsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "invoice_vault_emails_processed",
			Help: "Total number of emails fully processed",
		}),
		EmailFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "invoice_vault_email_failures",
			Help: "Total number of emails that failed and were recorded in run errors",
		}),
		DocumentsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "invoice_vault_documents_archived",
			Help: "Total number of attachments archived and logged",
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_vault_scan_duration_seconds",
			Help:    "Time spent per scan cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
