package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvoicesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoices_created_total",
		Help: "Total number of committed invoices",
	}, []string{"type"})

	InvoiceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_failures_total",
		Help: "Total number of failed invoice creations by step",
	}, []string{"step"})

	InvoiceCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_create_latency_seconds",
		Help:    "Latency of the invoice unit of work",
		Buckets: prometheus.DefBuckets,
	})

	MovementsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movements_recorded_total",
		Help: "Total number of ledger entries appended",
	}, []string{"action"})

	VerificationLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_lookups_total",
		Help: "Total number of public invoice lookups",
	}, []string{"result"})

	PDFRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdf_render_duration_seconds",
		Help:    "Latency of headless PDF rendering",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	PDFRenderFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdf_render_failures_total",
		Help: "Total number of failed or timed out PDF renders",
	})

	LedgerInconsistencies = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_inconsistencies",
		Help: "Invoices found inconsistent by the last reconcile sweep",
	})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of domain events that could not be published",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
