package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicketsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickets_saved_total",
		Help: "Total number of ticket upserts, by kind (created/updated)",
	}, []string{"kind"})

	TicketsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_deleted_total",
		Help: "Total number of deleted tickets",
	})

	TicketSaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticket_save_failures_total",
		Help: "Total number of ticket saves that failed to persist",
	})

	CatalogWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_writes_total",
		Help: "Total number of catalog writes",
	}, []string{"catalog", "result"})

	StoreReadFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_read_failures_total",
		Help: "Total number of record reads that degraded to an empty collection",
	}, []string{"namespace", "reason"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edit_sessions_active",
		Help: "Number of open ticket edit sessions",
	})

	DocumentsExportedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "documents_exported_total",
		Help: "Total number of exported documents, by destination",
	}, []string{"destination"})

	DocumentPages = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "document_pages",
		Help:    "Number of pages per exported document",
		Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
	})

	DeliveryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_attempts_total",
		Help: "Total number of delivery attempts, by channel and result",
	}, []string{"channel", "result"})

	DeliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "delivery_latency_seconds",
		Help:    "Latency of delivery attempts including fallback",
		Buckets: prometheus.DefBuckets,
	})

	RemoteAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "delivery_remote_available",
		Help: "1 when the last remote health probe succeeded",
	})

	LocalBusBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "local_bus_backlog",
		Help: "Number of events queued on the in-process bus",
	})

	MailRelayTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_relay_messages_total",
		Help: "Total number of messages handled by the mail relay, by result",
	}, []string{"result"})

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
