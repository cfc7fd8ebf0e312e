package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MediaBuysCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adcp_media_buys_created_total",
		Help: "Total number of media buys created successfully.",
	})

	ValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adcp_validation_failures_total",
		Help: "Total number of media-buy requests rejected by validation.",
	})

	IllegalTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adcp_illegal_transitions_total",
		Help: "Total number of lifecycle transitions rejected as illegal.",
	})

	MediaBuysUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adcp_media_buys_updated_total",
		Help: "Total number of media-buy updates, labelled by operation.",
	}, []string{"operation"})

	AuditEntriesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adcp_audit_entries_written_total",
		Help: "Total number of audit entries appended.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adcp_http_request_duration_ms",
		Help:    "HTTP request latency in milliseconds, labelled by route.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"route"})
)
