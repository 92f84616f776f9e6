// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	// Feed metrics
	FramesReceived prometheus.Counter
	DecodeErrors   prometheus.Counter
	Reconnects     prometheus.Counter

	// Trade metrics
	TradesObserved *prometheus.CounterVec
	WhaleTrades    *prometheus.CounterVec

	// Enrichment metrics
	LookupErrors    prometheus.Counter
	LookupLatency   prometheus.Histogram
	InFlightLookups prometheus.Gauge

	// Output metrics
	RecordsEmitted prometheus.Counter
	AppendLatency  prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "whale_tracker"
	}

	return &Metrics{
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_received_total",
			Help:      "Total number of raw frames received from the trade feed",
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Total number of frames or frame entries that failed to decode",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts",
		}),
		TradesObserved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "observed_total",
			Help:      "Total number of trades decoded from the feed",
		}, []string{"coin"}),
		WhaleTrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "whale_total",
			Help:      "Total number of trades at or above the whale threshold",
		}, []string{"coin"}),
		LookupErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "lookup_errors_total",
			Help:      "Total number of failed account-state lookups",
		}),
		LookupLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "lookup_duration_seconds",
			Help:      "Latency of account-state lookups",
			Buckets:   prometheus.DefBuckets,
		}),
		InFlightLookups: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "enrichment",
			Name:      "in_flight_lookups",
			Help:      "Number of account-state lookups currently in flight",
		}),
		RecordsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "records_emitted_total",
			Help:      "Total number of whale records appended to the durable log",
		}),
		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "append_duration_seconds",
			Help:      "Latency of durable log appends",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
