// Package metrics provides Prometheus metrics for the build pipeline, the
// query router and the content source.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	// Build metrics
	BuildEntriesTotal       prometheus.Counter
	BuildRowsTotal          *prometheus.CounterVec
	BuildStageFailuresTotal *prometheus.CounterVec
	BuildDuration           prometheus.Histogram
	TransformFailuresTotal  *prometheus.CounterVec

	// Image metrics
	ImagesEncodedTotal  *prometheus.CounterVec
	ImageFailuresTotal  prometheus.Counter
	ImageEncodeDuration prometheus.Histogram

	// Content source metrics
	CacheLookupsTotal      *prometheus.CounterVec
	OriginRequestsTotal    *prometheus.CounterVec
	WriteBackFailuresTotal prometheus.Counter

	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// New registers every collector with reg. Passing nil registers with a
// private registry, which is what tests and one-shot commands want.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		BuildEntriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "workaholic_build_entries_total",
			Help: "Raw entries fed into the build pipeline",
		}),
		BuildRowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workaholic_build_rows_total",
			Help: "Derived rows produced per namespace",
		}, []string{"namespace"}),
		BuildStageFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workaholic_build_stage_failures_total",
			Help: "Index stages that failed, per namespace",
		}, []string{"namespace"}),
		BuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "workaholic_build_duration_seconds",
			Help:    "Wall time of a full build pass",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		TransformFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workaholic_transform_failures_total",
			Help: "Entries dropped by a failing transform, per plugin",
		}, []string{"plugin"}),

		ImagesEncodedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workaholic_images_encoded_total",
			Help: "Image variants produced, per format",
		}, []string{"format"}),
		ImageFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "workaholic_image_failures_total",
			Help: "Images skipped because decoding or encoding failed",
		}),
		ImageEncodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "workaholic_image_encode_duration_seconds",
			Help:    "Time to decode, resize and encode one source image",
			Buckets: prometheus.DefBuckets,
		}),

		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workaholic_cache_lookups_total",
			Help: "Content source cache lookups by kind and state (fresh, stale, cold)",
		}, []string{"kind", "state"}),
		OriginRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workaholic_origin_requests_total",
			Help: "Requests made to the content origin by outcome",
		}, []string{"operation", "outcome"}),
		WriteBackFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "workaholic_cache_writeback_failures_total",
			Help: "Detached cache writes that failed",
		}),

		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workaholic_queries_total",
			Help: "Routed queries by namespace and outcome",
		}, []string{"namespace", "outcome"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workaholic_query_duration_seconds",
			Help:    "Routed query latency per namespace",
			Buckets: prometheus.DefBuckets,
		}, []string{"namespace"}),
	}
}
