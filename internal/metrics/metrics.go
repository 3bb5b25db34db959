// Package metrics exposes Prometheus collectors for the image pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. One instance per process.
type Metrics struct {
	registry *prometheus.Registry

	ImagesExamined  prometheus.Counter
	ImagesSkipped   prometheus.Counter
	ImagesOptimized prometheus.Counter
	Fallbacks       prometheus.Counter
	BytesSaved      prometheus.Counter
	EncodeProbes    prometheus.Histogram
	DownloadErrors  *prometheus.CounterVec
}

// New creates and registers the pipeline collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ImagesExamined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressfit_images_examined_total",
			Help: "Image URLs extracted and evaluated against the byte budget.",
		}),
		ImagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressfit_images_skipped_total",
			Help: "Images left untouched (already under budget or inaccessible).",
		}),
		ImagesOptimized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressfit_images_optimized_total",
			Help: "Images re-encoded and queued for upload.",
		}),
		Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressfit_optimize_fallback_total",
			Help: "Optimizer runs that ended on the over-budget fallback path.",
		}),
		BytesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pressfit_bytes_saved_total",
			Help: "Original minus optimized byte sizes, summed over images.",
		}),
		EncodeProbes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pressfit_encode_probes",
			Help:    "Encoder probe renders spent per optimized image.",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		}),
		DownloadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pressfit_download_errors_total",
			Help: "Download failures by class.",
		}, []string{"class"}),
	}

	registry.MustRegister(
		m.ImagesExamined,
		m.ImagesSkipped,
		m.ImagesOptimized,
		m.Fallbacks,
		m.BytesSaved,
		m.EncodeProbes,
		m.DownloadErrors,
	)
	return m
}

// Handler returns an HTTP handler serving the registry in Prometheus text
// format, for the optional --metrics-addr listener.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
