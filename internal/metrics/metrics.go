// Package metrics collects run statistics in a Prometheus registry and
// exports them in the node exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Page outcomes.
const (
	PageComputed = "computed"
	PageCached   = "cached"
	PageFailed   = "failed"
)

// Metrics holds the collectors of one run. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pagesTotal     *prometheus.CounterVec
	pageDuration   prometheus.Histogram
	blocksDetected prometheus.Histogram
	linesTotal     prometheus.Counter
	volumesTotal   *prometheus.CounterVec
	volumeDuration prometheus.Histogram
}

// New registers the collectors in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		pagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mokugo_pages_total",
				Help: "Total number of pages handled",
			},
			[]string{"result"}, // result: computed, cached, failed
		),
		pageDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mokugo_page_processing_duration_seconds",
				Help:    "OCR duration of computed pages in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
			},
		),
		blocksDetected: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mokugo_page_blocks_detected",
				Help:    "Number of text blocks detected per computed page",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		linesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "mokugo_text_lines_total",
				Help: "Total number of recognized text lines",
			},
		),
		volumesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mokugo_volumes_total",
				Help: "Total number of volumes processed",
			},
			[]string{"status"}, // status: succeeded, failed
		),
		volumeDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mokugo_volume_processing_duration_seconds",
				Help:    "Volume processing duration in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePage records a freshly computed page.
func (m *Metrics) ObservePage(d time.Duration, blocks, lines int) {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(PageComputed).Inc()
	m.pageDuration.Observe(d.Seconds())
	m.blocksDetected.Observe(float64(blocks))
	m.linesTotal.Add(float64(lines))
}

// PageCached records a page served from the cache.
func (m *Metrics) PageCached() {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(PageCached).Inc()
}

// PageFailed records a page that could not be processed.
func (m *Metrics) PageFailed() {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(PageFailed).Inc()
}

// ObserveVolume records a finished volume.
func (m *Metrics) ObserveVolume(d time.Duration, ok bool) {
	if m == nil {
		return
	}
	status := "succeeded"
	if !ok {
		status = "failed"
	}
	m.volumesTotal.WithLabelValues(status).Inc()
	m.volumeDuration.Observe(d.Seconds())
}

// WriteTextfile writes the current values to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
