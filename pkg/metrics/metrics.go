package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Download outcomes used as the "outcome" label
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics bundles the collectors shared by extractors and the download
// manager. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ImagesExtracted    *prometheus.CounterVec
	StrategyFailures   *prometheus.CounterVec
	ImagesExcluded     *prometheus.CounterVec
	Downloads          *prometheus.CounterVec
	DownloadRetries    prometheus.Counter
	ExtractionDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ImagesExtracted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialsnap_images_extracted_total",
				Help: "Images surfaced by extractors, by winning strategy.",
			},
			[]string{"platform", "strategy"},
		),
		StrategyFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialsnap_strategy_failures_total",
				Help: "Extraction strategies that returned an error or panicked.",
			},
			[]string{"platform", "strategy"},
		),
		ImagesExcluded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialsnap_images_excluded_total",
				Help: "Candidate images dropped by filters.",
			},
			[]string{"platform", "reason"},
		),
		Downloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialsnap_downloads_total",
				Help: "Finished download tasks.",
			},
			[]string{"platform", "outcome"},
		),
		DownloadRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "socialsnap_download_retries_total",
				Help: "Download attempts repeated after a transient failure.",
			},
		),
		ExtractionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "socialsnap_extraction_duration_seconds",
				Help:    "Duration of ExtractImages calls.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"platform"},
		),
		gatherer: gatherer,
	}
}

// NewDefault registers on the global Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewIsolated returns Metrics on a private registry
func NewIsolated() *Metrics {
	reg := prometheus.NewRegistry()
	return New(reg, reg)
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Extracted(platform, strategy string) {
	if m == nil {
		return
	}
	m.ImagesExtracted.WithLabelValues(platform, strategy).Inc()
}

func (m *Metrics) StrategyFailed(platform, strategy string) {
	if m == nil {
		return
	}
	m.StrategyFailures.WithLabelValues(platform, strategy).Inc()
}

func (m *Metrics) Excluded(platform, reason string) {
	if m == nil {
		return
	}
	m.ImagesExcluded.WithLabelValues(platform, reason).Inc()
}

func (m *Metrics) Downloaded(platform, outcome string) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(platform, outcome).Inc()
}

func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.DownloadRetries.Inc()
}

func (m *Metrics) ObserveExtraction(platform string, seconds float64) {
	if m == nil {
		return
	}
	m.ExtractionDuration.WithLabelValues(platform).Observe(seconds)
}
