// SPDX-License-Identifier: MPL-2.0

// Package metrics records registry build and validation measurements.
//
// Metrics live in a private prometheus registry so that tests and repeated
// runs never collide with the global default registerer. There is no HTTP
// exposition; WriteTextfile emits the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for registry builds and integrity checks.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// RegistryEntries is the entry count of the last built registry.
	RegistryEntries prometheus.Gauge
	// BuildDuration observes full registry builds.
	BuildDuration prometheus.Histogram
	// FilesValidated counts validated files by result ("pass" / "fail").
	FilesValidated *prometheus.CounterVec
	// IntegrityErrors counts findings by kind.
	IntegrityErrors *prometheus.CounterVec
	// ValidationDuration observes corpus-wide validation runs.
	ValidationDuration prometheus.Histogram
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RegistryEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "uidreg_registry_entries",
			Help: "Number of entries in the most recently built registry",
		}),
		BuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "uidreg_registry_build_duration_seconds",
			Help:    "Duration of full corpus registry builds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FilesValidated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uidreg_files_validated_total",
			Help: "Files validated by result",
		}, []string{"result"}),
		IntegrityErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "uidreg_integrity_errors_total",
			Help: "Integrity findings by kind",
		}, []string{"kind"}),
		ValidationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "uidreg_validation_duration_seconds",
			Help:    "Duration of corpus-wide validation runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// ObserveBuild records a completed registry build.
func (m *Metrics) ObserveBuild(entries int, d time.Duration) {
	if m != nil {
		m.RegistryEntries.Set(float64(entries))
		m.BuildDuration.Observe(d.Seconds())
	}
}

// IncrementFile records one validated file.
func (m *Metrics) IncrementFile(passed bool) {
	if m != nil {
		result := "pass"
		if !passed {
			result = "fail"
		}
		m.FilesValidated.WithLabelValues(result).Inc()
	}
}

// IncrementError records one integrity finding.
func (m *Metrics) IncrementError(kind string) {
	if m != nil {
		m.IntegrityErrors.WithLabelValues(kind).Inc()
	}
}

// ObserveValidation records a corpus-wide validation run.
func (m *Metrics) ObserveValidation(d time.Duration) {
	if m != nil {
		m.ValidationDuration.Observe(d.Seconds())
	}
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The write is atomic, as required by the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
