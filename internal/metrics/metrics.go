// Package metrics records run metrics and writes them as a node_exporter
// textfile.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/podstrap/internal/provisioning"
)

const namespace = "podstrap"

// Recorder collects pipeline events into a private registry.
type Recorder struct {
	mu       sync.Mutex
	registry *prometheus.Registry

	stageDuration *prometheus.GaugeVec
	stageSuccess  *prometheus.GaugeVec
	componentInfo *prometheus.GaugeVec
	validationErr prometheus.Gauge
	validationWrn prometheus.Gauge
	runTimestamp  *prometheus.GaugeVec
}

var _ provisioning.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder for one run.
func NewRecorder(runID string, started time.Time) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of the last run of each stage in seconds",
			},
			[]string{"stage"},
		),
		stageSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_success",
				Help:      "Whether the stage completed (1) or failed (0)",
			},
			[]string{"stage"},
		),
		componentInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "component_info",
				Help:      "Detected component versions; 0 when the component is missing",
			},
			[]string{"component", "version"},
		),
		validationErr: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_errors",
			Help:      "Number of validation errors in the last run",
		}),
		validationWrn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_warnings",
			Help:      "Number of validation warnings in the last run",
		}),
		runTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_timestamp_seconds",
				Help:      "Start time of the run as a unix timestamp",
			},
			[]string{"run_id"},
		),
	}

	r.registry.MustRegister(
		r.stageDuration,
		r.stageSuccess,
		r.componentInfo,
		r.validationErr,
		r.validationWrn,
		r.runTimestamp,
	)
	r.runTimestamp.WithLabelValues(runID).Set(float64(started.Unix()))
	return r
}

// Event implements provisioning.Observer.
func (r *Recorder) Event(e provisioning.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case provisioning.EventStageCompleted:
		r.stageDuration.WithLabelValues(e.Stage).Set(e.Duration.Seconds())
		r.stageSuccess.WithLabelValues(e.Stage).Set(1)
	case provisioning.EventStageFailed:
		r.stageDuration.WithLabelValues(e.Stage).Set(e.Duration.Seconds())
		r.stageSuccess.WithLabelValues(e.Stage).Set(0)
	case provisioning.EventComponentDetected:
		r.componentInfo.WithLabelValues(e.Component, e.Version).Set(1)
	case provisioning.EventComponentMissing:
		r.componentInfo.WithLabelValues(e.Component, e.Version).Set(0)
	}
}

// SetValidation records the validator's counts.
func (r *Recorder) SetValidation(errs, warnings int) {
	r.validationErr.Set(float64(errs))
	r.validationWrn.Set(float64(warnings))
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
