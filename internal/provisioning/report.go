package provisioning

import (
	"fmt"
	"sync"
	"time"
)

// ComponentRecord is a detected component version. It lives only for the run.
type ComponentRecord struct {
	Name     string
	Path     string
	Version  string
	Required bool
	Missing  bool
}

// StageResult is the outcome of one executed stage.
type StageResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Report collects what the final summary needs. Safe for concurrent use.
type Report struct {
	mu         sync.Mutex
	warnings   []string
	components []ComponentRecord
	stages     []StageResult

	validationErrors   int
	validationWarnings int
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// AddWarning records a non-fatal problem.
func (r *Report) AddWarning(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns every recorded warning in order.
func (r *Report) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

// AddComponent records a probed component.
func (r *Report) AddComponent(c ComponentRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, c)
}

// Components returns every probed component in order.
func (r *Report) Components() []ComponentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ComponentRecord(nil), r.components...)
}

// SetValidation stores the validator counters.
func (r *Report) SetValidation(errs, warnings int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validationErrors = errs
	r.validationWarnings = warnings
}

// Validation returns the validator counters.
func (r *Report) Validation() (errs, warnings int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.validationErrors, r.validationWarnings
}

func (r *Report) addStage(res StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, res)
}

// Stages returns the executed stages in order.
func (r *Report) Stages() []StageResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StageResult(nil), r.stages...)
}
