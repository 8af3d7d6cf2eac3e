package provisioning

import "io"

// Stage is one named step of the pipeline.
type Stage interface {
	// Name returns the label shown in stage markers.
	Name() string

	// Run performs the stage. A non-nil error is fatal to the pipeline.
	Run(ctx *Context) error
}

// Logger is the execution log as seen by stages.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Stepf(format string, args ...any)
	Successf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// Writer streams subprocess output into the log.
	Writer() io.Writer

	// Path is the persisted log file, or "" when there is none.
	Path() string
}

type stageFunc struct {
	name string
	run  func(ctx *Context) error
}

func (s stageFunc) Name() string           { return s.name }
func (s stageFunc) Run(ctx *Context) error { return s.run(ctx) }

// NewStage adapts a function to Stage.
func NewStage(name string, run func(ctx *Context) error) Stage {
	return stageFunc{name: name, run: run}
}
