package provisioning

import (
	"errors"
	"fmt"
	"time"
)

// Pipeline is the fixed, ordered list of stages.
type Pipeline struct {
	Stages []Stage
}

// NewPipeline creates a pipeline running stages in the given order.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{Stages: stages}
}

// Run executes every stage in order and stops at the first failure: later
// stages depend on earlier ones, so nothing is retried or skipped.
func (p *Pipeline) Run(ctx *Context) error {
	return RunStages(ctx, p.Stages)
}

// RunStages executes stages in order with fail-fast semantics. A failure is
// logged with a pointer to the persisted log and returned as *StageError.
func RunStages(ctx *Context, stages []Stage) error {
	start := time.Now()
	ctx.Log.Infof("Starting provisioning of %s with %d stages", ctx.Config.TargetName(), len(stages))

	for i, stage := range stages {
		name := fmt.Sprintf("%s (%d/%d)", stage.Name(), i+1, len(stages))

		if ctx.Err() != nil {
			return ctx.interrupted(stage.Name(), ctx.Err())
		}

		stageStart := time.Now()
		ctx.Log.Stepf("[%s] starting", name)
		ctx.emit(Event{Type: EventStageStarted, Stage: stage.Name()})

		err := stage.Run(ctx)
		elapsed := time.Since(stageStart)
		ctx.Report.addStage(StageResult{Name: stage.Name(), Duration: elapsed, Err: err})

		if err != nil {
			ctx.emit(Event{Type: EventStageFailed, Stage: stage.Name(), Message: err.Error(), Duration: elapsed})
			if ctx.Err() != nil || errors.Is(err, ErrInterrupted) {
				return ctx.interrupted(stage.Name(), err)
			}
			ctx.Log.Errorf("[%s] failed: %v", name, err)
			ctx.logHint()
			return &StageError{Stage: stage.Name(), Err: err}
		}

		ctx.emit(Event{Type: EventStageCompleted, Stage: stage.Name(), Duration: elapsed})
		ctx.Log.Successf("[%s] completed in %v", name, elapsed.Round(time.Millisecond))
	}

	ctx.Log.Infof("Provisioning completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Context) interrupted(stage string, cause error) error {
	c.Log.Errorf("Interrupted during stage %s; completed stages are not rolled back", stage)
	c.logHint()
	if errors.Is(cause, ErrInterrupted) {
		return &StageError{Stage: stage, Err: cause}
	}
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %w", ErrInterrupted, cause)}
}

func (c *Context) logHint() { LogHint(c.Log) }

// LogHint points the operator at the persisted log after a fatal error.
func LogHint(log Logger) {
	if p := log.Path(); p != "" {
		log.Errorf("See the full log at %s", p)
	}
}
