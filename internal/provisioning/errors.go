package provisioning

import (
	"errors"
	"fmt"
)

// Exit codes returned by the podstrap binary.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitPreflight   = 3
	ExitInterrupted = 130
)

// ErrInterrupted reports that the operator stopped the run.
var ErrInterrupted = errors.New("interrupted")

// UsageError is a malformed invocation, rejected before the environment is
// inspected.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// NewUsageError formats a UsageError.
func NewUsageError(format string, args ...any) *UsageError {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// PreflightError is an unsuitable environment. Nothing was modified.
type PreflightError struct {
	Check  string
	Reason string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight check %q failed: %s", e.Check, e.Reason)
}

// StageError is a fatal stage failure. Earlier stages are not rolled back.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ExitCode maps a pipeline result to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	var preflight *PreflightError
	switch {
	case errors.Is(err, ErrInterrupted):
		return ExitInterrupted
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &preflight):
		return ExitPreflight
	default:
		return ExitFailure
	}
}
