package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/packages"
	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/util/retry"
)

// Context wraps everything a stage needs. Config is a value and is never
// modified once the pipeline starts.
type Context struct {
	context.Context
	Config   config.Config
	Host     host.Host
	Packages packages.Manager
	Log      Logger
	Report   *Report
	Observer Observer
}

// NewContext creates a provisioning context.
func NewContext(ctx context.Context, cfg config.Config, h host.Host, pm packages.Manager, log Logger) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Host:     h,
		Packages: pm,
		Log:      log,
		Report:   NewReport(),
	}
}

// Warn logs a non-fatal problem and records it for the final summary.
func (c *Context) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Log.Warnf("%s", msg)
	c.Report.AddWarning("%s", msg)
	c.emit(Event{Type: EventWarning, Message: msg})
}

// Detected records a probed component.
func (c *Context) Detected(rec ComponentRecord) {
	c.Report.AddComponent(rec)
	typ := EventComponentDetected
	if rec.Missing {
		typ = EventComponentMissing
	}
	c.emit(Event{Type: typ, Component: rec.Name, Version: rec.Version})
}

func (c *Context) emit(e Event) {
	if c.Observer == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	c.Observer.Event(e)
}

// Run executes cmd on the host with output streamed into the log.
func (c *Context) Run(cmd host.Command) (*host.Result, error) {
	c.Log.Debugf("$ %s", cmd)
	return c.Host.Run(c, cmd)
}

// Retry runs a network-bound step with the configured attempts and backoff.
// Each failed attempt is logged at WARN with what was being done.
func (c *Context) Retry(what string, op func() error) error {
	return retry.Do(c, op,
		retry.WithAttempts(c.Config.FetchAttempts),
		retry.WithDelay(c.Config.RetryDelay),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			c.Log.Warnf("%s failed (attempt %d/%d), retrying in %v: %v", what, attempt, c.Config.FetchAttempts, wait, err)
		}),
	)
}
