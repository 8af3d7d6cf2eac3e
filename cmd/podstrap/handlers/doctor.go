package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/logging"
	"github.com/imamik/podstrap/internal/provisioning"
	"github.com/imamik/podstrap/internal/provisioning/preflight"
	"github.com/imamik/podstrap/internal/provisioning/validate"
)

// Doctor reports preflight results and component status without changing
// the target. It fails when a required component is missing.
func Doctor(ctx context.Context, opts config.Options) error {
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}

	// Console only: doctor leaves no trace on disk.
	log, err := logging.Open(logging.Options{Console: console, Verbose: cfg.Verbose})
	if err != nil {
		return err
	}
	defer func() { _ = log.Close() }()

	h, closeHost, err := newHost(ctx, cfg, log)
	if err != nil {
		return &provisioning.PreflightError{Check: "connection", Reason: err.Error()}
	}
	defer func() { _ = closeHost() }()

	pctx := provisioning.NewContext(ctx, cfg, h, nil, log)
	checks := preflight.RunAll(pctx, preflight.DefaultChecks(preflight.Options{}))
	probe := validate.Probe(pctx)

	renderDoctor(stdout, cfg.TargetName(), checks, probe)

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", provisioning.ErrInterrupted, ctx.Err())
	}
	if probe.Errors > 0 {
		return fmt.Errorf("%d required component(s) missing or outdated", probe.Errors)
	}
	return nil
}
