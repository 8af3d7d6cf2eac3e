package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/keepalive"
	"github.com/imamik/podstrap/internal/logging"
	"github.com/imamik/podstrap/internal/metrics"
	"github.com/imamik/podstrap/internal/provisioning"
	"github.com/imamik/podstrap/internal/provisioning/cleanup"
	"github.com/imamik/podstrap/internal/provisioning/configure"
	"github.com/imamik/podstrap/internal/provisioning/dependencies"
	"github.com/imamik/podstrap/internal/provisioning/preflight"
	"github.com/imamik/podstrap/internal/provisioning/source"
	"github.com/imamik/podstrap/internal/provisioning/toolchain"
	"github.com/imamik/podstrap/internal/provisioning/validate"
)

// Stages returns the fixed stage order for cfg.
func Stages(cfg config.Config) []provisioning.Stage {
	stages := []provisioning.Stage{
		dependencies.New(),
		toolchain.New(),
	}
	stages = append(stages, source.Stages(cfg.Manifest.Components)...)
	return append(stages,
		configure.New(),
		validate.New(),
		cleanup.New(),
	)
}

// Install provisions the container stack on the configured target.
//
// The sequence is: load configuration, open the log, connect, detect an
// existing installation, run preflight, confirm, then run every stage with
// the credential keep-alive active. Metrics and log archival happen on every
// exit path once the log is open.
func Install(ctx context.Context, opts config.Options) (err error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	started := time.Now()
	log, err := logging.Open(logging.Options{
		Dir:     cfg.LogDir,
		Console: console,
		Verbose: cfg.Verbose,
		RunID:   runID,
	})
	if err != nil {
		return fmt.Errorf("failed to open execution log: %w", err)
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	var recorder *metrics.Recorder
	if cfg.MetricsFile != "" {
		recorder = metrics.NewRecorder(runID, started)
	}

	h, closeHost, err := newHost(ctx, cfg, log)
	if err != nil {
		log.Errorf("Could not reach %s: %v", cfg.TargetName(), err)
		provisioning.LogHint(log)
		return &provisioning.PreflightError{Check: "connection", Reason: err.Error()}
	}
	defer func() { _ = closeHost() }()

	pctx := provisioning.NewContext(ctx, cfg, h, newPackageManager(h), log)
	if recorder != nil {
		pctx.Observer = recorder
	}
	defer func() { finish(ctx, pctx, recorder, runID, err) }()

	if !cfg.Force {
		if rec, ok := validate.EngineInstalled(pctx); ok {
			log.Successf("%s %s is already installed at %s; nothing to do (use --force to reinstall)", rec.Name, rec.Version, rec.Path)
			return nil
		}
	}

	canPrompt := interactive() && !cfg.Remote()
	if err := preflight.Run(pctx, preflight.DefaultChecks(preflight.Options{Interactive: canPrompt})); err != nil {
		return err
	}

	if !cfg.AssumeYes && interactive() {
		ok, err := newPrompter().Confirm(ctx,
			fmt.Sprintf("Provision %s?", cfg.TargetName()),
			"Builds Go, conmon, crun and podman from source and rewrites the container configuration.")
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			log.Infof("Aborted by operator; nothing was changed")
			return nil
		}
	}

	task := keepalive.Start(ctx, h, cfg.KeepaliveInterval, log)
	defer task.Stop()

	err = provisioning.NewPipeline(Stages(cfg)...).Run(pctx)
	summarize(pctx, err)
	return err
}

// summarize logs the final report.
func summarize(ctx *provisioning.Context, runErr error) {
	for _, c := range ctx.Report.Components() {
		if c.Missing {
			continue
		}
		ctx.Log.Infof("  %-16s %-10s %s", c.Name, c.Version, c.Path)
	}
	warnings := ctx.Report.Warnings()
	if len(warnings) > 0 {
		ctx.Log.Warnf("%d warning(s):", len(warnings))
		for _, w := range warnings {
			ctx.Log.Warnf("  - %s", w)
		}
	}
	var stageErr *provisioning.StageError
	switch {
	case runErr == nil:
		ctx.Log.Successf("%s is ready; open a new login shell to pick up the environment", ctx.Config.TargetName())
	case errors.As(runErr, &stageErr) && errors.Is(runErr, provisioning.ErrInterrupted):
		ctx.Log.Errorf("Installation interrupted during stage %s", stageErr.Stage)
	case errors.As(runErr, &stageErr):
		ctx.Log.Errorf("Installation failed at stage %s", stageErr.Stage)
	default:
		ctx.Log.Errorf("Installation failed: %v", runErr)
	}
}

// finish writes metrics and archives the log. Failures here are warnings
// and never change the run result.
func finish(ctx context.Context, pctx *provisioning.Context, recorder *metrics.Recorder, runID string, runErr error) {
	cfg := pctx.Config
	if recorder != nil {
		errs, warnings := pctx.Report.Validation()
		recorder.SetValidation(errs, warnings)
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			pctx.Log.Warnf("%v", err)
		} else {
			pctx.Log.Debugf("Wrote metrics to %s", cfg.MetricsFile)
		}
	}

	if !cfg.Archive.Enabled() || pctx.Log.Path() == "" {
		return
	}
	name := cfg.Target
	if !cfg.Remote() {
		if hn, err := hostname(); err == nil {
			name = hn
		}
	}
	a, err := newArchiver(ctx, cfg.Archive)
	if err != nil {
		pctx.Log.Warnf("Log archival disabled: %v", err)
		return
	}
	if runErr != nil {
		pctx.Log.Infof("Archiving the log of the failed run")
	}
	// The upload outlives an interrupt so the failed run's log is kept.
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	key, err := a.UploadLog(uploadCtx, name, runID, pctx.Log.Path())
	if err != nil {
		pctx.Log.Warnf("Could not archive the log: %v", err)
		return
	}
	pctx.Log.Infof("Archived the log to s3://%s/%s", cfg.Archive.Bucket, key)
}
