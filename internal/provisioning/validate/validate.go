// Package validate re-probes the installed components.
//
// The component check is exhaustive: every component is probed before the
// stage decides, so one run shows everything that is missing. Required
// components that are absent or below their pin are errors; optional ones
// are warnings. Smoke tests run only when no errors were found, and their
// failures are warnings.
package validate

import (
	"fmt"
	"strings"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/provisioning"
	"github.com/imamik/podstrap/internal/util/version"
)

// Result is the outcome of the component probe.
type Result struct {
	Records  []provisioning.ComponentRecord
	Errors   int
	Warnings int
	Problems []string
}

// Stage validates the installation.
type Stage struct{}

var _ provisioning.Stage = (*Stage)(nil)

// New returns the validation stage.
func New() *Stage { return &Stage{} }

// Name implements provisioning.Stage.
func (s *Stage) Name() string { return "validate" }

// Run implements provisioning.Stage.
func (s *Stage) Run(ctx *provisioning.Context) error {
	res := Probe(ctx)
	if res.Errors > 0 {
		ctx.Report.SetValidation(res.Errors, res.Warnings)
		return fmt.Errorf("%d required component(s) failed validation: %s", res.Errors, strings.Join(res.Problems, "; "))
	}

	smokeWarnings := SmokeTests(ctx)
	ctx.Report.SetValidation(res.Errors, res.Warnings+smokeWarnings)
	ctx.Log.Successf("Validated %d components (%d warnings)", len(res.Records), res.Warnings+smokeWarnings)
	return nil
}

// Probe checks every validation component and records what it found.
func Probe(ctx *provisioning.Context) Result {
	m := ctx.Config.Manifest
	var res Result
	for _, p := range m.Validation.Components {
		rec, problem := probeOne(ctx, m, p)
		res.Records = append(res.Records, rec)
		ctx.Detected(rec)

		switch {
		case problem == "":
			ctx.Log.Infof("%s %s (%s)", rec.Name, rec.Version, rec.Path)
		case p.Required:
			res.Errors++
			res.Problems = append(res.Problems, problem)
			ctx.Log.Errorf("%s", problem)
		default:
			res.Warnings++
			ctx.Warn("%s", problem)
		}
	}
	return res
}

func probeOne(ctx *provisioning.Context, m config.Manifest, p config.Probe) (provisioning.ComponentRecord, string) {
	rec := provisioning.ComponentRecord{Name: p.Name, Required: p.Required}
	kind := "Optional"
	if p.Required {
		kind = "Required"
	}

	rec.Path = provisioning.Resolve(ctx, ctx.Host, p.Binary, m.Runtime.SearchDirs)
	if rec.Path == "" {
		rec.Missing = true
		return rec, fmt.Sprintf("%s component %s not found", kind, p.Name)
	}

	args := p.Args
	if len(args) == 0 {
		args = []string{"--version"}
	}
	v, err := provisioning.ProbeVersion(ctx, ctx.Host, rec.Path, args)
	if err != nil {
		rec.Missing = true
		return rec, fmt.Sprintf("%s component %s does not run: %v", kind, p.Name, err)
	}
	rec.Version = v

	if pin := m.PinFor(p.Name); pin != "" && !version.Satisfies(v, pin) {
		return rec, fmt.Sprintf("%s component %s reports version %q, want %s or newer", kind, p.Name, v, pin)
	}
	return rec, ""
}

// SmokeTests runs each workload to completion and returns how many failed.
func SmokeTests(ctx *provisioning.Context) int {
	failed := 0
	for _, st := range ctx.Config.Manifest.Validation.SmokeTests {
		ctx.Log.Infof("Smoke test: %s", st.Name)
		cmd := host.Command{Path: st.Command[0], Args: st.Command[1:], Privileged: st.Privileged}
		if _, err := ctx.Run(cmd); err != nil {
			failed++
			ctx.Warn("Smoke test %q failed: %v", st.Name, err)
			continue
		}
		ctx.Log.Successf("Smoke test %s passed", st.Name)
	}
	return failed
}

// EngineInstalled reports whether the engine already satisfies its pin, in
// which case the pipeline has nothing to do unless forced.
func EngineInstalled(ctx *provisioning.Context) (provisioning.ComponentRecord, bool) {
	m := ctx.Config.Manifest
	engine, ok := m.Component(m.Validation.Engine)
	if !ok {
		return provisioning.ComponentRecord{}, false
	}
	rec := provisioning.ComponentRecord{Name: engine.Name, Required: true}
	rec.Path = provisioning.Resolve(ctx, ctx.Host, engine.Binary, nil)
	if rec.Path == "" {
		rec.Missing = true
		return rec, false
	}
	v, err := provisioning.ProbeVersion(ctx, ctx.Host, rec.Path, engine.VersionCommand())
	if err != nil {
		ctx.Log.Debugf("%s version probe failed: %v", rec.Path, err)
		return rec, false
	}
	rec.Version = v
	return rec, version.Satisfies(v, engine.Version)
}
