// Package source builds one component from its upstream repository.
//
// Every step is fatal on failure: the previous checkout is discarded, the
// pinned ref is shallow-cloned, the component's bootstrap, configure and
// build steps run unprivileged in the checkout, and the install steps run
// elevated with the search path preserved. The stage only succeeds when the
// installed binary resolves on the search path afterwards.
package source

import (
	"fmt"
	"path"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/provisioning"
	"github.com/imamik/podstrap/internal/util/retry"
	"github.com/imamik/podstrap/internal/util/version"
)

// Stage builds a single component.
type Stage struct {
	component config.Component
}

var _ provisioning.Stage = (*Stage)(nil)

// New returns the build stage for c.
func New(c config.Component) *Stage {
	return &Stage{component: c}
}

// Stages returns one build stage per component, in manifest order.
func Stages(components []config.Component) []provisioning.Stage {
	stages := make([]provisioning.Stage, 0, len(components))
	for _, c := range components {
		stages = append(stages, New(c))
	}
	return stages
}

// Name implements provisioning.Stage.
func (s *Stage) Name() string { return s.component.Name }

// Run implements provisioning.Stage.
func (s *Stage) Run(ctx *provisioning.Context) error {
	_, err := s.Build(ctx)
	return err
}

// Build runs the component build and returns the installed binary path.
func (s *Stage) Build(ctx *provisioning.Context) (string, error) {
	c := s.component

	if !ctx.Config.Force {
		if p, v, ok := s.installed(ctx); ok {
			ctx.Log.Infof("%s %s already installed at %s (pin %s), skipping build", c.Name, v, p, c.Version)
			ctx.Detected(provisioning.ComponentRecord{Name: c.Name, Path: p, Version: v, Required: true})
			return p, nil
		}
	}

	src := path.Join(ctx.Config.BuildDir, c.Name)
	if err := ctx.Host.RemoveAll(ctx, src); err != nil {
		return "", fmt.Errorf("failed to discard previous checkout %s: %w", src, err)
	}

	ctx.Log.Infof("Cloning %s at %s", c.Repo, c.Ref)
	if _, err := ctx.Run(host.Command{Path: "mkdir", Args: []string{"-p", ctx.Config.BuildDir}}); err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", c.Repo, err)
	}
	clone := host.Command{Path: "git", Args: []string{"clone", "--depth", "1", "--branch", c.Ref, c.Repo, src}}
	attempt := 0
	err := ctx.Retry("Cloning "+c.Name, func() error {
		attempt++
		// A partial checkout makes the next clone fail.
		if attempt > 1 {
			if err := ctx.Host.RemoveAll(ctx, src); err != nil {
				return retry.Fatal(err)
			}
		}
		_, err := ctx.Run(clone)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", c.Repo, err)
	}

	phases := []struct {
		name       string
		steps      [][]string
		privileged bool
	}{
		{"bootstrap", c.Bootstrap, false},
		{"configure", c.Configure, false},
		{"build", c.Build, false},
		{"install", c.Install, true},
	}
	for _, phase := range phases {
		if len(phase.steps) == 0 {
			continue
		}
		ctx.Log.Infof("Running %s %s", c.Name, phase.name)
		for _, step := range phase.steps {
			cmd := host.Command{
				Path:       step[0],
				Args:       step[1:],
				Dir:        src,
				Env:        c.Env,
				Privileged: phase.privileged,
			}
			if _, err := ctx.Run(cmd); err != nil {
				return "", fmt.Errorf("%s %s failed: %w", c.Name, phase.name, err)
			}
		}
	}

	// A successful install that left nothing on the search path is a failure.
	p := provisioning.Resolve(ctx, ctx.Host, c.Binary, nil)
	if p == "" {
		return "", fmt.Errorf("%s was installed but %s is not on the search path", c.Name, c.Binary)
	}
	v, err := provisioning.ProbeVersion(ctx, ctx.Host, p, c.VersionCommand())
	if err != nil {
		return "", fmt.Errorf("%s was installed but does not run: %w", p, err)
	}
	ctx.Detected(provisioning.ComponentRecord{Name: c.Name, Path: p, Version: v, Required: true})
	ctx.Log.Successf("%s %s installed at %s", c.Name, v, p)
	return p, nil
}

// installed reports whether the binary already satisfies the pin.
func (s *Stage) installed(ctx *provisioning.Context) (string, string, bool) {
	c := s.component
	p := provisioning.Resolve(ctx, ctx.Host, c.Binary, nil)
	if p == "" {
		return "", "", false
	}
	v, err := provisioning.ProbeVersion(ctx, ctx.Host, p, c.VersionCommand())
	if err != nil {
		ctx.Log.Debugf("%s version probe failed: %v", p, err)
		return "", "", false
	}
	if !version.Satisfies(v, c.Version) {
		ctx.Log.Infof("%s %s at %s is older than %s, rebuilding", c.Name, v, p, c.Version)
		return "", "", false
	}
	return p, v, true
}
