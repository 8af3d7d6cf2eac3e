// Package dependencies installs the distribution packages the builds need.
package dependencies

import (
	"fmt"
	"strings"

	"github.com/imamik/podstrap/internal/provisioning"
)

// Stage removes conflicting packages, installs the required set and probes
// the runtime helpers. Rerunning it is safe.
type Stage struct{}

var _ provisioning.Stage = (*Stage)(nil)

// New returns the dependency stage.
func New() *Stage { return &Stage{} }

// Name implements provisioning.Stage.
func (s *Stage) Name() string { return "dependencies" }

// Run implements provisioning.Stage.
func (s *Stage) Run(ctx *provisioning.Context) error {
	pkgs := ctx.Config.Manifest.Packages

	s.removeConflicts(ctx, pkgs.Remove)

	ctx.Log.Infof("Refreshing package index")
	if err := ctx.Retry("Package index refresh", func() error { return ctx.Packages.Refresh(ctx) }); err != nil {
		return fmt.Errorf("package index refresh failed: %w", err)
	}

	ctx.Log.Infof("Installing %d packages", len(pkgs.Install))
	ctx.Log.Debugf("Packages: %s", strings.Join(pkgs.Install, " "))
	if err := ctx.Packages.Install(ctx, pkgs.Install); err != nil {
		return fmt.Errorf("package installation failed: %w", err)
	}

	return probeRuntime(ctx)
}

// removeConflicts removes only the packages that are actually installed.
// Removal is best-effort.
func (s *Stage) removeConflicts(ctx *provisioning.Context, names []string) {
	if len(names) == 0 {
		return
	}
	present, err := ctx.Packages.Installed(ctx, names)
	if err != nil {
		ctx.Warn("Could not query installed packages, skipping removal: %v", err)
		return
	}
	if len(present) == 0 {
		ctx.Log.Infof("No conflicting packages installed")
		return
	}
	ctx.Log.Infof("Removing conflicting packages: %s", strings.Join(present, ", "))
	if err := ctx.Packages.Remove(ctx, present); err != nil {
		ctx.Warn("Removing conflicting packages failed: %v", err)
	}
}

// probeRuntime looks for each runtime helper across the known install
// directories. Missing critical helpers fail the stage after every helper
// was checked.
func probeRuntime(ctx *provisioning.Context) error {
	rt := ctx.Config.Manifest.Runtime
	var missing []string
	for _, p := range rt.Probes {
		path := provisioning.Resolve(ctx, ctx.Host, p.Name, rt.SearchDirs)
		switch {
		case path != "":
			ctx.Log.Debugf("Found %s at %s", p.Name, path)
		case p.Critical:
			ctx.Log.Errorf("Critical runtime component %s not found", p.Name)
			missing = append(missing, p.Name)
		default:
			ctx.Warn("Optional runtime component %s not found", p.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing critical runtime components: %s", strings.Join(missing, ", "))
	}
	return nil
}
