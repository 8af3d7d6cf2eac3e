// Package cleanup removes transient build artifacts.
package cleanup

import (
	"github.com/imamik/podstrap/internal/provisioning"
)

// Stage removes the build directory unless artifacts are kept.
// It never fails the pipeline.
type Stage struct{}

var _ provisioning.Stage = (*Stage)(nil)

// New returns the cleanup stage.
func New() *Stage { return &Stage{} }

// Name implements provisioning.Stage.
func (s *Stage) Name() string { return "cleanup" }

// Run implements provisioning.Stage.
func (s *Stage) Run(ctx *provisioning.Context) error {
	dir := ctx.Config.BuildDir
	if ctx.Config.KeepArtifacts {
		ctx.Log.Infof("Keeping build artifacts in %s", dir)
		return nil
	}
	if err := ctx.Host.RemoveAll(ctx, dir); err != nil {
		ctx.Log.Warnf("Could not remove %s: %v", dir, err)
		return nil
	}
	ctx.Log.Infof("Removed build artifacts in %s", dir)
	return nil
}
