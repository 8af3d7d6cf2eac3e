// Package toolchain installs the pinned Go distribution from its release
// archive. The source builds after it compile with this toolchain.
package toolchain

import (
	"fmt"
	"path"
	"strings"

	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/provisioning"
	"github.com/imamik/podstrap/internal/util/version"
)

// Stage downloads and unpacks the Go archive into the install directory.
type Stage struct{}

var _ provisioning.Stage = (*Stage)(nil)

// New returns the toolchain stage.
func New() *Stage { return &Stage{} }

// Name implements provisioning.Stage.
func (s *Stage) Name() string { return "toolchain" }

// Run implements provisioning.Stage.
func (s *Stage) Run(ctx *provisioning.Context) error {
	tc := ctx.Config.Manifest.Toolchain

	if !ctx.Config.Force {
		if v, p, ok := installed(ctx, tc.Version); ok {
			ctx.Log.Infof("Go %s already installed at %s (pin %s), skipping download", v, p, tc.Version)
			ctx.Detected(provisioning.ComponentRecord{Name: "go", Path: p, Version: v, Required: true})
			return nil
		}
	}

	arch, err := ctx.Host.Arch(ctx)
	if err != nil {
		return fmt.Errorf("failed to determine architecture: %w", err)
	}
	url := tc.ArchiveURL(arch)
	archive := path.Join(ctx.Config.BuildDir, path.Base(url))

	ctx.Log.Infof("Downloading Go %s for %s", tc.Version, arch)
	if _, err := ctx.Run(host.Command{Path: "mkdir", Args: []string{"-p", ctx.Config.BuildDir}}); err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	download := host.Command{Path: "curl", Args: []string{"-fsSL", "-o", archive, url}}
	if err := ctx.Retry("Downloading Go", func() error {
		_, err := ctx.Run(download)
		return err
	}); err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}

	if want := strings.ToLower(tc.SHA256[arch]); want != "" {
		if err := verify(ctx, archive, want); err != nil {
			return err
		}
	}

	root := tc.GoRoot()
	ctx.Log.Infof("Installing Go into %s", root)
	for _, cmd := range []host.Command{
		{Path: "rm", Args: []string{"-rf", root}, Privileged: true},
		{Path: "mkdir", Args: []string{"-p", tc.InstallDir}, Privileged: true},
		{Path: "tar", Args: []string{"-C", tc.InstallDir, "-xzf", archive}, Privileged: true},
	} {
		if _, err := ctx.Run(cmd); err != nil {
			return fmt.Errorf("failed to install Go: %w", err)
		}
	}

	v, p, ok := installed(ctx, tc.Version)
	if !ok {
		if p == "" {
			return fmt.Errorf("go is not on the search path after installing into %s", root)
		}
		return fmt.Errorf("go at %s reports version %q, want %s", p, v, tc.Version)
	}
	ctx.Detected(provisioning.ComponentRecord{Name: "go", Path: p, Version: v, Required: true})
	ctx.Log.Successf("Go %s installed at %s", v, p)
	return nil
}

// installed resolves go and reports whether it satisfies pin.
func installed(ctx *provisioning.Context, pin string) (string, string, bool) {
	p := provisioning.Resolve(ctx, ctx.Host, "go", nil)
	if p == "" {
		return "", "", false
	}
	v, err := provisioning.ProbeVersion(ctx, ctx.Host, p, []string{"version"})
	if err != nil {
		ctx.Log.Debugf("go version failed: %v", err)
		return "", p, false
	}
	return v, p, version.Satisfies(v, pin)
}

func verify(ctx *provisioning.Context, archive, want string) error {
	res, err := ctx.Run(host.Command{Path: "sha256sum", Args: []string{archive}})
	if err != nil {
		return fmt.Errorf("failed to checksum %s: %w", archive, err)
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 || strings.ToLower(fields[0]) != want {
		got := ""
		if len(fields) > 0 {
			got = fields[0]
		}
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", path.Base(archive), got, want)
	}
	ctx.Log.Debugf("Checksum verified for %s", path.Base(archive))
	return nil
}
