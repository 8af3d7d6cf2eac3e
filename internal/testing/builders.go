package testing

import (
	"slices"
	"time"

	"github.com/imamik/podstrap/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder starts from the embedded manifest and a fixed layout
// under /work.
func NewConfigBuilder() *ConfigBuilder {
	manifest, err := config.DefaultManifest()
	if err != nil {
		panic(err)
	}
	return &ConfigBuilder{
		cfg: config.Config{
			WorkDir:           "/work",
			BuildDir:          "/work/build",
			LogDir:            "/work/logs",
			SearchPath:        []string{"/usr/local/go/bin", "/usr/local/bin", "/usr/local/sbin", "/usr/bin", "/bin"},
			ProbeTimeout:      config.DefaultProbeTimeout,
			KeepaliveInterval: config.DefaultKeepaliveInterval,
			FetchAttempts:     1,
			RetryDelay:        time.Millisecond,
			AssumeYes:         true,
			Manifest:          manifest,
		},
	}
}

// WithForce sets the force-reinstall flag.
func (b *ConfigBuilder) WithForce(force bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Force = force
	return nb
}

// WithKeepArtifacts sets the skip-cleanup flag.
func (b *ConfigBuilder) WithKeepArtifacts(keep bool) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.KeepArtifacts = keep
	return nb
}

// WithWorkDir moves the working directory and the paths derived from it.
func (b *ConfigBuilder) WithWorkDir(dir string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.WorkDir = dir
	nb.cfg.BuildDir = dir + "/build"
	nb.cfg.LogDir = dir + "/logs"
	return nb
}

// WithTarget sets an SSH target.
func (b *ConfigBuilder) WithTarget(target string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.Target = target
	return nb
}

// WithMetricsFile sets the metrics textfile path.
func (b *ConfigBuilder) WithMetricsFile(path string) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.MetricsFile = path
	return nb
}

// WithRetries sets the attempts for network-bound steps.
func (b *ConfigBuilder) WithRetries(attempts int) *ConfigBuilder {
	nb := b.clone()
	nb.cfg.FetchAttempts = attempts
	return nb
}

// WithManifest applies fn to a copy of the manifest.
func (b *ConfigBuilder) WithManifest(fn func(m *config.Manifest)) *ConfigBuilder {
	nb := b.clone()
	fn(&nb.cfg.Manifest)
	return nb
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() config.Config {
	return b.clone().cfg
}

// clone creates a deep copy of the builder for immutability.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	c := b.cfg
	c.SearchPath = slices.Clone(b.cfg.SearchPath)
	m := &c.Manifest
	m.Platform.OSVersions = slices.Clone(m.Platform.OSVersions)
	m.Platform.Architectures = slices.Clone(m.Platform.Architectures)
	m.Probes = slices.Clone(m.Probes)
	m.Packages.Remove = slices.Clone(m.Packages.Remove)
	m.Packages.Install = slices.Clone(m.Packages.Install)
	m.Runtime.SearchDirs = slices.Clone(m.Runtime.SearchDirs)
	m.Runtime.Probes = slices.Clone(m.Runtime.Probes)
	m.Components = slices.Clone(m.Components)
	m.Validation.Components = slices.Clone(m.Validation.Components)
	m.Validation.SmokeTests = slices.Clone(m.Validation.SmokeTests)
	return &ConfigBuilder{cfg: c}
}
