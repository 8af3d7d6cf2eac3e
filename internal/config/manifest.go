package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultManifest []byte

// Manifest is the externally supplied provisioning data.
type Manifest struct {
	Platform      Platform      `mapstructure:"platform" yaml:"platform"`
	MinFreeDiskMB uint64        `mapstructure:"min_free_disk_mb" yaml:"min_free_disk_mb"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	Probes        []string      `mapstructure:"probes" yaml:"probes"` // host:port, tried in order
	Prefix        string        `mapstructure:"prefix" yaml:"prefix"`
	Packages      Packages      `mapstructure:"packages" yaml:"packages"`
	Runtime       Runtime       `mapstructure:"runtime" yaml:"runtime"`
	Toolchain     Toolchain     `mapstructure:"toolchain" yaml:"toolchain"`
	Components    []Component   `mapstructure:"components" yaml:"components"`
	Validation    Validation    `mapstructure:"validation" yaml:"validation"`
	Payloads      Payloads      `mapstructure:"payloads" yaml:"payloads"`
}

// Platform identifies the supported target.
type Platform struct {
	OSID          string   `mapstructure:"os_id" yaml:"os_id"`
	OSVersions    []string `mapstructure:"os_versions" yaml:"os_versions"`
	Architectures []string `mapstructure:"architectures" yaml:"architectures"`
}

// Packages lists distribution packages to remove and install.
type Packages struct {
	Remove  []string `mapstructure:"remove" yaml:"remove"`
	Install []string `mapstructure:"install" yaml:"install"`
}

// Runtime lists the runtime helpers probed after package installation.
type Runtime struct {
	SearchDirs []string       `mapstructure:"search_dirs" yaml:"search_dirs"`
	Probes     []RuntimeProbe `mapstructure:"probes" yaml:"probes"`
}

// RuntimeProbe is one helper binary. Critical helpers abort when absent.
type RuntimeProbe struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Critical bool   `mapstructure:"critical" yaml:"critical"`
}

// Toolchain describes the Go distribution archive.
type Toolchain struct {
	Version    string            `mapstructure:"version" yaml:"version"`
	URL        string            `mapstructure:"url" yaml:"url"` // {version} and {arch} are substituted
	InstallDir string            `mapstructure:"install_dir" yaml:"install_dir"`
	SHA256     map[string]string `mapstructure:"sha256" yaml:"sha256"` // arch -> hex digest
}

// ArchiveURL returns the download URL for arch.
func (t Toolchain) ArchiveURL(arch string) string {
	return strings.NewReplacer("{version}", t.Version, "{arch}", arch).Replace(t.URL)
}

// GoRoot is the directory the archive unpacks into.
func (t Toolchain) GoRoot() string {
	return strings.TrimRight(t.InstallDir, "/") + "/go"
}

// Component is one source-built program.
type Component struct {
	Name        string     `mapstructure:"name" yaml:"name"`
	Repo        string     `mapstructure:"repo" yaml:"repo"`
	Ref         string     `mapstructure:"ref" yaml:"ref"`
	Version     string     `mapstructure:"version" yaml:"version"` // pin
	Binary      string     `mapstructure:"binary" yaml:"binary"`
	VersionArgs []string   `mapstructure:"version_args" yaml:"version_args"`
	Env         []string   `mapstructure:"env" yaml:"env"`
	Bootstrap   [][]string `mapstructure:"bootstrap" yaml:"bootstrap"`
	Configure   [][]string `mapstructure:"configure" yaml:"configure"`
	Build       [][]string `mapstructure:"build" yaml:"build"`
	Install     [][]string `mapstructure:"install" yaml:"install"`
}

// VersionCommand returns the arguments that make the binary print its version.
func (c Component) VersionCommand() []string {
	if len(c.VersionArgs) > 0 {
		return c.VersionArgs
	}
	return []string{"--version"}
}

// Validation lists the post-install probes.
type Validation struct {
	Engine     string      `mapstructure:"engine" yaml:"engine"`
	Components []Probe     `mapstructure:"components" yaml:"components"`
	SmokeTests []SmokeTest `mapstructure:"smoke_tests" yaml:"smoke_tests"`
}

// Probe is one installed binary checked by the validator.
type Probe struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Binary   string   `mapstructure:"binary" yaml:"binary"`
	Args     []string `mapstructure:"args" yaml:"args"`
	Required bool     `mapstructure:"required" yaml:"required"`
}

// SmokeTest is a trivial workload that must run to completion.
type SmokeTest struct {
	Name       string   `mapstructure:"name" yaml:"name"`
	Command    []string `mapstructure:"command" yaml:"command"`
	Privileged bool     `mapstructure:"privileged" yaml:"privileged"`
}

// Payloads are remote configuration sources with built-in fallbacks.
type Payloads struct {
	Registries string `mapstructure:"registries" yaml:"registries"`
	Policy     string `mapstructure:"policy" yaml:"policy"`
}

// Component returns the named component.
func (m Manifest) Component(name string) (Component, bool) {
	for _, c := range m.Components {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// PinFor returns the version pin of a validated component: the toolchain
// version for "go", the component version for source-built components, and
// "" for anything else.
func (m Manifest) PinFor(name string) string {
	if name == "go" {
		return m.Toolchain.Version
	}
	if c, ok := m.Component(name); ok {
		return c.Version
	}
	return ""
}

// DefaultManifest returns the embedded manifest.
func DefaultManifest() (Manifest, error) {
	return ParseManifest(nil)
}

// LoadManifest merges the file at path over the embedded defaults.
// An empty path returns the defaults.
func LoadManifest(path string) (Manifest, error) {
	if path == "" {
		return DefaultManifest()
	}
	// #nosec G304 - operator-supplied manifest path
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest merges overlay (YAML, may be empty) over the embedded
// defaults and decodes the result. Unknown keys are rejected.
func ParseManifest(overlay []byte) (Manifest, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(defaultManifest, &raw); err != nil {
		return Manifest{}, fmt.Errorf("failed to unmarshal default manifest: %w", err)
	}

	if len(overlay) > 0 {
		var over map[string]interface{}
		if err := yaml.Unmarshal(overlay, &over); err != nil {
			return Manifest{}, fmt.Errorf("failed to unmarshal yaml: %w", err)
		}
		raw = mergeMaps(raw, over)
	}

	var m Manifest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &m,
	})
	if err != nil {
		return Manifest{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}

// mergeMaps overlays src onto dst. Nested mappings merge; everything else,
// lists included, is replaced.
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]interface{})
		dstMap, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			dst[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}
