package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// remoteWorkDir is the default working directory on an SSH target.
const remoteWorkDir = "/var/tmp/podstrap"

// systemPath is appended to every search path so elevated commands still
// find the base system tools.
var systemPath = []string{"/usr/local/sbin", "/usr/local/bin", "/usr/sbin", "/usr/bin", "/sbin", "/bin"}

// Config is the immutable pipeline configuration.
type Config struct {
	KeepArtifacts bool // skip the cleanup stage
	Force         bool // reinstall even when already present
	Verbose       bool // mirror DEBUG to the console
	AssumeYes     bool // skip the confirmation prompt

	Target      string // user@host[:port]; empty for the local machine
	Identity    string // private key for Target
	MetricsFile string

	WorkDir  string // build artifacts live here (on the target)
	BuildDir string
	LogDir   string // always on the machine running podstrap

	// SearchPath is the executable search path used for every command,
	// including elevated ones.
	SearchPath []string

	ProbeTimeout      time.Duration
	KeepaliveInterval time.Duration

	// FetchAttempts bounds network-bound steps (clone, download, index
	// refresh); RetryDelay is the first backoff between them. One attempt
	// means no retry.
	FetchAttempts int
	RetryDelay    time.Duration

	Archive Archive

	ManifestPath string
	Manifest     Manifest
}

// Archive configures execution-log upload to S3-compatible storage.
type Archive struct {
	Bucket    string
	Endpoint  string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether a bucket is configured.
func (a Archive) Enabled() bool { return a.Bucket != "" }

// Remote reports whether the pipeline targets an SSH host.
func (c Config) Remote() bool { return c.Target != "" }

// PathEnv renders SearchPath as a PATH value.
func (c Config) PathEnv() string { return strings.Join(c.SearchPath, ":") }

// TargetName describes the target for messages.
func (c Config) TargetName() string {
	if c.Remote() {
		return c.Target
	}
	return "this machine"
}

// Options are the command-line inputs to Load.
type Options struct {
	KeepArtifacts bool
	Force         bool
	Verbose       bool
	AssumeYes     bool
	ManifestPath  string
	Target        string
	Identity      string
	MetricsFile   string

	// Getenv overrides os.Getenv (for tests).
	Getenv func(string) string
}

// Load resolves the configuration once from options, environment and manifest.
func Load(opts Options) (Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	manifestPath := opts.ManifestPath
	if manifestPath == "" {
		manifestPath = parseString(getenv, EnvManifest, "")
	}
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return Config{}, err
	}
	manifest.Toolchain.Version = strings.TrimPrefix(parseString(getenv, EnvGoVersion, manifest.Toolchain.Version), "go")
	manifest.MinFreeDiskMB = uint64(max(0, parseInt(getenv, EnvMinFreeDiskMB, int(manifest.MinFreeDiskMB))))

	if err := manifest.Validate(); err != nil {
		return Config{}, fmt.Errorf("manifest validation failed: %w", err)
	}

	cfg := Config{
		KeepArtifacts:     opts.KeepArtifacts,
		Force:             opts.Force,
		Verbose:           opts.Verbose,
		AssumeYes:         opts.AssumeYes,
		Target:            opts.Target,
		Identity:          opts.Identity,
		MetricsFile:       opts.MetricsFile,
		ProbeTimeout:      parseDuration(getenv, EnvProbeTimeout, probeTimeout(manifest)),
		KeepaliveInterval: parseDuration(getenv, EnvKeepaliveInterval, DefaultKeepaliveInterval),
		FetchAttempts:     max(1, parseInt(getenv, EnvFetchAttempts, DefaultFetchAttempts)),
		RetryDelay:        parseDuration(getenv, EnvRetryDelay, DefaultRetryDelay),
		Archive: Archive{
			Bucket:    parseString(getenv, EnvArchiveBucket, ""),
			Endpoint:  parseString(getenv, EnvArchiveEndpoint, ""),
			Region:    parseString(getenv, EnvArchiveRegion, DefaultArchiveRegion),
			Prefix:    strings.Trim(parseString(getenv, EnvArchivePrefix, DefaultArchivePrefix), "/"),
			AccessKey: parseString(getenv, EnvArchiveAccessKey, ""),
			SecretKey: parseString(getenv, EnvArchiveSecretKey, ""),
		},
		ManifestPath: manifestPath,
		Manifest:     manifest,
	}

	localDefault := filepath.Join(xdg.CacheHome, "podstrap")
	workDir := parseString(getenv, EnvWorkDir, "")
	switch {
	case cfg.Remote():
		if workDir == "" {
			workDir = remoteWorkDir
		}
		if !strings.HasPrefix(workDir, "/") {
			return Config{}, fmt.Errorf("%s must be an absolute path for remote targets, got %q", EnvWorkDir, workDir)
		}
		cfg.WorkDir = filepath.Clean(workDir)
		cfg.LogDir = filepath.Join(localDefault, "logs")
	default:
		if workDir == "" {
			workDir = localDefault
		}
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		cfg.WorkDir = abs
		cfg.LogDir = filepath.Join(abs, "logs")
	}
	cfg.BuildDir = filepath.Join(cfg.WorkDir, "build")

	invoking := ""
	if !cfg.Remote() {
		invoking = getenv("PATH")
	}
	cfg.SearchPath = searchPath(manifest, invoking)

	return cfg, nil
}

func probeTimeout(m Manifest) time.Duration {
	if m.ProbeTimeout > 0 {
		return m.ProbeTimeout
	}
	return DefaultProbeTimeout
}

// searchPath orders the toolchain first, then the install prefix, then the
// invoking PATH and the base system directories, without duplicates.
func searchPath(m Manifest, invoking string) []string {
	prefix := strings.TrimRight(m.Prefix, "/")
	candidates := []string{m.Toolchain.GoRoot() + "/bin", prefix + "/bin", prefix + "/sbin"}
	if invoking != "" {
		candidates = append(candidates, strings.Split(invoking, ":")...)
	}
	candidates = append(candidates, systemPath...)

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, dir := range candidates {
		dir = filepath.Clean(dir)
		if dir == "." || !filepath.IsAbs(dir) || seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}
