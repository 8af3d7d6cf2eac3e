package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefaultManifest(t *testing.T) {
	t.Parallel()

	m, err := DefaultManifest()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, "ubuntu", m.Platform.OSID)
	assert.Equal(t, "podman", m.Validation.Engine)
	assert.Equal(t, 5*time.Second, m.ProbeTimeout)

	var names []string
	for _, c := range m.Components {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"conmon", "crun", "podman"}, names, "components build in dependency order")

	crun, ok := m.Component("crun")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"./autogen.sh"}}, crun.Bootstrap)
	assert.Equal(t, []string{"--version"}, crun.VersionCommand())

	critical := map[string]bool{}
	for _, p := range m.Runtime.Probes {
		critical[p.Name] = p.Critical
	}
	assert.True(t, critical["newuidmap"])
	assert.True(t, critical["netavark"])
	assert.False(t, critical["aardvark-dns"])
}

func TestToolchain(t *testing.T) {
	t.Parallel()

	tc := Toolchain{Version: "1.23.4", URL: "https://go.dev/dl/go{version}.linux-{arch}.tar.gz", InstallDir: "/usr/local/"}
	assert.Equal(t, "https://go.dev/dl/go1.23.4.linux-arm64.tar.gz", tc.ArchiveURL("arm64"))
	assert.Equal(t, "/usr/local/go", tc.GoRoot())
}

func TestPinFor(t *testing.T) {
	t.Parallel()

	m, err := DefaultManifest()
	require.NoError(t, err)

	assert.Equal(t, m.Toolchain.Version, m.PinFor("go"))
	assert.Equal(t, "5.2.5", m.PinFor("podman"))
	assert.Empty(t, m.PinFor("netavark"))
}

func TestParseManifest_Overlay(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest([]byte(`
platform:
  os_versions: ["24.04"]
packages:
  remove: []
toolchain:
  version: "1.22.8"
`))
	require.NoError(t, err)

	assert.Equal(t, "ubuntu", m.Platform.OSID, "unset keys keep defaults")
	assert.Equal(t, []string{"24.04"}, m.Platform.OSVersions, "lists replace")
	assert.Empty(t, m.Packages.Remove)
	assert.NotEmpty(t, m.Packages.Install)
	assert.Equal(t, "1.22.8", m.Toolchain.Version)
	assert.Equal(t, "/usr/local", m.Toolchain.InstallDir)
}

func TestParseManifest_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		overlay string
		wantErr string
	}{
		{name: "bad yaml", overlay: "platform: [", wantErr: "failed to unmarshal yaml"},
		{name: "unknown key", overlay: "colour: blue", wantErr: "colour"},
		{name: "bad duration", overlay: "probe_timeout: soon", wantErr: "failed to decode manifest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseManifest([]byte(tt.overlay))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManifestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	m, err := DefaultManifest()
	require.NoError(t, err)

	m.Platform.OSID = ""
	m.Probes = []string{"github.com"}
	m.Toolchain.Version = "latest"
	m.Components = append(m.Components, Component{Name: "conmon"})
	m.Validation.Engine = "docker"

	err = m.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"platform.os_id is required",
		`probes: "github.com" is not host:port`,
		"toolchain.version",
		"components.conmon: duplicate component",
		"components.conmon: repo is required",
		"components.conmon: install steps are required",
		`validation.engine "docker" is not a component`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(Options{Getenv: envMap(map[string]string{"PATH": "/home/me/bin:/usr/bin"})})
	require.NoError(t, err)

	assert.False(t, cfg.Remote())
	assert.Equal(t, "this machine", cfg.TargetName())
	assert.True(t, filepath.IsAbs(cfg.WorkDir))
	assert.Equal(t, filepath.Join(cfg.WorkDir, "build"), cfg.BuildDir)
	assert.Equal(t, filepath.Join(cfg.WorkDir, "logs"), cfg.LogDir)
	assert.Equal(t, DefaultProbeTimeout, cfg.ProbeTimeout)
	assert.Equal(t, DefaultKeepaliveInterval, cfg.KeepaliveInterval)
	assert.Equal(t, DefaultFetchAttempts, cfg.FetchAttempts)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	assert.False(t, cfg.Archive.Enabled())

	assert.Equal(t, []string{
		"/usr/local/go/bin", "/usr/local/bin", "/usr/local/sbin",
		"/home/me/bin", "/usr/bin",
		"/usr/sbin", "/sbin", "/bin",
	}, cfg.SearchPath)
	assert.Equal(t, "/usr/local/go/bin:/usr/local/bin:/usr/local/sbin:/home/me/bin:/usr/bin:/usr/sbin:/sbin:/bin", cfg.PathEnv())
}

func TestLoad_Environment(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	cfg, err := Load(Options{
		Force:         true,
		KeepArtifacts: true,
		Getenv: envMap(map[string]string{
			EnvGoVersion:         "go1.22.8",
			EnvWorkDir:           work,
			EnvProbeTimeout:      "2s",
			EnvKeepaliveInterval: "not-a-duration",
			EnvMinFreeDiskMB:     "2048",
			EnvFetchAttempts:     "0",
			EnvRetryDelay:        "250ms",
			EnvArchiveBucket:     "logs",
			EnvArchivePrefix:     "/runs/",
		}),
	})
	require.NoError(t, err)

	assert.True(t, cfg.Force)
	assert.True(t, cfg.KeepArtifacts)
	assert.Equal(t, "1.22.8", cfg.Manifest.Toolchain.Version)
	assert.Equal(t, work, cfg.WorkDir)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, DefaultKeepaliveInterval, cfg.KeepaliveInterval, "invalid values fall back to the default")
	assert.Equal(t, uint64(2048), cfg.Manifest.MinFreeDiskMB)
	assert.Equal(t, 1, cfg.FetchAttempts, "at least one attempt")
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, "runs", cfg.Archive.Prefix)
	assert.Equal(t, DefaultArchiveRegion, cfg.Archive.Region)
}

func TestLoad_Remote(t *testing.T) {
	t.Parallel()

	cfg, err := Load(Options{Target: "ubuntu@10.0.0.5", Getenv: envMap(map[string]string{"PATH": "/opt/local/bin"})})
	require.NoError(t, err)

	assert.True(t, cfg.Remote())
	assert.Equal(t, "ubuntu@10.0.0.5", cfg.TargetName())
	assert.Equal(t, "/var/tmp/podstrap", cfg.WorkDir)
	assert.Equal(t, "/var/tmp/podstrap/build", cfg.BuildDir)
	assert.NotContains(t, cfg.SearchPath, "/opt/local/bin", "the local PATH means nothing on the target")

	_, err = Load(Options{Target: "ubuntu@10.0.0.5", Getenv: envMap(map[string]string{EnvWorkDir: "relative/dir"})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute path")
}

func TestLoad_ManifestFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_free_disk_mb: 512\n"), 0o600))

	cfg, err := Load(Options{Getenv: envMap(map[string]string{EnvManifest: path})})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ManifestPath)
	assert.Equal(t, uint64(512), cfg.Manifest.MinFreeDiskMB)

	_, err = Load(Options{ManifestPath: filepath.Join(t.TempDir(), "missing.yaml"), Getenv: envMap(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("probes: []\n"), 0o600))
	_, err = Load(Options{ManifestPath: invalid, Getenv: envMap(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest validation failed")
}

func TestEnvParsers(t *testing.T) {
	t.Parallel()

	env := envMap(map[string]string{"D": " 3m ", "NEG": "-1s", "I": "7", "BAD": "x", "S": "  v "})

	assert.Equal(t, 3*time.Minute, parseDuration(env, "D", time.Second))
	assert.Equal(t, time.Second, parseDuration(env, "NEG", time.Second))
	assert.Equal(t, time.Second, parseDuration(env, "UNSET", time.Second))
	assert.Equal(t, 7, parseInt(env, "I", 1))
	assert.Equal(t, 1, parseInt(env, "BAD", 1))
	assert.Equal(t, "v", parseString(env, "S", "d"))
	assert.Equal(t, "d", parseString(env, "UNSET", "d"))
}
