package toolchain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/provisioning"
	ptest "github.com/imamik/podstrap/internal/testing"
)

const sum = "8d39b3a9d8bcc2a5c8b6b3a2b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7"

func newContext(t *testing.T, cfg config.Config) (*provisioning.Context, *ptest.FakeHost) {
	t.Helper()
	h := ptest.NewFakeHost()
	log := ptest.NewRecordingLogger("")
	return provisioning.NewContext(ptest.TestContext(t), cfg, h, nil, log), h
}

func pinned(version string) func(*config.Manifest) {
	return func(m *config.Manifest) {
		m.Toolchain = config.Toolchain{
			Version:    version,
			URL:        "https://go.dev/dl/go{version}.linux-{arch}.tar.gz",
			InstallDir: "/usr/local",
		}
	}
}

// simulateInstall makes tar place the go binary at the given version.
func simulateInstall(h *ptest.FakeHost, reported string) {
	h.On("tar -C /usr/local -xzf").Do(func(host.Command) (*host.Result, error) {
		h.Install("go", "/usr/local/go/bin")
		h.On("/usr/local/go/bin/go version").Return("go version go" + reported + " linux/amd64\n")
		return &host.Result{}, nil
	})
}

func TestRun_AlreadyInstalled(t *testing.T) {
	t.Parallel()

	ctx, h := newContext(t, ptest.NewConfigBuilder().WithManifest(pinned("1.23.4")).Build())
	h.Install("go", "/usr/local/go/bin")
	h.On("/usr/local/go/bin/go version").Return("go version go1.23.4 linux/amd64\n")

	require.NoError(t, New().Run(ctx))
	assert.Equal(t, []string{"/usr/local/go/bin/go version"}, h.Lines())
	require.Len(t, ctx.Report.Components(), 1)
	assert.Equal(t, "1.23.4", ctx.Report.Components()[0].Version)
}

func TestRun_FreshInstall(t *testing.T) {
	t.Parallel()

	ctx, h := newContext(t, ptest.NewConfigBuilder().WithManifest(pinned("1.23.4")).Build())
	simulateInstall(h, "1.23.4")

	require.NoError(t, New().Run(ctx))
	assert.Equal(t, []string{
		"mkdir -p /work/build",
		"curl -fsSL -o /work/build/go1.23.4.linux-amd64.tar.gz https://go.dev/dl/go1.23.4.linux-amd64.tar.gz",
		"rm -rf /usr/local/go",
		"mkdir -p /usr/local",
		"tar -C /usr/local -xzf /work/build/go1.23.4.linux-amd64.tar.gz",
		"/usr/local/go/bin/go version",
	}, h.Lines())

	for _, c := range h.Commands() {
		privileged := strings.HasPrefix(ptest.Line(c), "rm ") || strings.HasPrefix(ptest.Line(c), "tar ") || ptest.Line(c) == "mkdir -p /usr/local"
		assert.Equal(t, privileged, c.Privileged, ptest.Line(c))
	}
}

func TestRun_OutdatedIsReplaced(t *testing.T) {
	t.Parallel()

	ctx, h := newContext(t, ptest.NewConfigBuilder().WithManifest(pinned("1.23.4")).Build())
	h.Install("go", "/usr/bin")
	h.On("/usr/bin/go version").Return("go version go1.18.1 linux/amd64\n")
	simulateInstall(h, "1.23.4")

	require.NoError(t, New().Run(ctx))
	assert.Equal(t, 1, h.Ran("curl"))
}

func TestRun_ForceReinstalls(t *testing.T) {
	t.Parallel()

	ctx, h := newContext(t, ptest.NewConfigBuilder().WithForce(true).WithManifest(pinned("1.23.4")).Build())
	h.Install("go", "/usr/local/go/bin")
	h.On("/usr/local/go/bin/go version").Return("go version go1.23.4 linux/amd64\n")
	simulateInstall(h, "1.23.4")

	require.NoError(t, New().Run(ctx))
	assert.Equal(t, 1, h.Ran("curl"))
}

func TestRun_Checksum(t *testing.T) {
	t.Parallel()

	withSum := func(m *config.Manifest) {
		pinned("1.23.4")(m)
		m.Toolchain.SHA256 = map[string]string{"amd64": sum}
	}

	t.Run("match", func(t *testing.T) {
		t.Parallel()
		ctx, h := newContext(t, ptest.NewConfigBuilder().WithManifest(withSum).Build())
		h.On("sha256sum").Return(strings.ToUpper(sum) + "  /work/build/go1.23.4.linux-amd64.tar.gz\n")
		simulateInstall(h, "1.23.4")
		require.NoError(t, New().Run(ctx))
	})

	t.Run("mismatch", func(t *testing.T) {
		t.Parallel()
		ctx, h := newContext(t, ptest.NewConfigBuilder().WithManifest(withSum).Build())
		h.On("sha256sum").Return("deadbeef  /work/build/go1.23.4.linux-amd64.tar.gz\n")

		err := New().Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checksum mismatch for go1.23.4.linux-amd64.tar.gz")
		assert.Zero(t, h.Ran("tar"), "nothing is unpacked")
		assert.Zero(t, h.Ran("rm"), "the old toolchain is kept")
	})
}

func TestRun_Failures(t *testing.T) {
	t.Parallel()

	t.Run("download", func(t *testing.T) {
		t.Parallel()
		ctx, h := newContext(t, ptest.NewConfigBuilder().WithManifest(pinned("1.23.4")).Build())
		h.On("curl").Fail(22, "curl: (22) The requested URL returned error: 404")

		err := New().Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to download https://go.dev/dl/go1.23.4.linux-amd64.tar.gz")
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("not on search path", func(t *testing.T) {
		t.Parallel()
		ctx, _ := newContext(t, ptest.NewConfigBuilder().WithManifest(pinned("1.23.4")).Build())

		err := New().Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "go is not on the search path after installing into /usr/local/go")
	})

	t.Run("wrong version after install", func(t *testing.T) {
		t.Parallel()
		ctx, h := newContext(t, ptest.NewConfigBuilder().WithManifest(pinned("1.23.4")).Build())
		simulateInstall(h, "1.21.0")

		err := New().Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `reports version "1.21.0", want 1.23.4`)
	})
}

func TestRun_DownloadIsRetried(t *testing.T) {
	t.Parallel()

	ctx, h := newContext(t, ptest.NewConfigBuilder().WithRetries(2).WithManifest(pinned("1.23.4")).Build())
	h.On("curl").Fail(6, "curl: (6) Could not resolve host: go.dev")

	err := New().Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Equal(t, 2, h.Ran("curl"))
	assert.Zero(t, h.Ran("tar"))
}
