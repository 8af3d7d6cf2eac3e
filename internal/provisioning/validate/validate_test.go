package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/provisioning"
	ptest "github.com/imamik/podstrap/internal/testing"
)

func manifest(m *config.Manifest) {
	m.Runtime.SearchDirs = []string{"/usr/lib/podman"}
	m.Validation = config.Validation{
		Engine: "podman",
		Components: []config.Probe{
			{Name: "go", Binary: "go", Args: []string{"version"}, Required: true},
			{Name: "conmon", Binary: "conmon", Required: true},
			{Name: "crun", Binary: "crun", Required: true},
			{Name: "podman", Binary: "podman", Required: true},
			{Name: "aardvark-dns", Binary: "aardvark-dns"},
		},
		SmokeTests: []config.SmokeTest{
			{Name: "engine info", Command: []string{"podman", "info"}},
			{Name: "hello workload", Command: []string{"podman", "run", "--rm", "quay.io/podman/hello"}},
		},
	}
}

// healthyHost has every component installed at its pinned version.
func healthyHost(cfg config.Config) *ptest.FakeHost {
	h := ptest.NewFakeHost()
	h.Install("go", "/usr/local/go/bin")
	h.On("/usr/local/go/bin/go version").Return("go version go" + cfg.Manifest.Toolchain.Version + " linux/amd64\n")
	for _, name := range []string{"conmon", "crun", "podman"} {
		h.Install(name, "/usr/local/bin")
		h.On("/usr/local/bin/" + name + " --version").Return(name + " version " + cfg.Manifest.PinFor(name) + "\n")
	}
	h.Files["/usr/lib/podman/aardvark-dns"] = ptest.FakeFile{Data: []byte("elf")}
	h.On("/usr/lib/podman/aardvark-dns --version").Return("aardvark-dns 1.12.2\n")
	return h
}

func newContext(t *testing.T) (*provisioning.Context, *ptest.FakeHost, *ptest.RecordingLogger) {
	t.Helper()
	cfg := ptest.NewConfigBuilder().WithManifest(manifest).Build()
	h := healthyHost(cfg)
	log := ptest.NewRecordingLogger("")
	return provisioning.NewContext(ptest.TestContext(t), cfg, h, nil, log), h, log
}

func TestRun_AllPresent(t *testing.T) {
	t.Parallel()

	ctx, h, _ := newContext(t)

	require.NoError(t, New().Run(ctx))
	errs, warnings := ctx.Report.Validation()
	assert.Zero(t, errs)
	assert.Zero(t, warnings)
	assert.Equal(t, 1, h.Ran("podman info"))
	assert.Equal(t, 1, h.Ran("podman run --rm quay.io/podman/hello"))
	assert.Len(t, ctx.Report.Components(), 5)
}

// Every missing required component is reported before the stage fails.
func TestRun_ExhaustiveErrors(t *testing.T) {
	t.Parallel()

	ctx, h, log := newContext(t)
	h.Uninstall("conmon")
	h.Uninstall("podman")
	delete(h.Files, "/usr/lib/podman/aardvark-dns")

	err := New().Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 required component(s) failed validation")

	assert.Equal(t, []string{"Required component conmon not found", "Required component podman not found"}, log.Messages("ERROR"))
	assert.Equal(t, []string{"Optional component aardvark-dns not found"}, ctx.Report.Warnings())
	assert.Equal(t, 1, h.Ran("/usr/local/bin/crun --version"), "components after the first missing one are still probed")

	errs, warnings := ctx.Report.Validation()
	assert.Equal(t, 2, errs)
	assert.Equal(t, 1, warnings)
	assert.Zero(t, h.Ran("podman"), "no smoke test without the required components")
}

func TestProbe_OneErrorPerMissingComponent(t *testing.T) {
	t.Parallel()

	names := []string{"go", "conmon", "crun", "podman"}
	for _, missing := range names {
		t.Run(missing, func(t *testing.T) {
			t.Parallel()
			ctx, h, _ := newContext(t)
			h.Uninstall(missing)

			res := Probe(ctx)
			assert.Equal(t, 1, res.Errors)
			assert.Zero(t, res.Warnings)
			assert.Len(t, res.Records, 5)
			assert.Equal(t, []string{"Required component " + missing + " not found"}, res.Problems)
		})
	}
}

func TestProbe_VersionProblems(t *testing.T) {
	t.Parallel()

	t.Run("below pin", func(t *testing.T) {
		t.Parallel()
		ctx, h, _ := newContext(t)
		h.On("/usr/local/bin/crun --version").Return("crun version 0.9\n")

		res := Probe(ctx)
		assert.Equal(t, 1, res.Errors)
		assert.Contains(t, res.Problems[0], `crun reports version "0.9", want 1.17 or newer`)
	})

	t.Run("does not run", func(t *testing.T) {
		t.Parallel()
		ctx, h, _ := newContext(t)
		h.On("/usr/local/bin/podman --version").Fail(127, "error while loading shared libraries: libgpgme.so.11")

		res := Probe(ctx)
		assert.Equal(t, 1, res.Errors)
		assert.Contains(t, res.Problems[0], "podman does not run")
		assert.True(t, res.Records[3].Missing)
	})
}

func TestRun_SmokeFailureIsWarning(t *testing.T) {
	t.Parallel()

	ctx, h, _ := newContext(t)
	h.On("podman run").Fail(125, "Error: netavark: unable to create bridge")

	require.NoError(t, New().Run(ctx))

	errs, warnings := ctx.Report.Validation()
	assert.Zero(t, errs)
	assert.Equal(t, 1, warnings)
	require.Len(t, ctx.Report.Warnings(), 1)
	assert.True(t, strings.HasPrefix(ctx.Report.Warnings()[0], `Smoke test "hello workload" failed`))
}

func TestEngineInstalled(t *testing.T) {
	t.Parallel()

	t.Run("at pin", func(t *testing.T) {
		t.Parallel()
		ctx, _, _ := newContext(t)
		rec, ok := EngineInstalled(ctx)
		assert.True(t, ok)
		assert.Equal(t, "/usr/local/bin/podman", rec.Path)
		assert.Equal(t, ctx.Config.Manifest.PinFor("podman"), rec.Version)
	})

	t.Run("distribution version is too old", func(t *testing.T) {
		t.Parallel()
		ctx, h, _ := newContext(t)
		h.On("/usr/local/bin/podman --version").Return("podman version 3.4.4\n")
		rec, ok := EngineInstalled(ctx)
		assert.False(t, ok)
		assert.Equal(t, "3.4.4", rec.Version)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()
		ctx, h, _ := newContext(t)
		h.Uninstall("podman")
		rec, ok := EngineInstalled(ctx)
		assert.False(t, ok)
		assert.True(t, rec.Missing)
	})
}
