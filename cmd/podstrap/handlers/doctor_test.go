package handlers

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podstrap/internal/provisioning"
	"github.com/imamik/podstrap/internal/provisioning/preflight"
	"github.com/imamik/podstrap/internal/provisioning/validate"
	ptest "github.com/imamik/podstrap/internal/testing"
)

// installedHost has the whole stack at its pinned versions.
func installedHost() *ptest.FakeHost {
	h := freshHost()
	h.Install("go", "/usr/local/go/bin")
	for _, name := range []string{"conmon", "crun", "podman"} {
		h.Install(name, "/usr/local/bin")
	}
	return h
}

func TestDoctor_Healthy(t *testing.T) {
	h := installedHost()
	e := setup(t, h)

	require.NoError(t, Doctor(context.Background(), e.options()))

	out := e.stdout.String()
	assert.Contains(t, out, "podstrap doctor: this machine")
	assert.Contains(t, out, "[OK] os")
	assert.Contains(t, out, "[OK] podman")
	assert.Contains(t, out, "[??] pasta")
	assert.Contains(t, out, "0 error(s), 4 warning(s)")

	assert.Empty(t, h.Writes(), "doctor never writes")
	assert.Empty(t, h.Removed())
	assert.Zero(t, h.Ran("podman run"), "doctor runs no smoke test")
	assert.Zero(t, h.Ran("apt-get"))
}

func TestDoctor_MissingComponent(t *testing.T) {
	h := installedHost()
	h.Uninstall("crun")
	e := setup(t, h)

	err := Doctor(context.Background(), e.options())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 required component(s) missing")
	assert.Equal(t, provisioning.ExitFailure, provisioning.ExitCode(err))
	assert.Contains(t, e.stdout.String(), "[!!] crun")
}

func TestDoctor_ReportsEveryFailedCheck(t *testing.T) {
	h := installedHost()
	h.Architecture = "riscv64"
	h.FreeSpace = 1 << 20
	e := setup(t, h)

	require.NoError(t, Doctor(context.Background(), e.options()))
	out := e.stdout.String()
	assert.Contains(t, out, "[!!] architecture")
	assert.Contains(t, out, "[!!] disk")
	assert.Contains(t, out, "[OK] network")
}

func TestRenderDoctor(t *testing.T) {
	var b bytes.Buffer
	renderDoctor(&b, "ubuntu@box", []preflight.Result{
		{Check: "os", Passed: true, Detail: "Ubuntu 24.04 LTS"},
		{Check: "disk", Reason: "100 MiB free at /var/tmp/podstrap, need 10240 MiB"},
	}, validate.Result{
		Records: []provisioning.ComponentRecord{
			{Name: "podman", Path: "/usr/local/bin/podman", Version: "5.2.5", Required: true},
			{Name: "crun", Required: true, Missing: true},
			{Name: "pasta", Missing: true},
		},
		Errors:   1,
		Warnings: 1,
	})

	want := `podstrap doctor: ubuntu@box

Preflight
  [OK] os             Ubuntu 24.04 LTS
  [!!] disk           100 MiB free at /var/tmp/podstrap, need 10240 MiB

Components
  [OK] podman         5.2.5      /usr/local/bin/podman
  [!!] crun           missing
  [??] pasta          not installed (optional)

1 error(s), 1 warning(s)
`
	assert.Equal(t, want, b.String())
}
