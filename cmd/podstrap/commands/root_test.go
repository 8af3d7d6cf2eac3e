package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/provisioning"
)

// stubHandlers replaces the handlers for one test and records their options.
func stubHandlers(t *testing.T) (*config.Options, *config.Options) {
	t.Helper()
	var gotInstall, gotDoctor config.Options
	origInstall, origDoctor := install, doctor
	t.Cleanup(func() { install, doctor = origInstall, origDoctor })

	install = func(_ context.Context, opts config.Options) error {
		gotInstall = opts
		return nil
	}
	doctor = func(_ context.Context, opts config.Options) error {
		gotDoctor = opts
		return nil
	}
	return &gotInstall, &gotDoctor
}

func execute(args ...string) error {
	cmd := Root()
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(context.Background())
}

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "podstrap", cmd.Use)
	assert.Equal(t, "Build and install Podman from source on Ubuntu", cmd.Short)

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	assert.True(t, subcommands["doctor"])
	assert.True(t, subcommands["version"])
}

func TestRoot_Flags(t *testing.T) {
	gotInstall, _ := stubHandlers(t)

	require.NoError(t, execute("-k", "-f", "-v", "-y", "-m", "overlay.yaml",
		"--host", "ubuntu@10.0.0.5", "--identity", "/keys/id", "--metrics-file", "/tmp/p.prom"))

	assert.Equal(t, config.Options{
		KeepArtifacts: true,
		Force:         true,
		Verbose:       true,
		AssumeYes:     true,
		ManifestPath:  "overlay.yaml",
		Target:        "ubuntu@10.0.0.5",
		Identity:      "/keys/id",
		MetricsFile:   "/tmp/p.prom",
	}, *gotInstall)
}

func TestRoot_Defaults(t *testing.T) {
	gotInstall, _ := stubHandlers(t)

	require.NoError(t, execute())
	assert.Equal(t, config.Options{}, *gotInstall)
}

func TestRoot_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"positional argument", []string{"extra"}},
		{"unknown flag", []string{"--frobnicate"}},
		{"unknown shorthand", []string{"-z"}},
		{"doctor argument", []string{"doctor", "extra"}},
		{"doctor unknown flag", []string{"doctor", "--force"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			origInstall, origDoctor := install, doctor
			t.Cleanup(func() { install, doctor = origInstall, origDoctor })
			install = func(context.Context, config.Options) error { called = true; return nil }
			doctor = install

			err := execute(tt.args...)
			require.Error(t, err)
			var usage *provisioning.UsageError
			assert.True(t, errors.As(err, &usage), "got %T: %v", err, err)
			assert.Equal(t, provisioning.ExitUsage, provisioning.ExitCode(err))
			assert.False(t, called, "no handler runs on a usage error")
		})
	}
}

func TestDoctor_Flags(t *testing.T) {
	_, gotDoctor := stubHandlers(t)

	require.NoError(t, execute("doctor", "-v", "--host", "root@box:2222"))
	assert.True(t, gotDoctor.Verbose)
	assert.Equal(t, "root@box:2222", gotDoctor.Target)
}

func TestRoot_HandlerErrorPassesThrough(t *testing.T) {
	origInstall := install
	t.Cleanup(func() { install = origInstall })
	want := &provisioning.PreflightError{Check: "os", Reason: "debian 12 is not supported"}
	install = func(context.Context, config.Options) error { return want }

	err := execute("-y")
	assert.Equal(t, want, err)
	assert.Equal(t, provisioning.ExitPreflight, provisioning.ExitCode(err))
}
