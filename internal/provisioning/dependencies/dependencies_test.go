package dependencies

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/provisioning"
	ptest "github.com/imamik/podstrap/internal/testing"
)

func newContext(t *testing.T) (*provisioning.Context, *ptest.FakeHost, *ptest.MockPackageManager, *ptest.RecordingLogger) {
	t.Helper()
	cfg := ptest.NewConfigBuilder().WithManifest(func(m *config.Manifest) {
		m.Packages = config.Packages{Remove: []string{"podman", "crun", "golang-go"}, Install: []string{"git", "make", "uidmap"}}
		m.Runtime = config.Runtime{
			SearchDirs: []string{"/usr/libexec/podman", "/usr/lib/podman"},
			Probes: []config.RuntimeProbe{
				{Name: "newuidmap", Critical: true},
				{Name: "netavark", Critical: true},
				{Name: "aardvark-dns", Critical: false},
			},
		}
	}).Build()

	h := ptest.NewFakeHost()
	h.Install("newuidmap", "/usr/bin")
	h.Files["/usr/lib/podman/netavark"] = ptest.FakeFile{Data: []byte("elf")}
	h.Files["/usr/lib/podman/aardvark-dns"] = ptest.FakeFile{Data: []byte("elf")}

	pm := &ptest.MockPackageManager{}
	log := ptest.NewRecordingLogger("/work/logs/podstrap.log")
	return provisioning.NewContext(ptest.TestContext(t), cfg, h, pm, log), h, pm, log
}

func TestStage_Name(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "dependencies", New().Name())
}

func TestRun_NothingToRemove(t *testing.T) {
	t.Parallel()

	ctx, _, pm, log := newContext(t)
	pm.On("Installed", mock.Anything, []string{"podman", "crun", "golang-go"}).Return([]string{}, nil)
	pm.On("Refresh", mock.Anything).Return(nil)
	pm.On("Install", mock.Anything, []string{"git", "make", "uidmap"}).Return(nil)

	require.NoError(t, New().Run(ctx))

	pm.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	pm.AssertCalled(t, "Install", mock.Anything, []string{"git", "make", "uidmap"})
	assert.True(t, log.Contains("INFO", "No conflicting packages installed"))
	assert.Empty(t, ctx.Report.Warnings())
}

func TestRun_RemovesOnlyInstalled(t *testing.T) {
	t.Parallel()

	ctx, _, pm, _ := newContext(t)
	pm.On("Installed", mock.Anything, mock.Anything).Return([]string{"podman"}, nil)
	pm.On("Remove", mock.Anything, []string{"podman"}).Return(nil).Once()
	pm.On("Refresh", mock.Anything).Return(nil)
	pm.On("Install", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, New().Run(ctx))
	pm.AssertExpectations(t)
}

func TestRun_RemovalFailureWarns(t *testing.T) {
	t.Parallel()

	ctx, _, pm, log := newContext(t)
	pm.On("Installed", mock.Anything, mock.Anything).Return([]string{"crun"}, nil)
	pm.On("Remove", mock.Anything, mock.Anything).Return(errors.New("dpkg lock held"))
	pm.On("Refresh", mock.Anything).Return(nil)
	pm.On("Install", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, New().Run(ctx))
	assert.True(t, log.Contains("WARN", "dpkg lock held"))
	require.Len(t, ctx.Report.Warnings(), 1)
	pm.AssertCalled(t, "Install", mock.Anything, mock.Anything)
}

func TestRun_QueryFailureSkipsRemoval(t *testing.T) {
	t.Parallel()

	ctx, _, pm, _ := newContext(t)
	pm.On("Installed", mock.Anything, mock.Anything).Return(nil, errors.New("dpkg-query missing"))
	pm.On("Refresh", mock.Anything).Return(nil)
	pm.On("Install", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, New().Run(ctx))
	pm.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	assert.Len(t, ctx.Report.Warnings(), 1)
}

func TestRun_FatalFailures(t *testing.T) {
	t.Parallel()

	t.Run("refresh", func(t *testing.T) {
		t.Parallel()
		ctx, _, pm, _ := newContext(t)
		pm.On("Installed", mock.Anything, mock.Anything).Return([]string{}, nil)
		pm.On("Refresh", mock.Anything).Return(errors.New("temporary failure resolving archive.ubuntu.com"))

		err := New().Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "package index refresh failed")
		pm.AssertNotCalled(t, "Install", mock.Anything, mock.Anything)
	})

	t.Run("install", func(t *testing.T) {
		t.Parallel()
		ctx, _, pm, _ := newContext(t)
		pm.On("Installed", mock.Anything, mock.Anything).Return([]string{}, nil)
		pm.On("Refresh", mock.Anything).Return(nil)
		pm.On("Install", mock.Anything, mock.Anything).Return(errors.New("E: Unable to locate package uidmap"))

		err := New().Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "package installation failed: E: Unable to locate package uidmap")
	})
}

func TestRun_RuntimeProbes(t *testing.T) {
	t.Parallel()

	t.Run("optional missing warns", func(t *testing.T) {
		t.Parallel()
		ctx, h, pm, _ := newContext(t)
		delete(h.Files, "/usr/lib/podman/aardvark-dns")
		pm.On("Installed", mock.Anything, mock.Anything).Return([]string{}, nil)
		pm.On("Refresh", mock.Anything).Return(nil)
		pm.On("Install", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, New().Run(ctx))
		assert.Equal(t, []string{"Optional runtime component aardvark-dns not found"}, ctx.Report.Warnings())
	})

	t.Run("critical missing fails after every probe", func(t *testing.T) {
		t.Parallel()
		ctx, h, pm, log := newContext(t)
		h.Uninstall("newuidmap")
		delete(h.Files, "/usr/lib/podman/netavark")
		delete(h.Files, "/usr/lib/podman/aardvark-dns")
		pm.On("Installed", mock.Anything, mock.Anything).Return([]string{}, nil)
		pm.On("Refresh", mock.Anything).Return(nil)
		pm.On("Install", mock.Anything, mock.Anything).Return(nil)

		err := New().Run(ctx)
		require.Error(t, err)
		assert.Equal(t, "missing critical runtime components: newuidmap, netavark", err.Error())
		assert.Len(t, log.Messages("ERROR"), 2)
		assert.Len(t, ctx.Report.Warnings(), 1, "optional helper still reported")
	})
}

func TestRun_RefreshIsRetried(t *testing.T) {
	t.Parallel()

	ctx, _, pm, log := newContext(t)
	ctx.Config.FetchAttempts = 2
	pm.On("Installed", mock.Anything, mock.Anything).Return([]string{}, nil)
	pm.On("Refresh", mock.Anything).Return(errors.New("temporary failure resolving archive.ubuntu.com")).Once()
	pm.On("Refresh", mock.Anything).Return(nil).Once()
	pm.On("Install", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, New().Run(ctx))
	pm.AssertNumberOfCalls(t, "Refresh", 2)
	assert.True(t, log.Contains("WARN", "Package index refresh failed (attempt 1/2)"))
}
