package cleanup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/provisioning"
	ptest "github.com/imamik/podstrap/internal/testing"
)

type failingRemove struct {
	*ptest.FakeHost
}

func (f failingRemove) RemoveAll(context.Context, string) error {
	return errors.New("permission denied")
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		keep        bool
		failRemove  bool
		wantRemoved []string
		wantLog     string
		wantLevel   string
	}{
		{name: "removes build dir", wantRemoved: []string{"/work/build"}, wantLog: "Removed build artifacts in /work/build", wantLevel: "INFO"},
		{name: "keep artifacts", keep: true, wantLog: "Keeping build artifacts in /work/build", wantLevel: "INFO"},
		{name: "removal error is swallowed", failRemove: true, wantLog: "Could not remove /work/build: permission denied", wantLevel: "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := ptest.NewConfigBuilder().WithKeepArtifacts(tt.keep).Build()
			fake := ptest.NewFakeHost()
			fake.Files["/work/build/podman/src/Makefile"] = ptest.FakeFile{Data: []byte("all:")}
			var h host.Host = fake
			if tt.failRemove {
				h = failingRemove{fake}
			}
			log := ptest.NewRecordingLogger("")
			ctx := provisioning.NewContext(ptest.TestContext(t), cfg, h, nil, log)

			require.NoError(t, New().Run(ctx))
			assert.Equal(t, tt.wantRemoved, fake.Removed())
			assert.True(t, log.Contains(tt.wantLevel, tt.wantLog), log.Output())
			if tt.keep || tt.failRemove {
				assert.NotNil(t, fake.File("/work/build/podman/src/Makefile"))
			}
		})
	}
}
