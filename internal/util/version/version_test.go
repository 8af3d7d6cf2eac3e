package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"go", "go version go1.22.5 linux/amd64", "1.22.5"},
		{"podman", "podman version 5.2.3\n", "5.2.3"},
		{"crun two part", "crun version 1.17\ncommit: 000deadbeef\nspec: 1.0.0\n", "1.17"},
		{"conmon", "conmon version 2.1.12\ncommit: e8896631295ccb0bfdda4284f1751be19b483264\n", "2.1.12"},
		{"tag prefix", "v1.2.3", "1.2.3"},
		{"prerelease", "podman version 5.3.0-rc1", "5.3.0-rc1"},
		{"nothing", "command not found", ""},
		{"second line fallback", "Version info:\n  1.4.0", "1.4.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Extract(tt.output))
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	v, err := Parse("1.22")
	require.NoError(t, err)
	assert.Equal(t, "1.22.0", v.String())

	_, err = Parse("not-a-version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid version")
}

func TestSatisfies(t *testing.T) {
	t.Parallel()
	tests := []struct {
		installed string
		pin       string
		want      bool
	}{
		{"1.22.5", "1.22.5", true},
		{"1.23.0", "1.22.5", true},
		{"1.22.4", "1.22.5", false},
		{"5.2.3", "", true},
		{"", "", false},
		{"garbage", "1.0.0", false},
		{"1.0.0", "garbage", false},
		{"1.17", "1.17.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.installed+"_vs_"+tt.pin, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Satisfies(tt.installed, tt.pin))
		})
	}
}
