package packages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDpkgStatus(t *testing.T) {
	t.Parallel()

	out := "podman\tinstalled\nbuildah\tnot-installed\nlibc6:amd64\tinstalled\ncrun\tconfig-files\n\n"
	assert.Equal(t, []string{"podman", "libc6"}, parseDpkgStatus(out))
	assert.Empty(t, parseDpkgStatus(""))
}
