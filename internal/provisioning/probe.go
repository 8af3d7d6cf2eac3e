package provisioning

import (
	"context"
	"path"
	"strings"

	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/util/version"
)

// Resolve finds an executable on the host search path, then in the extra
// directories. It returns "" when the binary is absent.
func Resolve(ctx context.Context, h host.Host, name string, extraDirs []string) string {
	if p, err := h.LookPath(ctx, name); err == nil {
		return p
	}
	for _, dir := range extraDirs {
		candidate := path.Join(dir, name)
		if ok, err := h.Exists(ctx, candidate); err == nil && ok {
			return candidate
		}
	}
	return ""
}

// ProbeVersion runs bin with args and extracts the reported version.
func ProbeVersion(ctx context.Context, h host.Host, bin string, args []string) (string, error) {
	res, err := h.Run(ctx, host.Command{Path: bin, Args: args})
	if err != nil {
		return "", err
	}
	out := res.Stdout
	if strings.TrimSpace(out) == "" {
		out = res.Stderr
	}
	return version.Extract(out), nil
}
