// Package packages drives the distribution package manager on a host.
package packages

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/podstrap/internal/platform/host"
)

// Manager is the package manager surface the dependency stage needs.
type Manager interface {
	// Installed returns the subset of names currently installed.
	Installed(ctx context.Context, names []string) ([]string, error)

	// Remove uninstalls names.
	Remove(ctx context.Context, names []string) error

	// Refresh updates the package index.
	Refresh(ctx context.Context) error

	// Install installs names in a single transaction.
	Install(ctx context.Context, names []string) error
}

// aptEnv keeps apt from prompting.
var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive", "NEEDRESTART_MODE=a"}

// Apt implements Manager with dpkg-query and apt-get.
type Apt struct {
	host host.Host
}

var _ Manager = (*Apt)(nil)

// NewApt returns an apt Manager for h.
func NewApt(h host.Host) *Apt {
	return &Apt{host: h}
}

// Installed implements Manager. dpkg-query exits 1 when some names are
// unknown; the output still lists the known ones.
func (a *Apt) Installed(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	args := append([]string{"-W", "-f=${Package}\t${db:Status-Status}\n"}, names...)
	res, err := a.host.Run(ctx, host.Command{Path: "dpkg-query", Args: args})
	if err != nil {
		var exitErr *host.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode != 1 {
			return nil, fmt.Errorf("failed to query installed packages: %w", err)
		}
	}
	return parseDpkgStatus(res.Stdout), nil
}

func parseDpkgStatus(out string) []string {
	var installed []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		name, status, ok := strings.Cut(scanner.Text(), "\t")
		if ok && strings.TrimSpace(status) == "installed" {
			// Multi-arch packages report as name:arch.
			name, _, _ = strings.Cut(strings.TrimSpace(name), ":")
			installed = append(installed, name)
		}
	}
	return installed
}

// Remove implements Manager.
func (a *Apt) Remove(ctx context.Context, names []string) error {
	return a.aptGet(ctx, append([]string{"remove", "-y"}, names...))
}

// Refresh implements Manager.
func (a *Apt) Refresh(ctx context.Context) error {
	return a.aptGet(ctx, []string{"update"})
}

// Install implements Manager.
func (a *Apt) Install(ctx context.Context, names []string) error {
	return a.aptGet(ctx, append([]string{"install", "-y", "--no-install-recommends"}, names...))
}

func (a *Apt) aptGet(ctx context.Context, args []string) error {
	_, err := a.host.Run(ctx, host.Command{
		Path:       "apt-get",
		Args:       args,
		Env:        aptEnv,
		Privileged: true,
	})
	if err != nil {
		return fmt.Errorf("apt-get %s: %w", args[0], err)
	}
	return nil
}
