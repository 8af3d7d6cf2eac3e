// Package configure writes the container tool configuration.
//
// Every file is replaced as a whole, atomically; nothing is ever appended.
// The user's shell profile is the one file podstrap does not own, so only a
// marker-delimited block inside it is replaced. Remote payloads fall back to
// built-in content, so a flaky network never fails the stage.
package configure

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/provisioning"
)

// System-wide paths.
const (
	RegistriesPath = "/etc/containers/registries.conf"
	PolicyPath     = "/etc/containers/policy.json"
	ContainersPath = "/etc/containers/containers.conf"
	ProfilePath    = "/etc/profile.d/podstrap.sh"
)

// payloadTimeout bounds each remote payload fetch before the fallback is used.
const payloadTimeout = 30 * time.Second

// Stage writes the configuration files, grants subordinate IDs and reloads
// the service manager.
type Stage struct{}

var _ provisioning.Stage = (*Stage)(nil)

// New returns the configuration stage.
func New() *Stage { return &Stage{} }

// Name implements provisioning.Stage.
func (s *Stage) Name() string { return "configure" }

// file is one configuration file to materialize.
type file struct {
	path       string
	mode       os.FileMode
	privileged bool
	content    func(ctx *provisioning.Context) ([]byte, error)
}

// Run implements provisioning.Stage.
func (s *Stage) Run(ctx *provisioning.Context) error {
	user, err := ctx.Host.Username(ctx)
	if err != nil {
		return fmt.Errorf("failed to determine the invoking user: %w", err)
	}
	configHome, err := ctx.Host.ConfigHome(ctx)
	if err != nil {
		return fmt.Errorf("failed to determine the user configuration directory: %w", err)
	}
	home, err := ctx.Host.HomeDir(ctx)
	if err != nil {
		return fmt.Errorf("failed to determine the home directory: %w", err)
	}

	for _, f := range files(configHome, home) {
		data, err := f.content(ctx)
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", f.path, err)
		}
		if err := ctx.Host.WriteFile(ctx, f.path, data, f.mode, f.privileged); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		ctx.Log.Infof("Wrote %s", f.path)
	}

	if err := fixOwnership(ctx, user, path.Join(configHome, "containers"), path.Join(home, ".profile")); err != nil {
		return err
	}
	if err := grantSubIDs(ctx, user); err != nil {
		return err
	}

	if _, err := ctx.Run(host.Command{Path: "systemctl", Args: []string{"daemon-reload"}, Privileged: true}); err != nil {
		ctx.Warn("systemctl daemon-reload failed (run it manually later): %v", err)
	}
	return nil
}

// files lists every managed file in write order.
func files(configHome, home string) []file {
	return []file{
		{path: RegistriesPath, mode: 0o644, privileged: true, content: registries},
		{path: PolicyPath, mode: 0o644, privileged: true, content: policy},
		{path: ContainersPath, mode: 0o644, privileged: true, content: systemContainers},
		{path: path.Join(configHome, "containers", "containers.conf"), mode: 0o644, content: func(*provisioning.Context) ([]byte, error) {
			return UserContainersConf()
		}},
		{path: ProfilePath, mode: 0o644, privileged: true, content: func(ctx *provisioning.Context) ([]byte, error) {
			return SystemProfile(exportDirs(ctx)), nil
		}},
		{path: path.Join(home, ".profile"), mode: 0o644, content: func(ctx *provisioning.Context) ([]byte, error) {
			return userProfile(ctx, path.Join(home, ".profile"))
		}},
	}
}

// exportDirs are the directories the shell profile puts in front of PATH.
func exportDirs(ctx *provisioning.Context) []string {
	m := ctx.Config.Manifest
	return []string{m.Toolchain.GoRoot() + "/bin", m.Prefix + "/bin", m.Prefix + "/sbin"}
}

func registries(ctx *provisioning.Context) ([]byte, error) {
	return fetchOr(ctx, "registry list", ctx.Config.Manifest.Payloads.Registries, validTOML, FallbackRegistries)
}

func policy(ctx *provisioning.Context) ([]byte, error) {
	return fetchOr(ctx, "image policy", ctx.Config.Manifest.Payloads.Policy, validJSON, func() ([]byte, error) {
		return []byte(fallbackPolicy), nil
	})
}

// fetchOr downloads url and checks it with valid. Any failure logs a warning
// and returns the fallback instead.
func fetchOr(ctx *provisioning.Context, what, url string, valid func([]byte) error, fallback func() ([]byte, error)) ([]byte, error) {
	if url == "" {
		return fallback()
	}
	data, err := host.Fetch(ctx, ctx.Host, url, payloadTimeout)
	if err == nil {
		err = valid(data)
	}
	if err != nil {
		ctx.Warn("Could not use the %s from %s, writing the built-in default: %v", what, url, err)
		return fallback()
	}
	ctx.Log.Debugf("Fetched %s from %s (%d bytes)", what, url, len(data))
	return data, nil
}

func systemContainers(ctx *provisioning.Context) ([]byte, error) {
	m := ctx.Config.Manifest
	locate := func(name string) string {
		if p := provisioning.Resolve(ctx, ctx.Host, name, m.Runtime.SearchDirs); p != "" {
			return p
		}
		return path.Join(m.Prefix, "bin", name)
	}
	return SystemContainersConf(locate("conmon"), locate("crun"), m.Runtime.SearchDirs)
}

func userProfile(ctx *provisioning.Context, p string) ([]byte, error) {
	existing, err := ctx.Host.ReadFile(ctx, p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return MergeProfile(existing, exportDirs(ctx)), nil
}

// fixOwnership hands user-scoped files back to the invoking user when the
// writes happened as root (podstrap run under sudo).
func fixOwnership(ctx *provisioning.Context, user string, paths ...string) error {
	euid, err := ctx.Host.Euid(ctx)
	if err != nil {
		return fmt.Errorf("failed to determine the effective user: %w", err)
	}
	if euid != 0 || user == "root" {
		return nil
	}
	args := append([]string{"-R", user + ":"}, paths...)
	if _, err := ctx.Run(host.Command{Path: "chown", Args: args, Privileged: true}); err != nil {
		return fmt.Errorf("failed to hand configuration back to %s: %w", user, err)
	}
	return nil
}

// grantSubIDs adds subordinate UID and GID ranges unless the user already
// has them.
func grantSubIDs(ctx *provisioning.Context, user string) error {
	if user == "root" {
		ctx.Log.Debugf("Skipping subordinate ID grant for root")
		return nil
	}
	uidMap, err := readOptional(ctx, "/etc/subuid")
	if err != nil {
		return err
	}
	gidMap, err := readOptional(ctx, "/etc/subgid")
	if err != nil {
		return err
	}

	var args []string
	if !hasSubIDEntry(uidMap, user) {
		start := nextSubIDStart(uidMap)
		args = append(args, "--add-subuids", subIDRange(start))
	}
	if !hasSubIDEntry(gidMap, user) {
		start := nextSubIDStart(gidMap)
		args = append(args, "--add-subgids", subIDRange(start))
	}
	if len(args) == 0 {
		ctx.Log.Infof("Subordinate IDs for %s already present", user)
		return nil
	}

	args = append(args, user)
	if _, err := ctx.Run(host.Command{Path: "usermod", Args: args, Privileged: true}); err != nil {
		return fmt.Errorf("failed to grant subordinate IDs to %s: %w", user, err)
	}
	ctx.Log.Infof("Granted subordinate IDs to %s", user)
	return nil
}

func subIDRange(start int) string {
	return strconv.Itoa(start) + "-" + strconv.Itoa(start+subIDCount-1)
}

func readOptional(ctx *provisioning.Context, p string) ([]byte, error) {
	data, err := ctx.Host.ReadFile(ctx, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}
