// Package preflight validates the target before anything is modified.
//
// Every check is side-effect-free except the privilege check, which may
// refresh the sudo credential cache. [Run] stops at the first failure and
// returns a *provisioning.PreflightError; [RunAll] reports every check for
// the doctor command.
package preflight

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/provisioning"
)

// Check is one environment requirement. Fn returns a short detail on
// success and the failure reason as an error.
type Check struct {
	Name string
	Fn   func(ctx *provisioning.Context) (string, error)
}

// Result is the outcome of one check.
type Result struct {
	Check  string
	Passed bool
	Detail string
	Reason string
}

// Options tunes the default checks.
type Options struct {
	// Interactive allows a sudo password prompt on the operator's terminal.
	Interactive bool
}

// DefaultChecks returns the checks in the order they run.
func DefaultChecks(opts Options) []Check {
	return []Check{
		{Name: "os", Fn: CheckOS},
		{Name: "architecture", Fn: CheckArchitecture},
		{Name: "privilege", Fn: func(ctx *provisioning.Context) (string, error) { return CheckPrivilege(ctx, opts.Interactive) }},
		{Name: "disk", Fn: CheckFreeSpace},
		{Name: "network", Fn: CheckReachability},
	}
}

// Run executes checks in order and fails on the first violation.
func Run(ctx *provisioning.Context, checks []Check) error {
	for _, c := range checks {
		detail, err := c.Fn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", provisioning.ErrInterrupted, ctx.Err())
			}
			ctx.Log.Errorf("Preflight %s: %v", c.Name, err)
			provisioning.LogHint(ctx.Log)
			return &provisioning.PreflightError{Check: c.Name, Reason: err.Error()}
		}
		ctx.Log.Successf("Preflight %s: %s", c.Name, detail)
	}
	return nil
}

// RunAll executes every check and collects the results.
func RunAll(ctx *provisioning.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		detail, err := c.Fn(ctx)
		r := Result{Check: c.Name, Passed: err == nil, Detail: detail}
		if err != nil {
			r.Reason = err.Error()
		}
		results = append(results, r)
	}
	return results
}

// OSRelease holds the fields of /etc/os-release the checks use.
type OSRelease struct {
	ID        string
	VersionID string
	Pretty    string
}

// ParseOSRelease parses os-release(5) content.
func ParseOSRelease(data []byte) OSRelease {
	var rel OSRelease
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || strings.HasPrefix(key, "#") {
			continue
		}
		val = strings.Trim(val, `"'`)
		switch key {
		case "ID":
			rel.ID = val
		case "VERSION_ID":
			rel.VersionID = val
		case "PRETTY_NAME":
			rel.Pretty = val
		}
	}
	return rel
}

// CheckOS requires the configured distribution and release.
func CheckOS(ctx *provisioning.Context) (string, error) {
	data, err := ctx.Host.ReadFile(ctx, "/etc/os-release")
	if err != nil {
		return "", fmt.Errorf("cannot identify the operating system: %w", err)
	}
	rel := ParseOSRelease(data)
	want := ctx.Config.Manifest.Platform
	got := strings.TrimSpace(rel.ID + " " + rel.VersionID)
	if rel.ID != want.OSID || !slices.Contains(want.OSVersions, rel.VersionID) {
		return "", fmt.Errorf("%s is not supported (want %s %s)", got, want.OSID, strings.Join(want.OSVersions, " or "))
	}
	if rel.Pretty != "" {
		return rel.Pretty, nil
	}
	return got, nil
}

// CheckArchitecture requires a supported CPU architecture.
func CheckArchitecture(ctx *provisioning.Context) (string, error) {
	arch, err := ctx.Host.Arch(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot determine the architecture: %w", err)
	}
	allowed := ctx.Config.Manifest.Platform.Architectures
	if !slices.Contains(allowed, arch) {
		return "", fmt.Errorf("%s is not supported (want %s)", arch, strings.Join(allowed, ", "))
	}
	return arch, nil
}

// CheckPrivilege requires root or a usable sudo. Non-interactive sudo is
// tried first; interactive hosts fall back to a password prompt.
func CheckPrivilege(ctx *provisioning.Context, interactive bool) (string, error) {
	euid, err := ctx.Host.Euid(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot determine the effective user: %w", err)
	}
	if euid == 0 {
		return "running as root", nil
	}
	if _, err := ctx.Host.LookPath(ctx, "sudo"); err != nil {
		return "", errors.New("not running as root and sudo is not installed")
	}
	if _, err := ctx.Host.Run(ctx, host.Command{Path: "sudo", Args: []string{"-n", "-v"}}); err == nil {
		return "sudo credentials available", nil
	}
	if !interactive {
		return "", errors.New("sudo requires a password and no terminal is available (configure passwordless sudo or run as root)")
	}
	ctx.Log.Infof("Elevated privileges are required; sudo may prompt for your password")
	if _, err := ctx.Host.Run(ctx, host.Command{Path: "sudo", Args: []string{"-v"}, Interactive: true}); err != nil {
		return "", fmt.Errorf("sudo authentication failed: %w", err)
	}
	return "sudo credentials cached", nil
}

// CheckFreeSpace requires the configured free space on the working volume.
func CheckFreeSpace(ctx *provisioning.Context) (string, error) {
	free, err := ctx.Host.FreeBytes(ctx, ctx.Config.WorkDir)
	if err != nil {
		return "", fmt.Errorf("cannot determine free space at %s: %w", ctx.Config.WorkDir, err)
	}
	need := ctx.Config.Manifest.MinFreeDiskMB << 20
	if free < need {
		return "", fmt.Errorf("%d MiB free at %s, need %d MiB", free>>20, ctx.Config.WorkDir, ctx.Config.Manifest.MinFreeDiskMB)
	}
	return fmt.Sprintf("%d MiB free at %s", free>>20, ctx.Config.WorkDir), nil
}

// CheckReachability dials the probe endpoints in order and passes on the
// first that accepts a TCP connection within the probe timeout.
func CheckReachability(ctx *provisioning.Context) (string, error) {
	var errs []error
	for _, addr := range ctx.Config.Manifest.Probes {
		if err := dial(ctx, ctx.Host, addr, ctx.Config.ProbeTimeout); err != nil {
			ctx.Log.Debugf("Probe %s: %v", addr, err)
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		return addr + " reachable", nil
	}
	return "", fmt.Errorf("no required endpoint is reachable: %w", errors.Join(errs...))
}

func dial(ctx context.Context, h host.Host, addr string, timeout time.Duration) error {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := h.Dial(dctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}
