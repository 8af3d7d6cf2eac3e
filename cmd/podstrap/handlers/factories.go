package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/logging"
	"github.com/imamik/podstrap/internal/packages"
	"github.com/imamik/podstrap/internal/platform/host"
	"github.com/imamik/podstrap/internal/platform/s3"
	"github.com/imamik/podstrap/internal/platform/ssh"
	"github.com/imamik/podstrap/internal/ui/confirm"
)

// archiver uploads the execution log after a run.
type archiver interface {
	UploadLog(ctx context.Context, hostname, runID, logPath string) (string, error)
}

var (
	// console receives the mirrored execution log.
	console io.Writer = os.Stderr

	// stdout receives command reports (doctor, version).
	stdout io.Writer = os.Stdout

	// interactive reports whether the operator can answer prompts.
	interactive = confirm.Interactive

	newPrompter = func() confirm.Prompter { return &confirm.Form{} }

	newPackageManager = func(h host.Host) packages.Manager { return packages.NewApt(h) }

	newArchiver = func(ctx context.Context, archive config.Archive) (archiver, error) {
		return s3.NewClient(ctx, archive)
	}

	// newHost connects to the configured target. The returned close
	// function is never nil.
	newHost = connectHost

	hostname = os.Hostname
)

func connectHost(ctx context.Context, cfg config.Config, log *logging.Log) (host.Host, func() error, error) {
	if !cfg.Remote() {
		h := host.NewLocal(host.LocalOptions{
			SearchPath:  cfg.PathEnv(),
			Output:      log.Writer(),
			DialTimeout: cfg.ProbeTimeout,
		})
		return h, func() error { return nil }, nil
	}

	user, hostName, port, err := ssh.ParseTarget(cfg.Target)
	if err != nil {
		return nil, nil, err
	}
	key, err := readIdentity(cfg.Identity)
	if err != nil {
		return nil, nil, err
	}
	h, err := ssh.NewHost(&ssh.Config{
		Host:       hostName,
		Port:       port,
		User:       user,
		PrivateKey: key,
		SearchPath: cfg.PathEnv(),
		Output:     log.Writer(),
		Logger:     log.Logr().WithName("ssh"),
	})
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Connecting to %s", cfg.Target)
	if err := h.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return h, h.Close, nil
}

// defaultIdentities are tried in order when --identity is not given.
var defaultIdentities = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

func readIdentity(path string) ([]byte, error) {
	if path != "" {
		// #nosec G304 - operator-supplied key path
		key, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read identity %s: %w", path, err)
		}
		return key, nil
	}
	for _, name := range defaultIdentities {
		// #nosec G304 - fixed names under the user's ssh directory
		if key, err := os.ReadFile(filepath.Join(xdg.Home, ".ssh", name)); err == nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("no ssh identity found in %s; pass --identity", filepath.Join(xdg.Home, ".ssh"))
}
