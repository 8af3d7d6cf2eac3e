// Package main is the entry point for the podstrap CLI.
//
// podstrap provisions a from-source Podman stack on an Ubuntu host, locally
// or over SSH: build dependencies, the Go toolchain, conmon, crun and podman,
// followed by container configuration and validation.
//
// For detailed usage information, run:
//
//	podstrap --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/podstrap/cmd/podstrap/commands"
	"github.com/imamik/podstrap/internal/provisioning"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var usage *provisioning.UsageError
		if errors.As(err, &usage) {
			fmt.Fprintln(os.Stderr, "Run 'podstrap --help' for usage.")
		}
	}
	return provisioning.ExitCode(err)
}
