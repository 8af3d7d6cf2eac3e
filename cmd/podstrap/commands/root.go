// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing and flag binding. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/podstrap/cmd/podstrap/handlers"
	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/provisioning"
)

// install is the root command's handler; tests replace it.
var install = handlers.Install

// Root returns the root command. Running it without a subcommand
// provisions the target.
//
// Flags:
//
//	--keep-artifacts, -k: Keep the build directory after a successful run
//	--force, -f: Rebuild and reinstall even when the pinned versions are present
//	--verbose, -v: Show debug output (subprocess output) on the console
//	--manifest, -m: Manifest overlay merged over the built-in defaults
//	--yes, -y: Do not ask for confirmation
//	--host: Provision user@host[:port] over SSH instead of this machine
//	--identity: SSH private key for --host
//	--metrics-file: Write run metrics in the prometheus text format
func Root() *cobra.Command {
	var opts config.Options

	cmd := &cobra.Command{
		Use:   "podstrap",
		Short: "Build and install Podman from source on Ubuntu",
		Long: `Build and install a from-source Podman stack (Go, conmon, crun, podman).

podstrap checks the target first and changes nothing when it is unsuitable.
It then installs build dependencies, the pinned Go toolchain and each
component, writes the container configuration and validates the result.
Every event is recorded in a timestamped execution log.

Examples:
  # Provision this machine
  podstrap

  # Provision a remote host without prompting
  podstrap --host ubuntu@10.0.0.5 --identity ~/.ssh/id_ed25519 --yes

  # Rebuild everything and keep the build tree
  podstrap --force --keep-artifacts`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return install(cmd.Context(), opts)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return provisioning.NewUsageError("%v", err)
	})

	cmd.Flags().BoolVarP(&opts.KeepArtifacts, "keep-artifacts", "k", false, "Keep build artifacts (skip cleanup)")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Force rebuild and reinstall")
	cmd.Flags().BoolVarP(&opts.AssumeYes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write prometheus metrics to this file")
	bindTargetFlags(cmd, &opts)

	cmd.AddCommand(Doctor())
	cmd.AddCommand(Version())

	return cmd
}

// bindTargetFlags adds the flags shared by every command that inspects a
// target.
func bindTargetFlags(cmd *cobra.Command, opts *config.Options) {
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show debug output")
	cmd.Flags().StringVarP(&opts.ManifestPath, "manifest", "m", "", "Path to a manifest overlay (default: $PODSTRAP_MANIFEST)")
	cmd.Flags().StringVar(&opts.Target, "host", "", "Remote target user@host[:port]")
	cmd.Flags().StringVar(&opts.Identity, "identity", "", "SSH private key for --host")
}

func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return provisioning.NewUsageError("unexpected argument %q", args[0])
	}
	return nil
}
