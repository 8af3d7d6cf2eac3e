package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/podstrap/cmd/podstrap/handlers"
	"github.com/imamik/podstrap/internal/config"
	"github.com/imamik/podstrap/internal/provisioning"
)

var doctor = handlers.Doctor

// Doctor returns the command that reports the target's readiness without
// changing it.
func Doctor() *cobra.Command {
	var opts config.Options

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the target and report installed components",
		Long: `Run every preflight check and probe every component, then print a report.

Nothing on the target is modified. The command exits non-zero when a
required component is missing or older than its pin.`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return doctor(cmd.Context(), opts)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return provisioning.NewUsageError("%v", err)
	})
	bindTargetFlags(cmd, &opts)
	return cmd
}
