package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"aubridge/internal/appversion"
)

// newRootCmd creates the root aubridge command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aubridge",
		Short:         "Agent execution bridge for the audio editor",
		Long:          "aubridge supervises the external agent process and speaks its\nline-delimited JSON protocol, and runs mixdown exports.",
		Version:       fmt.Sprintf("aubridge %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newRunCmd(),
		newExportCmd(),
	)

	return cmd
}
