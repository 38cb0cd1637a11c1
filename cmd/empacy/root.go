package main

import (
	"fmt"

	"empacy/internal/version"

	"github.com/spf13/cobra"
)

// rootFlags are shared by every client subcommand.
type rootFlags struct {
	socket string
	json   bool
}

// newRootCmd creates the root empacy command with all subcommands attached.
func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "empacy",
		Short:         "Empacy multi-agent coordination server",
		Long:          "empacy runs the agent coordination server and talks to it.\nAgents, context packages and the ubiquitous language live in the server process.",
		Version:       fmt.Sprintf("empacy %s", version.Full()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().StringVar(&flags.socket, "socket", "", "coordinator socket path (default $EMPACY_HOME/empacy.sock)")
	cmd.PersistentFlags().BoolVar(&flags.json, "json", false, "print raw JSON responses")

	cmd.AddCommand(
		newServeCmd(),
		newAgentCmd(&flags),
		newContextCmd(&flags),
		newLanguageCmd(&flags),
		newProjectCmd(&flags),
		newHealthCmd(&flags),
		newConfigCmd(),
		newLogsCmd(),
		newVersionCmd(),
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the empacy version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "empacy %s\n", version.Full())
			return nil
		},
	}
}
