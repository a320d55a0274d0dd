package cmd

import (
	"github.com/spf13/cobra"

	"plansync/internal/application/commands"
)

var confirmRemovals bool

var initCmd = &cobra.Command{
	Use:   "init <team/release>",
	Short: "Create the tracking and working branches for a release",
	Long: `Fetch the release from the planning service, commit it to a new
tracking branch and branch the working copy off it.

Examples:
  plansync init core/r1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := commands.NewInitCommand(GetRuntime().Orchestrator, args[0]).Execute(cmd.Context())
		return report(cmd, res, err)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <team/release>",
	Short: "Bring remote changes into the working branch",
	Long: `Refresh the tracking branch from the planning service and replay the
working branch on top of it. When the replay stops on conflicts, fix the
document, stage it and run resolve.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := commands.NewPullCommand(GetRuntime().Orchestrator, args[0]).Execute(cmd.Context())
		return report(cmd, res, err)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push <team/release>",
	Short: "Send committed edits to the planning service",
	Long: `Apply the working branch's commits to the planning service as one
batch. Items removed from the document are only deleted remotely with
--confirm-removals; otherwise they stay withheld on the working branch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := commands.NewPushCommand(GetRuntime().Orchestrator, args[0], confirmRemovals).Execute(cmd.Context())
		return report(cmd, res, err)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <team/release>",
	Short: "Finish a pull or push that stopped on conflicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := commands.NewResolveCommand(GetRuntime().Orchestrator, args[0]).Execute(cmd.Context())
		return report(cmd, res, err)
	},
}

func init() {
	pushCmd.Flags().BoolVar(&confirmRemovals, "confirm-removals", false, "delete remotely the items removed from the document")

	rootCmd.AddCommand(initCmd, pullCmd, pushCmd, resolveCmd)
}
