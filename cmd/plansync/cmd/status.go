package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"plansync/internal/application/commands"
)

var logLimit int

var statusCmd = &cobra.Command{
	Use:   "status <team/release>",
	Short: "Show the sync phase and pending local changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := commands.NewStatusCommand(GetRuntime().Orchestrator, args[0]).Execute(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), commands.FormatStatus(st))
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log <team/release>",
	Short: "List audit entries, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := commands.NewLogCommand(GetRuntime().Orchestrator, args[0], logLimit).Execute(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), commands.FormatEntries(result.Entries))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <audit-id>",
	Short: "Show one audit entry with its attributed changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := commands.NewShowEntryCommand(GetRuntime().Orchestrator, args[0]).Execute(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), commands.FormatEntry(entry))
		return nil
	},
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", commands.DefaultLogLimit, "number of entries to show, negative for all")

	rootCmd.AddCommand(statusCmd, logCmd, showCmd)
}
