package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"plansync/internal/adapters/editor"
	"plansync/internal/application/commands"
)

var editCmd = &cobra.Command{
	Use:   "edit <team/release>",
	Short: "Check out the working branch and open the plan document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := GetRuntime()
		result, err := commands.NewEditCommand(rt.Repo, editor.NewOpener(), rt.Config.RepoDir, args[0]).Execute(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
