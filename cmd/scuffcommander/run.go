package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scuffcommander/internal/store"
	"scuffcommander/pkg/action"
)

var runCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Run one action and exit",
	Long: `Looks the action up in the action store (or in --file) and runs it against
freshly connected plugins. Exits non-zero when the action fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		var act action.Action
		if file, _ := cmd.Flags().GetString("file"); file != "" {
			doc, err := readDocument(file)
			if err != nil {
				return err
			}
			var ok bool
			if act, ok = doc.Actions[id]; !ok {
				return fmt.Errorf("action with ID %s not found in %s", id, file)
			}
		} else {
			rec, err := a.store.Actions().Get(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("action with ID %s not configured", id)
			}
			if err != nil {
				return err
			}
			act = rec.Action
		}

		if err := a.runner.Run(cmd.Context(), id, act); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Success")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("file", "f", "", "Read the action from a JSON or YAML action document instead of the store")
}
