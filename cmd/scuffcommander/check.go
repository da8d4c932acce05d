package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"scuffcommander/pkg/plugin"
)

var versionQueries = map[plugin.Type]plugin.Query{
	plugin.TypeOBS: plugin.OBSQuery{Kind: plugin.OBSVersion},
	plugin.TypeVTS: plugin.VTSQuery{Kind: plugin.VTSVersion},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Connect every configured plugin and report its state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PLUGIN\tCONNECTED\tVERSION")
		down := 0
		for _, st := range a.registry.Status() {
			version := "-"
			if q, ok := versionQueries[st.Type]; ok && st.Connected {
				if v, err := a.registry.Query(cmd.Context(), q); err == nil {
					version = v
				}
			}
			if !st.Connected {
				down++
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", st.Type, plugin.FormatBool(st.Connected), version)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if down > 0 {
			return fmt.Errorf("%d plugin(s) not connected", down)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
