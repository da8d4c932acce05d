package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scuffcommander/pkg/action"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Manage the stored actions",
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.store.Actions().List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSUMMARY\tUPDATED")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\n", rec.ID, action.Summary(rec.Action), rec.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var actionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Render one action as an outline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.store.Actions().Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("action %s: %w", args[0], err)
		}

		md := action.Describe(rec.ID, rec.Action)
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			_, err := io.WriteString(cmd.OutOrStdout(), md)
			return err
		}

		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err != nil {
			return err
		}
		out, err := r.Render(md)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), out)
		return err
	},
}

var actionsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an action document (JSON or YAML) into the store",
	Long: `Imports every action of the document in one transaction, replacing actions
with the same id. With --resolve, names in the document (scene names, model
names, hotkey names) are resolved against the connected plugins first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolve, _ := cmd.Flags().GetBool("resolve")

		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context(), resolve)
		if err != nil {
			return err
		}
		defer a.Close()

		if resolve {
			for _, id := range doc.IDs() {
				resolved, err := action.Resolve(cmd.Context(), a.registry, doc.Actions[id])
				if err != nil {
					return fmt.Errorf("action %s: %w", id, err)
				}
				doc.Actions[id] = resolved
			}
		}

		n, err := a.store.Actions().Import(cmd.Context(), doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d actions\n", n)
		return nil
	},
}

var actionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored action as one document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.store.Actions().Export(cmd.Context())
		if err != nil {
			return err
		}
		data, err := encodeDocument(doc, format)
		if err != nil {
			return err
		}

		if output == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		return os.WriteFile(output, data, 0o644)
	},
}

var actionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Actions().Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("action %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
	actionsCmd.AddCommand(actionsListCmd, actionsShowCmd, actionsImportCmd, actionsExportCmd, actionsDeleteCmd)

	actionsShowCmd.Flags().Bool("raw", false, "Print the markdown outline without rendering it")
	actionsImportCmd.Flags().Bool("resolve", false, "Resolve names against the connected plugins before storing")
	actionsExportCmd.Flags().String("format", "json", "Output format: json or yaml")
	actionsExportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// readDocument loads an action document. YAML documents use the same
// structure as JSON ones.
func readDocument(path string) (action.Document, error) {
	if !isYAML(path) {
		return action.LoadDocument(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return action.Document{}, fmt.Errorf("failed to read action document: %w", err)
	}
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return action.Document{}, fmt.Errorf("failed to parse action document: %w", err)
	}
	asJSON, err := json.Marshal(tree)
	if err != nil {
		return action.Document{}, fmt.Errorf("failed to parse action document: %w", err)
	}

	var doc action.Document
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return action.Document{}, err
	}
	return doc, nil
}

func encodeDocument(doc action.Document, format string) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	switch format {
	case "json":
		return append(data, '\n'), nil
	case "yaml":
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, err
		}
		return yaml.Marshal(tree)
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
