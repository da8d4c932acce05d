package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configDir string
	debug     bool
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "scuffcommander",
	Short: "ScuffCommander drives OBS and VTube Studio from stored action trees",
	Long: `ScuffCommander stores named actions (single plugin commands, chains and
conditionals) and runs them against OBS, VTube Studio and the local machine.
Actions can be triggered over HTTP, from the command line or through MCP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory holding config.yaml (default: $SCUFF_CONFIG_DIR or the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable development logging")
}

func setup(_ *cobra.Command, _ []string) error {
	l, err := newLogger(debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger = l

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
