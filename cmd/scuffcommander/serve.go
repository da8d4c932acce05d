package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scuffcommander/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Connects the configured plugins and serves /click/{id}, the JSON API and
Prometheus metrics until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		if cmd.Flags().Changed("port") {
			a.cfg.Port, _ = cmd.Flags().GetInt("port")
		}

		logger.Info("Starting ScuffCommander",
			zap.String("addr", a.cfg.ListenAddr()),
			zap.String("actions_db", a.cfg.ActionsDB))

		server := api.NewServer(api.Deps{
			Actions:  a.store.Actions(),
			Runner:   a.runner,
			Registry: a.registry,
			Metrics:  a.metrics.Handler(),
			History:  a.history,
			Logger:   logger,
		}, a.cfg.ListenAddr())
		if err := server.Start(); err != nil {
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		logger.Info("Application running. Press Ctrl+C to exit.")
		<-sigChan

		logger.Info("Shutting down gracefully...")
		return server.Stop()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Override the configured HTTP port")
}
