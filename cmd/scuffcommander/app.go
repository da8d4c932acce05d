package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"scuffcommander/internal/config"
	"scuffcommander/internal/history"
	"scuffcommander/internal/metrics"
	"scuffcommander/internal/store"
	"scuffcommander/pkg/action"
	"scuffcommander/pkg/plugin"
)

// app bundles what the commands share.
type app struct {
	cfg      *config.Config
	store    *store.Store
	metrics  *metrics.Metrics
	history  *history.Tracker
	registry *plugin.Registry
	runner   *action.Runner
}

func loadConfig() (*config.Config, error) {
	dir, err := config.ResolveDir(configDir)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
		logger.Debug("Loaded .env from config directory", zap.String("dir", dir))
	}
	return config.NewLoader(dir, logger).Load()
}

// openApp loads the config and opens the action store. Plugins are only
// connected when connect is set; otherwise the registry is empty.
func openApp(ctx context.Context, connect bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	s, err := store.New(cfg.ActionsDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open action store: %w", err)
	}

	m := metrics.New()
	opts := []plugin.Option{
		plugin.WithLogger(logger),
		plugin.WithTimeouts(cfg.ConnectTimeout, cfg.RequestTimeout, cfg.CommandTimeout),
		plugin.WithObserver(m),
	}

	var registry *plugin.Registry
	if connect {
		registry = plugin.NewRegistry(ctx, cfg.Plugins, opts...)
	} else {
		registry = plugin.NewRegistryWith(nil, opts...)
	}

	tracker := history.NewTracker(cfg.HistorySize, nil)
	return &app{
		cfg:      cfg,
		store:    s,
		metrics:  m,
		history:  tracker,
		registry: registry,
		runner:   action.NewRunner(registry, logger, action.Observers(m, tracker), nil),
	}, nil
}

func (a *app) Close() error {
	return multierr.Combine(a.registry.Close(), a.store.Close())
}
