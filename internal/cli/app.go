package cli

import (
	"log/slog"

	"github.com/roach88/boqcalc/internal/config"
	"github.com/roach88/boqcalc/internal/engine"
	"github.com/roach88/boqcalc/internal/store"
)

// app is the opened state a data command works with.
type app struct {
	cfg    config.Config
	store  *store.Store
	engine *engine.Engine
}

// loadConfig reads --config, or DefaultFile when present, and applies the
// --db override.
func loadConfig(opts *RootOptions) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadOptional(config.DefaultFile)
	}
	if err != nil {
		return config.Config{}, err
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// openApp loads the config, opens the store and builds an engine over it.
// extra options are applied after the config-derived ones.
func openApp(opts *RootOptions, extra ...engine.Option) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	slog.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	engOpts := []engine.Option{
		engine.WithRegistry(reg),
		engine.WithWorkers(cfg.Workers),
		engine.WithMemoTTL(cfg.MemoTTL),
	}
	engOpts = append(engOpts, extra...)

	return &app{
		cfg:    cfg,
		store:  st,
		engine: engine.New(st, engOpts...),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
