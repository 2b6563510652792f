package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/apiview/internal/config"
	"github.com/ziadkadry99/apiview/internal/loader"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `apiview init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// loaderOptions maps the config onto loader options.
func loaderOptions(cfg *config.Config, logger *slog.Logger) []loader.Option {
	return []loader.Option{
		loader.WithTimeout(cfg.FetchTimeout.Std()),
		loader.WithFilter(cfg.Include, cfg.Exclude),
		loader.WithLogger(logger),
	}
}
