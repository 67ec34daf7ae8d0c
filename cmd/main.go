package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/licentry/internal/repositories"
	"github.com/desertthunder/licentry/internal/services"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/desertthunder/licentry/internal/tokens"
	"github.com/urfave/cli/v3"
)

const configPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	config := loadConfig(logger, configPath)
	if err := shared.ApplyLogLevel(logger, config.Log.Level); err != nil {
		logger.Warn("ignoring log level", "error", err)
	}

	timeout := time.Duration(config.API.TimeoutSeconds) * time.Second
	apiService := services.NewAPIService(config.API.BaseURL, services.NewHTTPClient(timeout))

	store, closer, err := repositories.OpenStore(config)
	if err != nil {
		logger.Warn("token cache unavailable, tokens will not persist", "driver", config.Cache.Driver, "error", err)
		store, closer = repositories.NewMemoryStore(), nil
	}

	cache := tokens.NewCache(store, apiService, tokens.WithKey(config.Cache.Key), tokens.WithLogger(logger))

	runner := NewRunner(RunnerOpts{
		Config: config,
		API:    apiService,
		Cache:  cache,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "licentry",
		Usage:    "Create license entries and follow their progress",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.Run(ctx, os.Args)
	stop()

	if err != nil && !errors.Is(err, shared.ErrApplicationReported) {
		logger.Error("application error", "error", err)
	}
	if closer != nil {
		closer.Close()
	}
	os.Exit(shared.ExitCode(err))
}

// loadConfig reads path when it exists and falls back to the embedded defaults otherwise.
func loadConfig(logger *log.Logger, path string) *shared.Config {
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err == nil {
			return config
		}
		logger.Warn("failed to load config, using defaults", "path", path, "error", err)
	}

	config := shared.DefaultConfig()
	config.ApplyEnv()
	return config
}
