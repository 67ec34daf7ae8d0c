package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/licentry/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes config.toml from the embedded template when missing, then creates the token database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
		if config, err = shared.LoadConfig(configPath); err != nil {
			return err
		}
	}

	r.config = config

	if config.Cache.Driver != "sqlite" {
		r.logger.Info("cache driver needs no database", "driver", config.Cache.Driver)
		return r.writePlain("✓ Setup complete (config: %s, cache: %s)\n", configPath, config.Cache.Driver)
	}

	r.logger.Info("initializing database", "path", config.Cache.Path)

	db, err := shared.NewDatabase(config.Cache.Path)
	if err != nil {
		return fmt.Errorf("%w: failed to create database: %v", shared.ErrStorage, err)
	}
	defer db.Close()

	if config.Cache.Path != shared.MemoryDatabase {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("%w: failed to run migrations: %v", shared.ErrStorage, err)
	}
	if version, ok, err := shared.SchemaVersion(db); err == nil && ok {
		r.logger.Info("schema ready", "version", version)
	}
	r.logger.Infof("setup complete for database: %v", config.Cache.Path)

	return r.writePlain("✓ Setup complete (config: %s, database: %s)\n", configPath, config.Cache.Path)
}
