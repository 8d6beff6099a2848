package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.config.Database
	r.logger.Info("initializing database", "path", config.Path)

	db, err := shared.NewDatabase(config.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.MaxOpenConns, config.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	versions, err := shared.AppliedMigrations(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Path)
	return r.writePlain("✓ Database ready at %s (%d migrations applied)\n", config.Path, len(versions))
}

// SetupConfig writes config.toml from the embedded template, filling in credentials given as flags.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: config file already exists at %s", shared.ErrInvalidArgument, path)
	}

	config := shared.DefaultConfig()
	if id := cmd.String("client-id"); id != "" {
		config.Credentials.Spotify.ClientID = id
	}
	if uri := cmd.String("redirect-uri"); uri != "" {
		config.Credentials.Spotify.RedirectURI = uri
	}

	if cmd.String("client-id") == "" && cmd.String("redirect-uri") == "" {
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
	} else if err := shared.SaveConfig(path, config); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	if err := config.Credentials.Spotify.Validate(); err != nil {
		r.writePlain("Next: set credentials.spotify.client_id (or SPOTIFY_CLIENT_ID) and run 'spotistats auth login'\n")
	}
	return nil
}
