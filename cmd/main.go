package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotistats/internal/auth"
	"github.com/desertthunder/spotistats/internal/repositories"
	"github.com/desertthunder/spotistats/internal/services"
	"github.com/desertthunder/spotistats/internal/session"
	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("SPOTISTATS_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config, err := shared.LoadOrDefault(configPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
	}

	if config.Log.File != "" {
		if fileLogger, err := shared.NewFileLogger(config.Log.File); err != nil {
			logger.Warn("failed to open log file", "error", err)
		} else {
			logger = fileLogger
		}
	}
	if level, err := shared.ParseLogLevel(config.Log.Level); err != nil {
		logger.Warn("invalid log level, using info", "error", err)
	} else {
		shared.SetLogLevel(logger, level)
	}

	opts := RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		HTTPClient: &http.Client{Timeout: config.API.Timeout()},
		Logger:     logger,
	}
	wire(&opts)
	if opts.DB != nil {
		defer opts.DB.Close()
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "spotistats",
		Usage:    "Your Spotify listening statistics from the terminal",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		stop()
		if opts.DB != nil {
			opts.DB.Close()
		}
		logger.Fatalf("application error: %v", err)
	}
}

// wire opens the database and builds the session store, authorizer and API client.
//
// Without a database the session lives in memory only and snapshot commands are unavailable.
func wire(opts *RunnerOpts) {
	config, logger := opts.Config, opts.Logger

	var storage session.Storage
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		logger.Warn("database unavailable, session will not persist", "path", config.Database.Path, "error", err)
	} else {
		opts.DB = db
		storage = repositories.NewSettingsRepository(db)
		opts.Snapshots = repositories.NewSnapshotRepository(db)
	}

	store := session.NewStore(storage, logger)
	if err := store.Load(); err != nil {
		logger.Warn("failed to restore session", "error", err)
	}

	opts.Store = store
	opts.Auth = newAuthorizer(config, store, opts.HTTPClient, logger)
	opts.Spotify = services.NewSpotifyClient(store, services.Options{
		BaseURL:           config.API.BaseURL,
		HTTPClient:        opts.HTTPClient,
		Logger:            logger,
		RequestsPerSecond: config.API.RequestsPerSecond,
	})
}

func newAuthorizer(config *shared.Config, store *session.Store, client *http.Client, logger *log.Logger) *auth.Authorizer {
	a := auth.NewAuthorizer(config.Credentials.Spotify, store, auth.Options{
		AccountsURL: config.API.AccountsURL,
		HTTPClient:  client,
		Logger:      logger,
	})
	a.SetRefreshCallback(func(s session.Session) {
		logger.Debug("session refreshed", "expires_at", s.ExpiresAt)
	})
	return a
}
