package main

import (
	"context"

	"github.com/desertthunder/spotistats/internal/server"
	"github.com/desertthunder/spotistats/internal/session"
	"github.com/urfave/cli/v3"
)

// Serve runs the local JSON API until interrupted.
//
// When the session is backed by a database file, its changes (e.g. 'auth login' from another shell) are picked up.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	opts := server.APIOpts{Spotify: r.spotify, Store: r.store, Logger: r.logger}
	if r.auth != nil {
		opts.Refresh = r.auth.Refresh
	}

	router := server.NewBasicRouter()
	router.Use(server.Recoverer(), server.RequestLogger(r.logger))
	server.NewAPIHandler(opts).Register(router)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if path := r.config.Database.Path; r.db != nil && path != "" && path != ":memory:" {
		go func() {
			if err := session.Watch(ctx, r.store, path); err != nil {
				r.logger.Warn("session watcher stopped", "err", err)
			}
		}()
	}

	r.writePlain("→ Serving the API on http://%s\n", addr)
	return server.Serve(ctx, addr, router, r.logger)
}
