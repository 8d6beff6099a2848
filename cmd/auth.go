package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotistats/internal/auth"
	"github.com/desertthunder/spotistats/internal/formatter"
	"github.com/desertthunder/spotistats/internal/server"
	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) requireAuth() error {
	if r.auth == nil {
		return fmt.Errorf("%w: authorization not configured", shared.ErrServiceUnavailable)
	}
	return nil
}

// AuthLogin runs the browser authorization flow.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	if err := r.auth.Login(ctx, auth.LoginOpts{Output: r.output, Timeout: cmd.Duration("timeout")}); err != nil {
		return err
	}

	r.writePlainln("%s", formatter.Styles.OK.Render("✓ Authorization successful"))
	r.writePlain("You can now use: spotistats top artists\n")
	return nil
}

// AuthRefresh trades the stored refresh token for a new access token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}

	if err := r.auth.Refresh(ctx); err != nil {
		return err
	}

	expiresAt := r.store.Session().ExpiresAt
	return r.writePlain("✓ Access token refreshed, valid until %s\n", expiresAt.Local().Format(time.Kitchen))
}

// AuthStatus reports whether a refresh token is stored and whether the access token is usable.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	s := r.store.Session()
	status := server.StatusOf(r.store, time.Now())

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	if !status.Authenticated {
		r.writePlain("%s\n", formatter.Styles.Warn.Render("✗ Not authenticated"))
		return r.writePlain("Run 'spotistats auth login' to connect your Spotify account.\n")
	}

	r.writePlain("%s\n", formatter.Styles.OK.Render("✓ Authenticated"))
	if status.StoredAt != nil {
		r.writePlain("Authorized:   %s\n", status.StoredAt.Local().Format(time.RFC1123))
	}
	switch {
	case status.Valid:
		r.writePlain("Access token: valid until %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
	case status.ExpiresAt != nil:
		r.writePlain("Access token: expired at %s (refreshed on next request)\n", s.ExpiresAt.Local().Format(time.RFC1123))
	default:
		r.writePlain("Access token: none yet (obtained on next request)\n")
	}
	return nil
}

// AuthLogout forgets the stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAuth(); err != nil {
		return err
	}
	if err := r.auth.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}
