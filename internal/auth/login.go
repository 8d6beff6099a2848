package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/spotistats/internal/server"
	"github.com/desertthunder/spotistats/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultLoginTimeout bounds how long [Authorizer.Login] waits for the browser redirect.
const DefaultLoginTimeout = 2 * time.Minute

// LoginOpts configures [Authorizer.Login].
type LoginOpts struct {
	Output      io.Writer              // progress messages; discarded when nil
	OpenBrowser func(url string) error // defaults to [shared.OpenBrowser]
	Timeout     time.Duration          // defaults to [DefaultLoginTimeout]
	Listener    net.Listener           // callback listener; by default one is opened on the redirect URI's host
}

// Login runs the interactive flow: it serves the redirect URI locally, opens the authorization page
// and waits for the callback, exchanging the code for tokens.
func (a *Authorizer) Login(ctx context.Context, opts LoginOpts) error {
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLoginTimeout
	}

	if err := (shared.SpotifyConfig{ClientID: a.config.ClientID, RedirectURI: a.config.RedirectURL}).Validate(); err != nil {
		return err
	}
	redirect, err := url.Parse(a.config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, a.config.RedirectURL)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	ln := opts.Listener
	if ln == nil {
		if ln, err = net.Listen("tcp", redirect.Host); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
		}
	}

	handler := server.NewOAuthHandler(func(ctx context.Context, code string) (*oauth2.Token, error) {
		return a.exchange(ctx, code, verifier)
	}, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.Recoverer())
	router.Handler(handler)

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	serveCtx, stopServer := context.WithCancel(context.Background())
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.ServeListener(serveCtx, ln, router, a.logger)
	}()
	defer func() {
		stopServer()
		<-serverErrors
	}()

	authURL := a.AuthURL(state, verifier)
	fmt.Fprintf(opts.Output, "→ Opening browser for Spotify authorization...\n")
	if err := opts.OpenBrowser(authURL); err != nil {
		a.logger.Warn("failed to open browser automatically", "err", err)
		fmt.Fprintf(opts.Output, "\n⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", authURL)
	}
	fmt.Fprintf(opts.Output, "→ Waiting for authorization (%s timeout)...\n", opts.Timeout)

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			a.Fail(err)
			if errors.Is(err, shared.ErrAuthFailed) {
				return err
			}
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		return nil
	case err := <-serverErrors:
		// ServeListener only returns early on a listener failure; put a value back for the deferred receive.
		serverErrors <- err
		return fmt.Errorf("callback server error: %w", err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, opts.Timeout)
		}
		return ctx.Err()
	}
}
