// Package auth implements the Spotify authorization code flow with PKCE and token refresh.
//
// Successful authorization and refresh update a [session.Store]; a failed authorization clears it.
// A failed refresh leaves the store untouched so the caller can decide whether to re-authorize.
// Neither operation retries.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotistats/internal/session"
	"github.com/desertthunder/spotistats/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/spotify"
)

// DefaultAccountsURL is the Spotify accounts service.
const DefaultAccountsURL = "https://accounts.spotify.com"

// DefaultScopes are requested when the config lists none.
var DefaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-top-read",
	"user-read-playback-state",
	"user-modify-playback-state",
	"playlist-read-private",
	"playlist-read-collaborative",
}

// Options configures an [Authorizer]. Zero values select defaults.
type Options struct {
	AccountsURL string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Now         func() time.Time
}

// Authorizer obtains and renews tokens for a [session.Store].
type Authorizer struct {
	config     *oauth2.Config
	store      *session.Store
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time

	mu        sync.Mutex
	onRefresh func(session.Session)
}

// NewAuthorizer creates an Authorizer for the given app credentials.
//
// Credentials are not validated here: [Authorizer.Refresh] reports a missing client id when it is needed.
func NewAuthorizer(cfg shared.SpotifyConfig, store *session.Store, opts Options) *Authorizer {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &Authorizer{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint(opts.AccountsURL),
		},
		store:      store,
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "component", "auth"),
		now:        opts.Now,
	}
}

// endpoint returns the Spotify endpoint, or one rooted at accountsURL when it is overridden.
//
// Credentials always travel in the form body so a client without a secret can refresh.
// A fixed style also keeps the token endpoint to a single request.
func endpoint(accountsURL string) oauth2.Endpoint {
	ep := spotify.Endpoint
	if base := strings.TrimRight(accountsURL, "/"); base != "" && base != DefaultAccountsURL {
		ep = oauth2.Endpoint{AuthURL: base + "/authorize", TokenURL: base + "/api/token"}
	}
	ep.AuthStyle = oauth2.AuthStyleInParams
	return ep
}

// SetRefreshCallback registers fn to run after each successful refresh.
func (a *Authorizer) SetRefreshCallback(fn func(session.Session)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onRefresh = fn
}

// AuthURL returns the authorization URL for state with a S256 challenge derived from verifier.
func (a *Authorizer) AuthURL(state, verifier string) string {
	return a.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for tokens and stores them.
//
// On failure the session is cleared and the error wraps [shared.ErrAuthFailed].
func (a *Authorizer) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := a.exchange(ctx, code, verifier)
	if err != nil {
		a.Fail(err)
		return nil, err
	}
	return token, nil
}

func (a *Authorizer) exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(a.context(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		a.logRetrieveError("code exchange failed", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	if err := a.store.SetTokens(token.AccessToken, token.RefreshToken, a.expiry(token)); err != nil {
		return nil, err
	}

	a.logger.Info("authorized", "expires_at", token.Expiry)
	return token, nil
}

// Fail records an authorization failure: the error is logged and the session cleared.
func (a *Authorizer) Fail(err error) {
	a.logger.Error("authorization failed", "err", err)
	if clearErr := a.store.Clear(); clearErr != nil {
		a.logger.Error("failed to clear session", "err", clearErr)
	}
}

// Logout forgets every token.
func (a *Authorizer) Logout() error {
	a.logger.Info("logging out")
	return a.store.Clear()
}

// Refresh trades the stored refresh token for a new access token with a single POST.
//
// Without a refresh token or client id nothing is sent. On failure the response is logged,
// the session is left as it was and the returned error wraps [shared.ErrRefreshFailed].
func (a *Authorizer) Refresh(ctx context.Context) error {
	current := a.store.Session()
	if current.RefreshToken == "" {
		a.logger.Warn("cannot refresh without a refresh token")
		return shared.ErrNoRefreshToken
	}
	if a.config.ClientID == "" {
		a.logger.Warn("cannot refresh without a client id")
		return fmt.Errorf("%w: spotify client_id must be set", shared.ErrMissingCredentials)
	}

	src := a.config.TokenSource(a.context(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	token, err := src.Token()
	if err != nil {
		a.logRetrieveError("token refresh failed", err)
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if err := a.store.SetTokens(token.AccessToken, token.RefreshToken, a.expiry(token)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	a.logger.Info("refreshed access token", "expires_at", token.Expiry)

	a.mu.Lock()
	fn := a.onRefresh
	a.mu.Unlock()
	if fn != nil {
		fn(a.store.Session())
	}
	return nil
}

// context attaches the configured HTTP client for the oauth2 package.
func (a *Authorizer) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *Authorizer) expiry(token *oauth2.Token) time.Time {
	if !token.Expiry.IsZero() {
		return token.Expiry
	}
	if token.ExpiresIn > 0 {
		return a.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

func (a *Authorizer) logRetrieveError(msg string, err error) {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		a.logger.Error(msg, "status", rErr.Response.StatusCode, "error_code", rErr.ErrorCode, "body", string(rErr.Body))
		return
	}
	a.logger.Error(msg, "err", err)
}
