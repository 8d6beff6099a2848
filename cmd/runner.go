package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotistats/internal/auth"
	"github.com/desertthunder/spotistats/internal/formatter"
	"github.com/desertthunder/spotistats/internal/services"
	"github.com/desertthunder/spotistats/internal/session"
	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/desertthunder/spotistats/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Authenticator obtains and renews Spotify tokens. Implemented by [auth.Authorizer].
type Authenticator interface {
	Login(ctx context.Context, opts auth.LoginOpts) error
	Refresh(ctx context.Context) error
	Logout() error
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	store      *session.Store
	auth       Authenticator
	spotify    services.Spotify
	engine     *tasks.Engine
	db         *sql.DB
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      *session.Store
	Auth       Authenticator
	Spotify    services.Spotify
	Snapshots  tasks.SnapshotStore
	DB         *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Store == nil {
		opts.Store = session.NewStore(nil, opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		store:      opts.Store,
		auth:       opts.Auth,
		spotify:    opts.Spotify,
		engine:     tasks.NewEngine(opts.Spotify, opts.Snapshots, opts.Logger),
		db:         opts.DB,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, meCommand, topCommand, devicesCommand, playCommand,
		playlistsCommand, playlistCommand, snapshotCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) requireSpotify() error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// withRefresh runs fn and, when it fails for lack of a usable access token while a refresh token is held,
// refreshes once and runs fn again.
func (r *Runner) withRefresh(ctx context.Context, fn func() error) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	err := fn()
	if !services.IsAuthError(err) {
		return err
	}

	if !r.store.Session().Authenticated() || r.auth == nil {
		r.writePlainln("%s", formatter.Styles.Warn.Render("⚠ Not logged in. Run 'spotistats auth login' first."))
		return err
	}

	r.logger.Info("access token unusable, refreshing", "err", err)
	if refreshErr := r.auth.Refresh(ctx); refreshErr != nil {
		r.writePlainln("%s", formatter.Styles.Err.Render("✗ Could not refresh the session."))
		r.writePlain("Run 'spotistats auth login' to authorize again.\n")
		return fmt.Errorf("refresh after %v: %w", err, refreshErr)
	}

	return fn()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", formatter.Styles.Title.Render(title))
	r.writePlain("═══════════════════════════════════════\n")
}
