// Package session holds the user's OAuth credential state.
//
// Only the refresh token is persisted; access tokens live in memory until they expire or the process exits.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotistats/internal/shared"
)

// RefreshTokenKey is the settings key the refresh token is stored under.
const RefreshTokenKey = "spotify.refresh_token"

// Storage is a durable string key-value store.
//
// Get returns an error wrapping [shared.ErrSettingNotFound] for missing keys.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Session is a snapshot of the current credentials.
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
}

// Valid reports whether the access token can be used at now.
func (s Session) Valid(now time.Time) bool {
	return s.AccessToken != "" && !s.ExpiresAt.IsZero() && now.Before(s.ExpiresAt)
}

// Authenticated reports whether a refresh token is held, i.e. whether a new access token can be obtained without the browser.
func (s Session) Authenticated() bool {
	return s.RefreshToken != ""
}

// Store guards a [Session] and mirrors its refresh token to [Storage].
type Store struct {
	mu          sync.RWMutex
	session     Session
	storage     Storage
	logger      *log.Logger
	subscribers map[int]func(Session)
	nextID      int
}

// NewStore creates an empty store. Call [Store.Load] to restore the persisted refresh token.
func NewStore(storage Storage, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{
		storage:     storage,
		logger:      shared.WithLogger(logger, "component", "session"),
		subscribers: make(map[int]func(Session)),
	}
}

// Session returns a copy of the current state.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SetTokens replaces the access token and expiry and persists the refresh token.
//
// An empty refresh token keeps the current one: the token endpoint may omit it on refresh.
func (s *Store) SetTokens(access, refresh string, expiresAt time.Time) error {
	s.mu.Lock()
	s.session.AccessToken = access
	s.session.ExpiresAt = expiresAt
	if refresh != "" {
		s.session.RefreshToken = refresh
	}
	err := s.saveLocked()
	current := s.session
	s.mu.Unlock()

	s.notify(current)
	return err
}

// Clear drops every token and removes the persisted refresh token.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.session = Session{}
	var err error
	if s.storage != nil {
		if err = s.storage.Delete(RefreshTokenKey); err != nil {
			s.logger.Error("failed to delete refresh token", "err", err)
		}
	}
	s.mu.Unlock()

	s.notify(Session{})
	return err
}

// Load restores the refresh token from storage.
//
// A missing token is not an error: the store stays unauthenticated and a single line is logged.
func (s *Store) Load() error {
	if s.storage == nil {
		return nil
	}

	token, err := s.storage.Get(RefreshTokenKey)
	if errors.Is(err, shared.ErrSettingNotFound) {
		s.mu.Lock()
		held := s.session.RefreshToken != ""
		s.session = Session{}
		s.mu.Unlock()

		if held {
			s.logger.Info("stored refresh token removed, session cleared")
			s.notify(Session{})
		} else {
			s.logger.Info("no stored refresh token, starting unauthenticated")
		}
		return nil
	}
	if err != nil {
		s.logger.Error("failed to load refresh token", "err", err)
		return fmt.Errorf("failed to load session: %w", err)
	}

	// A rotated refresh token does not revoke the access token held in memory.
	s.mu.Lock()
	changed := s.session.RefreshToken != token
	if changed {
		s.session.RefreshToken = token
	}
	current := s.session
	s.mu.Unlock()

	if changed {
		s.logger.Debug("loaded refresh token")
		s.notify(current)
	}
	return nil
}

// timestamped is implemented by storage that records when a key was written.
type timestamped interface {
	UpdatedAt(key string) (time.Time, error)
}

// StoredAt returns when the refresh token was last persisted.
// ok is false when nothing is stored or the storage does not record write times.
func (s *Store) StoredAt() (at time.Time, ok bool) {
	ts, isTimestamped := s.storage.(timestamped)
	if !isTimestamped {
		return time.Time{}, false
	}

	at, err := ts.UpdatedAt(RefreshTokenKey)
	if err != nil {
		if !errors.Is(err, shared.ErrSettingNotFound) {
			s.logger.Warn("failed to read refresh token timestamp", "err", err)
		}
		return time.Time{}, false
	}
	return at, true
}

// Save persists the current refresh token. An empty token removes the stored value.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.storage == nil {
		return nil
	}

	var err error
	if s.session.RefreshToken == "" {
		err = s.storage.Delete(RefreshTokenKey)
	} else {
		err = s.storage.Set(RefreshTokenKey, s.session.RefreshToken)
	}
	if err != nil {
		s.logger.Error("failed to persist refresh token", "err", err)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Subscribe registers fn to be called with the new state after every change.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// notify runs outside the lock so subscribers may read the store.
func (s *Store) notify(current Session) {
	s.mu.RLock()
	fns := make([]func(Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(current)
	}
}
