package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/fsnotify/fsnotify"
)

type memoryStorage struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{values: make(map[string]string)}
}

func (m *memoryStorage) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", shared.ErrSettingNotFound, key)
	}
	return v, nil
}

func (m *memoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *memoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type timestampedStorage struct {
	*memoryStorage
	at time.Time
}

func (s *timestampedStorage) UpdatedAt(key string) (time.Time, error) {
	if _, err := s.Get(key); err != nil {
		return time.Time{}, err
	}
	return s.at, nil
}

func newTestStore(storage Storage) *Store {
	return NewStore(storage, shared.NewLogger(io.Discard))
}

func TestSession(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session Session
		valid   bool
	}{
		{"empty", Session{}, false},
		{"no expiry", Session{AccessToken: "a"}, false},
		{"expired", Session{AccessToken: "a", ExpiresAt: now.Add(-time.Second)}, false},
		{"expires now", Session{AccessToken: "a", ExpiresAt: now}, false},
		{"future expiry", Session{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, true},
		{"expiry without token", Session{ExpiresAt: now.Add(time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Valid(now); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestStore(t *testing.T) {
	t.Run("Load without stored token", func(t *testing.T) {
		store := newTestStore(newMemoryStorage())

		if err := store.Load(); err != nil {
			t.Fatalf("missing token should not be an error: %v", err)
		}
		if store.Session().Authenticated() {
			t.Error("store should stay unauthenticated")
		}
	})

	t.Run("Load restores refresh token only", func(t *testing.T) {
		storage := newMemoryStorage()
		storage.values[RefreshTokenKey] = "stored-refresh"
		store := newTestStore(storage)

		if err := store.Load(); err != nil {
			t.Fatalf("failed to load: %v", err)
		}

		s := store.Session()
		if s.RefreshToken != "stored-refresh" {
			t.Errorf("expected stored-refresh, got %q", s.RefreshToken)
		}
		if s.AccessToken != "" || !s.ExpiresAt.IsZero() {
			t.Errorf("access token and expiry should be empty after load: %+v", s)
		}
	})

	t.Run("Load clears the session when the stored token is gone", func(t *testing.T) {
		storage := newMemoryStorage()
		store := newTestStore(storage)
		if err := store.SetTokens("access", "refresh", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("failed to set tokens: %v", err)
		}

		var notified []Session
		store.Subscribe(func(s Session) { notified = append(notified, s) })

		storage.Delete(RefreshTokenKey)
		if err := store.Load(); err != nil {
			t.Fatalf("failed to load: %v", err)
		}

		if store.Session() != (Session{}) {
			t.Errorf("expected empty session, got %+v", store.Session())
		}
		if len(notified) != 1 || notified[0].Authenticated() {
			t.Errorf("expected one unauthenticated notification, got %+v", notified)
		}
	})

	t.Run("Load keeps the access token when the refresh token rotates", func(t *testing.T) {
		storage := newMemoryStorage()
		store := newTestStore(storage)
		expiry := time.Now().Add(time.Hour)
		if err := store.SetTokens("access", "refresh-1", expiry); err != nil {
			t.Fatalf("failed to set tokens: %v", err)
		}

		storage.Set(RefreshTokenKey, "refresh-2")
		if err := store.Load(); err != nil {
			t.Fatalf("failed to load: %v", err)
		}

		s := store.Session()
		if s.RefreshToken != "refresh-2" {
			t.Errorf("expected rotated refresh token, got %q", s.RefreshToken)
		}
		if s.AccessToken != "access" || !s.ExpiresAt.Equal(expiry) {
			t.Errorf("expected access token to survive rotation, got %+v", s)
		}
	})

	t.Run("StoredAt", func(t *testing.T) {
		written := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

		plain := newTestStore(newMemoryStorage())
		if _, ok := plain.StoredAt(); ok {
			t.Error("storage without timestamps should not report one")
		}

		storage := &timestampedStorage{memoryStorage: newMemoryStorage(), at: written}
		store := newTestStore(storage)
		if _, ok := store.StoredAt(); ok {
			t.Error("expected no timestamp before a token is stored")
		}

		store.SetTokens("", "refresh", time.Time{})
		if at, ok := store.StoredAt(); !ok || !at.Equal(written) {
			t.Errorf("StoredAt() = %v, %v; want %v", at, ok, written)
		}
	})

	t.Run("SetTokens persists only the refresh token", func(t *testing.T) {
		storage := newMemoryStorage()
		store := newTestStore(storage)
		expiry := time.Now().Add(time.Hour)

		if err := store.SetTokens("access", "refresh", expiry); err != nil {
			t.Fatalf("failed to set tokens: %v", err)
		}

		if len(storage.values) != 1 || storage.values[RefreshTokenKey] != "refresh" {
			t.Errorf("unexpected persisted values: %v", storage.values)
		}
		if !store.Session().Valid(time.Now()) {
			t.Error("session should be valid")
		}
	})

	t.Run("SetTokens keeps refresh token when omitted", func(t *testing.T) {
		store := newTestStore(newMemoryStorage())
		_ = store.SetTokens("a1", "r1", time.Now().Add(time.Hour))
		_ = store.SetTokens("a2", "", time.Now().Add(time.Hour))

		s := store.Session()
		if s.AccessToken != "a2" || s.RefreshToken != "r1" {
			t.Errorf("unexpected session %+v", s)
		}
	})

	t.Run("SetTokens storage failure", func(t *testing.T) {
		storage := newMemoryStorage()
		storage.setErr = errors.New("disk full")
		store := newTestStore(storage)

		if err := store.SetTokens("a", "r", time.Now().Add(time.Hour)); err == nil {
			t.Fatal("expected storage error")
		}
		if store.Session().AccessToken != "a" {
			t.Error("in-memory session should still be updated")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		storage := newMemoryStorage()
		store := newTestStore(storage)
		_ = store.SetTokens("a", "r", time.Now().Add(time.Hour))

		if err := store.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if store.Session() != (Session{}) {
			t.Errorf("expected empty session, got %+v", store.Session())
		}
		if _, ok := storage.values[RefreshTokenKey]; ok {
			t.Error("refresh token should be deleted from storage")
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		store := newTestStore(newMemoryStorage())

		var got []Session
		unsubscribe := store.Subscribe(func(s Session) { got = append(got, s) })

		_ = store.SetTokens("a", "r", time.Now().Add(time.Hour))
		_ = store.Clear()
		unsubscribe()
		_ = store.SetTokens("b", "r", time.Now().Add(time.Hour))

		if len(got) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(got))
		}
		if got[0].AccessToken != "a" || got[1].AccessToken != "" {
			t.Errorf("unexpected notifications %+v", got)
		}
	})

	t.Run("subscriber may read the store", func(t *testing.T) {
		store := newTestStore(newMemoryStorage())
		done := make(chan string, 1)
		store.Subscribe(func(Session) { done <- store.Session().AccessToken })

		_ = store.SetTokens("a", "r", time.Now().Add(time.Hour))
		if token := <-done; token != "a" {
			t.Errorf("expected a, got %s", token)
		}
	})

	t.Run("nil storage", func(t *testing.T) {
		store := NewStore(nil, nil)
		if err := store.Load(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := store.SetTokens("a", "r", time.Now()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "spotistats.db")
	if err := os.WriteFile(dbPath, nil, 0644); err != nil {
		t.Fatal(err)
	}

	storage := newMemoryStorage()
	store := newTestStore(storage)

	reloaded := make(chan string, 4)
	store.Subscribe(func(s Session) { reloaded <- s.RefreshToken })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Watch(ctx, store, dbPath) }()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)

	_ = storage.Set(RefreshTokenKey, "from-other-process")
	if err := os.WriteFile(dbPath, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case token := <-reloaded:
		if token != "from-other-process" {
			t.Errorf("expected reloaded token, got %q", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("store was not reloaded after write")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}

func TestRelevant(t *testing.T) {
	path := "/data/spotistats.db"

	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: path, Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: path + "-wal", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: path + "-journal", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: path, Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/data/other.db", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		if got := relevant(tt.event, path); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}
