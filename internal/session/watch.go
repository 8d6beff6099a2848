package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store whenever the database file at path (or its WAL/journal) is written,
// so a login in another process is picked up. It blocks until ctx is done.
func Watch(ctx context.Context, store *Store, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	// Watch the directory: sqlite replaces journal files, which drops per-file watches.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger := shared.WithLogger(store.logger, "path", abs)
	logger.Debug("watching session storage")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, abs) {
				continue
			}
			if err := store.Load(); err != nil {
				logger.Warn("failed to reload session", "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "err", err)
		}
	}
}

func relevant(event fsnotify.Event, path string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == path || strings.HasPrefix(name, path+"-")
}
