package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "snapshots")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without sequence")
	}
}

func TestSettingsRepository(t *testing.T) {
	t.Run("Get missing key", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))

		_, err := repo.Get("spotify.refresh_token")
		if !errors.Is(err, shared.ErrSettingNotFound) {
			t.Fatalf("expected ErrSettingNotFound, got %v", err)
		}
	})

	t.Run("Set And Get", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))

		if err := repo.Set("spotify.refresh_token", "first"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if err := repo.Set("spotify.refresh_token", "second"); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}

		value, err := repo.Get("spotify.refresh_token")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if value != "second" {
			t.Errorf("expected second, got %s", value)
		}
	})

	t.Run("UpdatedAt", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))
		fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return fixed }

		if err := repo.Set("k", "v"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}

		updatedAt, err := repo.UpdatedAt("k")
		if err != nil {
			t.Fatalf("failed to get updated_at: %v", err)
		}
		if !updatedAt.Equal(fixed) {
			t.Errorf("expected %v, got %v", fixed, updatedAt)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))

		if err := repo.Set("k", "v"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if err := repo.Delete("k"); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get("k"); !errors.Is(err, shared.ErrSettingNotFound) {
			t.Errorf("expected ErrSettingNotFound after delete, got %v", err)
		}
		if err := repo.Delete("k"); err != nil {
			t.Errorf("deleting a missing key should not fail: %v", err)
		}
	})
}

func TestSnapshotRepository(t *testing.T) {
	items := []models.RankedItem{
		{Rank: 1, ID: "a", Name: "Artist A", Popularity: 80},
		{Rank: 2, ID: "b", Name: "Artist B", Popularity: 60},
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Create And Get", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		snapshot := models.NewSnapshot(models.ArtistType, models.ShortTerm, base, items)

		if err := repo.Create(snapshot); err != nil {
			t.Fatalf("failed to create snapshot: %v", err)
		}
		if snapshot.ID() == "" {
			t.Fatal("snapshot ID should be set after creation")
		}

		got, err := repo.Get(snapshot.ID())
		if err != nil {
			t.Fatalf("failed to get snapshot: %v", err)
		}
		if got.Kind() != models.ArtistType || got.TimeRange() != models.ShortTerm {
			t.Errorf("unexpected kind/range %s/%s", got.Kind(), got.TimeRange())
		}
		if len(got.Items()) != 2 || got.Items()[1].Name != "Artist B" {
			t.Errorf("items not preserved: %+v", got.Items())
		}
		if !got.TakenAt().Equal(base) {
			t.Errorf("expected taken_at %v, got %v", base, got.TakenAt())
		}
	})

	t.Run("Create invalid", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		snapshot := models.NewSnapshot(models.ArtistType, "forever", base, items)

		if err := repo.Create(snapshot); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Latest", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))

		older := models.NewSnapshot(models.TrackType, models.LongTerm, base, items[:1])
		newer := models.NewSnapshot(models.TrackType, models.LongTerm, base.Add(time.Hour), items)
		other := models.NewSnapshot(models.ArtistType, models.LongTerm, base.Add(2*time.Hour), items)

		for _, s := range []*models.Snapshot{older, newer, other} {
			if err := repo.Create(s); err != nil {
				t.Fatalf("failed to create snapshot: %v", err)
			}
		}

		latest, err := repo.Latest(models.TrackType, models.LongTerm)
		if err != nil {
			t.Fatalf("failed to get latest: %v", err)
		}
		if latest.ID() != newer.ID() {
			t.Errorf("expected newest track snapshot %s, got %s", newer.ID(), latest.ID())
		}

		if _, err := repo.Latest(models.ArtistType, models.ShortTerm); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))

		for i, r := range models.TimeRanges {
			s := models.NewSnapshot(models.ArtistType, r, base.Add(time.Duration(i)*time.Minute), items)
			if err := repo.Create(s); err != nil {
				t.Fatalf("failed to create snapshot: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 snapshots, got %d", len(all))
		}
		if all[0].TimeRange() != models.LongTerm {
			t.Errorf("expected newest first, got %s", all[0].TimeRange())
		}

		filtered, err := repo.List(map[string]any{"time_range": "medium_term"})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(filtered) != 1 {
			t.Errorf("expected 1 medium_term snapshot, got %d", len(filtered))
		}

		limited, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 snapshots, got %d", len(limited))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewSnapshotRepository(setupTestDB(t))
		snapshot := models.NewSnapshot(models.ArtistType, models.ShortTerm, base, items)
		if err := repo.Create(snapshot); err != nil {
			t.Fatalf("failed to create snapshot: %v", err)
		}

		if err := repo.Delete(snapshot.ID()); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(snapshot.ID()); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound after delete, got %v", err)
		}
		if err := repo.Delete(snapshot.ID()); !errors.Is(err, shared.ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound on second delete, got %v", err)
		}
	})
}
