package tasks

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/repositories"
	"github.com/desertthunder/spotistats/internal/shared"
	tu "github.com/desertthunder/spotistats/internal/testing"
)

func newSnapshotRepo(t *testing.T) *repositories.SnapshotRepository {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return repositories.NewSnapshotRepository(db)
}

func newTestEngine(t *testing.T, svc *tu.MockSpotify, withStore bool) *Engine {
	t.Helper()
	var store SnapshotStore
	if withStore {
		store = newSnapshotRepo(t)
	}
	return NewEngine(svc, store, shared.NewLogger(io.Discard))
}

func sampleSpotify() *tu.MockSpotify {
	return &tu.MockSpotify{
		Artists: []models.Artist{
			{ID: "a1", Name: "First", Popularity: 90},
			{ID: "a2", Name: "Second", Popularity: 71},
			{ID: "a3", Name: "Third", Popularity: 50},
		},
		Tracks: []models.Track{
			{ID: "t1", Name: "Song", Popularity: 40, Artists: []models.Artist{{Name: "First"}}},
		},
		DeviceList: []models.Device{
			{ID: "d1", Name: "Phone"},
			{ID: "d2", Name: "Laptop"},
		},
	}
}

func TestPlayOnFirstDevice(t *testing.T) {
	t.Run("plays on first device", func(t *testing.T) {
		svc := sampleSpotify()

		result, err := PlayOnFirstDevice(context.Background(), svc, models.TrackType, "t1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Device.ID != "d1" {
			t.Errorf("expected first device d1, got %s", result.Device.ID)
		}
		if result.String() != "Music started playing on Phone" {
			t.Errorf("unexpected message %q", result.String())
		}
		if len(svc.Plays) != 1 || svc.Plays[0] != (tu.PlayCall{Kind: models.TrackType, ID: "t1", DeviceID: "d1"}) {
			t.Errorf("unexpected play calls %+v", svc.Plays)
		}
	})

	t.Run("no devices", func(t *testing.T) {
		svc := &tu.MockSpotify{}

		_, err := PlayOnFirstDevice(context.Background(), svc, models.ArtistType, "a1")
		if !errors.Is(err, shared.ErrNoDevices) {
			t.Fatalf("expected ErrNoDevices, got %v", err)
		}
		if err.Error() != "no devices available" {
			t.Errorf("unexpected message %q", err.Error())
		}
		if svc.Calls("Play") != 0 {
			t.Error("play should not be attempted without devices")
		}
	})

	t.Run("device error", func(t *testing.T) {
		svc := &tu.MockSpotify{Err: shared.ErrTokenExpired}
		if _, err := PlayOnFirstDevice(context.Background(), svc, models.ArtistType, "a1"); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})
}

func TestTopItems(t *testing.T) {
	svc := sampleSpotify()

	t.Run("artists", func(t *testing.T) {
		result, err := TopItems(context.Background(), svc, models.ArtistType, models.LongTerm, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Artists) != 3 || result.Tracks != nil {
			t.Errorf("unexpected result %+v", result)
		}
		if result.AveragePopularity != 70 {
			t.Errorf("expected integer average 70, got %d", result.AveragePopularity)
		}
	})

	t.Run("tracks", func(t *testing.T) {
		result, err := TopItems(context.Background(), svc, models.TrackType, models.ShortTerm, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ranked := result.Ranked()
		if len(ranked) != 1 || ranked[0].Name != "Song - First" {
			t.Errorf("unexpected ranked items %+v", ranked)
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		if _, err := TopItems(context.Background(), svc, "album", models.ShortTerm, 10); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestPlaylistDetail(t *testing.T) {
	svc := &tu.MockSpotify{
		PlaylistList: []models.Playlist{{ID: "p1", Name: "Focus"}},
		PlaylistItems: map[string][]models.Track{
			"p1": {
				{ID: "1", Name: "Weightless", Artists: []models.Artist{{Name: "Marconi Union"}}},
				{ID: "2", Name: "Clair de Lune", Artists: []models.Artist{{Name: "Debussy"}}},
			},
		},
	}

	view, err := PlaylistDetail(context.Background(), svc, "p1", "DEBUSSY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Export.Playlist.Name != "Focus" {
		t.Errorf("expected playlist metadata, got %+v", view.Export.Playlist)
	}
	if len(view.Matches) != 1 || view.Matches[0].ID != "2" {
		t.Errorf("unexpected filtered tracks %+v", view.Matches)
	}
	if len(view.Export.Tracks) != 2 {
		t.Errorf("expected the full listing to be kept, got %d tracks", len(view.Export.Tracks))
	}
	if filtered := view.Filtered(); filtered.Playlist.ID != "p1" || len(filtered.Tracks) != 1 {
		t.Errorf("unexpected filtered export %+v", filtered)
	}
}

func TestCompareRanks(t *testing.T) {
	prev := []models.RankedItem{
		{Rank: 1, ID: "a"},
		{Rank: 2, ID: "b"},
		{Rank: 3, ID: "c"},
	}
	curr := []models.RankedItem{
		{Rank: 1, ID: "c"},
		{Rank: 2, ID: "b"},
		{Rank: 3, ID: "d"},
		{Rank: 4, ID: ""},
	}

	changes := CompareRanks(prev, curr)

	tests := []struct {
		id    string
		label string
		new   bool
	}{
		{"c", "+2", false},
		{"b", "=", false},
		{"d", "new", true},
		{"", "new", true},
	}

	if len(changes) != len(tests) {
		t.Fatalf("expected %d changes, got %d", len(tests), len(changes))
	}
	for i, tt := range tests {
		if changes[i].ID != tt.id || changes[i].Label() != tt.label || changes[i].New != tt.new {
			t.Errorf("change %d: got %+v (%s), want id=%q label=%q new=%v", i, changes[i], changes[i].Label(), tt.id, tt.label, tt.new)
		}
	}

	if got := CompareRanks(nil, nil); len(got) != 0 {
		t.Errorf("expected no changes, got %v", got)
	}
}

func TestEngine(t *testing.T) {
	t.Run("Snapshot requires storage", func(t *testing.T) {
		engine := newTestEngine(t, sampleSpotify(), false)
		if _, err := engine.Snapshot(&TopResult{Kind: models.ArtistType, TimeRange: models.ShortTerm}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("SnapshotAll", func(t *testing.T) {
		engine := newTestEngine(t, sampleSpotify(), true)
		progress := make(chan ProgressUpdate, 32)

		saved, err := engine.SnapshotAll(context.Background(), progress, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(saved) != 6 {
			t.Fatalf("expected 6 snapshots, got %d", len(saved))
		}

		close(progress)
		var fetches, saves int
		for update := range progress {
			switch update.Phase {
			case FetchTop:
				fetches++
			case SaveSnapshot:
				saves++
			}
		}
		if fetches != 6 || saves != 6 {
			t.Errorf("expected 6 fetch and 6 save updates, got %d and %d", fetches, saves)
		}

		history, err := engine.History(models.ArtistType, models.MediumTerm, 0)
		if err != nil {
			t.Fatalf("failed to list history: %v", err)
		}
		if len(history) != 1 || len(history[0].Items()) != 3 {
			t.Errorf("unexpected history %+v", history)
		}
	})

	t.Run("SnapshotAll stops on auth error", func(t *testing.T) {
		svc := sampleSpotify()
		svc.Err = shared.ErrTokenExpired
		engine := newTestEngine(t, svc, true)

		saved, err := engine.SnapshotAll(context.Background(), nil, 10)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if len(saved) != 0 {
			t.Errorf("expected no snapshots, got %d", len(saved))
		}
		if svc.Calls("TopArtists") != 1 {
			t.Errorf("expected a single attempt, got %d", svc.Calls("TopArtists"))
		}
	})

	t.Run("Compare", func(t *testing.T) {
		svc := sampleSpotify()
		engine := newTestEngine(t, svc, true)
		engine.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

		first, _, err := engine.Compare(context.Background(), models.ArtistType, models.ShortTerm, 10, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.Since != nil {
			t.Error("first comparison should have no baseline")
		}
		for _, c := range first.Changes {
			if !c.New {
				t.Errorf("expected every item new, got %+v", c)
			}
		}

		svc.Artists = []models.Artist{svc.Artists[2], svc.Artists[0], {ID: "a4", Name: "Fourth"}}
		engine.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }

		second, current, err := engine.Compare(context.Background(), models.ArtistType, models.ShortTerm, 10, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.Since == nil || !second.Since.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("expected baseline from first snapshot, got %v", second.Since)
		}
		if labels := []string{second.Changes[0].Label(), second.Changes[1].Label(), second.Changes[2].Label()}; labels[0] != "+2" || labels[1] != "-1" || labels[2] != "new" {
			t.Errorf("unexpected labels %v", labels)
		}
		if len(current.Artists) != 3 {
			t.Errorf("expected current listing, got %+v", current)
		}
	})

	t.Run("progress never blocks", func(t *testing.T) {
		engine := newTestEngine(t, sampleSpotify(), true)
		progress := make(chan ProgressUpdate)

		done := make(chan error, 1)
		go func() {
			_, err := engine.SnapshotAll(context.Background(), progress, 5)
			done <- err
		}()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("SnapshotAll blocked on an unread progress channel")
		}
	})
}

func TestPhaseString(t *testing.T) {
	for phase, want := range map[Phase]string{FetchTop: "fetch_top", SaveSnapshot: "save_snapshot", FetchPlaylists: "fetch_playlists", ExportPlaylist: "export_playlist", Phase(99): ""} {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}
