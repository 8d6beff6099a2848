// package tasks implements the playback, statistics and export operations built on the Web API client.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/services"
	"github.com/desertthunder/spotistats/internal/shared"
)

// SnapshotStore persists snapshots. Implemented by repositories.SnapshotRepository.
type SnapshotStore interface {
	Create(snapshot *models.Snapshot) error
	Latest(kind models.MusicType, timeRange models.TimeRange) (*models.Snapshot, error)
	List(criteria map[string]any) ([]*models.Snapshot, error)
}

// TopResult holds one top-items listing. Exactly one of Artists and Tracks is set, according to Kind.
type TopResult struct {
	Kind              models.MusicType `json:"kind"`
	TimeRange         models.TimeRange `json:"time_range"`
	Artists           []models.Artist  `json:"artists,omitempty"`
	Tracks            []models.Track   `json:"tracks,omitempty"`
	AveragePopularity int              `json:"average_popularity"`
}

// Ranked converts the listing into ranked snapshot items.
func (r *TopResult) Ranked() []models.RankedItem {
	if r.Kind == models.ArtistType {
		return models.RankArtists(r.Artists)
	}
	return models.RankTracks(r.Tracks)
}

// PlayResult reports where playback started.
type PlayResult struct {
	Device models.Device    `json:"device"`
	Kind   models.MusicType `json:"type"`
	ID     string           `json:"id"`
}

func (r PlayResult) String() string {
	return fmt.Sprintf("Music started playing on %s", r.Device.Name)
}

// Comparison is the result of [Engine.Compare].
type Comparison struct {
	Kind      models.MusicType    `json:"kind"`
	TimeRange models.TimeRange    `json:"time_range"`
	Since     *time.Time          `json:"since,omitempty"` // nil when no earlier snapshot exists
	Changes   []models.RankChange `json:"changes"`
}

// PlayOnFirstDevice plays kind/id on the first device the user has available.
//
// Returns [shared.ErrNoDevices] when the device list is empty.
func PlayOnFirstDevice(ctx context.Context, svc services.Spotify, kind models.MusicType, id string) (*PlayResult, error) {
	devices, err := svc.Devices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, shared.ErrNoDevices
	}

	device := devices[0]
	if err := svc.Play(ctx, kind, id, device.ID); err != nil {
		return nil, err
	}
	return &PlayResult{Device: device, Kind: kind, ID: id}, nil
}

// TopItems fetches the user's top artists or tracks for timeRange.
func TopItems(ctx context.Context, svc services.Spotify, kind models.MusicType, timeRange models.TimeRange, limit int) (*TopResult, error) {
	result := &TopResult{Kind: kind, TimeRange: timeRange}

	switch kind {
	case models.ArtistType:
		artists, err := svc.TopArtists(ctx, timeRange, limit)
		if err != nil {
			return nil, err
		}
		result.Artists = artists
		result.AveragePopularity = models.AveragePopularity(artists, func(a models.Artist) int { return a.Popularity })
	case models.TrackType:
		tracks, err := svc.TopTracks(ctx, timeRange, limit)
		if err != nil {
			return nil, err
		}
		result.Tracks = tracks
		result.AveragePopularity = models.AveragePopularity(tracks, func(t models.Track) int { return t.Popularity })
	default:
		return nil, fmt.Errorf("%w: music type %q", shared.ErrInvalidArgument, kind)
	}

	return result, nil
}

// PlaylistView is a playlist detail: the full listing, which the header statistics describe,
// and the tracks matching a search.
type PlaylistView struct {
	Export  *models.PlaylistExport
	Query   string
	Matches []models.Track // every track when Query is empty
}

// Filtered returns the playlist with only the matching tracks.
func (v *PlaylistView) Filtered() *models.PlaylistExport {
	return &models.PlaylistExport{Playlist: v.Export.Playlist, Tracks: v.Matches}
}

// PlaylistDetail fetches a playlist's tracks and applies a search filter.
//
// Playlist metadata is looked up from the user's playlists; an unknown id still returns its tracks.
func PlaylistDetail(ctx context.Context, svc services.Spotify, playlistID, query string) (*PlaylistView, error) {
	tracks, err := svc.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	view := &PlaylistView{
		Export: &models.PlaylistExport{
			Playlist: models.Playlist{ID: playlistID, Name: playlistID},
			Tracks:   tracks,
		},
		Query:   query,
		Matches: models.FilterTracks(tracks, query),
	}

	playlists, err := svc.Playlists(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		if p.ID == playlistID {
			view.Export.Playlist = p
			break
		}
	}

	return view, nil
}

// Engine runs operations that need persistence or a worker pool.
type Engine struct {
	spotify   services.Spotify
	snapshots SnapshotStore
	logger    *log.Logger
	now       func() time.Time
}

// NewEngine creates a new Engine. snapshots may be nil when persistence is not needed.
func NewEngine(spotify services.Spotify, snapshots SnapshotStore, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		spotify:   spotify,
		snapshots: snapshots,
		logger:    shared.WithLogger(logger, "component", "tasks"),
		now:       time.Now,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *Engine) requireSnapshots() error {
	if e.snapshots == nil {
		return fmt.Errorf("%w: snapshot storage not configured", shared.ErrServiceUnavailable)
	}
	return nil
}

// Snapshot stores the given listing.
func (e *Engine) Snapshot(result *TopResult) (*models.Snapshot, error) {
	if err := e.requireSnapshots(); err != nil {
		return nil, err
	}

	snapshot := models.NewSnapshot(result.Kind, result.TimeRange, e.now(), result.Ranked())
	if err := e.snapshots.Create(snapshot); err != nil {
		e.logger.Error("failed to save snapshot", "kind", result.Kind, "range", result.TimeRange, "err", err)
		return nil, err
	}

	e.logger.Debug("saved snapshot", "id", snapshot.ID(), "kind", result.Kind, "range", result.TimeRange)
	return snapshot, nil
}

// SnapshotAll captures every music type for every time range.
//
// Failures are reported through progress and joined into the returned error; successful snapshots are kept.
// An authentication failure stops the run since every remaining request would fail the same way.
func (e *Engine) SnapshotAll(ctx context.Context, progress chan<- ProgressUpdate, limit int) ([]*models.Snapshot, error) {
	if err := e.requireSnapshots(); err != nil {
		return nil, err
	}

	total := len(models.MusicTypes) * len(models.TimeRanges)
	step := 0

	var saved []*models.Snapshot
	var errs []error

	for _, kind := range models.MusicTypes {
		for _, timeRange := range models.TimeRanges {
			step++
			e.sendProgress(progress, fetchTopUpdate(step, total, kind, timeRange))

			result, err := TopItems(ctx, e.spotify, kind, timeRange, limit)
			if err == nil {
				var snapshot *models.Snapshot
				if snapshot, err = e.Snapshot(result); err == nil {
					saved = append(saved, snapshot)
					e.sendProgress(progress, snapshotSavedUpdate(step, total, snapshot))
					continue
				}
			}

			e.sendProgress(progress, snapshotFailedUpdate(step, total, kind, timeRange, err))
			errs = append(errs, fmt.Errorf("%s %s: %w", kind, timeRange, err))

			if services.IsAuthError(err) || ctx.Err() != nil {
				return saved, errors.Join(errs...)
			}
		}
	}

	return saved, errors.Join(errs...)
}

// Compare fetches the current top items and compares them with the latest stored snapshot.
// With save set, the current listing is stored afterwards.
func (e *Engine) Compare(ctx context.Context, kind models.MusicType, timeRange models.TimeRange, limit int, save bool) (*Comparison, *TopResult, error) {
	if err := e.requireSnapshots(); err != nil {
		return nil, nil, err
	}

	current, err := TopItems(ctx, e.spotify, kind, timeRange, limit)
	if err != nil {
		return nil, nil, err
	}

	comparison := &Comparison{Kind: kind, TimeRange: timeRange}

	var previous []models.RankedItem
	latest, err := e.snapshots.Latest(kind, timeRange)
	switch {
	case err == nil:
		takenAt := latest.TakenAt()
		comparison.Since = &takenAt
		previous = latest.Items()
	case errors.Is(err, shared.ErrSnapshotNotFound):
		e.logger.Info("no earlier snapshot, every item is new", "kind", kind, "range", timeRange)
	default:
		return nil, nil, err
	}

	comparison.Changes = CompareRanks(previous, current.Ranked())

	if save {
		if _, err := e.Snapshot(current); err != nil {
			return comparison, current, err
		}
	}

	return comparison, current, nil
}

// History lists stored snapshots, newest first.
func (e *Engine) History(kind models.MusicType, timeRange models.TimeRange, limit int) ([]*models.Snapshot, error) {
	if err := e.requireSnapshots(); err != nil {
		return nil, err
	}
	return e.snapshots.List(map[string]any{
		"kind":       string(kind),
		"time_range": string(timeRange),
		"limit":      limit,
	})
}

// CompareRanks returns one change per current item, in current order.
// Items are matched by ID; items absent from prev are marked New.
func CompareRanks(prev, curr []models.RankedItem) []models.RankChange {
	previous := make(map[string]int, len(prev))
	for _, item := range prev {
		previous[item.ID] = item.Rank
	}

	changes := make([]models.RankChange, len(curr))
	for i, item := range curr {
		change := models.RankChange{RankedItem: item}
		if rank, ok := previous[item.ID]; ok && item.ID != "" {
			change.Previous = rank
		} else {
			change.New = true
		}
		changes[i] = change
	}
	return changes
}
