package testing

import (
	"context"
	"sync"

	"github.com/desertthunder/spotistats/internal/models"
)

// PlayCall records the arguments of a [MockSpotify.Play] call.
type PlayCall struct {
	Kind     models.MusicType
	ID       string
	DeviceID string
}

// MockSpotify is a test double for services.Spotify.
//
// Each method returns the matching field, or Err when set.
type MockSpotify struct {
	mu sync.Mutex

	Artists       []models.Artist
	Tracks        []models.Track
	DeviceList    []models.Device
	User          *models.User
	PlaylistList  []models.Playlist
	PlaylistItems map[string][]models.Track

	Err      error
	PlayErr  error
	Plays    []PlayCall
	Requests map[string]int
}

func (m *MockSpotify) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Requests == nil {
		m.Requests = make(map[string]int)
	}
	m.Requests[name]++
	return m.Err
}

// Calls returns how many times the named method was invoked.
func (m *MockSpotify) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Requests[name]
}

func (m *MockSpotify) TopArtists(ctx context.Context, timeRange models.TimeRange, limit int) ([]models.Artist, error) {
	if err := m.record("TopArtists"); err != nil {
		return nil, err
	}
	return truncate(m.Artists, limit), nil
}

func (m *MockSpotify) TopTracks(ctx context.Context, timeRange models.TimeRange, limit int) ([]models.Track, error) {
	if err := m.record("TopTracks"); err != nil {
		return nil, err
	}
	return truncate(m.Tracks, limit), nil
}

func (m *MockSpotify) Devices(ctx context.Context) ([]models.Device, error) {
	if err := m.record("Devices"); err != nil {
		return nil, err
	}
	return m.DeviceList, nil
}

func (m *MockSpotify) Play(ctx context.Context, kind models.MusicType, id, deviceID string) error {
	if err := m.record("Play"); err != nil {
		return err
	}
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.mu.Lock()
	m.Plays = append(m.Plays, PlayCall{Kind: kind, ID: id, DeviceID: deviceID})
	m.mu.Unlock()
	return nil
}

func (m *MockSpotify) UserProfile(ctx context.Context) (*models.User, error) {
	if err := m.record("UserProfile"); err != nil {
		return nil, err
	}
	return m.User, nil
}

func (m *MockSpotify) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if err := m.record("Playlists"); err != nil {
		return nil, err
	}
	return m.PlaylistList, nil
}

func (m *MockSpotify) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if err := m.record("PlaylistTracks"); err != nil {
		return nil, err
	}
	return m.PlaylistItems[playlistID], nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && limit < len(items) {
		return items[:limit]
	}
	return items
}
