// package services defines the [Spotify] interface and its HTTP implementation
package services

import (
	"context"

	"github.com/desertthunder/spotistats/internal/models"
)

// Spotify is the subset of the Web API spotistats uses.
type Spotify interface {
	// TopArtists returns the user's top artists for timeRange, most listened first.
	TopArtists(ctx context.Context, timeRange models.TimeRange, limit int) ([]models.Artist, error)

	// TopTracks returns the user's top tracks for timeRange, most listened first.
	TopTracks(ctx context.Context, timeRange models.TimeRange, limit int) ([]models.Track, error)

	// Devices lists the user's available Spotify Connect devices.
	Devices(ctx context.Context) ([]models.Device, error)

	// Play starts playback of an artist context or a single track on deviceID.
	Play(ctx context.Context, kind models.MusicType, id, deviceID string) error

	// UserProfile returns the current user.
	UserProfile(ctx context.Context) (*models.User, error)

	// Playlists returns every playlist owned or followed by the user.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistTracks returns every track of a playlist. Removed or unavailable entries are skipped.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// page is a Spotify paging object.
type page[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type playlistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *models.Track `json:"track"`
}

type devicesResponse struct {
	Devices []models.Device `json:"devices"`
}

// playRequest is the body of PUT /me/player/play.
type playRequest struct {
	ContextURI string   `json:"context_uri,omitempty"`
	URIs       []string `json:"uris,omitempty"`
}

func newPlayRequest(kind models.MusicType, id string) playRequest {
	if kind == models.ArtistType {
		return playRequest{ContextURI: kind.URI(id)}
	}
	return playRequest{URIs: []string{kind.URI(id)}}
}
