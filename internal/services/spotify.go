package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/session"
	"github.com/desertthunder/spotistats/internal/shared"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Spotify Web API root, used when [Options.BaseURL] is empty.
	DefaultBaseURL = "https://api.spotify.com/v1"
	// maxPageSize is the largest limit the paginated endpoints accept.
	maxPageSize = 50
	// maxErrorBody caps how much of an error response is read into logs.
	maxErrorBody = 4096
)

// Options configures a [SpotifyClient]. Zero values select defaults.
type Options struct {
	BaseURL           string
	HTTPClient        *http.Client
	Logger            *log.Logger
	RequestsPerSecond float64
	Now               func() time.Time
}

// SpotifyClient implements [Spotify] over HTTP.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	limiter    *rate.Limiter
	now        func() time.Time

	mu      sync.RWMutex
	session session.Session
	headers http.Header

	unsubscribe func()
}

// NewSpotifyClient creates a client bound to store. The client rebuilds its default headers whenever the store changes.
func NewSpotifyClient(store *session.Store, opts Options) *SpotifyClient {
	c := &SpotifyClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		now:        opts.Now,
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	c.logger = shared.WithLogger(c.logger, "component", "spotify")
	if c.now == nil {
		c.now = time.Now
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	c.limiter = rate.NewLimiter(limit, 1)

	c.setSession(store.Session())
	c.unsubscribe = store.Subscribe(c.setSession)
	return c
}

// Close detaches the client from its session store.
func (c *SpotifyClient) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

func (c *SpotifyClient) setSession(s session.Session) {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	if s.AccessToken != "" {
		headers.Set("Authorization", "Bearer "+s.AccessToken)
	}

	c.mu.Lock()
	c.session = s
	c.headers = headers
	c.mu.Unlock()
}

// authorize returns the default headers, or an error when the session cannot be used.
func (c *SpotifyClient) authorize() (http.Header, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session.AccessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}
	if !c.session.Valid(c.now()) {
		return nil, fmt.Errorf("%w: expired at %s", shared.ErrTokenExpired, c.session.ExpiresAt.Format(time.RFC3339))
	}
	return c.headers.Clone(), nil
}

// doRequest performs an authenticated request against endpoint (a path relative to the base URL).
// A nil result discards the response body.
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	headers, err := c.authorize()
	if err != nil {
		c.logger.Warn("request not sent", "method", method, "endpoint", endpoint, "err", err)
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed", "method", method, "endpoint", endpoint, "err", err)
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(method, endpoint, resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		c.logger.Error("failed to decode response", "endpoint", endpoint, "err", err)
		return fmt.Errorf("%w: %s: %v", shared.ErrDecode, endpoint, err)
	}

	return nil
}

// statusError logs the response body and maps the status onto a sentinel error.
func (c *SpotifyClient) statusError(method, endpoint string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := apiErrorMessage(data)

	c.logger.Error("spotify API error",
		"method", method, "endpoint", endpoint, "status", resp.StatusCode, "body", string(data))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: retry after %s", shared.ErrRateLimited, parseRetryAfter(resp, c.now()))
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return fmt.Errorf("%w: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, message)
	}
}

// apiErrorMessage extracts error.message from a Web API error object, falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// parseRetryAfter reads the Retry-After header as seconds or an HTTP date.
func parseRetryAfter(resp *http.Response, now time.Time) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := when.Sub(now); until > 0 {
			return until
		}
	}

	return 0
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// TopArtists fetches /me/top/artists.
func (c *SpotifyClient) TopArtists(ctx context.Context, timeRange models.TimeRange, limit int) ([]models.Artist, error) {
	var response page[models.Artist]
	if err := c.doRequest(ctx, http.MethodGet, topEndpoint(models.ArtistType, timeRange, limit), nil, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// TopTracks fetches /me/top/tracks.
func (c *SpotifyClient) TopTracks(ctx context.Context, timeRange models.TimeRange, limit int) ([]models.Track, error) {
	var response page[models.Track]
	if err := c.doRequest(ctx, http.MethodGet, topEndpoint(models.TrackType, timeRange, limit), nil, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func topEndpoint(kind models.MusicType, timeRange models.TimeRange, limit int) string {
	if timeRange == "" {
		timeRange = models.ShortTerm
	}
	q := url.Values{}
	q.Set("time_range", string(timeRange))
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	return "/me/top/" + kind.Plural() + "?" + q.Encode()
}

// Devices fetches /me/player/devices.
func (c *SpotifyClient) Devices(ctx context.Context) ([]models.Device, error) {
	var response devicesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, &response); err != nil {
		return nil, err
	}
	return response.Devices, nil
}

// Play starts playback on deviceID. Artists play as a context; tracks play as a single-item queue.
func (c *SpotifyClient) Play(ctx context.Context, kind models.MusicType, id, deviceID string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: music type %q", shared.ErrInvalidArgument, kind)
	}
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}

	endpoint := "/me/player/play"
	if deviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(deviceID)
	}

	return c.doRequest(ctx, http.MethodPut, endpoint, newPlayRequest(kind, id), nil)
}

// UserProfile fetches /me.
func (c *SpotifyClient) UserProfile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlists fetches every page of /me/playlists.
func (c *SpotifyClient) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	offset := 0

	for {
		var response page[models.Playlist]
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", maxPageSize, offset)
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}

		playlists = append(playlists, response.Items...)

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	return playlists, nil
}

// PlaylistTracks fetches every page of /playlists/{id}/tracks.
func (c *SpotifyClient) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var tracks []models.Track
	offset := 0

	for {
		var response page[playlistItem]
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), maxPageSize, offset)
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			if item.Track == nil {
				continue
			}
			tracks = append(tracks, *item.Track)
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += len(response.Items)
	}

	return tracks, nil
}

// IsAuthError reports whether err means the session must be refreshed or re-authorized.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired) || errors.Is(err, shared.ErrNotAuthenticated)
}

var _ Spotify = (*SpotifyClient)(nil)
