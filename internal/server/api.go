package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/services"
	"github.com/desertthunder/spotistats/internal/session"
	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/desertthunder/spotistats/internal/tasks"
	"github.com/go-chi/chi/v5"
)

const defaultTopLimit = 20

// RefreshFunc renews the access token held by the session store.
type RefreshFunc func(ctx context.Context) error

// APIOpts configures an [APIHandler].
type APIOpts struct {
	Spotify services.Spotify
	Store   *session.Store
	Refresh RefreshFunc
	Logger  *log.Logger
	Now     func() time.Time
}

// APIHandler serves the local JSON API.
type APIHandler struct {
	spotify services.Spotify
	store   *session.Store
	refresh RefreshFunc
	logger  *log.Logger
	now     func() time.Time
}

// SessionStatus is the public view of the session. Tokens are never exposed.
type SessionStatus struct {
	Authenticated bool       `json:"authenticated"`
	Valid         bool       `json:"valid"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	StoredAt      *time.Time `json:"stored_at,omitempty"`
}

// StatusOf reports the state of store at now.
func StatusOf(store *session.Store, now time.Time) SessionStatus {
	s := store.Session()
	status := SessionStatus{Authenticated: s.Authenticated(), Valid: s.Valid(now)}
	if !s.ExpiresAt.IsZero() {
		expiresAt := s.ExpiresAt
		status.ExpiresAt = &expiresAt
	}
	if at, ok := store.StoredAt(); ok && status.Authenticated {
		status.StoredAt = &at
	}
	return status
}

// PlaylistDetail is the response of GET /playlists/{id}/tracks.
//
// Count and AveragePopularity describe the whole playlist; Tracks holds the tracks matching q.
type PlaylistDetail struct {
	Playlist          models.Playlist `json:"playlist"`
	Tracks            []models.Track  `json:"tracks"`
	Count             int             `json:"count"`
	Matches           int             `json:"matches"`
	AveragePopularity int             `json:"average_popularity"`
}

type playRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type playResponse struct {
	Message string        `json:"message"`
	Device  models.Device `json:"device"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(opts APIOpts) *APIHandler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &APIHandler{
		spotify: opts.Spotify,
		store:   opts.Store,
		refresh: opts.Refresh,
		logger:  shared.WithLogger(opts.Logger, "component", "api"),
		now:     opts.Now,
	}
}

// Register adds every API route to r.
func (h *APIHandler) Register(r Router) {
	r.Handle(http.MethodGet, "/me", http.HandlerFunc(h.Me))
	r.Handle(http.MethodGet, "/top/{kind}", http.HandlerFunc(h.Top))
	r.Handle(http.MethodGet, "/devices", http.HandlerFunc(h.Devices))
	r.Handle(http.MethodPost, "/play", http.HandlerFunc(h.Play))
	r.Handle(http.MethodGet, "/playlists", http.HandlerFunc(h.Playlists))
	r.Handle(http.MethodGet, "/playlists/{id}/tracks", http.HandlerFunc(h.PlaylistTracks))
	r.Handle(http.MethodGet, "/session", http.HandlerFunc(h.Session))
	r.Handle(http.MethodPost, "/session/refresh", http.HandlerFunc(h.RefreshSession))
}

// Me returns the current user's profile.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.spotify.UserProfile(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Top returns top artists or tracks. kind is "artists" or "tracks".
func (h *APIHandler) Top(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseMusicType(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, invalidArgument(err))
		return
	}

	query := r.URL.Query()
	timeRange, err := models.ParseTimeRange(query.Get("range"))
	if err != nil {
		h.writeError(w, invalidArgument(err))
		return
	}

	limit := defaultTopLimit
	if raw := query.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			h.writeError(w, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidArgument))
			return
		}
	}

	result, err := tasks.TopItems(r.Context(), h.spotify, kind, timeRange, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Devices lists the user's devices.
func (h *APIHandler) Devices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.spotify.Devices(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// Play starts playback on the first available device.
func (h *APIHandler) Play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid JSON body", shared.ErrInvalidArgument))
		return
	}
	if req.ID == "" {
		h.writeError(w, fmt.Errorf("%w: id", shared.ErrMissingArgument))
		return
	}

	kind, err := models.ParseMusicType(req.Type)
	if err != nil {
		h.writeError(w, invalidArgument(err))
		return
	}

	result, err := tasks.PlayOnFirstDevice(r.Context(), h.spotify, kind, req.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playResponse{Message: result.String(), Device: result.Device})
}

// Playlists lists every playlist of the user.
func (h *APIHandler) Playlists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.spotify.Playlists(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

// PlaylistTracks returns a playlist's tracks filtered by the q parameter.
func (h *APIHandler) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	view, err := tasks.PlaylistDetail(r.Context(), h.spotify, chi.URLParam(r, "id"), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	tracks := view.Matches
	if tracks == nil {
		tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, PlaylistDetail{
		Playlist:          view.Export.Playlist,
		Tracks:            tracks,
		Count:             len(view.Export.Tracks),
		Matches:           len(tracks),
		AveragePopularity: view.Export.AveragePopularity(),
	})
}

// Session reports whether a usable token is held.
func (h *APIHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// RefreshSession renews the access token and reports the new session state.
func (h *APIHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	if h.refresh == nil {
		h.writeError(w, fmt.Errorf("%w: token refresh not configured", shared.ErrServiceUnavailable))
		return
	}
	if err := h.refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

func (h *APIHandler) status() SessionStatus {
	if h.store == nil {
		return SessionStatus{}
	}
	return StatusOf(h.store, h.now())
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "err", err)
	} else {
		h.logger.Warn("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func invalidArgument(err error) error {
	return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrNoRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrNoDevices):
		return http.StatusConflict
	case errors.Is(err, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shared.ErrServiceUnavailable),
		errors.Is(err, shared.ErrMissingCredentials):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrRefreshFailed),
		errors.Is(err, shared.ErrAPIRequest),
		errors.Is(err, shared.ErrDecode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
