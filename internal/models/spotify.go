package models

import (
	"strings"
)

// Spotify Web API records based on https://developer.spotify.com/documentation/web-api/reference/

type Followers struct {
	Total int `json:"total"`
}

// Image represents an image resource. Height and Width are null for some user-uploaded images.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist represents a Spotify artist.
//
// Artists embedded in track objects are simplified: popularity, genres and images are empty.
type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Popularity int       `json:"popularity"`
	Genres     []string  `json:"genres,omitempty"`
	Images     []Image   `json:"images,omitempty"`
	URI        string    `json:"uri"`
	Followers  Followers `json:"followers"`
}

func (a Artist) FirstImageURL() string { return firstImageURL(a.Images) }

// Album represents a simplified Spotify album.
type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"`
	Images      []Image `json:"images"`
	URI         string  `json:"uri"`
}

func (a Album) FirstImageURL() string { return firstImageURL(a.Images) }

// Track represents a Spotify track. ID is empty for local files in playlists.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	Popularity int      `json:"popularity"`
	DurationMS int      `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	URI        string   `json:"uri"`
}

// FirstImageURL returns the album cover.
func (t Track) FirstImageURL() string { return t.Album.FirstImageURL() }

// ArtistNames joins the names of every credited artist.
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type PlaylistTracksRef struct {
	Total int `json:"total"`
}

// Playlist represents a simplified playlist object as returned by /me/playlists.
type Playlist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	Images      []Image           `json:"images"`
	Tracks      PlaylistTracksRef `json:"tracks"`
	URI         string            `json:"uri"`
}

func (p Playlist) FirstImageURL() string { return firstImageURL(p.Images) }

// Device is a Spotify Connect playback target.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	IsRestricted  bool   `json:"is_restricted"`
	VolumePercent *int   `json:"volume_percent"`
}

// User represents the current user's profile.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Images      []Image   `json:"images"`
	Followers   Followers `json:"followers"`
}

func (u User) FirstImageURL() string { return firstImageURL(u.Images) }

// Name returns the display name, falling back to the user id.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

func firstImageURL(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// PlaylistExport is a playlist with its full track listing.
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

// AveragePopularity returns the integer mean popularity of the exported tracks.
func (e PlaylistExport) AveragePopularity() int {
	return AveragePopularity(e.Tracks, func(t Track) int { return t.Popularity })
}
