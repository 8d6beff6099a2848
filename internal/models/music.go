package models

import (
	"fmt"
	"strings"
)

// TimeRange selects the affinity window of the top-items endpoints.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// TimeRanges lists every range, shortest first.
var TimeRanges = []TimeRange{ShortTerm, MediumTerm, LongTerm}

// DisplayName returns the label shown next to top lists.
func (r TimeRange) DisplayName() string {
	switch r {
	case ShortTerm:
		return "4 weeks"
	case MediumTerm:
		return "6 months"
	case LongTerm:
		return "1 year"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the API values.
func (r TimeRange) Valid() bool {
	return r == ShortTerm || r == MediumTerm || r == LongTerm
}

// ParseTimeRange accepts the API value ("short_term") or its short alias ("short"). Empty means [ShortTerm].
func ParseTimeRange(s string) (TimeRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "short", "short_term", "4w":
		return ShortTerm, nil
	case "medium", "medium_term", "6m":
		return MediumTerm, nil
	case "long", "long_term", "1y":
		return LongTerm, nil
	default:
		return "", fmt.Errorf("unknown time range %q", s)
	}
}

// MusicType selects between artists and tracks.
type MusicType string

const (
	ArtistType MusicType = "artist"
	TrackType  MusicType = "track"
)

// MusicTypes lists every type in display order.
var MusicTypes = []MusicType{ArtistType, TrackType}

func (m MusicType) Valid() bool {
	return m == ArtistType || m == TrackType
}

// ParseMusicType accepts singular or plural forms.
func ParseMusicType(s string) (MusicType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "artist", "artists":
		return ArtistType, nil
	case "track", "tracks":
		return TrackType, nil
	default:
		return "", fmt.Errorf("unknown music type %q", s)
	}
}

// Plural returns the path segment used by /me/top/{type}.
func (m MusicType) Plural() string { return string(m) + "s" }

// URI builds a spotify URI such as "spotify:track:ID".
func (m MusicType) URI(id string) string {
	return "spotify:" + string(m) + ":" + id
}

// FilterTracks returns the tracks whose name or any artist name contains query, ignoring case.
// An empty query returns tracks unchanged.
func FilterTracks(tracks []Track, query string) []Track {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return tracks
	}

	var matched []Track
	for _, t := range tracks {
		if strings.Contains(strings.ToLower(t.Name), query) {
			matched = append(matched, t)
			continue
		}
		for _, a := range t.Artists {
			if strings.Contains(strings.ToLower(a.Name), query) {
				matched = append(matched, t)
				break
			}
		}
	}
	return matched
}

// AveragePopularity returns the integer mean of popularity over items, or 0 for none.
func AveragePopularity[T any](items []T, popularity func(T) int) int {
	if len(items) == 0 {
		return 0
	}
	sum := 0
	for _, item := range items {
		sum += popularity(item)
	}
	return sum / len(items)
}
