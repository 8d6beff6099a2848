package models

import (
	"fmt"
	"time"
)

// RankedItem is one entry of a [Snapshot]. Rank starts at 1.
type RankedItem struct {
	Rank       int    `json:"rank"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Popularity int    `json:"popularity"`
}

// Snapshot is a persisted capture of the user's top items for one kind and time range.
type Snapshot struct {
	base
	kind      MusicType
	timeRange TimeRange
	takenAt   time.Time
	items     []RankedItem
}

// NewSnapshot creates an unsaved snapshot taken at takenAt.
func NewSnapshot(kind MusicType, timeRange TimeRange, takenAt time.Time, items []RankedItem) *Snapshot {
	return &Snapshot{
		base:      newBase(time.Now()),
		kind:      kind,
		timeRange: timeRange,
		takenAt:   takenAt,
		items:     items,
	}
}

// RankArtists converts top artists, in API order, into ranked items.
func RankArtists(artists []Artist) []RankedItem {
	items := make([]RankedItem, len(artists))
	for i, a := range artists {
		items[i] = RankedItem{Rank: i + 1, ID: a.ID, Name: a.Name, Popularity: a.Popularity}
	}
	return items
}

// RankTracks converts top tracks, in API order, into ranked items.
func RankTracks(tracks []Track) []RankedItem {
	items := make([]RankedItem, len(tracks))
	for i, t := range tracks {
		name := t.Name
		if artists := t.ArtistNames(); artists != "" {
			name = t.Name + " - " + artists
		}
		items[i] = RankedItem{Rank: i + 1, ID: t.ID, Name: name, Popularity: t.Popularity}
	}
	return items
}

func (s *Snapshot) Kind() MusicType { return s.kind }
func (s *Snapshot) TimeRange() TimeRange { return s.timeRange }
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }
func (s *Snapshot) Items() []RankedItem { return s.items }

func (s *Snapshot) SetItems(items []RankedItem) { s.items = items }

// Validate checks kind, time range and item ranks.
func (s *Snapshot) Validate() error {
	if s.id == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if !s.kind.Valid() {
		return fmt.Errorf("invalid music type %q", s.kind)
	}
	if !s.timeRange.Valid() {
		return fmt.Errorf("invalid time range %q", s.timeRange)
	}
	if s.takenAt.IsZero() {
		return fmt.Errorf("snapshot taken_at is required")
	}
	for i, item := range s.items {
		if item.Rank != i+1 {
			return fmt.Errorf("item %d has rank %d", i, item.Rank)
		}
	}
	return nil
}

// RankChange compares an item's current rank with its rank in an earlier snapshot.
type RankChange struct {
	RankedItem
	Previous int  `json:"previous,omitempty"` // 0 when New
	New      bool `json:"new"`
}

// Delta is positive when the item moved up.
func (c RankChange) Delta() int {
	if c.New {
		return 0
	}
	return c.Previous - c.Rank
}

// Label returns "new", "=", "+N" or "-N".
func (c RankChange) Label() string {
	switch d := c.Delta(); {
	case c.New:
		return "new"
	case d > 0:
		return fmt.Sprintf("+%d", d)
	case d < 0:
		return fmt.Sprintf("%d", d)
	default:
		return "="
	}
}
