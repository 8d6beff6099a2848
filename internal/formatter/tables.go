package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/shared"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Help).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		})
}

func render(w io.Writer, title string, t *table.Table) error {
	var b strings.Builder
	if title != "" {
		b.WriteString(Styles.Title.Render(title))
		b.WriteString("\n")
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// TopArtistsTable renders ranked artists with the average popularity in the title.
func TopArtistsTable(w io.Writer, timeRange models.TimeRange, artists []models.Artist) error {
	t := newTable("#", "Artist", "Popularity", "Genres")
	for i, a := range artists {
		t.Row(strconv.Itoa(i+1), a.Name, strconv.Itoa(a.Popularity), strings.Join(a.Genres, ", "))
	}

	avg := models.AveragePopularity(artists, func(a models.Artist) int { return a.Popularity })
	title := fmt.Sprintf("Top artists · %s · average popularity %d", timeRange.DisplayName(), avg)
	return render(w, title, t)
}

// TopTracksTable renders ranked tracks with the average popularity in the title.
func TopTracksTable(w io.Writer, timeRange models.TimeRange, tracks []models.Track) error {
	t := newTable("#", "Track", "Artists", "Popularity", "Length")
	for i, tr := range tracks {
		t.Row(strconv.Itoa(i+1), tr.Name, tr.ArtistNames(), strconv.Itoa(tr.Popularity), shared.FormatDuration(tr.DurationMS))
	}

	avg := models.AveragePopularity(tracks, func(t models.Track) int { return t.Popularity })
	title := fmt.Sprintf("Top tracks · %s · average popularity %d", timeRange.DisplayName(), avg)
	return render(w, title, t)
}

// PlaylistTracksTable renders a playlist detail view. The header describes the whole export;
// rows are the matches of query, which is shown when set.
func PlaylistTracksTable(w io.Writer, export *models.PlaylistExport, matches []models.Track, query string) error {
	t := newTable("#", "Track", "Artists", "Album", "Length")
	for i, tr := range matches {
		t.Row(strconv.Itoa(i+1), tr.Name, tr.ArtistNames(), tr.Album.Name, shared.FormatDuration(tr.DurationMS))
	}

	title := fmt.Sprintf("%s · %d tracks · average popularity %d", export.Playlist.Name, len(export.Tracks), export.AveragePopularity())
	if query != "" {
		title += fmt.Sprintf(" · %d matching %q", len(matches), query)
	}
	return render(w, title, t)
}

// PlaylistsTable renders the user's playlists.
func PlaylistsTable(w io.Writer, playlists []models.Playlist) error {
	t := newTable("ID", "Name", "Owner", "Tracks", "Visibility")
	for _, p := range playlists {
		t.Row(p.ID, p.Name, p.Owner.DisplayName, strconv.Itoa(p.Tracks.Total), shared.VisibilityString(p.Public))
	}
	return render(w, fmt.Sprintf("Playlists (%d)", len(playlists)), t)
}

// DevicesTable renders Spotify Connect devices. The active device is marked with "*".
func DevicesTable(w io.Writer, devices []models.Device) error {
	t := newTable("", "Name", "Type", "Volume", "ID")
	for _, d := range devices {
		active := ""
		if d.IsActive {
			active = "*"
		}
		volume := "-"
		if d.VolumePercent != nil {
			volume = strconv.Itoa(*d.VolumePercent) + "%"
		}
		t.Row(active, d.Name, d.Type, volume, d.ID)
	}
	return render(w, fmt.Sprintf("Devices (%d)", len(devices)), t)
}

// RankChangesTable renders the movement of each current item against a previous snapshot.
func RankChangesTable(w io.Writer, title string, changes []models.RankChange) error {
	t := newTable("#", "Name", "Popularity", "Change")
	for _, c := range changes {
		t.Row(strconv.Itoa(c.Rank), c.Name, strconv.Itoa(c.Popularity), changeLabel(c))
	}
	return render(w, title, t)
}

func changeLabel(c models.RankChange) string {
	switch d := c.Delta(); {
	case c.New:
		return Styles.Warn.Render(c.Label())
	case d > 0:
		return Styles.OK.Render(c.Label())
	case d < 0:
		return Styles.Err.Render(c.Label())
	default:
		return c.Label()
	}
}

// Greeting returns the profile summary shown by the "me" command.
func Greeting(user *models.User) string {
	var b strings.Builder
	b.WriteString(Styles.Title.Render("Hello, " + user.Name()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Country:   %s\n", user.Country)
	fmt.Fprintf(&b, "Product:   %s\n", user.Product)
	fmt.Fprintf(&b, "Followers: %d\n", user.Followers.Total)
	if url := user.FirstImageURL(); url != "" {
		fmt.Fprintf(&b, "Avatar:    %s\n", url)
	}
	return b.String()
}
