// package formatter provides functions to export playlist data to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/shared"
)

// Export formats accepted by [WriteExport].
const (
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatText     = "txt"
	FormatJSON     = "json"
)

// ParseFormat normalizes a format name; "markdown" is accepted for [FormatMarkdown].
func ParseFormat(s string) (string, error) {
	switch s {
	case FormatCSV, FormatText, FormatJSON:
		return s, nil
	case FormatMarkdown, "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: export format %q (want csv, md, txt or json)", shared.ErrInvalidArgument, s)
	}
}

// ExportToCSV converts a PlaylistExport to CSV with columns: ID, Name, Artists, Album, Duration, Popularity
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artists", "Album", "Duration", "Popularity"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			track.ID,
			track.Name,
			track.ArtistNames(),
			track.Album.Name,
			shared.FormatDuration(track.DurationMS),
			strconv.Itoa(track.Popularity),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown with an optional cover image reference
func ExportToMarkdown(export *models.PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	if owner := export.Playlist.Owner.DisplayName; owner != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", owner)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Average popularity**: %d\n", export.AveragePopularity())
	fmt.Fprintf(&buf, "**Visibility**: %s\n\n", shared.VisibilityString(export.Playlist.Public))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album.Name != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album.Name)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, track.ArtistNames(), track.Name, albumPart, shared.FormatDuration(track.DurationMS))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.ArtistNames(), track.Name)
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// WriteOpts controls [WriteExport].
type WriteOpts struct {
	Format    string
	OutputDir string
	// DownloadCover fetches the playlist image next to Markdown exports.
	DownloadCover bool
	HTTPClient    *http.Client
}

// WriteExport writes export under opts.OutputDir and returns the created files.
//
// Files are named after the playlist ID:
//
//	csv  {id}_tracks.csv and {id}_metadata.json
//	md   {id}/README.md and, optionally, {id}/cover.jpg
//	txt  {id}_tracks.txt
//	json {id}.json
func WriteExport(ctx context.Context, export *models.PlaylistExport, opts WriteOpts) ([]string, error) {
	format, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	if err := validFileID(export.Playlist.ID); err != nil {
		return nil, err
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := filepath.Join(dir, export.Playlist.ID)

	switch format {
	case FormatCSV:
		return writeCSVExport(export, base)
	case FormatMarkdown:
		imageURL := ""
		if opts.DownloadCover {
			imageURL = export.Playlist.FirstImageURL()
		}
		return writeMarkdownExport(ctx, export, base, imageURL, opts.HTTPClient)
	case FormatText:
		return writeFile(base+"_tracks.txt", ExportToText)(export)
	default:
		return writeFile(base+".json", func(e *models.PlaylistExport) ([]byte, error) {
			return shared.MarshalJSON(e, true)
		})(export)
	}
}

// validFileID rejects playlist ids that cannot be used as a file name inside the output directory.
func validFileID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: playlist id %q is not a valid file name", shared.ErrInvalidArgument, id)
	}
	return nil
}

func writeFile(path string, render func(*models.PlaylistExport) ([]byte, error)) func(*models.PlaylistExport) ([]string, error) {
	return func(export *models.PlaylistExport) ([]string, error) {
		data, err := render(export)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		return []string{path}, nil
	}
}

// writeCSVExport creates {base}_tracks.csv and {base}_metadata.json
func writeCSVExport(export *models.PlaylistExport, base string) ([]string, error) {
	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := base + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := shared.MarshalJSON(export.Playlist, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := base + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return []string{tracksFile, metadataFile}, nil
}

// writeMarkdownExport creates {dir}/README.md and, when imageURL downloads, {dir}/cover.jpg.
// A failed cover download is not an error.
func writeMarkdownExport(ctx context.Context, export *models.PlaylistExport, dir, imageURL string, client *http.Client) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var files []string
	var coverImageFilename string
	if imageURL != "" {
		if imageData, err := DownloadImage(ctx, client, imageURL); err == nil {
			coverPath := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(coverPath, imageData, 0644); err == nil {
				coverImageFilename = "cover.jpg"
				files = append(files, coverPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return append(files, mdFile), nil
}

// Render writes export to w in format, for printing to stdout.
func Render(w io.Writer, export *models.PlaylistExport, format string) error {
	format, err := ParseFormat(format)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case FormatCSV:
		data, err = ExportToCSV(export)
	case FormatMarkdown:
		data, err = ExportToMarkdown(export, "")
	case FormatText:
		data, err = ExportToText(export)
	default:
		data, err = shared.MarshalJSON(export, true)
	}
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}
