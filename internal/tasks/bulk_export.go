package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/spotistats/internal/formatter"
	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format        string  // Export format: json, csv, md, txt
	OutputDir     string  // Base output directory (default: spotify_export_{epoch})
	NumWorkers    int     // Concurrent file writers (default: 5, max 10)
	RateLimit     float64 // Track-listing requests per second (default: 5)
	DownloadCover bool    // Save playlist covers next to Markdown exports
}

// BulkExportResult summarizes a [Engine.BulkExport] run. It is also written as the export manifest.
type BulkExportResult struct {
	TotalPlaylists    int                    `json:"total_playlists"`
	SuccessfulExports int                    `json:"successful_exports"`
	FailedExports     int                    `json:"failed_exports"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	Results           []PlaylistExportResult `json:"results"`
}

// PlaylistExportResult is the outcome for a single playlist.
type PlaylistExportResult struct {
	PlaylistID   string   `json:"playlist_id"`
	PlaylistName string   `json:"playlist_name"`
	Success      bool     `json:"success"`
	Files        []string `json:"files,omitempty"`
	Error        error    `json:"-"`
	Message      string   `json:"error,omitempty"`
}

type exportJob struct {
	export *models.PlaylistExport
}

// BulkExport exports playlists concurrently with rate limiting and progress tracking.
//
// A single producer fetches track listings at opts.RateLimit while a pool of workers writes files.
// Partial failures are recorded per playlist; a manifest summarizing the run is written to the output directory.
// An empty ids exports every playlist of the user.
func (e *Engine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: spotify client not initialized", shared.ErrServiceUnavailable)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	playlists, err := e.spotify.Playlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	byID := make(map[string]models.Playlist, len(playlists))
	for _, p := range playlists {
		byID[p.ID] = p
	}
	if len(ids) == 0 {
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(ids),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan exportJob, len(ids))
	results := make(chan PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			e.sendProgress(prog, fetchPlaylistUpdate(i+1, len(ids), id))

			playlist, ok := byID[id]
			if !ok {
				playlist = models.Playlist{ID: id, Name: id}
			}

			tracks, err := e.spotify.PlaylistTracks(ctx, id)
			if err != nil {
				results <- PlaylistExportResult{
					PlaylistID:   id,
					PlaylistName: playlist.Name,
					Error:        fmt.Errorf("failed to fetch tracks: %w", err),
				}
				continue
			}

			jobs <- exportJob{export: &models.PlaylistExport{Playlist: playlist, Tracks: tracks}}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++

		if res.Success {
			result.SuccessfulExports++
			e.sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.PlaylistName, len(res.Files)))
		} else {
			result.FailedExports++
			res.Message = res.Error.Error()
			e.logger.Warn("playlist export failed", "id", res.PlaylistID, "err", res.Error)
			e.sendProgress(prog, exportFailedUpdate(completed, len(ids), res.PlaylistName, res.Error))
		}
		result.Results = append(result.Results, res)
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("export interrupted: %w", err)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := writeManifest(result, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker writes playlists from the jobs channel until it closes.
func (e *Engine) exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan exportJob, results chan<- PlaylistExportResult, opts BulkExportOpts) {
	defer wg.Done()

	for job := range jobs {
		res := PlaylistExportResult{
			PlaylistID:   job.export.Playlist.ID,
			PlaylistName: job.export.Playlist.Name,
		}

		files, err := formatter.WriteExport(ctx, job.export, formatter.WriteOpts{
			Format:        opts.Format,
			OutputDir:     opts.OutputDir,
			DownloadCover: opts.DownloadCover,
		})
		if err != nil {
			res.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		} else {
			res.Files = files
			res.Success = true
		}
		results <- res
	}
}

func writeManifest(result *BulkExportResult, path string) error {
	manifest := struct {
		*BulkExportResult
		ExportedAt time.Time `json:"exported_at"`
	}{result, time.Now()}

	data, err := shared.MarshalJSON(manifest, true)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
