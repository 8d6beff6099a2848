package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/spotistats/internal/formatter"
	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/desertthunder/spotistats/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Me prints the user's profile.
func (r *Runner) Me(ctx context.Context, cmd *cli.Command) error {
	var user *models.User
	err := r.withRefresh(ctx, func() (err error) {
		user, err = r.spotify.UserProfile(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", formatter.Greeting(user))
}

// TopArtists lists the user's top artists.
func (r *Runner) TopArtists(ctx context.Context, cmd *cli.Command) error {
	return r.top(ctx, cmd, models.ArtistType)
}

// TopTracks lists the user's top tracks.
func (r *Runner) TopTracks(ctx context.Context, cmd *cli.Command) error {
	return r.top(ctx, cmd, models.TrackType)
}

func (r *Runner) top(ctx context.Context, cmd *cli.Command, kind models.MusicType) error {
	timeRange, err := models.ParseTimeRange(cmd.String("range"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	limit := cmd.Int("limit")
	save := cmd.Bool("save")

	if cmd.Bool("compare") {
		return r.compare(ctx, cmd, kind, timeRange, limit, save)
	}

	r.logger.Info("fetching top items", "type", kind, "range", timeRange, "limit", limit)

	var result *tasks.TopResult
	err = r.withRefresh(ctx, func() (err error) {
		result, err = tasks.TopItems(ctx, r.spotify, kind, timeRange, limit)
		return err
	})
	if err != nil {
		return err
	}

	if save {
		snapshot, err := r.engine.Snapshot(result)
		if err != nil {
			return err
		}
		r.logger.Info("snapshot saved", "id", snapshot.ID())
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	if kind == models.ArtistType {
		err = formatter.TopArtistsTable(r.output, timeRange, result.Artists)
	} else {
		err = formatter.TopTracksTable(r.output, timeRange, result.Tracks)
	}
	if err != nil {
		return err
	}
	return r.writePlain("Average popularity: %d\n", result.AveragePopularity)
}

func (r *Runner) compare(ctx context.Context, cmd *cli.Command, kind models.MusicType, timeRange models.TimeRange, limit int, save bool) error {
	var comparison *tasks.Comparison
	err := r.withRefresh(ctx, func() (err error) {
		comparison, _, err = r.engine.Compare(ctx, kind, timeRange, limit, save)
		return err
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(comparison, cmd.Bool("pretty"))
	}

	title := fmt.Sprintf("Top %s · %s", kind.Plural(), timeRange.DisplayName())
	if comparison.Since != nil {
		title += " · since " + comparison.Since.Local().Format(time.DateOnly)
	} else {
		title += " · no earlier snapshot"
	}
	return formatter.RankChangesTable(r.output, title, comparison.Changes)
}

// Devices lists the user's playback devices.
func (r *Runner) Devices(ctx context.Context, cmd *cli.Command) error {
	var devices []models.Device
	err := r.withRefresh(ctx, func() (err error) {
		devices, err = r.spotify.Devices(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(devices, cmd.Bool("pretty"))
	}
	if len(devices) == 0 {
		return r.writePlain("%s\n", formatter.Styles.Warn.Render(shared.ErrNoDevices.Error()))
	}
	return formatter.DevicesTable(r.output, devices)
}

// Play starts an artist or track on the first available device.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	kind, err := models.ParseMusicType(cmd.String("type"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	id := strings.TrimSpace(cmd.String("id"))
	if id == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	var result *tasks.PlayResult
	err = r.withRefresh(ctx, func() (err error) {
		result, err = tasks.PlayOnFirstDevice(ctx, r.spotify, kind, id)
		return err
	})
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", formatter.Styles.OK.Render("✓ "+result.String()))
}

// Playlists lists the user's playlists.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	var playlists []models.Playlist
	err := r.withRefresh(ctx, func() (err error) {
		playlists, err = r.spotify.Playlists(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if limit := cmd.Int("limit"); limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}
	return formatter.PlaylistsTable(r.output, playlists)
}

// PlaylistTracks shows a playlist's tracks, optionally filtered and rendered in an export format.
func (r *Runner) PlaylistTracks(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.String("id"))
	if id == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}
	query := cmd.String("search")

	var view *tasks.PlaylistView
	err := r.withRefresh(ctx, func() (err error) {
		view, err = tasks.PlaylistDetail(ctx, r.spotify, id, query)
		return err
	})
	if err != nil {
		return err
	}

	if format := cmd.String("export"); format != "" {
		return formatter.Render(r.output, view.Filtered(), format)
	}
	if cmd.Bool("json") {
		return r.writeJSON(view.Filtered(), cmd.Bool("pretty"))
	}
	return formatter.PlaylistTracksTable(r.output, view.Export, view.Matches, query)
}

// PlaylistExport writes playlists to files with a worker pool.
func (r *Runner) PlaylistExport(ctx context.Context, cmd *cli.Command) error {
	opts := tasks.BulkExportOpts{
		Format:        cmd.String("format"),
		OutputDir:     cmd.String("output"),
		NumWorkers:    cmd.Int("workers"),
		RateLimit:     cmd.Float("rate"),
		DownloadCover: cmd.Bool("covers"),
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	var result *tasks.BulkExportResult
	err := r.withRefresh(ctx, func() (err error) {
		result, err = r.engine.BulkExport(ctx, progress, cmd.StringSlice("id"), opts)
		return err
	})
	close(progress)
	<-done

	if err != nil {
		return err
	}

	r.writePlainHeader("Export complete")
	r.writePlain("Playlists: %d (%d failed)\n", result.SuccessfulExports, result.FailedExports)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	return r.writePlain("Manifest:  %s\n", result.ManifestPath)
}
