package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotistats/internal/models"
	"github.com/desertthunder/spotistats/internal/shared"
	"github.com/desertthunder/spotistats/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SnapshotAll captures every music type and time range.
func (r *Runner) SnapshotAll(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	var saved []*models.Snapshot
	err := r.withRefresh(ctx, func() (err error) {
		saved, err = r.engine.SnapshotAll(ctx, progress, limit)
		return err
	})
	close(progress)
	<-done

	r.writePlain("\n%d of %d snapshots saved\n", len(saved), len(models.MusicTypes)*len(models.TimeRanges))
	return err
}

type snapshotSummary struct {
	ID        string           `json:"id"`
	Kind      models.MusicType `json:"kind"`
	TimeRange models.TimeRange `json:"time_range"`
	TakenAt   time.Time        `json:"taken_at"`
	Items     int              `json:"items"`
}

// SnapshotList prints stored snapshots, newest first.
func (r *Runner) SnapshotList(ctx context.Context, cmd *cli.Command) error {
	var kind models.MusicType
	if raw := cmd.String("type"); raw != "" {
		parsed, err := models.ParseMusicType(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		kind = parsed
	}

	var timeRange models.TimeRange
	if raw := cmd.String("range"); raw != "" {
		parsed, err := models.ParseTimeRange(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		timeRange = parsed
	}

	snapshots, err := r.engine.History(kind, timeRange, cmd.Int("limit"))
	if err != nil {
		return err
	}

	summaries := make([]snapshotSummary, 0, len(snapshots))
	for _, s := range snapshots {
		summaries = append(summaries, snapshotSummary{
			ID:        s.ID(),
			Kind:      s.Kind(),
			TimeRange: s.TimeRange(),
			TakenAt:   s.TakenAt(),
			Items:     len(s.Items()),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(summaries, cmd.Bool("pretty"))
	}

	if len(summaries) == 0 {
		return r.writePlain("No snapshots yet. Run 'spotistats snapshot all' or 'spotistats top artists --save'.\n")
	}

	r.writePlainHeader(fmt.Sprintf("%d snapshots", len(summaries)))
	for _, s := range summaries {
		r.writePlain("%s  %-7s %-9s %2d items  %s\n",
			s.TakenAt.Local().Format(time.DateTime), s.Kind, s.TimeRange.DisplayName(), s.Items, s.ID)
	}
	return nil
}
