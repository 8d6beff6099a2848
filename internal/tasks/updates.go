package tasks

import (
	"fmt"

	"github.com/desertthunder/spotistats/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or API layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchTop Phase = iota
	SaveSnapshot
	FetchPlaylists
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchTop:
		return "fetch_top"
	case SaveSnapshot:
		return "save_snapshot"
	case FetchPlaylists:
		return "fetch_playlists"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func fetchTopUpdate(step, total int, kind models.MusicType, timeRange models.TimeRange) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTop,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching top %s (%s)...", step, total, kind.Plural(), timeRange.DisplayName()),
	}
}

func snapshotSavedUpdate(step, total int, s *models.Snapshot) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveSnapshot,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s %s (%d items)", step, total, s.Kind().Plural(), s.TimeRange().DisplayName(), len(s.Items())),
		Data:    s,
	}
}

func snapshotFailedUpdate(step, total int, kind models.MusicType, timeRange models.TimeRange, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveSnapshot,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s %s: %v", step, total, kind.Plural(), timeRange.DisplayName(), err),
	}
}

func fetchPlaylistUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks for %s...", step, total, id),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
