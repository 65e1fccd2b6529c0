package tasks

import (
	"fmt"

	"github.com/desertthunder/rotation/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Login Phase = iota
	MirrorPlaylists
	FetchHistory
	ResolveIdentity
	InferHistory
	MergeHistory
	RankTracks
	RebuildPlaylists
	Done
)

func (p Phase) String() string {
	switch p {
	case Login:
		return "login"
	case MirrorPlaylists:
		return "mirror_playlists"
	case FetchHistory:
		return "fetch_history"
	case ResolveIdentity:
		return "resolve_identity"
	case InferHistory:
		return "infer_history"
	case MergeHistory:
		return "merge_history"
	case RankTracks:
		return "rank"
	case RebuildPlaylists:
		return "rebuild_playlists"
	case Done:
		return "done"
	default:
		return ""
	}
}

func loginUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: Login, Step: 1, Total: 1, Message: "Logging in to Spotify..."}
}

func mirrorUpdate(step, total int, kind models.PlaylistKind, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MirrorPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Mirrored %s playlist (%d tracks)", kind, tracks),
		Data:    kind,
	}
}

func fetchUpdate(since int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchHistory,
		Step:    1,
		Total:   1,
		Message: "Fetching recently played tracks...",
		Data:    since,
	}
}

func fetchedUpdate(plays, pages int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchHistory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched %d plays in %d pages", plays, pages),
	}
}

func resolveUpdate(accepted, compared int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveIdentity,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolved %d changed track ids (%d comparisons)", accepted, compared),
	}
}

func inferUpdate(inferred, position int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   InferHistory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Inferred %d plays up to position %d", inferred, position),
	}
}

func mergeUpdate(rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MergeHistory,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Listen history holds %d plays", rows),
	}
}

func rankUpdate(tracks, removed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RankTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Ranked %d tracks, archived %d", tracks, removed),
	}
}

func rebuildUpdate(step, total int, kind models.PlaylistKind, added int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RebuildPlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Rebuilt %s playlist with %d tracks", kind, added),
		Data:    kind,
	}
}

func doneUpdate(run *models.SyncRun) ProgressUpdate {
	return ProgressUpdate{Phase: Done, Step: 1, Total: 1, Message: "Sync complete", Data: run}
}
