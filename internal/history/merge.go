package history

import (
	"sort"
	"time"

	"github.com/desertthunder/rotation/internal/models"
)

// DefaultCollapseWindow is the span inside which two plays of one track are the same listen.
const DefaultCollapseWindow = 5 * time.Minute

// Merge folds fresh plays into the durable log.
//
// Plays of the same track no more than window apart collapse into the newest one; when timestamps
// tie, the durable copy wins. Tracked is recomputed from trackedIDs. The result is ordered by
// played_at descending, then track id ascending.
func Merge(log, fresh []models.PlayEvent, trackedIDs map[string]bool, window time.Duration) []models.PlayEvent {
	all := make([]models.PlayEvent, 0, len(log)+len(fresh))
	all = append(all, log...)
	all = append(all, fresh...)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].TrackID != all[j].TrackID {
			return all[i].TrackID < all[j].TrackID
		}
		return all[i].PlayedAt > all[j].PlayedAt
	})

	limit := window.Milliseconds()
	kept := make([]models.PlayEvent, 0, len(all))
	for _, p := range all {
		if n := len(kept); n > 0 {
			last := kept[n-1]
			if last.TrackID == p.TrackID && last.PlayedAt-p.PlayedAt <= limit {
				continue
			}
		}
		p.Tracked = trackedIDs[p.TrackID]
		kept = append(kept, p)
	}

	SortNewestFirst(kept)
	return kept
}

// SortNewestFirst orders plays by played_at descending, then track id ascending.
func SortNewestFirst(plays []models.PlayEvent) {
	sort.SliceStable(plays, func(i, j int) bool {
		if plays[i].PlayedAt != plays[j].PlayedAt {
			return plays[i].PlayedAt > plays[j].PlayedAt
		}
		return plays[i].TrackID < plays[j].TrackID
	})
}
