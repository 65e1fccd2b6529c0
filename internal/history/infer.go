package history

import (
	"time"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// InferOptions tunes history inference.
type InferOptions struct {
	Window     time.Duration // lookback from the latest tracked play
	MinMatches int           // matched playlist positions required before inferring
}

// InferOptionsFromConfig reads the history section of the application config.
func InferOptionsFromConfig(c shared.HistoryConfig) InferOptions {
	return InferOptions{Window: c.InferenceWindow, MinMatches: c.InferenceMinMatches}
}

// InferResult reports what inference added.
type InferResult struct {
	Plays       []models.PlayEvent // real plays followed by new inferred plays
	Matched     int                // snapshot positions played inside the window
	MaxPosition int                // 1-based; 0 when nothing was inferred
	Inferred    int
	Latest      int64 // timestamp given to inferred plays
}

// Infer fills in plays that a playback source failed to report.
//
// It assumes the snapshot was played in order without shuffle. When at least MinMatches snapshot
// positions were played within Window of the latest tracked play, every track up to the furthest
// matched position is recorded as played at that latest timestamp with [models.InferredBatch].
// Real plays always win when (track, played_at) collides.
func Infer(recent []models.PlayEvent, snapshot models.Snapshot, opts InferOptions) InferResult {
	res := InferResult{Plays: recent}

	for _, p := range recent {
		if p.Tracked && p.PlayedAt > res.Latest {
			res.Latest = p.PlayedAt
		}
	}
	if res.Latest == 0 {
		return res
	}

	cutoff := res.Latest - opts.Window.Milliseconds()
	played := make(map[string]bool)
	for _, p := range recent {
		if p.Tracked && p.PlayedAt > cutoff {
			played[p.TrackID] = true
		}
	}

	maxPos := 0
	for i, t := range snapshot {
		if played[t.ID] {
			res.Matched++
			maxPos = i + 1
		}
	}

	if res.Matched < opts.MinMatches {
		return res
	}
	res.MaxPosition = maxPos

	combined := make([]models.PlayEvent, 0, len(recent)+maxPos)
	combined = append(combined, recent...)
	for _, t := range snapshot[:maxPos] {
		if t.ID == "" {
			continue
		}
		p := models.PlayFromTrack(t, res.Latest, models.InferredBatch)
		p.Tracked = true
		combined = append(combined, p)
	}

	res.Plays = Dedupe(combined)
	res.Inferred = len(res.Plays) - len(Dedupe(recent))
	return res
}
