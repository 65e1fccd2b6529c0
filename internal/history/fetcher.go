package history

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
	"golang.org/x/time/rate"
)

// PlaySource lists recently played tracks, newest first, strictly before a cursor.
type PlaySource interface {
	RecentlyPlayed(ctx context.Context, before int64, limit int) ([]models.PlayEvent, error)
}

// FetchOptions tunes the backward walk through play history.
type FetchOptions struct {
	PageSize     int           // items requested per page
	StallStep    time.Duration // cursor decrement when a page makes no progress
	MaxStalls    int           // consecutive stalls tolerated before giving up
	PageInterval time.Duration // minimum spacing between pages that made progress
}

// FetchOptionsFromConfig reads the history section of the application config.
func FetchOptionsFromConfig(c shared.HistoryConfig) FetchOptions {
	return FetchOptions{
		PageSize:     c.PageSize,
		StallStep:    c.StallStep,
		MaxStalls:    c.MaxStalls,
		PageInterval: c.PageInterval,
	}
}

// FetchResult is the outcome of one fetch.
type FetchResult struct {
	Plays   []models.PlayEvent // newest first, unique by (track, played_at)
	Pages   int
	Stalls  int  // total stalled pages
	Partial bool // true when the walk ended on the stall limit
}

// Fetcher walks recently played history backwards from now until it reaches a watermark.
type Fetcher struct {
	source  PlaySource
	opts    FetchOptions
	limiter *rate.Limiter
	now     func() time.Time
	logger  *log.Logger
}

// NewFetcher creates a Fetcher over source. A nil logger discards output.
func NewFetcher(source PlaySource, opts FetchOptions, logger *log.Logger) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.StallStep <= 0 {
		opts.StallStep = time.Minute
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	limit := rate.Inf
	if opts.PageInterval > 0 {
		limit = rate.Every(opts.PageInterval)
	}

	return &Fetcher{
		source:  source,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the wall clock used for the starting cursor.
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// Fetch returns every play at or after since.
//
// Each page is requested with before=cursor. The cursor moves to the oldest play seen; when a page
// does not move it, the cursor is pushed back by StallStep. After MaxStalls consecutive stalls the
// next stall ends the walk and the plays gathered so far are returned without error.
func (f *Fetcher) Fetch(ctx context.Context, since int64) (FetchResult, error) {
	var res FetchResult
	seen := make(map[models.PlayKey]bool)
	cursor := shared.EpochMillis(f.now())
	consecutive := 0

	// the first page goes out immediately
	f.limiter.Allow()

	for batch := 1; ; batch++ {
		page, err := f.source.RecentlyPlayed(ctx, cursor, f.opts.PageSize)
		if err != nil {
			return res, fmt.Errorf("%w: recently played before %d: %v", shared.ErrAPIRequest, cursor, err)
		}
		res.Pages++

		if len(page) == 0 {
			break
		}

		oldest := cursor
		crossed := false
		for _, play := range page {
			if play.PlayedAt < since {
				crossed = true
				continue
			}
			if play.PlayedAt < oldest {
				oldest = play.PlayedAt
			}
			if seen[play.Key()] {
				continue
			}
			seen[play.Key()] = true
			play.Batch = batch
			res.Plays = append(res.Plays, play)
		}

		f.logger.Debug("fetched page", "batch", batch, "items", len(page), "cursor", cursor, "oldest", oldest)

		if crossed {
			break
		}

		if oldest < cursor {
			cursor = oldest
			consecutive = 0
			if err := f.limiter.Wait(ctx); err != nil {
				return res, err
			}
			continue
		}

		consecutive++
		res.Stalls++
		if consecutive > f.opts.MaxStalls {
			res.Partial = true
			f.logger.Warn("history fetch stalled, keeping partial result",
				"stalls", consecutive, "cursor", cursor, "plays", len(res.Plays))
			break
		}
		cursor -= f.opts.StallStep.Milliseconds()
	}

	f.logger.Info("fetched recent plays", "plays", len(res.Plays), "pages", res.Pages, "since", shared.FormatMillis(since))
	return res, nil
}

// MarkTracked sets the Tracked flag of each play from membership in ids.
func MarkTracked(plays []models.PlayEvent, ids map[string]bool) {
	for i := range plays {
		plays[i].Tracked = ids[plays[i].TrackID]
	}
}

// Dedupe drops plays whose (track, played_at) was already seen, keeping the first occurrence.
func Dedupe(plays []models.PlayEvent) []models.PlayEvent {
	seen := make(map[models.PlayKey]bool, len(plays))
	out := make([]models.PlayEvent, 0, len(plays))
	for _, p := range plays {
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		out = append(out, p)
	}
	return out
}
