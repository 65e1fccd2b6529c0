package ranking

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// Review reasons.
const (
	ReasonUnrated        = "unrated"
	ReasonRecentlyPlayed = "recently played"
	ReasonManual         = "manual review"
)

// PendingReview is a rating the user is asked to confirm or change.
type PendingReview struct {
	Rating models.RatingRecord
	Reason string
}

// RatingReviewer asks for a star rating.
//
// A reply outside 1..5 keeps the prior rating. A non-nil error aborts ranking.
type RatingReviewer interface {
	ReviewRating(ctx context.Context, p PendingReview) (int, error)
}

// RatingReviewerFunc adapts a function to [RatingReviewer].
type RatingReviewerFunc func(ctx context.Context, p PendingReview) (int, error)

func (f RatingReviewerFunc) ReviewRating(ctx context.Context, p PendingReview) (int, error) {
	return f(ctx, p)
}

// Options tunes the ranking windows.
type Options struct {
	TierDays     [models.MaxStars]int // TierDays[i] is the lookback for i+1 stars
	ReviewWindow time.Duration
}

// DefaultOptions returns 180/90/60/30/14 day tiers and a 24 hour review window.
func DefaultOptions() Options {
	return Options{TierDays: [models.MaxStars]int{180, 90, 60, 30, 14}, ReviewWindow: 24 * time.Hour}
}

// OptionsFromConfig reads the ranking section of the application config.
func OptionsFromConfig(c shared.RankingConfig) Options {
	return Options{TierDays: c.TierDays, ReviewWindow: c.ReviewWindow}
}

// RankResult is the ranked rating table and what changed on the way.
type RankResult struct {
	Ratings  []models.RatingRecord // ordered by Ranking
	Removed  []models.RemovalRecord
	Added    int
	Reviewed int
	Changed  int // reviews that changed the star rating
}

// IDs returns the ranked track ids, truncated to limit when limit > 0.
func (r RankResult) IDs(limit int) []string {
	n := len(r.Ratings)
	if limit > 0 && limit < n {
		n = limit
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = r.Ratings[i].TrackID
	}
	return ids
}

// Engine orders tracked songs so the least recently rotated, relative to their rating, come first.
type Engine struct {
	opts     Options
	reviewer RatingReviewer
	now      func() time.Time
	rng      *rand.Rand
	logger   *log.Logger
}

// NewEngine creates an Engine. A nil reviewer skips reviews; a nil logger discards output.
func NewEngine(opts Options, reviewer RatingReviewer, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Engine{
		opts:     opts,
		reviewer: reviewer,
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:   logger,
	}
}

// WithClock replaces the wall clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithRand replaces the tiebreak source.
func (e *Engine) WithRand(r *rand.Rand) *Engine {
	e.rng = r
	return e
}

// Rank reconciles ratings with the snapshot, refreshes play statistics and assigns rankings.
//
// Ratings whose track left the snapshot are returned in Removed and are absent from Ratings.
// Ranking ascends by StarPlays with ties broken at random.
func (e *Engine) Rank(ctx context.Context, history []models.PlayEvent, ratings []models.RatingRecord, snapshot models.Snapshot) (RankResult, error) {
	now := e.now()
	nowMs := shared.EpochMillis(now)

	res := e.reconcile(ratings, snapshot, nowMs)
	e.countPlays(res.Ratings, history, nowMs)

	if e.reviewer != nil {
		reviewCutoff := nowMs - e.opts.ReviewWindow.Milliseconds()
		for i := range res.Ratings {
			r := &res.Ratings[i]
			reason := ""
			switch {
			case r.Stars == 0:
				reason = ReasonUnrated
			case r.LastPlayed > reviewCutoff:
				reason = ReasonRecentlyPlayed
			default:
				continue
			}

			stars, err := e.reviewer.ReviewRating(ctx, PendingReview{Rating: *r, Reason: reason})
			if err != nil {
				return res, err
			}
			res.Reviewed++
			if !models.ValidStars(stars) {
				e.logger.Debug("keeping prior rating", "track", r.TrackID, "input", stars)
				continue
			}
			if stars != r.Stars {
				res.Changed++
				r.Stars = stars
			}
		}
	}

	for i := range res.Ratings {
		res.Ratings[i].StarPlays = res.Ratings[i].PlaysFor(res.Ratings[i].Tier())
	}

	e.order(res.Ratings)

	e.logger.Info("ranked tracks",
		"tracks", len(res.Ratings), "added", res.Added, "removed", len(res.Removed),
		"reviewed", res.Reviewed, "changed", res.Changed)
	return res, nil
}

// reconcile makes rating membership equal the snapshot, in snapshot order.
func (e *Engine) reconcile(ratings []models.RatingRecord, snapshot models.Snapshot, nowMs int64) RankResult {
	var res RankResult

	existing := make(map[string]models.RatingRecord, len(ratings))
	for _, r := range ratings {
		existing[r.TrackID] = r
	}

	members := make(map[string]bool, len(snapshot))
	for _, t := range snapshot {
		if t.ID == "" || members[t.ID] {
			continue
		}
		members[t.ID] = true

		r, ok := existing[t.ID]
		if !ok {
			r = models.NewRating(t)
			res.Added++
		}
		r.Name, r.Artist, r.Album = t.Name, t.Artist, t.Album
		res.Ratings = append(res.Ratings, r)
	}

	for _, r := range ratings {
		if members[r.TrackID] {
			continue
		}
		res.Removed = append(res.Removed, models.RemovalRecord{RatingRecord: r, RemovedAt: nowMs})
		e.logger.Info("track left the tracked playlist", "track", r.TrackID, "name", r.Name)
	}

	return res
}

// countPlays sets LastPlayed and the per-tier windowed play counts from history.
func (e *Engine) countPlays(ratings []models.RatingRecord, history []models.PlayEvent, nowMs int64) {
	index := make(map[string]int, len(ratings))
	for i := range ratings {
		ratings[i].LastPlayed = 0
		ratings[i].TierPlays = [models.MaxStars]int{}
		index[ratings[i].TrackID] = i
	}

	var cutoffs [models.MaxStars]int64
	for i, days := range e.opts.TierDays {
		cutoffs[i] = nowMs - (time.Duration(days) * 24 * time.Hour).Milliseconds()
	}

	for _, p := range history {
		i, ok := index[p.TrackID]
		if !ok {
			continue
		}
		r := &ratings[i]
		if p.PlayedAt > r.LastPlayed {
			r.LastPlayed = p.PlayedAt
		}
		for tier, cutoff := range cutoffs {
			if p.PlayedAt >= cutoff {
				r.TierPlays[tier]++
			}
		}
	}
}

// order sorts by StarPlays with a random tiebreak in [1, 2N) and assigns Ranking 1..N.
func (e *Engine) order(ratings []models.RatingRecord) {
	n := len(ratings)
	if n == 0 {
		return
	}

	tiebreak := make(map[string]int, n)
	for _, r := range ratings {
		tiebreak[r.TrackID] = 1 + e.rng.IntN(2*n-1)
	}

	sort.SliceStable(ratings, func(i, j int) bool {
		if ratings[i].StarPlays != ratings[j].StarPlays {
			return ratings[i].StarPlays < ratings[j].StarPlays
		}
		return tiebreak[ratings[i].TrackID] < tiebreak[ratings[j].TrackID]
	})

	for i := range ratings {
		ratings[i].Ranking = i + 1
	}
}
