package identity

import (
	"context"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// Thresholds are the tuned cut-offs for flagging a candidate substitution.
type Thresholds struct {
	Name              float64 // minimum name similarity for a match on name alone
	DurationTolerance float64 // maximum |dR-dC|/dC for the combined test
	AlbumDivisor      float64 // album similarity must exceed Name/AlbumDivisor
	ArtistDivisor     float64 // artist similarity must exceed Name/ArtistDivisor
}

// DefaultThresholds returns the values the sync pipeline has always used.
func DefaultThresholds() Thresholds {
	return Thresholds{Name: 0.8, DurationTolerance: 0.05, AlbumDivisor: 2, ArtistDivisor: 1.5}
}

// ThresholdsFromConfig reads the resolver section of the application config.
func ThresholdsFromConfig(c shared.ResolverConfig) Thresholds {
	return Thresholds{
		Name:              c.NameThreshold,
		DurationTolerance: c.DurationTolerance,
		AlbumDivisor:      c.AlbumDivisor,
		ArtistDivisor:     c.ArtistDivisor,
	}
}

// Scores holds the comparison of a recently played track against a playlist candidate.
type Scores struct {
	Name          float64
	Artist        float64
	Album         float64
	DurationRatio float64 // |dR-dC|/dC, +Inf when the candidate has no duration
}

// Compare scores recent against candidate on normalised names and duration.
func Compare(recent, candidate models.Track) Scores {
	ratio := math.Inf(1)
	if candidate.DurationMS > 0 {
		ratio = math.Abs(float64(recent.DurationMS-candidate.DurationMS)) / float64(candidate.DurationMS)
	}

	return Scores{
		Name:          Similarity(Normalize(recent.Name), Normalize(candidate.Name)),
		Artist:        Similarity(Normalize(recent.Artist), Normalize(candidate.Artist)),
		Album:         Similarity(Normalize(recent.Album), Normalize(candidate.Album)),
		DurationRatio: ratio,
	}
}

// Flags reports whether s is close enough to ask the user about a substitution.
func (th Thresholds) Flags(s Scores) bool {
	if s.Name > th.Name {
		return true
	}
	return s.Name > th.Name/2 &&
		s.DurationRatio < th.DurationTolerance &&
		(s.Album > th.Name/th.AlbumDivisor || s.Artist > th.Name/th.ArtistDivisor)
}

// PendingMatch is a flagged substitution awaiting a decision.
type PendingMatch struct {
	Recent    models.Track // track as reported by recent history
	Candidate models.Track // track as stored in the playlist mirror
	Position  int          // 1-based position of Candidate in the snapshot
	Scores    Scores
}

// MatchConfirmer decides whether a flagged candidate is the same song under a new id.
type MatchConfirmer interface {
	ConfirmMatch(ctx context.Context, m PendingMatch) (bool, error)
}

// MatchConfirmerFunc adapts a function to [MatchConfirmer].
type MatchConfirmerFunc func(ctx context.Context, m PendingMatch) (bool, error)

func (f MatchConfirmerFunc) ConfirmMatch(ctx context.Context, m PendingMatch) (bool, error) {
	return f(ctx, m)
}

// IDRewriter replaces every occurrence of oldID with next.ID in the persisted datasets.
type IDRewriter interface {
	RewriteTrackID(ctx context.Context, oldID string, next models.Track) error
}

// Substitution records an accepted id rewrite.
type Substitution struct {
	OldID string
	NewID string
	Name  string
}

// Result summarises one resolver pass.
type Result struct {
	Accepted []Substitution
	Rejected int
	Compared int
	Snapshot models.Snapshot // snapshot with accepted substitutions applied
}

// Resolver detects catalog id drift between recent plays and a playlist mirror.
type Resolver struct {
	thresholds Thresholds
	confirmer  MatchConfirmer
	rewriter   IDRewriter
	logger     *log.Logger
}

// NewResolver creates a Resolver. A nil logger discards output.
func NewResolver(th Thresholds, confirmer MatchConfirmer, rewriter IDRewriter, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Resolver{thresholds: th, confirmer: confirmer, rewriter: rewriter, logger: logger}
}

// Resolve compares each distinct recent track missing from snapshot against every snapshot track.
//
// Flagged pairs go to the confirmer; accepted pairs are rewritten through the [IDRewriter] and applied
// to the returned snapshot so later comparisons see the new id. A pair is decided at most once per call.
func (r *Resolver) Resolve(ctx context.Context, recent []models.PlayEvent, snapshot models.Snapshot) (Result, error) {
	res := Result{Snapshot: snapshot}
	known := snapshot.IDs()
	decided := make(map[[2]string]bool)
	seen := make(map[string]bool)

	for _, play := range recent {
		if seen[play.TrackID] || known[play.TrackID] {
			continue
		}
		seen[play.TrackID] = true

		if err := ctx.Err(); err != nil {
			return res, err
		}

		accepted, err := r.resolveOne(ctx, play.Track(), &res, decided)
		if err != nil {
			return res, err
		}
		if accepted {
			known = res.Snapshot.IDs()
		}
	}

	r.logger.Info("identity resolution finished",
		"compared", res.Compared, "accepted", len(res.Accepted), "rejected", res.Rejected)

	return res, nil
}

func (r *Resolver) resolveOne(ctx context.Context, recent models.Track, res *Result, decided map[[2]string]bool) (bool, error) {
	for i, candidate := range res.Snapshot {
		if candidate.ID == recent.ID {
			continue
		}
		pair := [2]string{recent.ID, candidate.ID}
		if decided[pair] {
			continue
		}

		res.Compared++
		scores := Compare(recent, candidate)
		if !r.thresholds.Flags(scores) {
			continue
		}

		decided[pair] = true
		pending := PendingMatch{Recent: recent, Candidate: candidate, Position: i + 1, Scores: scores}
		ok, err := r.confirmer.ConfirmMatch(ctx, pending)
		if err != nil {
			return false, fmt.Errorf("confirm match %s -> %s: %w", candidate.ID, recent.ID, err)
		}
		if !ok {
			res.Rejected++
			r.logger.Debug("substitution rejected", "old", candidate.ID, "new", recent.ID)
			continue
		}

		next := candidate
		next.ID = recent.ID
		if err := r.rewriter.RewriteTrackID(ctx, candidate.ID, next); err != nil {
			return false, fmt.Errorf("rewrite %s -> %s: %w", candidate.ID, recent.ID, err)
		}

		r.logger.Info("substituted track id", "name", candidate.Name, "old", candidate.ID, "new", recent.ID)
		res.Accepted = append(res.Accepted, Substitution{OldID: candidate.ID, NewID: recent.ID, Name: candidate.Name})
		res.Snapshot = res.Snapshot.Replace(candidate.ID, next)
		return true, nil
	}

	return false, nil
}
