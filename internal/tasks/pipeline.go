package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rotation/internal/history"
	"github.com/desertthunder/rotation/internal/identity"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/ranking"
	"github.com/desertthunder/rotation/internal/repositories"
	"github.com/desertthunder/rotation/internal/services"
	"github.com/desertthunder/rotation/internal/shared"
)

// LoginAttempts is how many times a sync tries to reach the account before giving up.
const LoginAttempts = 3

// PlaylistPrompter supplies a playlist id that is neither cached nor configured.
type PlaylistPrompter interface {
	PlaylistID(ctx context.Context, kind models.PlaylistKind) (string, error)
}

// Deciders bundles the user-facing decisions a sync may need.
type Deciders struct {
	Confirmer identity.MatchConfirmer
	Reviewer  ranking.RatingReviewer
	Prompter  PlaylistPrompter
}

// Mirror is one playlist as fetched during the current run.
type Mirror struct {
	Kind       models.PlaylistKind
	PlaylistID string
	Snapshot   models.Snapshot
}

// Mirrors holds the tracked and dynamic playlist mirrors.
type Mirrors map[models.PlaylistKind]Mirror

// Pipeline runs a full sync against one library and one database.
type Pipeline struct {
	lib      services.Library
	repos    *repositories.Repositories
	cfg      *shared.Config
	deciders Deciders
	now      func() time.Time
	rng      *rand.Rand
	logger   *log.Logger
}

// NewPipeline creates a Pipeline. A nil logger discards output.
func NewPipeline(lib services.Library, repos *repositories.Repositories, cfg *shared.Config, d Deciders, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Pipeline{lib: lib, repos: repos, cfg: cfg, deciders: d, now: time.Now, logger: logger}
}

// WithClock replaces the wall clock for fetching and ranking.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// WithRand fixes the ranking tiebreak source.
func (p *Pipeline) WithRand(r *rand.Rand) *Pipeline {
	p.rng = r
	return p
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (p *Pipeline) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs one sync and records it as a [models.SyncRun].
//
// The run row is finished even when ctx is cancelled so interrupted syncs stay visible.
func (p *Pipeline) Run(ctx context.Context, progress chan<- ProgressUpdate) (run *models.SyncRun, err error) {
	run, err = p.repos.Runs.Start(ctx, p.now())
	if err != nil {
		return nil, err
	}
	logger := shared.WithLogger(p.logger, "run", run.ID)

	defer func() {
		if ferr := p.repos.Runs.Finish(context.WithoutCancel(ctx), run, p.now(), err); ferr != nil {
			logger.Error("failed to record sync run", "error", ferr)
		}
	}()

	p.sendProgress(progress, loginUpdate())
	if _, err = services.Login(ctx, p.lib, LoginAttempts, logger); err != nil {
		return run, err
	}

	mirrors, err := p.SyncPlaylists(ctx, progress)
	if err != nil {
		return run, err
	}

	run.Since = p.Watermark(ctx)
	p.sendProgress(progress, fetchUpdate(run.Since))

	fetcher := history.NewFetcher(p.lib, history.FetchOptionsFromConfig(p.cfg.History), shared.WithLogger(logger, "component", "fetcher")).
		WithClock(p.now)
	fetched, err := fetcher.Fetch(ctx, run.Since)
	if err != nil {
		return run, err
	}
	run.Fetched = len(fetched.Plays)
	p.sendProgress(progress, fetchedUpdate(run.Fetched, fetched.Pages))

	plays, err := p.recoverStaged(ctx, fetched.Plays, logger)
	if err != nil {
		return run, err
	}

	var listens []models.PlayEvent
	if len(plays) > 0 {
		listens, err = p.ingest(ctx, progress, run, mirrors, plays, logger)
	} else {
		listens, err = p.repos.History.Load(ctx)
	}
	if err != nil {
		return run, err
	}

	res, err := p.Rank(ctx, listens, mirrors[models.Tracked].Snapshot, logger)
	if err != nil {
		return run, err
	}
	run.Ranked = len(res.Ratings)
	run.Removed = len(res.Removed)
	p.sendProgress(progress, rankUpdate(run.Ranked, run.Removed))

	if err = p.Rebuild(ctx, progress, mirrors, res); err != nil {
		return run, err
	}

	p.sendProgress(progress, doneUpdate(run))
	logger.Info("sync finished", "fetched", run.Fetched, "resolved", run.Resolved, "inferred", run.Inferred,
		"history", run.Merged, "ranked", run.Ranked, "removed", run.Removed)
	return run, nil
}

// ingest stages fresh plays, resolves id drift, infers missing plays and merges into history.
// It returns the merged history.
func (p *Pipeline) ingest(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	run *models.SyncRun,
	mirrors Mirrors,
	plays []models.PlayEvent,
	logger *log.Logger,
) ([]models.PlayEvent, error) {
	tracked := mirrors[models.Tracked]
	history.MarkTracked(plays, tracked.Snapshot.IDs())

	if err := p.repos.Recent.Save(ctx, plays); err != nil {
		return nil, err
	}

	if p.cfg.Resolver.Enabled {
		confirmer := p.deciders.Confirmer
		if confirmer == nil {
			confirmer = identity.MatchConfirmerFunc(func(context.Context, identity.PendingMatch) (bool, error) {
				return false, nil
			})
		}
		resolver := identity.NewResolver(
			identity.ThresholdsFromConfig(p.cfg.Resolver),
			confirmer,
			p.repos.Rewriter,
			shared.WithLogger(logger, "component", "resolver"),
		)

		resolved, err := resolver.Resolve(ctx, plays, tracked.Snapshot)
		if err != nil {
			return nil, err
		}
		run.Resolved = len(resolved.Accepted)
		p.sendProgress(progress, resolveUpdate(run.Resolved, resolved.Compared))

		if len(resolved.Accepted) > 0 {
			mirrors.apply(resolved.Accepted, resolved.Snapshot)
			tracked = mirrors[models.Tracked]
			history.MarkTracked(plays, tracked.Snapshot.IDs())
		}
	}

	if p.cfg.History.Infer {
		source := mirrors[models.PlaylistKind(p.cfg.History.InferenceSource)]
		inferred := history.Infer(plays, source.Snapshot, history.InferOptionsFromConfig(p.cfg.History))
		plays = inferred.Plays
		run.Inferred = inferred.Inferred
		p.sendProgress(progress, inferUpdate(inferred.Inferred, inferred.MaxPosition))
		logger.Info("history inference", "source", source.Kind, "matched", inferred.Matched,
			"position", inferred.MaxPosition, "inferred", inferred.Inferred)
	}

	durable, err := p.repos.History.Load(ctx)
	if err != nil {
		return nil, err
	}

	merged := history.Merge(durable, plays, tracked.Snapshot.IDs(), p.cfg.History.CollapseWindow)
	if err := p.repos.History.Save(ctx, merged); err != nil {
		return nil, err
	}
	if err := p.repos.Recent.Clear(ctx); err != nil {
		return nil, err
	}

	run.Merged = len(merged)
	p.sendProgress(progress, mergeUpdate(run.Merged))
	logger.Info("merged listen history", "before", len(durable), "fresh", len(plays), "after", len(merged))
	return merged, nil
}

// recoverStaged folds in plays staged by a run that stopped before merging.
//
// Staged plays lie before the watermark, so the fetch never returns them again.
func (p *Pipeline) recoverStaged(ctx context.Context, fetched []models.PlayEvent, logger *log.Logger) ([]models.PlayEvent, error) {
	staged, err := p.repos.Recent.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(staged) == 0 {
		return fetched, nil
	}

	logger.Warn("recovering plays staged by an interrupted sync", "staged", len(staged), "fetched", len(fetched))
	plays := history.Dedupe(append(append([]models.PlayEvent{}, fetched...), staged...))
	history.SortNewestFirst(plays)
	return plays, nil
}

// apply carries accepted substitutions into every mirror; tracked takes the resolver's snapshot.
func (m Mirrors) apply(subs []identity.Substitution, tracked models.Snapshot) {
	for kind, mirror := range m {
		if kind == models.Tracked {
			mirror.Snapshot = tracked
		} else {
			for _, s := range subs {
				if pos := tracked.IndexOf(s.NewID); pos > 0 {
					mirror.Snapshot = mirror.Snapshot.Replace(s.OldID, tracked[pos-1])
				}
			}
		}
		m[kind] = mirror
	}
}

// Watermark returns the newest played_at in the listen history, or the configured default.
func (p *Pipeline) Watermark(ctx context.Context) int64 {
	latest, err := p.repos.History.Latest(ctx)
	if err == nil {
		return latest
	}

	fallback := shared.EpochMillis(p.cfg.History.DefaultWatermark)
	if errors.Is(err, shared.ErrRecordMissing) {
		p.logger.Warn("listen history is empty, using default watermark", "since", shared.FormatMillis(fallback))
	} else {
		p.logger.Warn("could not read listen history watermark, using default", "since", shared.FormatMillis(fallback), "error", err)
	}
	return fallback
}

// SyncPlaylists mirrors the tracked and dynamic playlists into the database.
//
// A playlist that cannot be retrieved has its cached id removed and ends the sync with
// [shared.ErrPlaylistNotFound].
func (p *Pipeline) SyncPlaylists(ctx context.Context, progress chan<- ProgressUpdate) (Mirrors, error) {
	kinds := []models.PlaylistKind{models.Tracked, models.Dynamic}
	mirrors := make(Mirrors, len(kinds))

	for i, kind := range kinds {
		id, err := p.playlistID(ctx, kind)
		if err != nil {
			return nil, err
		}

		tracks, err := p.lib.PlaylistTracks(ctx, id)
		if err != nil {
			if cerr := p.repos.Settings.MarkPlaylistFailed(ctx, kind, id); cerr != nil {
				p.logger.Error("failed to clear cached playlist id", "kind", kind, "error", cerr)
			}
			if errors.Is(err, shared.ErrPlaylistNotFound) {
				return nil, fmt.Errorf("%s playlist %s: %w", kind, id, err)
			}
			return nil, fmt.Errorf("%w: %s playlist %s: %v", shared.ErrPlaylistNotFound, kind, id, err)
		}

		if err := p.repos.Settings.ClearPlaylistFailure(ctx, kind); err != nil {
			return nil, err
		}

		snapshot := models.Snapshot(tracks)
		if err := p.repos.Playlist.Replace(ctx, kind, snapshot); err != nil {
			return nil, err
		}

		mirrors[kind] = Mirror{Kind: kind, PlaylistID: id, Snapshot: snapshot}
		p.sendProgress(progress, mirrorUpdate(i+1, len(kinds), kind, len(snapshot)))
		p.logger.Info("mirrored playlist", "kind", kind, "id", id, "tracks", len(snapshot))
	}

	return mirrors, nil
}

// playlistID reads the cached id for kind, seeding it from config or the prompter on first use.
//
// A configured id that failed on an earlier run is skipped until it changes or succeeds.
func (p *Pipeline) playlistID(ctx context.Context, kind models.PlaylistKind) (string, error) {
	id, err := p.repos.Settings.PlaylistID(ctx, kind)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, shared.ErrRecordMissing) {
		return "", err
	}

	id = p.cfg.Playlists.TrackedID
	if kind == models.Dynamic {
		id = p.cfg.Playlists.DynamicID
	}

	failed, err := p.repos.Settings.FailedPlaylistID(ctx, kind)
	if err != nil {
		return "", err
	}
	if id != "" && id == failed {
		p.logger.Warn("configured playlist id could not be retrieved before, ignoring it", "kind", kind, "id", id)
		if p.deciders.Prompter == nil {
			return "", fmt.Errorf("%w: %s playlist %s could not be retrieved, edit playlists.%s_id",
				shared.ErrPlaylistNotFound, kind, id, kind)
		}
		id = ""
	}

	if id == "" {
		if p.deciders.Prompter == nil {
			return "", fmt.Errorf("%w: no %s playlist id configured", shared.ErrMissingConfig, kind)
		}
		if id, err = p.deciders.Prompter.PlaylistID(ctx, kind); err != nil {
			return "", err
		}
	}

	if err := p.repos.Settings.SetPlaylistID(ctx, kind, id); err != nil {
		return "", err
	}
	return id, nil
}

// Rank orders the tracked songs against listens and persists ratings and removals together.
func (p *Pipeline) Rank(ctx context.Context, listens []models.PlayEvent, tracked models.Snapshot, logger *log.Logger) (ranking.RankResult, error) {
	if logger == nil {
		logger = p.logger
	}

	ratings, err := p.repos.Ratings.Load(ctx)
	if err != nil {
		return ranking.RankResult{}, err
	}

	engine := ranking.NewEngine(ranking.OptionsFromConfig(p.cfg.Ranking), p.deciders.Reviewer, shared.WithLogger(logger, "component", "ranking")).
		WithClock(p.now)
	if p.rng != nil {
		engine.WithRand(p.rng)
	}

	res, err := engine.Rank(ctx, listens, ratings, tracked)
	if err != nil {
		return res, err
	}

	if err := p.repos.Ratings.SaveRanked(ctx, res.Ratings, res.Removed); err != nil {
		return res, err
	}
	return res, nil
}

// Rebuild rewrites both playlists from the ranking: tracked gets every track, dynamic the top N.
func (p *Pipeline) Rebuild(ctx context.Context, progress chan<- ProgressUpdate, mirrors Mirrors, res ranking.RankResult) error {
	targets := []struct {
		kind  models.PlaylistKind
		limit int
	}{
		{models.Tracked, 0},
		{models.Dynamic, p.cfg.Playlists.DynamicSize},
	}

	for i, target := range targets {
		mirror, ok := mirrors[target.kind]
		if !ok || mirror.PlaylistID == "" {
			continue
		}

		ids := res.IDs(target.limit)
		if err := p.RebuildPlaylist(ctx, mirror.PlaylistID, ids); err != nil {
			return fmt.Errorf("rebuild %s playlist: %w", target.kind, err)
		}
		p.sendProgress(progress, rebuildUpdate(i+1, len(targets), target.kind, len(ids)))
		p.logger.Info("rebuilt playlist", "kind", target.kind, "id", mirror.PlaylistID, "tracks", len(ids))
	}
	return nil
}

// RebuildPlaylist empties playlistID and appends ids in order, in batches.
func (p *Pipeline) RebuildPlaylist(ctx context.Context, playlistID string, ids []string) error {
	if err := p.lib.ReplacePlaylist(ctx, playlistID, nil); err != nil {
		return err
	}

	size := p.cfg.Playlists.BatchSize
	if size <= 0 || size > services.MaxBatch {
		size = services.MaxBatch
	}

	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		if err := p.lib.AddToPlaylist(ctx, playlistID, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// ReviewRatings asks the reviewer about stored ratings and saves changed stars.
//
// With all false only unrated tracks are asked about.
func (p *Pipeline) ReviewRatings(ctx context.Context, all bool) (reviewed, changed int, err error) {
	if p.deciders.Reviewer == nil {
		return 0, 0, fmt.Errorf("%w: no reviewer", shared.ErrInvalidArgument)
	}

	ratings, err := p.repos.Ratings.Load(ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, r := range ratings {
		if !all && r.Stars != 0 {
			continue
		}
		reason := ranking.ReasonUnrated
		if r.Stars != 0 {
			reason = ranking.ReasonManual
		}

		stars, err := p.deciders.Reviewer.ReviewRating(ctx, ranking.PendingReview{Rating: r, Reason: reason})
		if err != nil {
			return reviewed, changed, err
		}
		reviewed++
		if !models.ValidStars(stars) || stars == r.Stars {
			continue
		}
		if err := p.repos.Ratings.UpdateStars(ctx, r.TrackID, stars); err != nil {
			return reviewed, changed, err
		}
		changed++
	}
	return reviewed, changed, nil
}
