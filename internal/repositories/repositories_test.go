package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testTrack(id, name string) models.Track {
	return models.Track{ID: id, Name: name, Artist: "Artist", Album: "Album", DurationMS: 200000, Popularity: 40}
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, shared.ErrRecordMissing) {
			t.Errorf("expected ErrRecordMissing, got %v", err)
		}
	})

	t.Run("set overwrites", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))
		if err := repo.Set(ctx, "k", "one"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := repo.Set(ctx, "k", "two"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := repo.Get(ctx, "k")
		if err != nil || got != "two" {
			t.Errorf("expected two, got %q (%v)", got, err)
		}
	})

	t.Run("playlist ids", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))
		if err := repo.SetPlaylistID(ctx, models.Tracked, "pl-tracked"); err != nil {
			t.Fatalf("SetPlaylistID failed: %v", err)
		}
		if _, err := repo.PlaylistID(ctx, models.Dynamic); !errors.Is(err, shared.ErrRecordMissing) {
			t.Errorf("expected dynamic id to be missing, got %v", err)
		}

		got, err := repo.PlaylistID(ctx, models.Tracked)
		if err != nil || got != "pl-tracked" {
			t.Errorf("expected pl-tracked, got %q (%v)", got, err)
		}

		if err := repo.ClearPlaylistID(ctx, models.Tracked); err != nil {
			t.Fatalf("ClearPlaylistID failed: %v", err)
		}
		if _, err := repo.PlaylistID(ctx, models.Tracked); !errors.Is(err, shared.ErrRecordMissing) {
			t.Errorf("expected cleared id to be missing, got %v", err)
		}
	})

	t.Run("playlist failure marker", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))
		if got, err := repo.FailedPlaylistID(ctx, models.Tracked); err != nil || got != "" {
			t.Fatalf("expected no failure, got %q (%v)", got, err)
		}

		if err := repo.SetPlaylistID(ctx, models.Tracked, "bad"); err != nil {
			t.Fatalf("SetPlaylistID failed: %v", err)
		}
		if err := repo.MarkPlaylistFailed(ctx, models.Tracked, "bad"); err != nil {
			t.Fatalf("MarkPlaylistFailed failed: %v", err)
		}
		if _, err := repo.PlaylistID(ctx, models.Tracked); !errors.Is(err, shared.ErrRecordMissing) {
			t.Errorf("expected cached id removed, got %v", err)
		}
		if got, _ := repo.FailedPlaylistID(ctx, models.Tracked); got != "bad" {
			t.Errorf("expected bad, got %q", got)
		}

		if err := repo.ClearPlaylistFailure(ctx, models.Tracked); err != nil {
			t.Fatalf("ClearPlaylistFailure failed: %v", err)
		}
		if got, _ := repo.FailedPlaylistID(ctx, models.Tracked); got != "" {
			t.Errorf("expected marker cleared, got %q", got)
		}
	})

	t.Run("empty playlist id", func(t *testing.T) {
		repo := NewSettingsRepository(setupTestDB(t))
		if err := repo.SetPlaylistID(ctx, models.Tracked, ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestPlaylistRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("replace keeps order per kind", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		tracked := models.Snapshot{testTrack("c", "C"), testTrack("a", "A"), testTrack("b", "B")}
		dynamic := models.Snapshot{testTrack("b", "B")}

		if err := repo.Replace(ctx, models.Tracked, tracked); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		if err := repo.Replace(ctx, models.Dynamic, dynamic); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}

		got, err := repo.Load(ctx, models.Tracked)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(got))
		}
		for i := range tracked {
			if got[i] != tracked[i] {
				t.Errorf("position %d: expected %+v, got %+v", i+1, tracked[i], got[i])
			}
		}

		if err := repo.Replace(ctx, models.Tracked, tracked[:1]); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		got, _ = repo.Load(ctx, models.Tracked)
		if len(got) != 1 {
			t.Errorf("expected full replace to leave 1 track, got %d", len(got))
		}
		other, _ := repo.Load(ctx, models.Dynamic)
		if len(other) != 1 {
			t.Errorf("expected dynamic mirror untouched, got %d", len(other))
		}
	})

	t.Run("duplicate tracks are kept", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		snap := models.Snapshot{testTrack("a", "A"), testTrack("a", "A")}
		if err := repo.Replace(ctx, models.Tracked, snap); err != nil {
			t.Fatalf("Replace failed: %v", err)
		}
		got, _ := repo.Load(ctx, models.Tracked)
		if len(got) != 2 {
			t.Errorf("expected 2 positions, got %d", len(got))
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		repo := NewPlaylistRepository(setupTestDB(t))
		if err := repo.Replace(ctx, models.PlaylistKind("liked"), nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestPlayRepository(t *testing.T) {
	ctx := context.Background()
	plays := []models.PlayEvent{
		{TrackID: "a", TrackName: "A", PlayedAt: 1000, Batch: 1, Tracked: true},
		{TrackID: "b", TrackName: "B", PlayedAt: 3000, Batch: 1},
		{TrackID: "a", TrackName: "A", PlayedAt: 1000, Batch: 2},
		{TrackID: "c", TrackName: "C", PlayedAt: 3000, Batch: 0, Tracked: true},
	}

	t.Run("save and load", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		if err := repo.Save(ctx, plays); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected duplicate key dropped, got %d rows", len(got))
		}

		wantOrder := []string{"b", "c", "a"}
		for i, id := range wantOrder {
			if got[i].TrackID != id {
				t.Errorf("row %d: expected %s, got %s", i, id, got[i].TrackID)
			}
		}
		if got[2].Batch != 1 || !got[2].Tracked {
			t.Errorf("expected first occurrence kept with its flags, got %+v", got[2])
		}
		if !got[1].Inferred() {
			t.Error("expected batch 0 to round trip as inferred")
		}
	})

	t.Run("latest", func(t *testing.T) {
		repo := NewHistoryRepository(setupTestDB(t))
		if _, err := repo.Latest(ctx); !errors.Is(err, shared.ErrRecordMissing) {
			t.Errorf("expected ErrRecordMissing on empty history, got %v", err)
		}

		if err := repo.Save(ctx, plays); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		latest, err := repo.Latest(ctx)
		if err != nil || latest != 3000 {
			t.Errorf("expected 3000, got %d (%v)", latest, err)
		}
	})

	t.Run("staging is separate from history", func(t *testing.T) {
		db := setupTestDB(t)
		recent := NewRecentPlayRepository(db)
		history := NewHistoryRepository(db)

		if err := recent.Save(ctx, plays); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if n, _ := history.Count(ctx); n != 0 {
			t.Errorf("expected empty history, got %d", n)
		}
		if err := recent.Clear(ctx); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if n, _ := recent.Count(ctx); n != 0 {
			t.Errorf("expected cleared staging table, got %d", n)
		}
	})
}

func TestRatingRepository(t *testing.T) {
	ctx := context.Background()

	rated := func(id string, stars, ranking int) models.RatingRecord {
		r := models.NewRating(testTrack(id, "Song "+id))
		r.Stars = stars
		r.Ranking = ranking
		r.TierPlays = [5]int{5, 4, 3, 2, 1}
		r.StarPlays = r.PlaysFor(r.Tier())
		r.LastPlayed = 123456
		return r
	}

	t.Run("save and load in rank order", func(t *testing.T) {
		repo := NewRatingRepository(setupTestDB(t))
		ratings := []models.RatingRecord{rated("b", 2, 2), rated("a", 5, 1), rated("new", 0, 0)}
		if err := repo.Save(ctx, ratings); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		wantOrder := []string{"a", "b", "new"}
		for i, id := range wantOrder {
			if got[i].TrackID != id {
				t.Errorf("row %d: expected %s, got %s", i, id, got[i].TrackID)
			}
		}
		if got[0].TierPlays != [5]int{5, 4, 3, 2, 1} || got[0].LastPlayed != 123456 {
			t.Errorf("play statistics did not round trip: %+v", got[0])
		}
	})

	t.Run("ranked save archives removals", func(t *testing.T) {
		repo := NewRatingRepository(setupTestDB(t))
		if err := repo.Save(ctx, []models.RatingRecord{rated("a", 5, 1), rated("gone", 3, 2)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		removed := []models.RemovalRecord{{RatingRecord: rated("gone", 3, 2), RemovedAt: 999}}
		if err := repo.SaveRanked(ctx, []models.RatingRecord{rated("a", 5, 1)}, removed); err != nil {
			t.Fatalf("SaveRanked failed: %v", err)
		}

		if _, err := repo.Get(ctx, "gone"); !errors.Is(err, shared.ErrRecordMissing) {
			t.Errorf("expected removed rating to be gone, got %v", err)
		}

		archive, err := repo.Removals(ctx)
		if err != nil {
			t.Fatalf("Removals failed: %v", err)
		}
		if len(archive) != 1 || archive[0].TrackID != "gone" || archive[0].RemovedAt != 999 || archive[0].Stars != 3 {
			t.Errorf("unexpected archive %+v", archive)
		}
	})

	t.Run("invalid stars rejected", func(t *testing.T) {
		repo := NewRatingRepository(setupTestDB(t))
		if err := repo.Save(ctx, []models.RatingRecord{rated("a", 7, 1)}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("update stars", func(t *testing.T) {
		repo := NewRatingRepository(setupTestDB(t))
		if err := repo.Save(ctx, []models.RatingRecord{rated("a", 0, 1)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.UpdateStars(ctx, "a", 4); err != nil {
			t.Fatalf("UpdateStars failed: %v", err)
		}
		got, err := repo.Get(ctx, "a")
		if err != nil || got.Stars != 4 {
			t.Errorf("expected 4 stars, got %d (%v)", got.Stars, err)
		}
		if err := repo.UpdateStars(ctx, "missing", 4); !errors.Is(err, shared.ErrRecordMissing) {
			t.Errorf("expected ErrRecordMissing, got %v", err)
		}
		if err := repo.UpdateStars(ctx, "a", 6); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestSyncRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncRunRepository(setupTestDB(t))
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	run, err := repo.Start(ctx, start)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if run.ID == "" || run.Status != models.RunRunning {
		t.Fatalf("unexpected run %+v", run)
	}

	run.Fetched = 12
	run.Merged = 10
	if err := repo.Finish(ctx, run, start.Add(time.Minute), nil); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	got, err := repo.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.RunCompleted || got.Fetched != 12 || got.Merged != 10 {
		t.Errorf("unexpected stored run %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(start.Add(time.Minute)) {
		t.Errorf("expected finished_at to round trip, got %v", got.FinishedAt)
	}

	failed, err := repo.Start(ctx, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := repo.Finish(ctx, failed, start.Add(2*time.Hour), errors.New("boom")); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	runs, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != failed.ID {
		t.Fatalf("expected newest run first, got %+v", runs)
	}
	if runs[0].Status != models.RunFailed || runs[0].Error != "boom" {
		t.Errorf("expected failed run with error, got %+v", runs[0])
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, shared.ErrRecordMissing) {
		t.Errorf("expected ErrRecordMissing, got %v", err)
	}
}

func TestTrackRewriter(t *testing.T) {
	ctx := context.Background()
	next := testTrack("new", "Song (Remastered)")

	seed := func(t *testing.T) (*sql.DB, *Repositories) {
		db := setupTestDB(t)
		repos := New(db)
		old := testTrack("old", "Song")

		if err := repos.Ratings.Save(ctx, []models.RatingRecord{{TrackID: "old", Name: "Song", Stars: 4, Ranking: 1}}); err != nil {
			t.Fatalf("seed ratings: %v", err)
		}
		for _, kind := range []models.PlaylistKind{models.Tracked, models.Dynamic} {
			if err := repos.Playlist.Replace(ctx, kind, models.Snapshot{old, testTrack("x", "X")}); err != nil {
				t.Fatalf("seed %s: %v", kind, err)
			}
		}
		history := []models.PlayEvent{
			{TrackID: "old", PlayedAt: 1000, Batch: 1},
			{TrackID: "old", PlayedAt: 2000, Batch: 1},
			{TrackID: "new", PlayedAt: 2000, Batch: 2},
		}
		if err := repos.History.Save(ctx, history); err != nil {
			t.Fatalf("seed history: %v", err)
		}
		return db, repos
	}

	t.Run("rewrites every dataset", func(t *testing.T) {
		_, repos := seed(t)
		if err := repos.Rewriter.RewriteTrackID(ctx, "old", next); err != nil {
			t.Fatalf("RewriteTrackID failed: %v", err)
		}

		rating, err := repos.Ratings.Get(ctx, "new")
		if err != nil || rating.Stars != 4 {
			t.Errorf("expected rating moved with stars kept, got %+v (%v)", rating, err)
		}
		if _, err := repos.Ratings.Get(ctx, "old"); !errors.Is(err, shared.ErrRecordMissing) {
			t.Errorf("expected old rating gone, got %v", err)
		}

		for _, kind := range []models.PlaylistKind{models.Tracked, models.Dynamic} {
			snap, _ := repos.Playlist.Load(ctx, kind)
			if snap.IndexOf("new") != 1 || snap.IndexOf("old") != 0 {
				t.Errorf("%s mirror not rewritten: %+v", kind, snap)
			}
		}

		plays, _ := repos.History.Load(ctx)
		if len(plays) != 2 {
			t.Fatalf("expected colliding play collapsed to 2 rows, got %d", len(plays))
		}
		for _, p := range plays {
			if p.TrackID != "new" {
				t.Errorf("expected only new ids in history, got %s", p.TrackID)
			}
		}
	})

	t.Run("reports partial rewrite", func(t *testing.T) {
		db, repos := seed(t)
		if _, err := db.Exec("DROP TABLE listen_history"); err != nil {
			t.Fatalf("drop table: %v", err)
		}

		err := repos.Rewriter.RewriteTrackID(ctx, "old", next)
		var rerr *RewriteError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected *RewriteError, got %v", err)
		}
		if rerr.Failed != DatasetHistory {
			t.Errorf("expected failure on %s, got %s", DatasetHistory, rerr.Failed)
		}
		if len(rerr.Done) != 3 {
			t.Errorf("expected 3 datasets rewritten, got %v", rerr.Done)
		}
		if !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage in chain, got %v", err)
		}
	})

	t.Run("missing ids", func(t *testing.T) {
		_, repos := seed(t)
		if err := repos.Rewriter.RewriteTrackID(ctx, "", next); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
