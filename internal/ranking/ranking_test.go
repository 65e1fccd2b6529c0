package ranking

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/desertthunder/rotation/internal/models"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) int64 {
	return testNow.Add(-time.Duration(d * float64(24*time.Hour))).UnixMilli()
}

func track(id string) models.Track {
	return models.Track{ID: id, Name: "Song " + id, Artist: "Artist", Album: "Album"}
}

func rating(id string, stars int) models.RatingRecord {
	r := models.NewRating(track(id))
	r.Stars = stars
	return r
}

func newTestEngine(reviewer RatingReviewer) *Engine {
	return NewEngine(DefaultOptions(), reviewer, nil).
		WithClock(func() time.Time { return testNow }).
		WithRand(rand.New(rand.NewPCG(1, 2)))
}

func ids(ratings []models.RatingRecord) map[string]bool {
	out := make(map[string]bool, len(ratings))
	for _, r := range ratings {
		out[r.TrackID] = true
	}
	return out
}

func TestRankReconcile(t *testing.T) {
	snapshot := models.Snapshot{track("a"), track("b"), track("c"), track("b")}
	ratings := []models.RatingRecord{rating("a", 4), rating("z", 2)}
	ratings[0].Name = "Stale Name"

	res, err := newTestEngine(nil).Rank(context.Background(), nil, ratings, snapshot)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	t.Run("membership equals snapshot", func(t *testing.T) {
		got := ids(res.Ratings)
		want := snapshot.IDs()
		if len(got) != len(want) || len(res.Ratings) != len(want) {
			t.Fatalf("expected %d ratings, got %d", len(want), len(res.Ratings))
		}
		for id := range want {
			if !got[id] {
				t.Errorf("missing rating for %s", id)
			}
		}
	})

	t.Run("new tracks are unrated", func(t *testing.T) {
		if res.Added != 2 {
			t.Errorf("expected 2 added, got %d", res.Added)
		}
		for _, r := range res.Ratings {
			if r.TrackID == "a" {
				if r.Stars != 4 {
					t.Errorf("expected existing rating kept, got %d", r.Stars)
				}
				if r.Name != "Song a" {
					t.Errorf("expected display name refreshed, got %q", r.Name)
				}
			} else if r.Stars != 0 {
				t.Errorf("expected %s unrated, got %d", r.TrackID, r.Stars)
			}
		}
	})

	t.Run("removed tracks are archived", func(t *testing.T) {
		if len(res.Removed) != 1 || res.Removed[0].TrackID != "z" {
			t.Fatalf("expected z removed, got %+v", res.Removed)
		}
		if res.Removed[0].RemovedAt != testNow.UnixMilli() {
			t.Errorf("expected RemovedAt stamped with now, got %d", res.Removed[0].RemovedAt)
		}
		if res.Removed[0].Stars != 2 {
			t.Errorf("expected archived record to keep its stars, got %d", res.Removed[0].Stars)
		}
	})

	t.Run("rankings are 1..N", func(t *testing.T) {
		for i, r := range res.Ratings {
			if r.Ranking != i+1 {
				t.Errorf("position %d has ranking %d", i, r.Ranking)
			}
		}
	})
}

func TestRankArchivesOnce(t *testing.T) {
	engine := newTestEngine(nil)
	snapshot := models.Snapshot{track("a")}
	ratings := []models.RatingRecord{rating("a", 3), rating("gone", 5)}

	var archived []models.RemovalRecord
	for run := 0; run < 3; run++ {
		res, err := engine.Rank(context.Background(), nil, ratings, snapshot)
		if err != nil {
			t.Fatalf("run %d: Rank failed: %v", run, err)
		}
		archived = append(archived, res.Removed...)
		ratings = res.Ratings
	}

	if len(archived) != 1 {
		t.Errorf("expected one archived record across runs, got %d", len(archived))
	}
}

func TestRankPlayCounts(t *testing.T) {
	history := []models.PlayEvent{
		{TrackID: "a", PlayedAt: daysAgo(1)},
		{TrackID: "a", PlayedAt: daysAgo(20)},
		{TrackID: "a", PlayedAt: daysAgo(100)},
		{TrackID: "a", PlayedAt: daysAgo(200)},
		{TrackID: "b", PlayedAt: daysAgo(14)},
		{TrackID: "untracked", PlayedAt: daysAgo(1)},
	}
	snapshot := models.Snapshot{track("a"), track("b"), track("c")}

	res, err := newTestEngine(nil).Rank(context.Background(), history, nil, snapshot)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	byID := make(map[string]models.RatingRecord)
	for _, r := range res.Ratings {
		byID[r.TrackID] = r
	}

	tc := []struct {
		id         string
		tierPlays  [5]int
		lastPlayed int64
	}{
		{id: "a", tierPlays: [5]int{3, 2, 2, 2, 1}, lastPlayed: daysAgo(1)},
		{id: "b", tierPlays: [5]int{1, 1, 1, 1, 1}, lastPlayed: daysAgo(14)},
		{id: "c", tierPlays: [5]int{}, lastPlayed: 0},
	}

	for _, tt := range tc {
		t.Run(tt.id, func(t *testing.T) {
			r := byID[tt.id]
			if r.TierPlays != tt.tierPlays {
				t.Errorf("expected tier plays %v, got %v", tt.tierPlays, r.TierPlays)
			}
			if r.LastPlayed != tt.lastPlayed {
				t.Errorf("expected last played %d, got %d", tt.lastPlayed, r.LastPlayed)
			}
			if r.TierPlays[0] < r.TierPlays[4] {
				t.Errorf("180 day count %d below 14 day count %d", r.TierPlays[0], r.TierPlays[4])
			}
			if r.StarPlays != r.TierPlays[4] {
				t.Errorf("unrated track should use the five star window, got %d", r.StarPlays)
			}
		})
	}
}

func TestRankWindowMonotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	var history []models.PlayEvent
	var snapshot models.Snapshot
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("t%d", i)
		snapshot = append(snapshot, track(id))
		for j := 0; j < r.IntN(30); j++ {
			history = append(history, models.PlayEvent{TrackID: id, PlayedAt: daysAgo(r.Float64() * 365)})
		}
	}

	res, err := newTestEngine(nil).Rank(context.Background(), history, nil, snapshot)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	for _, rec := range res.Ratings {
		for i := 1; i < len(rec.TierPlays); i++ {
			if rec.TierPlays[i] > rec.TierPlays[i-1] {
				t.Errorf("%s: narrower window has more plays: %v", rec.TrackID, rec.TierPlays)
			}
		}
	}
}

func TestRankOrder(t *testing.T) {
	history := []models.PlayEvent{
		{TrackID: "played", PlayedAt: daysAgo(2)},
		{TrackID: "played", PlayedAt: daysAgo(3)},
		{TrackID: "once", PlayedAt: daysAgo(5)},
		{TrackID: "low", PlayedAt: daysAgo(100)},
	}
	ratings := []models.RatingRecord{rating("played", 5), rating("once", 5), rating("fresh", 5), rating("low", 1)}
	snapshot := models.Snapshot{track("played"), track("once"), track("fresh"), track("low")}

	res, err := newTestEngine(nil).Rank(context.Background(), history, ratings, snapshot)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	for i := 1; i < len(res.Ratings); i++ {
		if res.Ratings[i].StarPlays < res.Ratings[i-1].StarPlays {
			t.Fatalf("ratings not ascending by star plays: %+v", res.Ratings)
		}
	}
	if last := res.Ratings[len(res.Ratings)-1]; last.TrackID != "played" {
		t.Errorf("expected the most played track last, got %s", last.TrackID)
	}

	top := res.IDs(2)
	if len(top) != 2 || top[0] != res.Ratings[0].TrackID {
		t.Errorf("unexpected top ids %v", top)
	}
	if all := res.IDs(0); len(all) != 4 {
		t.Errorf("expected all ids without a limit, got %d", len(all))
	}
}

func TestRankDeterministicWithSeed(t *testing.T) {
	var snapshot models.Snapshot
	for i := 0; i < 30; i++ {
		snapshot = append(snapshot, track(fmt.Sprintf("t%02d", i)))
	}

	run := func() []string {
		res, err := newTestEngine(nil).Rank(context.Background(), nil, nil, snapshot)
		if err != nil {
			t.Fatalf("Rank failed: %v", err)
		}
		return res.IDs(0)
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("orders differ at %d: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestRankReview(t *testing.T) {
	history := []models.PlayEvent{
		{TrackID: "recent", PlayedAt: testNow.Add(-time.Hour).UnixMilli()},
		{TrackID: "old", PlayedAt: daysAgo(3)},
	}
	ratings := []models.RatingRecord{rating("recent", 3), rating("old", 4), rating("unrated", 0), rating("bad", 0)}
	snapshot := models.Snapshot{track("recent"), track("old"), track("unrated"), track("bad")}

	var asked []PendingReview
	reviewer := RatingReviewerFunc(func(_ context.Context, p PendingReview) (int, error) {
		asked = append(asked, p)
		switch p.Rating.TrackID {
		case "recent":
			return 5, nil
		case "unrated":
			return 2, nil
		default:
			return 9, nil
		}
	})

	res, err := newTestEngine(reviewer).Rank(context.Background(), history, ratings, snapshot)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if len(asked) != 3 {
		t.Fatalf("expected 3 reviews, got %d", len(asked))
	}
	for _, p := range asked {
		if p.Rating.TrackID == "old" {
			t.Error("did not expect a review for a track last played days ago")
		}
		if p.Rating.TrackID == "recent" && p.Reason != ReasonRecentlyPlayed {
			t.Errorf("expected reason %q, got %q", ReasonRecentlyPlayed, p.Reason)
		}
	}

	want := map[string]int{"recent": 5, "old": 4, "unrated": 2, "bad": 0}
	for _, r := range res.Ratings {
		if r.Stars != want[r.TrackID] {
			t.Errorf("%s: expected %d stars, got %d", r.TrackID, want[r.TrackID], r.Stars)
		}
	}
	if res.Reviewed != 3 || res.Changed != 2 {
		t.Errorf("expected 3 reviewed and 2 changed, got %d and %d", res.Reviewed, res.Changed)
	}

	t.Run("reviewer error aborts", func(t *testing.T) {
		boom := errors.New("interrupted")
		failing := RatingReviewerFunc(func(context.Context, PendingReview) (int, error) { return 0, boom })
		_, err := newTestEngine(failing).Rank(context.Background(), nil, nil, snapshot)
		if !errors.Is(err, boom) {
			t.Errorf("expected reviewer error, got %v", err)
		}
	})
}
