package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// Datasets touched by a track id rewrite, in the order they are rewritten.
const (
	DatasetRatings = "ratings"
	DatasetDynamic = "dynamic playlist"
	DatasetTracked = "tracked playlist"
	DatasetHistory = "listen history"
)

// RewriteError reports a rewrite that stopped part way.
//
// Datasets in Done already carry the new id; Failed and the datasets after it still carry the old.
type RewriteError struct {
	OldID  string
	NewID  string
	Done   []string
	Failed string
	Err    error
}

func (e *RewriteError) Error() string {
	done := "none"
	if len(e.Done) > 0 {
		done = strings.Join(e.Done, ", ")
	}
	return fmt.Sprintf("rewrite %s -> %s failed on %s (already rewritten: %s): %v",
		e.OldID, e.NewID, e.Failed, done, e.Err)
}

func (e *RewriteError) Unwrap() error { return e.Err }

// TrackRewriter replaces one track id with another across every dataset.
type TrackRewriter struct {
	db *sql.DB
}

// NewTrackRewriter creates a new TrackRewriter with the given database connection
func NewTrackRewriter(db *sql.DB) *TrackRewriter {
	return &TrackRewriter{db: db}
}

type rewriteStep struct {
	dataset string
	apply   func(ctx context.Context, tx *sql.Tx, oldID string, next models.Track) error
}

// RewriteTrackID moves oldID to next.ID in ratings, both playlist mirrors and the listen history.
//
// Each dataset is rewritten in its own transaction. On failure the returned *[RewriteError]
// names the datasets that were already rewritten.
func (w *TrackRewriter) RewriteTrackID(ctx context.Context, oldID string, next models.Track) error {
	if oldID == "" || next.ID == "" {
		return fmt.Errorf("%w: rewrite needs both ids", shared.ErrInvalidInput)
	}

	steps := []rewriteStep{
		{dataset: DatasetRatings, apply: rewriteRatings},
		{dataset: DatasetDynamic, apply: rewritePlaylist(models.Dynamic)},
		{dataset: DatasetTracked, apply: rewritePlaylist(models.Tracked)},
		{dataset: DatasetHistory, apply: rewriteHistory},
	}

	var done []string
	for _, step := range steps {
		err := shared.WithTx(ctx, w.db, func(tx *sql.Tx) error {
			return step.apply(ctx, tx, oldID, next)
		})
		if err != nil {
			return &RewriteError{
				OldID:  oldID,
				NewID:  next.ID,
				Done:   done,
				Failed: step.dataset,
				Err:    fmt.Errorf("%w: %v", shared.ErrStorage, err),
			}
		}
		done = append(done, step.dataset)
	}

	return nil
}

// rewriteRatings keeps an existing rating for the new id when both ids are rated.
func rewriteRatings(ctx context.Context, tx *sql.Tx, oldID string, next models.Track) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE OR IGNORE ratings SET track_id = ?, name = ?, artist = ?, album = ?
		WHERE track_id = ?
	`, next.ID, next.Name, next.Artist, next.Album, oldID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM ratings WHERE track_id = ?", oldID)
	return err
}

func rewritePlaylist(kind models.PlaylistKind) func(context.Context, *sql.Tx, string, models.Track) error {
	return func(ctx context.Context, tx *sql.Tx, oldID string, next models.Track) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE playlist_tracks
			SET track_id = ?, name = ?, artist = ?, artist_id = ?, album = ?, album_id = ?, duration_ms = ?, popularity = ?
			WHERE kind = ? AND track_id = ?
		`, next.ID, next.Name, next.Artist, next.ArtistID, next.Album, next.AlbumID, next.DurationMS, next.Popularity, kind, oldID)
		return err
	}
}

// rewriteHistory drops old-id plays whose timestamp already exists under the new id.
func rewriteHistory(ctx context.Context, tx *sql.Tx, oldID string, next models.Track) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE OR IGNORE listen_history SET track_id = ?, name = ?, artist = ?, album = ?
		WHERE track_id = ?
	`, next.ID, next.Name, next.Artist, next.Album, oldID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, "DELETE FROM listen_history WHERE track_id = ?", oldID)
	return err
}
