package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// RatingRepository stores the rating table and the removal archive.
type RatingRepository struct {
	db *sql.DB
}

// NewRatingRepository creates a new RatingRepository with the given database connection
func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

const ratingColumns = `track_id, name, artist, album, stars, last_played,
	plays_1, plays_2, plays_3, plays_4, plays_5, star_plays, ranking`

// Load returns every rating ordered by ranking, unranked rows last.
func (r *RatingRepository) Load(ctx context.Context) ([]models.RatingRecord, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings
		ORDER BY CASE WHEN ranking > 0 THEN 0 ELSE 1 END, ranking ASC, track_id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query ratings: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var ratings []models.RatingRecord
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStorage, err)
	}

	return ratings, nil
}

// Get returns the rating for trackID, or [shared.ErrRecordMissing].
func (r *RatingRepository) Get(ctx context.Context, trackID string) (models.RatingRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ratingColumns+` FROM ratings WHERE track_id = ?`, trackID)
	if err != nil {
		return models.RatingRecord{}, fmt.Errorf("%w: failed to query rating: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.RatingRecord{}, fmt.Errorf("%w: %v", shared.ErrStorage, err)
		}
		return models.RatingRecord{}, fmt.Errorf("%w: rating %s", shared.ErrRecordMissing, trackID)
	}
	return r.scanRow(rows)
}

// Save replaces the rating table with ratings.
func (r *RatingRepository) Save(ctx context.Context, ratings []models.RatingRecord) error {
	return r.SaveRanked(ctx, ratings, nil)
}

// SaveRanked replaces the rating table and appends removed to the archive in one transaction.
//
// Removed ratings are absent from ratings, so a removal is archived exactly once.
func (r *RatingRepository) SaveRanked(ctx context.Context, ratings []models.RatingRecord, removed []models.RemovalRecord) error {
	for _, rec := range ratings {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}

	err := shared.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM ratings"); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO ratings (`+ratingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rec := range ratings {
			_, err := stmt.ExecContext(ctx,
				rec.TrackID,
				rec.Name,
				rec.Artist,
				rec.Album,
				rec.Stars,
				rec.LastPlayed,
				rec.TierPlays[0],
				rec.TierPlays[1],
				rec.TierPlays[2],
				rec.TierPlays[3],
				rec.TierPlays[4],
				rec.StarPlays,
				rec.Ranking,
			)
			if err != nil {
				return fmt.Errorf("rating %s: %w", rec.TrackID, err)
			}
		}

		return archive(ctx, tx, removed)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to save ratings: %v", shared.ErrStorage, err)
	}
	return nil
}

// UpdateStars sets the star rating of one track.
func (r *RatingRepository) UpdateStars(ctx context.Context, trackID string, stars int) error {
	if stars < 0 || stars > models.MaxStars {
		return fmt.Errorf("%w: stars %d outside 0..%d", shared.ErrInvalidInput, stars, models.MaxStars)
	}

	result, err := r.db.ExecContext(ctx, "UPDATE ratings SET stars = ? WHERE track_id = ?", stars, trackID)
	if err != nil {
		return fmt.Errorf("%w: failed to update rating: %v", shared.ErrStorage, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get affected rows: %v", shared.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: rating %s", shared.ErrRecordMissing, trackID)
	}
	return nil
}

// Removals returns the archive, oldest first.
func (r *RatingRepository) Removals(ctx context.Context) ([]models.RemovalRecord, error) {
	query := `
		SELECT track_id, name, artist, album, stars, last_played, star_plays, ranking, removed_at
		FROM playlist_removals
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query removals: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var removals []models.RemovalRecord
	for rows.Next() {
		var rec models.RemovalRecord
		err := rows.Scan(&rec.TrackID, &rec.Name, &rec.Artist, &rec.Album, &rec.Stars,
			&rec.LastPlayed, &rec.StarPlays, &rec.Ranking, &rec.RemovedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan removal: %v", shared.ErrStorage, err)
		}
		removals = append(removals, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStorage, err)
	}

	return removals, nil
}

func archive(ctx context.Context, tx execer, removed []models.RemovalRecord) error {
	for _, rec := range removed {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO playlist_removals (track_id, name, artist, album, stars, last_played, star_plays, ranking, removed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.TrackID, rec.Name, rec.Artist, rec.Album, rec.Stars, rec.LastPlayed, rec.StarPlays, rec.Ranking, rec.RemovedAt)
		if err != nil {
			return fmt.Errorf("archive %s: %w", rec.TrackID, err)
		}
	}
	return nil
}

// scanRow scans a row into a [models.RatingRecord]
func (r *RatingRepository) scanRow(rows *sql.Rows) (models.RatingRecord, error) {
	var rec models.RatingRecord
	err := rows.Scan(
		&rec.TrackID,
		&rec.Name,
		&rec.Artist,
		&rec.Album,
		&rec.Stars,
		&rec.LastPlayed,
		&rec.TierPlays[0],
		&rec.TierPlays[1],
		&rec.TierPlays[2],
		&rec.TierPlays[3],
		&rec.TierPlays[4],
		&rec.StarPlays,
		&rec.Ranking,
	)
	if err != nil {
		return rec, fmt.Errorf("%w: failed to scan rating: %v", shared.ErrStorage, err)
	}
	return rec, nil
}
