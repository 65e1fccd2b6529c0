package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

const (
	recentPlaysTable   = "recent_plays"
	listenHistoryTable = "listen_history"
)

// PlayRepository stores a set of play events unique by (track, played_at).
//
// The same implementation backs the per-run staging table and the durable listen history.
type PlayRepository struct {
	db    *sql.DB
	table string
}

// NewRecentPlayRepository returns the staging table for plays fetched by the current run.
func NewRecentPlayRepository(db *sql.DB) *PlayRepository {
	return &PlayRepository{db: db, table: recentPlaysTable}
}

// NewHistoryRepository returns the durable listen history.
func NewHistoryRepository(db *sql.DB) *PlayRepository {
	return &PlayRepository{db: db, table: listenHistoryTable}
}

// Save replaces the stored plays with plays.
//
// Rows that repeat a (track, played_at) pair keep the first occurrence.
func (r *PlayRepository) Save(ctx context.Context, plays []models.PlayEvent) error {
	err := shared.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+r.table); err != nil {
			return err
		}
		return insertPlays(ctx, tx, r.table, plays)
	})
	if err != nil {
		return fmt.Errorf("%w: failed to save %s: %v", shared.ErrStorage, r.table, err)
	}
	return nil
}

// Load returns every stored play ordered by played_at descending, then track id.
func (r *PlayRepository) Load(ctx context.Context) ([]models.PlayEvent, error) {
	query := fmt.Sprintf(`
		SELECT track_id, played_at, name, artist, album, duration_ms, popularity, batch, tracked
		FROM %s
		ORDER BY played_at DESC, track_id ASC
	`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query %s: %v", shared.ErrStorage, r.table, err)
	}
	defer rows.Close()

	var plays []models.PlayEvent
	for rows.Next() {
		p, err := scanPlay(rows)
		if err != nil {
			return nil, err
		}
		plays = append(plays, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStorage, err)
	}

	return plays, nil
}

// Clear removes every stored play.
func (r *PlayRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+r.table); err != nil {
		return fmt.Errorf("%w: failed to clear %s: %v", shared.ErrStorage, r.table, err)
	}
	return nil
}

// Count returns the number of stored plays.
func (r *PlayRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count %s: %v", shared.ErrStorage, r.table, err)
	}
	return n, nil
}

// Latest returns the greatest played_at, or [shared.ErrRecordMissing] when the table is empty.
func (r *PlayRepository) Latest(ctx context.Context) (int64, error) {
	var latest sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(played_at) FROM "+r.table).Scan(&latest); err != nil {
		return 0, fmt.Errorf("%w: failed to read latest play: %v", shared.ErrStorage, err)
	}
	if !latest.Valid {
		return 0, fmt.Errorf("%w: %s is empty", shared.ErrRecordMissing, r.table)
	}
	return latest.Int64, nil
}

func insertPlays(ctx context.Context, tx *sql.Tx, table string, plays []models.PlayEvent) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (track_id, played_at, name, artist, album, duration_ms, popularity, batch, tracked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range plays {
		_, err := stmt.ExecContext(ctx,
			p.TrackID,
			p.PlayedAt,
			p.TrackName,
			p.ArtistName,
			p.AlbumName,
			p.DurationMS,
			p.Popularity,
			p.Batch,
			p.Tracked,
		)
		if err != nil {
			return fmt.Errorf("play %s at %d: %w", p.TrackID, p.PlayedAt, err)
		}
	}
	return nil
}

// scanPlay scans a single row into a [models.PlayEvent]
func scanPlay(rows *sql.Rows) (models.PlayEvent, error) {
	var p models.PlayEvent
	err := rows.Scan(
		&p.TrackID,
		&p.PlayedAt,
		&p.TrackName,
		&p.ArtistName,
		&p.AlbumName,
		&p.DurationMS,
		&p.Popularity,
		&p.Batch,
		&p.Tracked,
	)
	if err != nil {
		return p, fmt.Errorf("%w: failed to scan play: %v", shared.ErrStorage, err)
	}
	return p, nil
}
