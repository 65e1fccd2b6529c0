package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// PlaylistRepository stores the ordered mirror of each playlist kind.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Replace swaps the mirror for kind with snapshot.
func (r *PlaylistRepository) Replace(ctx context.Context, kind models.PlaylistKind, snapshot models.Snapshot) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: playlist kind %q", shared.ErrInvalidInput, kind)
	}

	err := shared.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM playlist_tracks WHERE kind = ?", kind); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO playlist_tracks (kind, position, track_id, name, artist, artist_id, album, album_id, duration_ms, popularity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range snapshot {
			if _, err := stmt.ExecContext(ctx, kind, i+1, t.ID, t.Name, t.Artist, t.ArtistID, t.Album, t.AlbumID, t.DurationMS, t.Popularity); err != nil {
				return fmt.Errorf("position %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to replace %s playlist: %v", shared.ErrStorage, kind, err)
	}
	return nil
}

// Load returns the mirror for kind in playlist order. A kind never mirrored is empty.
func (r *PlaylistRepository) Load(ctx context.Context, kind models.PlaylistKind) (models.Snapshot, error) {
	query := `
		SELECT track_id, name, artist, artist_id, album, album_id, duration_ms, popularity
		FROM playlist_tracks
		WHERE kind = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query %s playlist: %v", shared.ErrStorage, kind, err)
	}
	defer rows.Close()

	var snapshot models.Snapshot
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.ID, &t.Name, &t.Artist, &t.ArtistID, &t.Album, &t.AlbumID, &t.DurationMS, &t.Popularity); err != nil {
			return nil, fmt.Errorf("%w: failed to scan playlist track: %v", shared.ErrStorage, err)
		}
		snapshot = append(snapshot, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStorage, err)
	}

	return snapshot, nil
}
