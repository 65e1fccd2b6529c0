package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// SettingsRepository stores small key/value state such as cached playlist ids.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SettingsRepository with the given database connection
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value stored under key, or [shared.ErrRecordMissing].
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: setting %s", shared.ErrRecordMissing, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to read setting %s: %v", shared.ErrStorage, key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%w: failed to write setting %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: failed to delete setting %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

func playlistKey(kind models.PlaylistKind) string {
	return "playlist." + kind.String()
}

// PlaylistID returns the cached playlist id for kind.
func (r *SettingsRepository) PlaylistID(ctx context.Context, kind models.PlaylistKind) (string, error) {
	return r.Get(ctx, playlistKey(kind))
}

// SetPlaylistID caches the playlist id for kind.
func (r *SettingsRepository) SetPlaylistID(ctx context.Context, kind models.PlaylistKind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s playlist id", shared.ErrInvalidInput, kind)
	}
	return r.Set(ctx, playlistKey(kind), id)
}

// ClearPlaylistID forgets the cached playlist id for kind so the next run asks again.
func (r *SettingsRepository) ClearPlaylistID(ctx context.Context, kind models.PlaylistKind) error {
	return r.Delete(ctx, playlistKey(kind))
}

func failedPlaylistKey(kind models.PlaylistKind) string {
	return playlistKey(kind) + ".failed"
}

// FailedPlaylistID returns the last id for kind that could not be retrieved, or "" when none failed.
func (r *SettingsRepository) FailedPlaylistID(ctx context.Context, kind models.PlaylistKind) (string, error) {
	id, err := r.Get(ctx, failedPlaylistKey(kind))
	if errors.Is(err, shared.ErrRecordMissing) {
		return "", nil
	}
	return id, err
}

// MarkPlaylistFailed forgets the cached id for kind and remembers it as unretrievable.
func (r *SettingsRepository) MarkPlaylistFailed(ctx context.Context, kind models.PlaylistKind, id string) error {
	if err := r.ClearPlaylistID(ctx, kind); err != nil {
		return err
	}
	return r.Set(ctx, failedPlaylistKey(kind), id)
}

// ClearPlaylistFailure drops the failure marker for kind.
func (r *SettingsRepository) ClearPlaylistFailure(ctx context.Context, kind models.PlaylistKind) error {
	return r.Delete(ctx, failedPlaylistKey(kind))
}
