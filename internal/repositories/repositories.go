package repositories

import (
	"context"
	"database/sql"
)

// execer is satisfied by both [sql.DB] and [sql.Tx].
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Repositories groups the dataset repositories over one database.
type Repositories struct {
	Settings *SettingsRepository
	Playlist *PlaylistRepository
	Recent   *PlayRepository
	History  *PlayRepository
	Ratings  *RatingRepository
	Runs     *SyncRunRepository
	Rewriter *TrackRewriter
}

// New creates every repository over db.
func New(db *sql.DB) *Repositories {
	return &Repositories{
		Settings: NewSettingsRepository(db),
		Playlist: NewPlaylistRepository(db),
		Recent:   NewRecentPlayRepository(db),
		History:  NewHistoryRepository(db),
		Ratings:  NewRatingRepository(db),
		Runs:     NewSyncRunRepository(db),
		Rewriter: NewTrackRewriter(db),
	}
}
