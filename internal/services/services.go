// package services defines the streaming API contract used by the sync pipeline
package services

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// MaxBatch is the most track ids a single playlist mutation accepts.
const MaxBatch = 100

// Library is the subset of a streaming service the sync pipeline needs.
type Library interface {
	// PlaylistTracks returns every track of a playlist in order. Non-track items are skipped.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// RecentlyPlayed returns up to limit plays strictly before the cursor (ms since epoch), newest first.
	RecentlyPlayed(ctx context.Context, before int64, limit int) ([]models.PlayEvent, error)

	// ReplacePlaylist sets the playlist contents to ids, at most [MaxBatch] of them.
	ReplacePlaylist(ctx context.Context, playlistID string, ids []string) error

	// AddToPlaylist appends ids, at most [MaxBatch] of them.
	AddToPlaylist(ctx context.Context, playlistID string, ids []string) error

	// CurrentUser returns the display name of the authenticated account.
	CurrentUser(ctx context.Context) (string, error)
}

// Login verifies the library session, trying up to attempts times.
//
// Every failure is logged; when all attempts fail the result wraps [shared.ErrAuthFailed].
func Login(ctx context.Context, lib Library, attempts int, logger *log.Logger) (string, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		user, err := lib.CurrentUser(ctx)
		if err == nil {
			logger.Info("logged in", "user", user, "attempt", i)
			return user, nil
		}
		lastErr = err
		logger.Warn("login failed", "attempt", i, "of", attempts, "error", err)
	}

	return "", fmt.Errorf("%w after %d attempts: %v", shared.ErrAuthFailed, attempts, lastErr)
}
