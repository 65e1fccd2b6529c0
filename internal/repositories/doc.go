// Package repositories implements SQLite persistence for the sync datasets.
//
// Every dataset is loaded and saved whole: a save replaces the table contents inside one
// transaction, so a reader never sees a half-written dataset.
//
// Key Implementations:
//   - [SettingsRepository] : cached playlist ids and other key/value state
//   - [PlaylistRepository] : ordered mirrors of the tracked and dynamic playlists
//   - [PlayRepository] : staged recent plays and the durable listen history
//   - [RatingRepository] : star ratings, rankings and the append-only removal archive
//   - [SyncRunRepository] : audit rows for each sync
//   - [TrackRewriter] : rewrites a track id across every dataset after identity drift
package repositories
