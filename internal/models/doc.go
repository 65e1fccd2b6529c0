// Package models defines the datasets the rotation pipeline reads and writes.
//
// # Catalog
//
//   - [Track] : song metadata as reported by the streaming service
//   - [Snapshot] : ordered mirror of a [PlaylistKind] (tracked or dynamic)
//
// # History
//
//   - [PlayEvent] : a single play, keyed by [PlayKey] (track id, epoch milliseconds)
//
// Batch numbers record the fetch page a play arrived on; [InferredBatch] marks plays synthesised by inference.
//
// # Ratings
//
//   - [RatingRecord] : stars, last play and windowed play counts for each tracked song
//   - [RemovalRecord] : append-only archive entry for ratings dropped from the tracked playlist
//
// # Audit
//
//   - [SyncRun] : per-invocation counts and status
package models
