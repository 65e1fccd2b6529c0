// package tasks orchestrates a rotation sync.
//
// The core abstraction is [Pipeline], which runs the steps in order:
//  1. Log in, retrying up to three times.
//  2. Mirror the tracked and dynamic playlists into the database.
//  3. Fetch recently played tracks back to the history watermark.
//  4. Resolve catalog id drift between recent plays and the tracked playlist.
//  5. Infer unobserved plays from the dynamic (or tracked) playlist order.
//  6. Merge into the durable listen history.
//  7. Rank the tracked songs and archive removals.
//  8. Rebuild both playlists from the ranking.
//
// Steps 4 to 6 run only when the fetch found plays. Every run leaves a [models.SyncRun] audit row.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks
