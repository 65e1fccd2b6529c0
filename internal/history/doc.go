// Package history fetches, infers and merges play events.
//
// The pipeline is:
//
//  1. [Fetcher.Fetch] walks recently played items backwards from now to the watermark, pacing pages
//     with a rate limiter and pushing the cursor back when a page makes no progress.
//  2. [Infer] adds plays a source failed to report, assuming the playlist was played in order.
//  3. [Merge] folds the result into the durable log, collapsing repeat plays of a track inside a
//     short window.
package history
