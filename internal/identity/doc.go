// Package identity detects the same song appearing under different catalog ids.
//
// [Normalize] strips remaster annotations so re-releases compare equal, and [Similarity] scores two
// normalised strings with a sequence-matching ratio.
//
// A [Resolver] walks recent plays that are missing from the playlist mirror, flags candidates whose
// [Scores] pass the [Thresholds], and hands each one to a [MatchConfirmer]. Nothing is substituted
// without confirmation. Accepted pairs are rewritten through an [IDRewriter], one dataset at a time.
package identity
