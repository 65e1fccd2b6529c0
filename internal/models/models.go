package models

import (
	"fmt"
	"time"
)

// PlaylistKind distinguishes the two mirrored playlists.
type PlaylistKind string

const (
	// Tracked is the canonical, hand-curated playlist that defines rating membership.
	Tracked PlaylistKind = "tracked"
	// Dynamic is the playlist rebuilt from the top of the ranking; its order approximates listening order.
	Dynamic PlaylistKind = "dynamic"
)

// Valid reports whether k is a known kind.
func (k PlaylistKind) Valid() bool {
	return k == Tracked || k == Dynamic
}

func (k PlaylistKind) String() string { return string(k) }

// Track is catalog metadata for a song. The ID is not stable across re-releases.
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	ArtistID   string `json:"artist_id,omitempty"`
	Album      string `json:"album"`
	AlbumID    string `json:"album_id,omitempty"`
	DurationMS int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`
}

// Snapshot is the ordered contents of one playlist as of the current run.
type Snapshot []Track

// IDs returns the set of track ids in the snapshot.
func (s Snapshot) IDs() map[string]bool {
	ids := make(map[string]bool, len(s))
	for _, t := range s {
		ids[t.ID] = true
	}
	return ids
}

// IndexOf returns the 1-based position of the first track with id, or 0 when absent.
func (s Snapshot) IndexOf(id string) int {
	for i, t := range s {
		if t.ID == id {
			return i + 1
		}
	}
	return 0
}

// Replace returns a copy of s with every oldID rewritten to the fields of next.
func (s Snapshot) Replace(oldID string, next Track) Snapshot {
	out := make(Snapshot, len(s))
	copy(out, s)
	for i := range out {
		if out[i].ID == oldID {
			out[i] = next
		}
	}
	return out
}

// InferredBatch marks a play synthesised by history inference rather than observed.
const InferredBatch = 0

// PlayEvent is one playback of a track.
type PlayEvent struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	AlbumName  string `json:"album_name"`
	PlayedAt   int64  `json:"played_at"` // ms since epoch, UTC
	DurationMS int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`
	Batch      int    `json:"batch"`
	Tracked    bool   `json:"tracked"`
}

// Key identifies a play for deduplication.
func (p PlayEvent) Key() PlayKey {
	return PlayKey{TrackID: p.TrackID, PlayedAt: p.PlayedAt}
}

// Inferred reports whether the play was synthesised rather than observed.
func (p PlayEvent) Inferred() bool {
	return p.Batch == InferredBatch
}

// Time returns PlayedAt as a [time.Time].
func (p PlayEvent) Time() time.Time {
	return time.UnixMilli(p.PlayedAt).UTC()
}

// PlayKey is the (track, timestamp) identity of a play.
type PlayKey struct {
	TrackID  string
	PlayedAt int64
}

// PlayFromTrack builds a play of t at playedAt.
func PlayFromTrack(t Track, playedAt int64, batch int) PlayEvent {
	return PlayEvent{
		TrackID:    t.ID,
		TrackName:  t.Name,
		ArtistName: t.Artist,
		AlbumName:  t.Album,
		PlayedAt:   playedAt,
		DurationMS: t.DurationMS,
		Popularity: t.Popularity,
		Batch:      batch,
	}
}

// Track returns the catalog fields carried by the play.
func (p PlayEvent) Track() Track {
	return Track{
		ID:         p.TrackID,
		Name:       p.TrackName,
		Artist:     p.ArtistName,
		Album:      p.AlbumName,
		DurationMS: p.DurationMS,
		Popularity: p.Popularity,
	}
}

// MaxStars is the highest rating.
const MaxStars = 5

// RatingRecord is the user's judgement of a tracked song plus the derived rotation fields.
//
// Stars of 0 means the track has not been reviewed yet.
type RatingRecord struct {
	TrackID    string `json:"track_id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Stars      int    `json:"stars"`
	LastPlayed int64  `json:"last_played"` // ms since epoch, 0 = never
	// TierPlays[i] counts plays inside the lookback window for i+1 stars.
	TierPlays [MaxStars]int `json:"tier_plays"`
	StarPlays int           `json:"star_plays"`
	Ranking   int           `json:"ranking"`
}

// NewRating returns an unreviewed rating for t.
func NewRating(t Track) RatingRecord {
	return RatingRecord{TrackID: t.ID, Name: t.Name, Artist: t.Artist, Album: t.Album}
}

// Tier returns the star tier used for rotation priority; unreviewed tracks use the top tier.
func (r RatingRecord) Tier() int {
	if r.Stars <= 0 {
		return MaxStars
	}
	return r.Stars
}

// PlaysFor returns the windowed play count for the given star tier.
func (r RatingRecord) PlaysFor(stars int) int {
	if stars < 1 || stars > MaxStars {
		return 0
	}
	return r.TierPlays[stars-1]
}

// ValidStars reports whether n is an acceptable user rating.
func ValidStars(n int) bool {
	return n >= 1 && n <= MaxStars
}

// Validate checks the stored star range.
func (r RatingRecord) Validate() error {
	if r.TrackID == "" {
		return fmt.Errorf("rating is missing a track id")
	}
	if r.Stars < 0 || r.Stars > MaxStars {
		return fmt.Errorf("rating for %s has stars %d outside 0..%d", r.TrackID, r.Stars, MaxStars)
	}
	return nil
}

// RemovalRecord archives a rating whose track left the tracked playlist.
type RemovalRecord struct {
	RatingRecord
	RemovedAt int64 `json:"removed_at"`
}

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// SyncRun is the audit record of one pipeline invocation.
type SyncRun struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Since      int64      `json:"since"`
	Fetched    int        `json:"fetched"`
	Resolved   int        `json:"resolved"`
	Inferred   int        `json:"inferred"`
	Merged     int        `json:"merged"`
	Ranked     int        `json:"ranked"`
	Removed    int        `json:"removed"`
	Error      string     `json:"error,omitempty"`
}
