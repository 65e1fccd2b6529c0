// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// MockLibrary is an in-memory test double for [services.Library]
//
// Plays are served newest first and respect the before cursor. Playlist mutations are applied to
// Playlists, resolving ids against Catalog for metadata.
type MockLibrary struct {
	mu sync.Mutex

	User      string
	Playlists map[string][]models.Track
	Catalog   map[string]models.Track
	Plays     []models.PlayEvent

	// LoginFailures makes the first n CurrentUser calls fail.
	LoginFailures int
	RecentErr     error
	MutateErr     error

	Calls []string
}

// NewMockLibrary creates an empty library for user.
func NewMockLibrary(user string) *MockLibrary {
	return &MockLibrary{
		User:      user,
		Playlists: make(map[string][]models.Track),
		Catalog:   make(map[string]models.Track),
	}
}

// SetPlaylist stores tracks under id and adds them to the catalog.
func (m *MockLibrary) SetPlaylist(id string, tracks ...models.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Playlists[id] = append([]models.Track(nil), tracks...)
	for _, t := range tracks {
		m.Catalog[t.ID] = t
	}
}

// AddPlays records plays; they are served newest first.
func (m *MockLibrary) AddPlays(plays ...models.PlayEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Plays = append(m.Plays, plays...)
	sort.SliceStable(m.Plays, func(i, j int) bool { return m.Plays[i].PlayedAt > m.Plays[j].PlayedAt })
}

// PlaylistIDs returns the current track ids of a playlist.
func (m *MockLibrary) PlaylistIDs(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.Playlists[id]))
	for i, t := range m.Playlists[id] {
		ids[i] = t.ID
	}
	return ids
}

func (m *MockLibrary) record(format string, args ...any) {
	m.Calls = append(m.Calls, fmt.Sprintf(format, args...))
}

func (m *MockLibrary) CurrentUser(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("user")
	if m.LoginFailures > 0 {
		m.LoginFailures--
		return "", fmt.Errorf("%w: 401 unauthorized", shared.ErrAPIRequest)
	}
	return m.User, nil
}

func (m *MockLibrary) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("tracks %s", playlistID)
	tracks, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return append([]models.Track(nil), tracks...), nil
}

func (m *MockLibrary) RecentlyPlayed(ctx context.Context, before int64, limit int) ([]models.PlayEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("recent %d", before)
	if m.RecentErr != nil {
		return nil, m.RecentErr
	}

	var page []models.PlayEvent
	for _, p := range m.Plays {
		if p.PlayedAt >= before {
			continue
		}
		page = append(page, p)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (m *MockLibrary) ReplacePlaylist(ctx context.Context, playlistID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("replace %s %d", playlistID, len(ids))
	if m.MutateErr != nil {
		return m.MutateErr
	}
	m.Playlists[playlistID] = m.resolve(ids)
	return nil
}

func (m *MockLibrary) AddToPlaylist(ctx context.Context, playlistID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("add %s %d", playlistID, len(ids))
	if m.MutateErr != nil {
		return m.MutateErr
	}
	if len(ids) > 100 {
		return fmt.Errorf("%w: batch of %d", shared.ErrInvalidArgument, len(ids))
	}
	m.Playlists[playlistID] = append(m.Playlists[playlistID], m.resolve(ids)...)
	return nil
}

func (m *MockLibrary) resolve(ids []string) []models.Track {
	tracks := make([]models.Track, len(ids))
	for i, id := range ids {
		t, ok := m.Catalog[id]
		if !ok {
			t = models.Track{ID: id}
		}
		tracks[i] = t
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
