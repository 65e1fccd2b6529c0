package shared

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := WithLogger(NewLogger(&buf), "component", "test")
	logger.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "component=test") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestEpochMillis(t *testing.T) {
	ts := time.Date(2025, 2, 12, 0, 0, 0, 0, time.UTC)
	ms := EpochMillis(ts)

	if ms != 1739318400000 {
		t.Errorf("EpochMillis() = %d", ms)
	}
	if !FromEpochMillis(ms).Equal(ts) {
		t.Errorf("FromEpochMillis() = %v", FromEpochMillis(ms))
	}
	if FormatMillis(0) != "never" {
		t.Errorf("FormatMillis(0) = %q", FormatMillis(0))
	}
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		ms   int
		want string
	}{
		{ms: 0, want: "0:00"},
		{ms: 61000, want: "1:01"},
		{ms: 245999, want: "4:05"},
	}

	for _, tt := range tc {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState() error = %v", err)
	}
	b, _ := GenerateState()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty states, got %q and %q", a, b)
	}
}

func TestRunLock(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "rotation.db"))

	first, err := AcquireRunLock(path)
	if err != nil {
		t.Fatalf("AcquireRunLock() error = %v", err)
	}

	if _, err := AcquireRunLock(path); !errors.Is(err, ErrRunLocked) {
		t.Errorf("expected ErrRunLocked for a second holder, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	again, err := AcquireRunLock(path)
	if err != nil {
		t.Fatalf("lock should be free after release: %v", err)
	}
	again.Release()
}

func TestBrowserCommand(t *testing.T) {
	if _, err := browserCommand("plan9", "http://x"); err == nil {
		t.Error("expected unsupported platform error")
	}

	cmd, err := browserCommand("darwin", "http://x")
	if err != nil {
		t.Fatalf("browserCommand() error = %v", err)
	}
	if cmd.Args[0] != "open" || cmd.Args[1] != "http://x" {
		t.Errorf("unexpected args %v", cmd.Args)
	}
}
