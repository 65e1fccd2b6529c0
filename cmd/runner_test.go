package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/repositories"
	"github.com/desertthunder/rotation/internal/shared"
	tu "github.com/desertthunder/rotation/internal/testing"
	"golang.org/x/oauth2"
)

// testEnv writes a config pointing at a temporary database and returns its path.
func testEnv(t *testing.T) (string, *shared.Config) {
	t.Helper()
	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "rotation.db")

	path := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(path, config); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path, config
}

func runApp(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: output, Input: strings.NewReader("")})
	argv := append([]string{"rotation", "--config", configPath}, args...)
	err := newApp(runner).Run(context.Background(), argv)
	return output.String(), err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			input := strings.NewReader("")

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Input:      input,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.input != input {
				t.Error("expected input to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil config defers loading", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config != nil {
				t.Error("expected config to be loaded lazily")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil input uses stdin", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Input: nil})
			if runner.input != os.Stdin {
				t.Error("expected input to default to os.Stdin")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("writePlainln pads with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("done"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "\ndone\n" {
				t.Errorf("expected padded line, got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "auth", "sync", "ratings", "history", "runs", "tui"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if cmd.Name != want[i] {
				t.Errorf("command %d: expected %s, got %s", i, want[i], cmd.Name)
			}
		}
	})

	t.Run("saveTokens", func(t *testing.T) {
		t.Run("saves tokens successfully", func(t *testing.T) {
			configPath, config := testEnv(t)
			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath})

			token := &oauth2.Token{AccessToken: "new_access_token", RefreshToken: "new_refresh_token"}
			if err := runner.saveTokens(token); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			loaded, err := shared.LoadConfig(configPath)
			if err != nil {
				t.Fatalf("failed to reload config: %v", err)
			}
			if loaded.Credentials.Spotify.AccessToken != "new_access_token" {
				t.Errorf("expected access token to be updated, got %s", loaded.Credentials.Spotify.AccessToken)
			}
			if loaded.Credentials.Spotify.RefreshToken != "new_refresh_token" {
				t.Errorf("expected refresh token to be updated, got %s", loaded.Credentials.Spotify.RefreshToken)
			}
		})

		t.Run("handles nil config error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/tmp/test.toml"})

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("handles empty configPath", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config})

			if err := runner.saveTokens(&oauth2.Token{AccessToken: "new_token"}); err != nil {
				t.Fatalf("expected no error with empty path, got %v", err)
			}
			if config.Credentials.Spotify.AccessToken != "new_token" {
				t.Error("expected config to be updated in memory")
			}
		})

		t.Run("handles SaveConfig failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config:     shared.DefaultConfig(),
				ConfigPath: filepath.Join(t.TempDir(), "missing", "config.toml"),
			})

			err := runner.saveTokens(&oauth2.Token{AccessToken: "test"})
			if err == nil || !strings.Contains(err.Error(), "failed to save config") {
				t.Errorf("expected save config error, got %v", err)
			}
		})

		t.Run("handles Update error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig()})

			err := runner.saveTokens(nil)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
			if err != nil && !strings.Contains(err.Error(), "failed to update spotify configuration") {
				t.Errorf("expected update error, got %v", err)
			}
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("missing config points at setup", func(t *testing.T) {
		_, err := runApp(t, filepath.Join(t.TempDir(), "none.toml"), "runs")
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("setup creates config and database", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "rotation.db")
		if err := shared.SaveConfig(configPath, config); err != nil {
			t.Fatal(err)
		}

		out, err := runApp(t, configPath, "setup")
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		tu.AssertFileExists(t, config.Database.Path)
		if !strings.Contains(out, "Database ready") {
			t.Errorf("expected readiness message, got %q", out)
		}

		if _, err := runApp(t, configPath, "setup"); err != nil {
			t.Errorf("expected setup to be idempotent, got %v", err)
		}
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		configPath, config := testEnv(t)
		config.Playlists.BatchSize = 500
		if err := shared.SaveConfig(configPath, config); err != nil {
			t.Fatal(err)
		}

		_, err := runApp(t, configPath, "ratings", "list")
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ratings import, list and export", func(t *testing.T) {
		configPath, config := testEnv(t)
		dir := filepath.Dir(configPath)

		csvPath := filepath.Join(dir, "in.csv")
		tu.MustWriteFile(t, csvPath, "track_id,name,artist,stars\nt1,One,A,5\nt2,Two,B,0\n")

		out, err := runApp(t, configPath, "ratings", "import", csvPath)
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if !strings.Contains(out, "Imported 2 ratings") {
			t.Errorf("unexpected import output %q", out)
		}

		out, err = runApp(t, configPath, "ratings", "list")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(out, "One") || !strings.Contains(out, "Total: 2 tracks") {
			t.Errorf("unexpected list output %q", out)
		}

		out, err = runApp(t, configPath, "ratings", "list", "--json", "--limit", "1")
		if err != nil {
			t.Fatalf("list --json failed: %v", err)
		}
		if strings.Count(out, `"track_id"`) != 1 {
			t.Errorf("expected one JSON rating, got %q", out)
		}

		exportPath := filepath.Join(dir, "out.csv")
		if _, err := runApp(t, configPath, "ratings", "export", "--output", exportPath); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		exported := tu.MustReadFile(t, exportPath)
		if !strings.HasPrefix(exported, "track_id,name,artist,album,stars") {
			t.Errorf("unexpected export header %q", exported)
		}
		if !strings.Contains(exported, "t1,One,A,,5") {
			t.Errorf("expected imported row in export, got %q", exported)
		}

		db, err := shared.OpenStore(config.Database)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		rec, err := repositories.New(db).Ratings.Get(context.Background(), "t1")
		if err != nil {
			t.Fatalf("expected stored rating: %v", err)
		}
		if rec.Stars != 5 {
			t.Errorf("expected 5 stars, got %d", rec.Stars)
		}
	})

	t.Run("ratings import rejects bad rows", func(t *testing.T) {
		configPath, _ := testEnv(t)
		csvPath := filepath.Join(filepath.Dir(configPath), "bad.csv")
		tu.MustWriteFile(t, csvPath, "track_id,stars\nt1,9\n")

		_, err := runApp(t, configPath, "ratings", "import", csvPath)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("ratings import requires a path", func(t *testing.T) {
		configPath, _ := testEnv(t)
		_, err := runApp(t, configPath, "ratings", "import")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("history import merges and marks tracked plays", func(t *testing.T) {
		configPath, config := testEnv(t)
		dir := filepath.Dir(configPath)

		db, err := shared.OpenStore(config.Database)
		if err != nil {
			t.Fatal(err)
		}
		repos := repositories.New(db)
		ctx := context.Background()
		if err := repos.Playlist.Replace(ctx, models.Tracked, models.Snapshot{{ID: "t1", Name: "One"}}); err != nil {
			t.Fatal(err)
		}
		db.Close()

		csvPath := filepath.Join(dir, "history.csv")
		tu.MustWriteFile(t, csvPath, "track_id,track_name,played_at\n"+
			"t1,One,1000000\n"+
			"t1,One,1060000\n"+
			"t2,Two,5000000\n")

		out, err := runApp(t, configPath, "history", "import", csvPath)
		if err != nil {
			t.Fatalf("history import failed: %v", err)
		}
		if !strings.Contains(out, "history now 2") {
			t.Errorf("expected collapsed history of 2, got %q", out)
		}

		exportPath := filepath.Join(dir, "export.csv")
		if _, err := runApp(t, configPath, "history", "export", "--output", exportPath); err != nil {
			t.Fatalf("history export failed: %v", err)
		}
		exported := tu.MustReadFile(t, exportPath)
		lines := strings.Split(strings.TrimSpace(exported), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if !strings.HasSuffix(lines[2], "true") {
			t.Errorf("expected tracked play to be marked, got %q", lines[2])
		}
	})

	t.Run("imports refuse to run during a sync", func(t *testing.T) {
		configPath, config := testEnv(t)
		dir := filepath.Dir(configPath)
		ratingsPath := filepath.Join(dir, "ratings.csv")
		historyPath := filepath.Join(dir, "history.csv")
		tu.MustWriteFile(t, ratingsPath, "track_id,stars\nt1,3\n")
		tu.MustWriteFile(t, historyPath, "track_id,played_at\nt1,1000000\n")

		held, err := shared.AcquireRunLock(shared.LockPath(config.Database.Path))
		if err != nil {
			t.Fatalf("failed to take lock: %v", err)
		}

		tests := []struct {
			name string
			args []string
		}{
			{"ratings import", []string{"ratings", "import", ratingsPath}},
			{"ratings review", []string{"ratings", "review", "--no-prompt"}},
			{"history import", []string{"history", "import", historyPath}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := runApp(t, configPath, tt.args...); !errors.Is(err, shared.ErrRunLocked) {
					t.Errorf("expected ErrRunLocked, got %v", err)
				}
			})
		}

		if err := held.Release(); err != nil {
			t.Fatalf("failed to release lock: %v", err)
		}
		if _, err := runApp(t, configPath, "history", "import", historyPath); err != nil {
			t.Errorf("expected import to succeed after release, got %v", err)
		}
	})

	t.Run("runs with empty database", func(t *testing.T) {
		configPath, _ := testEnv(t)
		out, err := runApp(t, configPath, "runs")
		if err != nil {
			t.Fatalf("runs failed: %v", err)
		}
		if !strings.Contains(out, "No sync runs recorded") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("review without unrated tracks", func(t *testing.T) {
		configPath, _ := testEnv(t)
		out, err := runApp(t, configPath, "ratings", "review", "--no-prompt")
		if err != nil {
			t.Fatalf("review failed: %v", err)
		}
		if !strings.Contains(out, "Reviewed 0 tracks") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("sync without a token asks for auth", func(t *testing.T) {
		configPath, _ := testEnv(t)
		_, err := runApp(t, configPath, "sync", "--no-prompt")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}
