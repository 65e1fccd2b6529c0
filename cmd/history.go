package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/rotation/internal/formatter"
	"github.com/desertthunder/rotation/internal/history"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryExport writes the durable listen history to a CSV file.
func (r *Runner) HistoryExport(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, repos, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer db.Close()

	plays, err := repos.History.Load(ctx)
	if err != nil {
		return err
	}

	data, err := formatter.ExportHistoryCSV(plays)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if err := formatter.WriteExport(data, output); err != nil {
		return err
	}

	r.logger.Info("exported history", "count", len(plays), "path", output)
	r.writePlain("✓ Exported %d plays to %s\n", len(plays), output)
	return nil
}

// HistoryImport merges plays from a CSV file into the durable history.
//
// Imported plays go through the same collapse rules as fetched ones.
func (r *Runner) HistoryImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: CSV path is required", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	imported, err := formatter.ImportHistoryCSV(f)
	if err != nil {
		return err
	}

	lock, err := r.lock(config)
	if err != nil {
		return err
	}
	defer lock.Release()

	db, repos, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer db.Close()

	existing, err := repos.History.Load(ctx)
	if err != nil {
		return err
	}
	tracked, err := repos.Playlist.Load(ctx, models.Tracked)
	if err != nil {
		return err
	}

	window := config.History.CollapseWindow
	if window <= 0 {
		window = history.DefaultCollapseWindow
	}

	merged := history.Merge(existing, imported, tracked.IDs(), window)
	if err := repos.History.Save(ctx, merged); err != nil {
		return err
	}

	r.logger.Info("imported history", "rows", len(imported), "before", len(existing), "after", len(merged))
	r.writePlain("✓ Imported %d plays from %s (history now %d)\n", len(imported), path, len(merged))
	return nil
}
