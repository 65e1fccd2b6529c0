package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/rotation/internal/formatter"
	"github.com/desertthunder/rotation/internal/shared"
	"github.com/desertthunder/rotation/internal/tasks"
	"github.com/urfave/cli/v3"
)

// RatingsList prints the ranked ratings, or the removal archive with --removed.
func (r *Runner) RatingsList(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, repos, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("removed") {
		removed, err := repos.Ratings.Removals(ctx)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return r.writeJSON(removed, true)
		}
		if len(removed) == 0 {
			r.writePlain("No removed tracks\n")
			return nil
		}
		r.writePlain("%s", formatter.RemovalsTable(removed))
		return nil
	}

	ratings, err := repos.Ratings.Load(ctx)
	if err != nil {
		return err
	}

	limit := cmd.Int("limit")
	if cmd.Bool("json") {
		if limit > 0 && limit < len(ratings) {
			ratings = ratings[:limit]
		}
		return r.writeJSON(ratings, true)
	}

	if len(ratings) == 0 {
		r.writePlain("No ratings yet, run 'rotation sync' first\n")
		return nil
	}

	r.writePlain("%s", formatter.RatingsTable(ratings, limit))
	r.writePlain("Total: %d tracks\n", len(ratings))
	return nil
}

// RatingsExport writes the rating table to a CSV file.
func (r *Runner) RatingsExport(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, repos, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer db.Close()

	ratings, err := repos.Ratings.Load(ctx)
	if err != nil {
		return err
	}

	data, err := formatter.ExportRatingsCSV(ratings)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if err := formatter.WriteExport(data, output); err != nil {
		return err
	}

	r.logger.Info("exported ratings", "count", len(ratings), "path", output)
	r.writePlain("✓ Exported %d ratings to %s\n", len(ratings), output)
	return nil
}

// RatingsImport replaces the rating table with a CSV file. Rows are validated before anything is written.
func (r *Runner) RatingsImport(ctx context.Context, cmd *cli.Command) error {
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

	ratings, err := formatter.ImportRatingsCSV(f)
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

	if err := repos.Ratings.Save(ctx, ratings); err != nil {
		return err
	}

	r.logger.Info("imported ratings", "count", len(ratings), "path", path)
	r.writePlain("✓ Imported %d ratings from %s\n", len(ratings), path)
	return nil
}

// RatingsReview prompts for stars on unrated tracks, or on every track with --all.
func (r *Runner) RatingsReview(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
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

	pipeline := tasks.NewPipeline(nil, repos, config, r.deciders(cmd), r.logger)
	reviewed, changed, err := pipeline.ReviewRatings(ctx, cmd.Bool("all"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Reviewed %d tracks, %d changed\n", reviewed, changed)
	return nil
}
