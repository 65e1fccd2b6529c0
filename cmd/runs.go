package main

import (
	"context"

	"github.com/desertthunder/rotation/internal/formatter"
	"github.com/urfave/cli/v3"
)

// Runs lists the most recent sync runs.
func (r *Runner) Runs(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, repos, err := r.openStore(config)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repos.Runs.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		r.writePlain("No sync runs recorded\n")
		return nil
	}

	r.writePlain("%s", formatter.RunsTable(runs))
	return nil
}
