package main

import (
	"context"
	"os"
	"sync"

	"github.com/desertthunder/rotation/internal/shared"
	"github.com/desertthunder/rotation/internal/tasks"
	"github.com/desertthunder/rotation/internal/ui"
	"github.com/urfave/cli/v3"
)

// Sync runs one full pipeline pass: mirror, fetch, resolve, infer, merge, rank and rebuild.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
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

	svc, err := r.library(ctx, config)
	if err != nil {
		return err
	}
	defer r.persistToken(svc, config)

	pipeline := tasks.NewPipeline(svc, repos, config, r.deciders(cmd), r.logger)

	jsonOutput := cmd.Bool("json")
	progress := make(chan tasks.ProgressUpdate, 16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			if jsonOutput {
				r.logger.Debug(update.Message, "phase", update.Phase)
				continue
			}
			r.writePlain("→ [%s] %s\n", update.Phase, update.Message)
		}
	}()

	run, err := pipeline.Run(ctx, progress)
	close(progress)
	wg.Wait()

	if err != nil {
		return err
	}

	if jsonOutput {
		return r.writeJSON(run, true)
	}

	r.writePlainHeader("Sync complete")
	r.writePlain("Run:       %s\n", run.ID)
	r.writePlain("Since:     %s\n", shared.FormatMillis(run.Since))
	r.writePlain("Fetched:   %d\n", run.Fetched)
	r.writePlain("Resolved:  %d\n", run.Resolved)
	r.writePlain("Inferred:  %d\n", run.Inferred)
	r.writePlain("History:   %d\n", run.Merged)
	r.writePlain("Ranked:    %d\n", run.Ranked)
	r.writePlain("Removed:   %d\n", run.Removed)
	return nil
}

// deciders picks the prompt implementation: huh forms on a terminal, or fixed answers with --no-prompt.
func (r *Runner) deciders(cmd *cli.Command) tasks.Deciders {
	if cmd.Bool("no-prompt") {
		d := ui.NonInteractiveDecider{Logger: r.logger}
		return tasks.Deciders{Confirmer: d, Reviewer: d, Prompter: d}
	}

	d := ui.NewTerminalDecider(r.input, os.Stderr, cmd.Bool("accessible"), r.logger)
	return tasks.Deciders{Confirmer: d, Reviewer: d, Prompter: d}
}
