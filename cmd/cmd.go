// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand creates the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and run migrations",
		Action: r.Setup,
	}
}

// authCommand runs the Spotify OAuth flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize rotation with Spotify and save the token to the config",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: defaultAuthTimeout,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening it",
			},
		},
		Action: r.Auth,
	}
}

// syncCommand runs the full pipeline.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch recent plays, update history and ratings, and rebuild both playlists",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-prompt",
				Usage: "Never ask: reject id substitutions and keep ratings (for cron)",
			},
			&cli.BoolFlag{
				Name:  "accessible",
				Usage: "Use plain line prompts instead of interactive widgets",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the run summary as JSON",
			},
		},
		Action: r.Sync,
	}
}

// ratingsCommand inspects and edits star ratings.
func ratingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "ratings",
		Aliases: []string{"r"},
		Usage:   "Inspect and edit star ratings",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show the current ranking",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of tracks to show",
					},
					&cli.BoolFlag{
						Name:  "removed",
						Usage: "Show the removal archive instead",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.RatingsList,
			},
			{
				Name:  "export",
				Usage: "Write ratings to CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "ratings.csv",
					},
				},
				Action: r.RatingsExport,
			},
			{
				Name:  "import",
				Usage: "Replace ratings from a CSV export",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.RatingsImport,
			},
			{
				Name:  "review",
				Usage: "Rate unrated tracks, or every track with --all",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Review every rated track too",
					},
					&cli.BoolFlag{
						Name:  "no-prompt",
						Usage: "Keep current stars without asking",
					},
					&cli.BoolFlag{
						Name:  "accessible",
						Usage: "Use plain line prompts instead of interactive widgets",
					},
				},
				Action: r.RatingsReview,
			},
		},
	}
}

// historyCommand exports and restores the listen history.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Export or restore the listen history",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Write the listen history to CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "listen_history.csv",
					},
				},
				Action: r.HistoryExport,
			},
			{
				Name:  "import",
				Usage: "Merge a CSV export into the listen history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.HistoryImport,
			},
		},
	}
}

// runsCommand lists sync audit rows.
func runsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Show recent sync runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of runs to show",
				Value:   10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Runs,
	}
}

// tuiCommand returns the top-level TUI command for browsing ratings.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse the ranking and edit stars interactively",
		Action:  r.TUI,
	}
}
