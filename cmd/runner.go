package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rotation/internal/repositories"
	"github.com/desertthunder/rotation/internal/services"
	"github.com/desertthunder/rotation/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
//
// A nil Config is loaded from the --config flag on first use.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, ratingsCommand, historyCommand, runsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// prepare applies the global flags: --verbose sets debug logging and --config names the file.
func (r *Runner) prepare(cmd *cli.Command) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	if r.configPath == "" {
		r.configPath = "config.toml"
	}
}

// loadConfig returns the injected config or reads and validates the file named by --config.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	r.prepare(cmd)
	if r.config != nil {
		return r.config, nil
	}

	if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingConfig, r.configPath)
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	r.config = config
	return config, nil
}

// openStore opens the configured database with migrations applied.
func (r *Runner) openStore(config *shared.Config) (*sql.DB, *repositories.Repositories, error) {
	db, err := shared.OpenStore(config.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, repositories.New(db), nil
}

// lock takes the run lock next to the configured database.
//
// Every command that writes a dataset holds it, so a second writer fails with [shared.ErrRunLocked].
func (r *Runner) lock(config *shared.Config) (*shared.RunLock, error) {
	l, err := shared.AcquireRunLock(shared.LockPath(config.Database.Path))
	if err != nil {
		return nil, err
	}
	r.logger.Debug("acquired run lock", "path", l.Path())
	return l, nil
}

// library returns an authenticated Spotify client built from the saved token.
func (r *Runner) library(ctx context.Context, config *shared.Config) (*services.SpotifyService, error) {
	svc, err := services.NewSpotifyService(config.Credentials.Spotify, r.logger)
	if err != nil {
		return nil, err
	}
	if err := svc.Authenticate(ctx, config.Credentials.Spotify.Token()); err != nil {
		return nil, err
	}
	return svc, nil
}

// persistToken saves a refreshed access token back to the config file.
func (r *Runner) persistToken(svc *services.SpotifyService, config *shared.Config) {
	token, err := svc.Token()
	if err != nil || token == nil || token.AccessToken == config.Credentials.Spotify.AccessToken {
		return
	}
	if err := r.saveTokens(token); err != nil {
		r.logger.Warn("could not save refreshed token", "path", r.configPath, "error", err)
		return
	}
	r.logger.Debug("saved refreshed token", "expiry", token.Expiry)
}

// saveTokens copies token into the loaded config and writes it to disk when a path is set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
