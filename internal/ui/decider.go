package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/rotation/internal/identity"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/ranking"
	"github.com/desertthunder/rotation/internal/shared"
)

var (
	_ identity.MatchConfirmer = (*TerminalDecider)(nil)
	_ ranking.RatingReviewer  = (*TerminalDecider)(nil)
	_ identity.MatchConfirmer = NonInteractiveDecider{}
	_ ranking.RatingReviewer  = NonInteractiveDecider{}
)

// ErrAborted is returned when the user quits a prompt.
var ErrAborted = errors.New("prompt aborted")

// TerminalDecider asks the user through [huh] forms.
//
// In accessible mode it reads one plain line per prompt from in instead.
type TerminalDecider struct {
	in         io.Reader
	out        io.Writer
	accessible bool
	logger     *log.Logger
	lines      *bufio.Reader
}

// NewTerminalDecider creates a decider reading from in and drawing to out.
//
// Accessible mode swaps the interactive widgets for plain line prompts.
func NewTerminalDecider(in io.Reader, out io.Writer, accessible bool, logger *log.Logger) *TerminalDecider {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if out == nil {
		out = io.Discard
	}
	d := &TerminalDecider{in: in, out: out, accessible: accessible, logger: logger}
	if in != nil {
		d.lines = bufio.NewReader(in)
	}
	return d
}

type lineResult struct {
	line string
	err  error
}

// ask writes prompt and reads one line. EOF after no input yields an empty line.
func (d *TerminalDecider) ask(ctx context.Context, prompt string) (string, error) {
	if _, err := fmt.Fprint(d.out, prompt); err != nil {
		return "", err
	}
	if d.lines == nil {
		return "", nil
	}

	read := make(chan lineResult, 1)
	go func() {
		line, err := d.lines.ReadString('\n')
		read <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(d.out)
		return "", ctx.Err()
	case res := <-read:
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			return "", res.err
		}
		if errors.Is(res.err, io.EOF) && res.line == "" {
			fmt.Fprintln(d.out)
		}
		return strings.TrimRight(res.line, "\r\n"), nil
	}
}

func (d *TerminalDecider) run(ctx context.Context, fields ...huh.Field) error {
	form := huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true)
	if d.in != nil {
		form = form.WithInput(d.in)
	}
	if d.out != nil {
		form = form.WithOutput(d.out)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

// ConfirmMatch shows the comparison card and asks whether both tracks are the same song.
//
// Only y or Y accepts the match; any other answer rejects it.
func (d *TerminalDecider) ConfirmMatch(ctx context.Context, m identity.PendingMatch) (bool, error) {
	if d.accessible {
		fmt.Fprintln(d.out, MatchCard(m))
		line, err := d.ask(ctx, fmt.Sprintf("Is %q the same song as %q? [y/N]: ", m.Recent.Name, m.Candidate.Name))
		if err != nil {
			return false, err
		}
		accept := line == "y" || line == "Y"
		d.logger.Debug("match decided", "old", m.Candidate.ID, "new", m.Recent.ID, "accepted", accept)
		return accept, nil
	}

	var accept bool
	confirm := huh.NewConfirm().
		Title(fmt.Sprintf("Is %q the same song as %q?", m.Recent.Name, m.Candidate.Name)).
		Description(MatchCard(m)).
		Affirmative("Yes, replace the id").
		Negative("No").
		Value(&accept)

	if err := d.run(ctx, confirm); err != nil {
		return false, err
	}

	d.logger.Debug("match decided", "old", m.Candidate.ID, "new", m.Recent.ID, "accepted", accept)
	return accept, nil
}

// ReviewRating asks for 1..5 stars. Anything else keeps the prior rating.
func (d *TerminalDecider) ReviewRating(ctx context.Context, p ranking.PendingReview) (int, error) {
	title := fmt.Sprintf("Rate %q (1-5, blank keeps %s)", p.Rating.Name, Stars(p.Rating.Stars))

	var answer string
	if d.accessible {
		fmt.Fprintln(d.out, ReviewCard(p))
		line, err := d.ask(ctx, title+": ")
		if err != nil {
			return 0, err
		}
		answer = line
	} else {
		input := huh.NewInput().
			Title(title).
			Description(ReviewCard(p)).
			Placeholder(strconv.Itoa(p.Rating.Stars)).
			Value(&answer)

		if err := d.run(ctx, input); err != nil {
			return 0, err
		}
	}

	stars, ok := ParseStars(answer)
	if !ok {
		if strings.TrimSpace(answer) != "" {
			d.logger.Warn("ignoring rating outside 1-5", "track", p.Rating.TrackID, "input", answer)
		}
		return p.Rating.Stars, nil
	}
	return stars, nil
}

// PlaylistID asks for the id of a playlist that has not been configured yet.
func (d *TerminalDecider) PlaylistID(ctx context.Context, kind models.PlaylistKind) (string, error) {
	if d.accessible {
		line, err := d.ask(ctx, fmt.Sprintf("Spotify id or share link of the %s playlist: ", kind))
		if err != nil {
			return "", err
		}
		id := PlaylistIDFromInput(line)
		if id == "" {
			return "", fmt.Errorf("%w: %s playlist id is required", shared.ErrMissingArgument, kind)
		}
		return id, nil
	}

	var id string
	input := huh.NewInput().
		Title(fmt.Sprintf("Spotify id of the %s playlist", kind)).
		Description("Paste the id or the share link").
		Validate(func(s string) error {
			if PlaylistIDFromInput(s) == "" {
				return fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
			}
			return nil
		}).
		Value(&id)

	if err := d.run(ctx, input); err != nil {
		return "", err
	}
	return PlaylistIDFromInput(id), nil
}

// NonInteractiveDecider answers every prompt without asking: matches are rejected and ratings kept.
type NonInteractiveDecider struct {
	Logger *log.Logger
}

func (d NonInteractiveDecider) ConfirmMatch(_ context.Context, m identity.PendingMatch) (bool, error) {
	if d.Logger != nil {
		d.Logger.Info("possible id change left unresolved",
			"recent", m.Recent.ID, "candidate", m.Candidate.ID, "name", m.Candidate.Name)
	}
	return false, nil
}

func (d NonInteractiveDecider) ReviewRating(_ context.Context, p ranking.PendingReview) (int, error) {
	return p.Rating.Stars, nil
}

func (d NonInteractiveDecider) PlaylistID(_ context.Context, kind models.PlaylistKind) (string, error) {
	return "", fmt.Errorf("%w: no %s playlist id configured", shared.ErrMissingConfig, kind)
}

// ParseStars parses a star rating, reporting false for anything outside 1..5.
func ParseStars(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !models.ValidStars(n) {
		return 0, false
	}
	return n, true
}

// PlaylistIDFromInput accepts a bare id, a spotify:playlist: URI or an open.spotify.com link.
func PlaylistIDFromInput(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "spotify:playlist:"); ok {
		return rest
	}
	if i := strings.Index(s, "/playlist/"); i >= 0 {
		s = s[i+len("/playlist/"):]
		if j := strings.IndexAny(s, "?#/"); j >= 0 {
			s = s[:j]
		}
	}
	return s
}
