package ui

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/rotation/internal/identity"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/ranking"
	"github.com/desertthunder/rotation/internal/shared"
)

// MatchCard renders a flagged substitution as two side-by-side track panels and a score line.
func MatchCard(m identity.PendingMatch) string {
	left := trackPanel("recently played", m.Recent)
	right := trackPanel(fmt.Sprintf("playlist #%d", m.Position), m.Candidate)
	panels := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)

	scores := fmt.Sprintf("name %s  artist %s  album %s  duration %s",
		percent(m.Scores.Name), percent(m.Scores.Artist), percent(m.Scores.Album), ratio(m.Scores.DurationRatio))

	return lipgloss.JoinVertical(lipgloss.Left, panels, styles.help.Render(scores))
}

// ReviewCard renders a rating awaiting review.
func ReviewCard(p ranking.PendingReview) string {
	r := p.Rating
	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.ok.Render(r.Name),
		row("artist", r.Artist),
		row("album", r.Album),
		row("rating", styles.star.Render(Stars(r.Stars))),
		row("played", shared.FormatMillis(r.LastPlayed)),
		row("reason", p.Reason),
	)
	return styles.card.Render(body)
}

func trackPanel(heading string, t models.Track) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.title.UnsetMarginBottom().Render(heading),
		styles.ok.Render(t.Name),
		row("artist", t.Artist),
		row("album", t.Album),
		row("length", shared.FormatDuration(t.DurationMS)),
		row("id", t.ID),
	)
	return styles.card.Render(body)
}

func row(label, value string) string {
	return styles.label.Render(label) + value
}

func percent(f float64) string {
	return fmt.Sprintf("%.0f%%", f*100)
}

func ratio(f float64) string {
	if math.IsInf(f, 1) {
		return "n/a"
	}
	return fmt.Sprintf("±%.1f%%", f*100)
}
