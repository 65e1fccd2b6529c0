package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// RatingStore is the persistence the browser reads and edits.
type RatingStore interface {
	Load(ctx context.Context) ([]models.RatingRecord, error)
	UpdateStars(ctx context.Context, trackID string, stars int) error
}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ListView ViewState = iota
	DetailView
)

// Model is the ratings browser: a ranked list with in-place star edits.
type Model struct {
	ctx     context.Context
	view    ViewState
	store   RatingStore
	width   int
	height  int
	list    list.Model
	ratings []models.RatingRecord
	status  string
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a ratings browser backed by store.
func NewModel(ctx context.Context, store RatingStore) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Rotation"
	l.SetShowHelp(false)

	return &Model{
		ctx:   ctx,
		view:  ListView,
		store: store,
		list:  l,
		help:  help.New(),
		keys:  newKeyMap(),
	}
}

// Init loads the ratings table.
func (m *Model) Init() tea.Cmd {
	return m.loadRatings()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch m.view {
		case ListView:
			if model, cmd, handled := m.handleListKeys(msg); handled {
				return model, cmd
			}
		case DetailView:
			return m.handleDetailKeys(msg)
		}
	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRatingsLoaded:
		data := msg.data.(ratingsLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.ratings = data.ratings
		cmd := m.list.SetItems(ratingItems(data.ratings))
		m.status = fmt.Sprintf("%d tracks", len(data.ratings))
		return m, cmd
	case MsgStarsSaved:
		data := msg.data.(starsSaved)
		if data.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("could not save: %v", data.err))
			return m, nil
		}
		return m, m.applyStars(data.trackID, data.stars)
	}
	return m, nil
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit, true
	case key.Matches(msg, m.keys.reload):
		return m, m.loadRatings(), true
	case key.Matches(msg, m.keys.enter):
		if _, ok := m.selected(); ok {
			m.view = DetailView
		}
		return m, nil, true
	case key.Matches(msg, m.keys.rate), key.Matches(msg, m.keys.clear):
		return m, m.rateSelected(msg.String()), true
	}
	return m, nil, false
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = ListView
	case key.Matches(msg, m.keys.rate), key.Matches(msg, m.keys.clear):
		return m, m.rateSelected(msg.String())
	}
	return m, nil
}

func (m *Model) selected() (models.RatingRecord, bool) {
	item, ok := m.list.SelectedItem().(ratingItem)
	if !ok {
		return models.RatingRecord{}, false
	}
	return item.rating, true
}

func (m *Model) rateSelected(k string) tea.Cmd {
	r, ok := m.selected()
	if !ok {
		return nil
	}
	stars := 0
	if n, valid := ParseStars(k); valid {
		stars = n
	}
	if stars == r.Stars {
		return nil
	}
	return m.saveStars(r.TrackID, stars)
}

// applyStars updates the cached rating and its list row after a successful save.
func (m *Model) applyStars(trackID string, stars int) tea.Cmd {
	for i := range m.ratings {
		if m.ratings[i].TrackID == trackID {
			m.ratings[i].Stars = stars
		}
	}
	for i, item := range m.list.Items() {
		ri, ok := item.(ratingItem)
		if !ok || ri.rating.TrackID != trackID {
			continue
		}
		ri.rating.Stars = stars
		m.status = styles.ok.Render(fmt.Sprintf("%s → %s", ri.rating.Name, Stars(stars)))
		return m.list.SetItem(i, ri)
	}
	return nil
}

func (m *Model) loadRatings() tea.Cmd {
	return func() tea.Msg {
		ratings, err := m.store.Load(m.ctx)
		return ratingsLoadedMsg(ratings, err)
	}
}

func (m *Model) saveStars(trackID string, stars int) tea.Cmd {
	return func() tea.Msg {
		return starsSavedMsg(trackID, stars, m.store.UpdateStars(m.ctx, trackID, stars))
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	var body string
	switch m.view {
	case DetailView:
		body = m.renderDetail()
	default:
		body = m.list.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.status, styles.help.Render(m.help.View(m.keys)))
}

func (m *Model) renderDetail() string {
	r, ok := m.selected()
	if !ok {
		return ""
	}

	var plays strings.Builder
	for i, n := range r.TierPlays {
		if i > 0 {
			plays.WriteString("  ")
		}
		fmt.Fprintf(&plays, "%d★ %d", i+1, n)
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.title.Render(r.Name),
		row("artist", r.Artist),
		row("album", r.Album),
		row("rating", styles.star.Render(Stars(r.Stars))),
		row("ranking", fmt.Sprintf("%d of %d", r.Ranking, len(m.ratings))),
		row("played", shared.FormatMillis(r.LastPlayed)),
		row("plays", plays.String()),
		row("id", r.TrackID),
	)
	return styles.card.Render(body)
}
