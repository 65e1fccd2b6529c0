package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rotation/internal/models"
)

// MsgKind enumerates all message types in the ratings browser.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRatingsLoaded MsgKind = iota
	MsgStarsSaved
)

type ratingsLoaded struct {
	ratings []models.RatingRecord
	err     error
}

type starsSaved struct {
	trackID string
	stars   int
	err     error
}

// ratingsLoadedMsg is the constructor for [MsgRatingsLoaded]
func ratingsLoadedMsg(ratings []models.RatingRecord, err error) Msg {
	return Msg{kind: MsgRatingsLoaded, data: ratingsLoaded{ratings, err}}
}

// starsSavedMsg is the constructor for [MsgStarsSaved]
func starsSavedMsg(trackID string, stars int, err error) Msg {
	return Msg{kind: MsgStarsSaved, data: starsSaved{trackID, stars, err}}
}
