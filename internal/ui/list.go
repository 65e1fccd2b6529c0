package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/rotation/internal/models"
)

var _ list.Item = ratingItem{}

// ratingItem wraps [models.RatingRecord] to implement [list.Item].
type ratingItem struct {
	rating models.RatingRecord
}

func (i ratingItem) FilterValue() string { return i.rating.Name + " " + i.rating.Artist }
func (i ratingItem) Title() string {
	if i.rating.Ranking > 0 {
		return fmt.Sprintf("%d. %s", i.rating.Ranking, i.rating.Name)
	}
	return i.rating.Name
}
func (i ratingItem) Description() string {
	desc := fmt.Sprintf("%s • %s", Stars(i.rating.Stars), i.rating.Artist)
	if i.rating.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.rating.Album)
	}
	return fmt.Sprintf("%s • %d plays", desc, i.rating.StarPlays)
}

func ratingItems(ratings []models.RatingRecord) []list.Item {
	items := make([]list.Item, len(ratings))
	for i, r := range ratings {
		items[i] = ratingItem{rating: r}
	}
	return items
}
