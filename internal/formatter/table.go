package formatter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// RatingsTable renders ranked ratings; limit > 0 truncates.
func RatingsTable(ratings []models.RatingRecord, limit int) string {
	if limit > 0 && limit < len(ratings) {
		ratings = ratings[:limit]
	}

	rows := make([][]string, len(ratings))
	for i, r := range ratings {
		rows[i] = []string{
			strconv.Itoa(r.Ranking),
			r.Name,
			r.Artist,
			starsLabel(r.Stars),
			strconv.Itoa(r.StarPlays),
			shared.FormatMillis(r.LastPlayed),
		}
	}
	return renderTable(
		[]string{"Rank", "Track", "Artist", "Stars", "Plays", "Last played"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

// RemovalsTable renders the removal archive.
func RemovalsTable(removed []models.RemovalRecord) string {
	rows := make([][]string, len(removed))
	for i, r := range removed {
		rows[i] = []string{r.Name, r.Artist, starsLabel(r.Stars), shared.FormatMillis(r.RemovedAt)}
	}
	return renderTable([]string{"Track", "Artist", "Stars", "Removed"}, rows, nil)
}

// RunsTable renders sync run audit rows.
func RunsTable(runs []*models.SyncRun) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows[i] = []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			string(r.Status),
			duration,
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.Resolved),
			strconv.Itoa(r.Inferred),
			strconv.Itoa(r.Ranked),
			strconv.Itoa(r.Removed),
			r.Error,
		}
	}
	return renderTable(
		[]string{"Started", "Status", "Took", "Fetched", "Resolved", "Inferred", "Ranked", "Removed", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func starsLabel(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", n, models.MaxStars)
}
