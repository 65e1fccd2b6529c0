// package formatter exports and imports rotation datasets as CSV and renders them as terminal tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

var (
	ratingHeaders  = []string{"track_id", "name", "artist", "album", "stars", "ranking", "star_plays", "last_played"}
	historyHeaders = []string{"track_id", "track_name", "artist_name", "album_name", "played_at", "duration_ms", "popularity", "batch", "tracked"}
)

// ExportRatingsCSV converts ratings to CSV with columns: track_id, name, artist, album, stars, ranking, star_plays, last_played
func ExportRatingsCSV(ratings []models.RatingRecord) ([]byte, error) {
	records := make([][]string, len(ratings))
	for i, r := range ratings {
		records[i] = []string{
			r.TrackID,
			r.Name,
			r.Artist,
			r.Album,
			strconv.Itoa(r.Stars),
			strconv.Itoa(r.Ranking),
			strconv.Itoa(r.StarPlays),
			formatTimestamp(r.LastPlayed),
		}
	}
	return writeCSV(ratingHeaders, records)
}

// ExportHistoryCSV converts plays to CSV, one row per play, newest first as given.
func ExportHistoryCSV(plays []models.PlayEvent) ([]byte, error) {
	records := make([][]string, len(plays))
	for i, p := range plays {
		records[i] = []string{
			p.TrackID,
			p.TrackName,
			p.ArtistName,
			p.AlbumName,
			formatTimestamp(p.PlayedAt),
			strconv.Itoa(p.DurationMS),
			strconv.Itoa(p.Popularity),
			strconv.Itoa(p.Batch),
			strconv.FormatBool(p.Tracked),
		}
	}
	return writeCSV(historyHeaders, records)
}

func writeCSV(headers []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportRatingsCSV reads ratings written by [ExportRatingsCSV].
//
// Columns are matched by header name; only track_id and stars are required. Rows are validated and
// duplicate track ids rejected.
func ImportRatingsCSV(r io.Reader) ([]models.RatingRecord, error) {
	rows, err := readCSV(r, "track_id", "stars")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	ratings := make([]models.RatingRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.RatingRecord{
			TrackID: row.get("track_id"),
			Name:    row.get("name"),
			Artist:  row.get("artist"),
			Album:   row.get("album"),
		}
		if rec.Stars, err = row.int("stars"); err != nil {
			return nil, err
		}
		if rec.Ranking, err = row.int("ranking"); err != nil {
			return nil, err
		}
		if rec.StarPlays, err = row.int("star_plays"); err != nil {
			return nil, err
		}
		if rec.LastPlayed, err = row.timestamp("last_played"); err != nil {
			return nil, err
		}

		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", shared.ErrInvalidInput, row.line, err)
		}
		if seen[rec.TrackID] {
			return nil, fmt.Errorf("%w: line %d: duplicate track %s", shared.ErrInvalidInput, row.line, rec.TrackID)
		}
		seen[rec.TrackID] = true
		ratings = append(ratings, rec)
	}
	return ratings, nil
}

// ImportHistoryCSV reads plays written by [ExportHistoryCSV].
func ImportHistoryCSV(r io.Reader) ([]models.PlayEvent, error) {
	rows, err := readCSV(r, "track_id", "played_at")
	if err != nil {
		return nil, err
	}

	plays := make([]models.PlayEvent, 0, len(rows))
	for _, row := range rows {
		p := models.PlayEvent{
			TrackID:    row.get("track_id"),
			TrackName:  row.get("track_name"),
			ArtistName: row.get("artist_name"),
			AlbumName:  row.get("album_name"),
		}
		if p.TrackID == "" {
			return nil, fmt.Errorf("%w: line %d: missing track_id", shared.ErrInvalidInput, row.line)
		}
		if p.PlayedAt, err = row.timestamp("played_at"); err != nil {
			return nil, err
		}
		if p.PlayedAt == 0 {
			return nil, fmt.Errorf("%w: line %d: missing played_at", shared.ErrInvalidInput, row.line)
		}
		if p.DurationMS, err = row.int("duration_ms"); err != nil {
			return nil, err
		}
		if p.Popularity, err = row.int("popularity"); err != nil {
			return nil, err
		}
		if p.Batch, err = row.int("batch"); err != nil {
			return nil, err
		}
		if v := row.get("tracked"); v != "" {
			if p.Tracked, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("%w: line %d: tracked %q", shared.ErrInvalidInput, row.line, v)
			}
		}
		plays = append(plays, p)
	}
	return plays, nil
}

type csvRow struct {
	line   int
	index  map[string]int
	fields []string
}

func (r csvRow) get(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r csvRow) int(col string) (int, error) {
	v := r.get(col)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %s %q is not a number", shared.ErrInvalidInput, r.line, col, v)
	}
	return n, nil
}

// timestamp accepts RFC 3339 or epoch milliseconds.
func (r csvRow) timestamp(col string) (int64, error) {
	v := r.get(col)
	if v == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %s %q is not a timestamp", shared.ErrInvalidInput, r.line, col, v)
	}
	return shared.EpochMillis(t), nil
}

func readCSV(r io.Reader, required ...string) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty CSV", shared.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV headers: %v", shared.ErrInvalidInput, err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", shared.ErrInvalidInput, col)
		}
	}

	var rows []csvRow
	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", shared.ErrInvalidInput, line, err)
		}
		rows = append(rows, csvRow{line: line, index: index, fields: fields})
	}
	return rows, nil
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	return shared.FromEpochMillis(ms).Format(time.RFC3339Nano)
}

// WriteExport writes data to path, creating or truncating it.
func WriteExport(data []byte, path string) error {
	if path == "" {
		return fmt.Errorf("%w: output path", shared.ErrMissingArgument)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
