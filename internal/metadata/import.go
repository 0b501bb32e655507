package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ImportCSV loads metadata rows from a tabular dataset into the store.
// The file must carry a track_id column; title, artist, genre and year
// columns are picked up when present. Year cells accept either a bare
// year or a date whose first four digits are the year. Returns the
// number of rows imported.
func (s *Store) ImportCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("metadata: open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("metadata: read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	idIdx, ok := col["track_id"]
	if !ok {
		return 0, fmt.Errorf("metadata: dataset has no track_id column")
	}

	cell := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []Row
	skipped := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("metadata: read row: %w", err)
		}
		if idIdx >= len(record) || strings.TrimSpace(record[idIdx]) == "" {
			skipped++
			continue
		}
		rows = append(rows, Row{
			TrackID: strings.TrimSpace(record[idIdx]),
			Title:   firstNonEmpty(cell(record, "title"), cell(record, "track_name")),
			Artist:  firstNonEmpty(cell(record, "artist"), cell(record, "track_artist")),
			Genre:   firstNonEmpty(cell(record, "genre"), cell(record, "playlist_genre")),
			Year:    parseYear(firstNonEmpty(cell(record, "year"), cell(record, "date_released"))),
		})
	}
	if err := s.Insert(rows); err != nil {
		return 0, err
	}
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("metadata rows without track_id dropped")
	}
	return len(rows), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseYear extracts a 4-digit year from a year or date cell. Zero
// means unknown.
func parseYear(cell string) int {
	if len(cell) < 4 {
		return 0
	}
	n, err := strconv.Atoi(cell[:4])
	if err != nil || n < 1000 || n > 9999 {
		return 0
	}
	return n
}
