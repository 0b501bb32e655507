// Package fusion blends the acoustic ranking with a structured
// metadata similarity signal under a linear mixing weight.
package fusion

import (
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/quaverlab/quaver/internal/audioindex"
	"github.com/quaverlab/quaver/internal/metadata"
)

// AudioSearcher is the acoustic side of the fusion: ranked similar
// tracks for a reference track id.
type AudioSearcher interface {
	SearchByID(trackID string, topK int) ([]audioindex.Result, error)
}

// MetadataGetter fetches one metadata row by track id.
type MetadataGetter interface {
	Get(trackID string) (*metadata.Row, error)
}

// Candidate is one fused result with its score breakdown and the
// candidate's metadata fields.
type Candidate struct {
	TrackID       string  `json:"track_id"`
	Final         float64 `json:"score"`
	Audio         float64 `json:"score_audio"`
	MetadataScore float64 `json:"score_metadata"`
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	Genre         string  `json:"genre"`
	Year          int     `json:"year"`
}

// Engine combines the two signals. Score may be replaced to change
// the metadata similarity; it defaults to MetadataScore.
type Engine struct {
	Audio AudioSearcher
	Meta  MetadataGetter
	Score func(candidate, reference *metadata.Row) float64
}

// New builds a fusion engine with the default metadata similarity.
func New(audio AudioSearcher, meta MetadataGetter) *Engine {
	return &Engine{Audio: audio, Meta: meta, Score: MetadataScore}
}

// MetadataScore is the baseline similarity: +1 for a shared non-empty
// genre, +1 for a shared 4-digit release year.
func MetadataScore(candidate, reference *metadata.Row) float64 {
	if candidate == nil || reference == nil {
		return 0
	}
	var score float64
	if candidate.Genre != "" && candidate.Genre == reference.Genre {
		score++
	}
	if fourDigit(candidate.Year) && candidate.Year == reference.Year {
		score++
	}
	return score
}

func fourDigit(year int) bool { return year >= 1000 && year <= 9999 }

// Search runs the acoustic top-k, enriches each candidate with its
// metadata row and mixes `alpha*audio + (1-alpha)*metadata`. Alpha is
// clamped to [0,1]. A missing reference row degrades to audio-only
// ranking. Ties on the final score keep the audio order.
func (e *Engine) Search(queryTrackID string, topK int, alpha float64) ([]Candidate, error) {
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	audioResults, err := e.Audio.SearchByID(queryTrackID, topK)
	if err != nil {
		return nil, err
	}
	if len(audioResults) == 0 {
		return nil, nil
	}

	reference, err := e.Meta.Get(queryTrackID)
	if err != nil {
		if !errors.Is(err, metadata.ErrNotFound) {
			return nil, err
		}
		log.Warn().Str("track", queryTrackID).Msg("no metadata for reference track, using audio-only scores")
		reference = nil
	}

	candidates := make([]Candidate, 0, len(audioResults))
	for _, r := range audioResults {
		c := Candidate{TrackID: r.DocID, Audio: r.Score}
		row, err := e.Meta.Get(r.DocID)
		switch {
		case err == nil:
			c.Title, c.Artist, c.Genre, c.Year = row.Title, row.Artist, row.Genre, row.Year
			if reference != nil {
				c.MetadataScore = e.Score(row, reference)
			}
		case errors.Is(err, metadata.ErrNotFound):
			// Candidate without metadata keeps its audio score.
		default:
			return nil, err
		}
		c.Final = alpha*c.Audio + (1-alpha)*c.MetadataScore
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Final > candidates[j].Final
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}
