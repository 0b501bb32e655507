// Package engine wires the searchers, the metadata store and the
// fusion layer behind one facade loaded at startup. Every method is
// safe for parallel use; refreshing artifacts means loading a new
// Engine and swapping the reference.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quaverlab/quaver/internal/analysis"
	"github.com/quaverlab/quaver/internal/audioindex"
	"github.com/quaverlab/quaver/internal/config"
	"github.com/quaverlab/quaver/internal/fusion"
	"github.com/quaverlab/quaver/internal/metadata"
	"github.com/quaverlab/quaver/internal/textindex"
)

// ErrNotLoaded reports a query against a side of the engine whose
// artifacts were not loaded.
var ErrNotLoaded = errors.New("engine side not loaded")

// Options selects which sides of the engine to load.
type Options struct {
	Text  bool
	Audio bool
	Meta  bool
	KNN   bool // also load the brute-force scanner
}

// Engine is the loaded query surface.
type Engine struct {
	cfg   *config.Config
	text  *textindex.Searcher
	audio *audioindex.Searcher
	knn   *audioindex.KNN
	meta  *metadata.Store
	fuse  *fusion.Engine
}

// Load opens the requested artifact sets. Audio and metadata together
// enable fusion.
func Load(cfg *config.Config, opts Options) (*Engine, error) {
	e := &Engine{cfg: cfg}

	if opts.Text {
		analyzer, err := analysis.New(cfg.StoplistPath)
		if err != nil {
			return nil, err
		}
		if e.text, err = textindex.Open(cfg.TextIndexDir(), analyzer, cfg.TextFields); err != nil {
			return nil, err
		}
		log.Info().Int("docs", e.text.DocCount()).Msg("text index loaded")
	}
	if opts.Audio {
		var err error
		if e.audio, err = audioindex.Open(cfg.AudioIndexDir()); err != nil {
			return nil, err
		}
		log.Info().Int("docs", e.audio.DocCount()).Int("k", e.audio.K()).Msg("acoustic index loaded")
		if opts.KNN {
			e.knn = audioindex.NewKNN(e.audio.IDF())
			if _, err := e.knn.Load(&audioindex.DirSource{Dir: cfg.HistogramDir()}); err != nil {
				return nil, err
			}
		}
	}
	if opts.Meta {
		var err error
		if e.meta, err = metadata.OpenReadOnly(cfg.MetadataDBPath()); err != nil {
			return nil, err
		}
	}
	if e.audio != nil && e.meta != nil {
		e.fuse = fusion.New(e, e.meta)
	}
	return e, nil
}

// Close releases the metadata connection.
func (e *Engine) Close() error {
	if e.meta != nil {
		return e.meta.Close()
	}
	return nil
}

// TextSearch ranks documents against a lyrics/metadata text query.
func (e *Engine) TextSearch(query string, topK int, fields []string) ([]textindex.Result, time.Duration, error) {
	if e.text == nil {
		return nil, 0, fmt.Errorf("%w: text", ErrNotLoaded)
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	results, elapsed := e.text.Search(query, topK, fields)
	return results, elapsed, nil
}

// AudioSearchByHistogram ranks tracks against a query histogram.
func (e *Engine) AudioSearchByHistogram(hist []float64, topK int) ([]audioindex.Result, error) {
	if e.audio == nil {
		return nil, fmt.Errorf("%w: audio", ErrNotLoaded)
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	return e.audio.Search(hist, topK, 0)
}

// AudioSearchByFrames quantizes a descriptor matrix with the stored
// codebook and ranks tracks against the resulting histogram.
func (e *Engine) AudioSearchByFrames(frames [][]float64, topK int) ([]audioindex.Result, error) {
	if e.audio == nil {
		return nil, fmt.Errorf("%w: audio", ErrNotLoaded)
	}
	cb, err := audioindex.LoadCodebook(e.cfg.AudioIndexDir())
	if err != nil {
		return nil, err
	}
	hist, err := cb.Quantize(frames)
	if err != nil {
		return nil, err
	}
	return e.AudioSearchByHistogram(hist, topK)
}

// SearchByID ranks tracks similar to a stored reference track. The id
// is canonicalized by the histogram loader.
func (e *Engine) SearchByID(trackID string, topK int) ([]audioindex.Result, error) {
	if e.audio == nil {
		return nil, fmt.Errorf("%w: audio", ErrNotLoaded)
	}
	hist, err := audioindex.LoadHistogram(e.cfg.HistogramDir(), trackID)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	return e.audio.Search(hist, topK, 0)
}

// KNNSearchByID is the brute-force counterpart of SearchByID.
func (e *Engine) KNNSearchByID(trackID string, topK int) ([]audioindex.Result, error) {
	if e.knn == nil {
		return nil, fmt.Errorf("%w: knn", ErrNotLoaded)
	}
	hist, err := audioindex.LoadHistogram(e.cfg.HistogramDir(), trackID)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	return e.knn.Query(hist, topK), nil
}

// MetadataQuery runs the restricted SQL dialect.
func (e *Engine) MetadataQuery(input string) (*metadata.QueryResult, error) {
	if e.meta == nil {
		return nil, fmt.Errorf("%w: metadata", ErrNotLoaded)
	}
	return e.meta.Run(input)
}

// FusionSearch blends audio similarity with metadata similarity.
func (e *Engine) FusionSearch(trackID string, topK int, alpha float64) ([]fusion.Candidate, error) {
	if e.fuse == nil {
		return nil, fmt.Errorf("%w: fusion (audio + metadata)", ErrNotLoaded)
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	return e.fuse.Search(trackID, topK, alpha)
}
