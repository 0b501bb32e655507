package audioindex

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quaverlab/quaver/internal/artifact"
)

// Builder constructs the acoustic inverted index with two passes over
// the histogram source: document frequencies first, then postings and
// norms under the smoothed IDF.
type Builder struct {
	K   int
	Dir string
}

// Summary reports what a build did.
type Summary struct {
	Docs    int
	Skipped int
	Elapsed time.Duration
}

// Build scans src twice and atomically replaces the postings, norms
// and IDF artifacts. Histograms with the wrong length or zero total
// are skipped and counted; a source with no usable histogram at all
// fails before touching any artifact.
func (b *Builder) Build(ctx context.Context, src Source) (*Summary, error) {
	if b.K <= 0 {
		return nil, fmt.Errorf("audioindex: codebook size must be positive, got %d", b.K)
	}
	start := time.Now()
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("audioindex: mkdir %s: %w", b.Dir, err)
	}

	df, n, err := b.documentFrequencies(ctx, src)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: no histogram with positive total count", ErrInvalidHistogram)
	}

	// Smoothed so idf is finite and strictly positive even at df == N.
	idf := make([]float64, b.K)
	for j := range idf {
		idf[j] = math.Log(float64(n+1)/float64(df[j]+1)) + 1
	}

	postings := make([][]ScoredPosting, b.K)
	var norms []DocNorm
	var skipped int

	err = src.Scan(func(h Histogram) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(h.Counts) != b.K {
			skipped++
			log.Warn().Str("doc", h.DocID).Int("len", len(h.Counts)).Msg("skipping histogram with wrong length")
			return nil
		}
		total := sum(h.Counts)
		if total <= 0 {
			skipped++
			return nil
		}
		var normSq float64
		tfidf := make([]float64, b.K)
		for j, c := range h.Counts {
			w := (c / total) * idf[j]
			tfidf[j] = w
			normSq += w * w
		}
		if normSq <= 0 {
			skipped++
			return nil
		}
		norms = append(norms, DocNorm{DocID: h.DocID, Norm: math.Sqrt(normSq)})
		for j, w := range tfidf {
			if w > 0 {
				postings[j] = append(postings[j], ScoredPosting{DocID: h.DocID, Score: w})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make([]postingEntry, 0, b.K)
	for j, plist := range postings {
		if len(plist) > 0 {
			entries = append(entries, postingEntry{Term: j, Postings: plist})
		}
	}
	sort.Slice(norms, func(i, j int) bool { return norms[i].DocID < norms[j].DocID })

	if err := artifact.Save(idfPath(b.Dir), idf); err != nil {
		return nil, err
	}
	if err := artifact.Save(indexPath(b.Dir), entries); err != nil {
		return nil, err
	}
	if err := artifact.Save(normsPath(b.Dir), norms); err != nil {
		return nil, err
	}

	s := &Summary{Docs: len(norms), Skipped: skipped, Elapsed: time.Since(start)}
	log.Info().
		Int("docs", s.Docs).
		Int("skipped", s.Skipped).
		Int("codewords", len(entries)).
		Dur("elapsed", s.Elapsed).
		Msg("acoustic index build complete")
	return s, nil
}

// documentFrequencies is pass 1: df[j] counts documents where codeword
// j appears; n counts histograms with positive total.
func (b *Builder) documentFrequencies(ctx context.Context, src Source) ([]int, int, error) {
	df := make([]int, b.K)
	n := 0
	err := src.Scan(func(h Histogram) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(h.Counts) != b.K || sum(h.Counts) <= 0 {
			return nil
		}
		for j, c := range h.Counts {
			if c > 0 {
				df[j]++
			}
		}
		n++
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return df, n, nil
}

func sum(v []float64) float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	return total
}
