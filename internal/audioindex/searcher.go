package audioindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/quaverlab/quaver/internal/artifact"
)

// Result is one ranked hit.
type Result struct {
	DocID string
	Score float64
}

// Searcher answers cosine queries against the acoustic artifacts. All
// state is immutable after Open, so it is safe for parallel reads.
type Searcher struct {
	k        int
	postings map[int][]ScoredPosting
	norms    map[string]float64
	idf      []float64
}

// Open loads the acoustic postings, norms and IDF artifacts from dir.
func Open(dir string) (*Searcher, error) {
	var idf []float64
	if err := artifact.Load(idfPath(dir), &idf); err != nil {
		return nil, err
	}
	var entries []postingEntry
	if err := artifact.Load(indexPath(dir), &entries); err != nil {
		return nil, err
	}
	var norms []DocNorm
	if err := artifact.Load(normsPath(dir), &norms); err != nil {
		return nil, err
	}

	s := &Searcher{
		k:        len(idf),
		postings: make(map[int][]ScoredPosting, len(entries)),
		norms:    make(map[string]float64, len(norms)),
		idf:      idf,
	}
	for _, e := range entries {
		s.postings[e.Term] = e.Postings
	}
	for _, n := range norms {
		s.norms[n.DocID] = n.Norm
	}
	return s, nil
}

// K reports the codebook length the artifacts were built with.
func (s *Searcher) K() int { return s.k }

// IDF returns the loaded smoothed IDF vector. Shared with the
// sequential KNN scanner so both paths weight histograms identically.
func (s *Searcher) IDF() []float64 { return s.idf }

// Search converts the query histogram to a unit tf-idf vector and
// accumulates partial dot products through the posting lists. Dividing
// by the document norm yields cosine similarity since the query is
// unit length. Degenerate queries return an empty list; a histogram of
// the wrong length is rejected.
func (s *Searcher) Search(hist []float64, topK int, minScore float64) ([]Result, error) {
	q, err := s.queryVector(hist)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, nil
	}

	partial := make(map[string]float64)
	for j, w := range q {
		if w <= 0 {
			continue
		}
		for _, p := range s.postings[j] {
			partial[p.DocID] += w * p.Score
		}
	}

	results := make([]Result, 0, len(partial))
	for docID, dot := range partial {
		norm := s.norms[docID]
		if norm <= 0 {
			continue
		}
		score := dot / norm
		if score >= minScore {
			results = append(results, Result{DocID: docID, Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// queryVector builds the unit-length tf-idf query vector. Returns nil
// for degenerate (all-zero) histograms.
func (s *Searcher) queryVector(hist []float64) ([]float64, error) {
	if len(hist) != s.k {
		return nil, fmt.Errorf("%w: query length %d, index built with K=%d", ErrInvalidHistogram, len(hist), s.k)
	}
	total := sum(hist)
	if total <= 0 {
		return nil, nil
	}
	q := make([]float64, s.k)
	var normSq float64
	for j, c := range hist {
		w := (c / total) * s.idf[j]
		q[j] = w
		normSq += w * w
	}
	if normSq <= 0 {
		return nil, nil
	}
	norm := math.Sqrt(normSq)
	for j := range q {
		q[j] /= norm
	}
	return q, nil
}

// DocCount reports how many documents the loaded index holds.
func (s *Searcher) DocCount() int { return len(s.norms) }
