package textindex

import (
	"math"
	"sort"
	"time"

	"github.com/quaverlab/quaver/internal/analysis"
	"github.com/quaverlab/quaver/internal/artifact"
)

// Result is one ranked hit.
type Result struct {
	DocID string
	Score float64
}

// Searcher answers TF-IDF cosine queries against the final artifacts.
// All state is immutable after Open, so it is safe for parallel reads.
//
// Scores divide by the document norm only. The query norm is skipped
// on purpose: it rescales every candidate identically for a fixed
// query, and existing rankings were produced with the asymmetric form.
// NormalizeQuery restores textbook cosine for callers that want
// cross-query comparable scores.
type Searcher struct {
	NormalizeQuery bool

	analyzer      *analysis.Analyzer
	defaultFields []string
	postings      map[string][]Posting
	idf           map[string]float64
	norms         map[string]float64
}

// Open loads the final index and norms artifacts from dir.
func Open(dir string, analyzer *analysis.Analyzer, defaultFields []string) (*Searcher, error) {
	var idx Index
	if err := artifact.Load(indexPath(dir), &idx); err != nil {
		return nil, err
	}
	var norms Norms
	if err := artifact.Load(normsPath(dir), &norms); err != nil {
		return nil, err
	}

	s := &Searcher{
		analyzer:      analyzer,
		defaultFields: defaultFields,
		postings:      make(map[string][]Posting, len(idx.Terms)),
		idf:           make(map[string]float64, len(idx.Terms)),
		norms:         make(map[string]float64, len(norms.Norms)),
	}
	for _, t := range idx.Terms {
		s.postings[t.Term] = t.Postings
		s.idf[t.Term] = t.IDF
	}
	for _, n := range norms.Norms {
		s.norms[n.DocID] = n.Norm
	}
	return s, nil
}

// Search scores the query against the index and returns the topK hits
// in descending score order, ties broken by ascending doc id, plus the
// elapsed wall time. fields defaults to the first configured field. A
// query with no matching terms returns an empty slice.
func (s *Searcher) Search(query string, topK int, fields []string) ([]Result, time.Duration) {
	start := time.Now()
	if len(fields) == 0 && len(s.defaultFields) > 0 {
		fields = s.defaultFields[:1]
	}
	terms := s.analyzer.AnalyzeQuery(query, fields)

	scores := make(map[string]float64)
	queryTF := make(map[string]int, len(terms))
	for _, term := range terms {
		queryTF[term]++
		postings, ok := s.postings[term]
		if !ok {
			continue
		}
		idf := s.idf[term]
		for _, p := range postings {
			scores[p.DocID] += math.Log10(1+float64(p.Count)) * idf
		}
	}

	var qnorm float64 = 1
	if s.NormalizeQuery {
		var sum float64
		for term, count := range queryTF {
			if idf, ok := s.idf[term]; ok {
				w := math.Log10(1+float64(count)) * idf
				sum += w * w
			}
		}
		if sum > 0 {
			qnorm = math.Sqrt(sum)
		}
	}

	results := make([]Result, 0, len(scores))
	for docID, score := range scores {
		norm, ok := s.norms[docID]
		if !ok || norm <= 0 {
			continue
		}
		results = append(results, Result{DocID: docID, Score: score / norm / qnorm})
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
	return results, time.Since(start)
}

// DocCount reports how many documents of the loaded index have a
// positive norm. Documents whose every term has zero IDF carry no norm
// and are not counted.
func (s *Searcher) DocCount() int { return len(s.norms) }
