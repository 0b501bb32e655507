package audioindex

import (
	"container/heap"
	"math"

	"github.com/rs/zerolog/log"
)

// KNN is the brute-force scanner: every histogram is transformed into
// a unit tf-idf vector up front and queries scan the whole database.
// It doubles as a correctness oracle for the inverted path and as an
// alternative scan path. It weights histograms with the IDF vector of
// the inverted index, so it cannot be used without those artifacts.
// Immutable after loading, safe for parallel reads.
type KNN struct {
	idf  []float64
	ids  []string
	vecs [][]float64
}

// NewKNN creates an empty scanner sharing the index IDF vector.
func NewKNN(idf []float64) *KNN {
	return &KNN{idf: idf}
}

// Add transforms and stores one histogram. Degenerate or wrong-length
// histograms are rejected and reported false.
func (k *KNN) Add(docID string, counts []float64) bool {
	vec := k.unitVector(counts)
	if vec == nil {
		return false
	}
	k.ids = append(k.ids, docID)
	k.vecs = append(k.vecs, vec)
	return true
}

// Load fills the scanner from a histogram source, returning how many
// documents were accepted.
func (k *KNN) Load(src Source) (int, error) {
	loaded := 0
	err := src.Scan(func(h Histogram) error {
		if k.Add(h.DocID, h.Counts) {
			loaded++
		}
		return nil
	})
	if err != nil {
		return loaded, err
	}
	log.Info().Int("docs", loaded).Msg("KNN database loaded")
	return loaded, nil
}

// Size reports the number of stored documents.
func (k *KNN) Size() int { return len(k.ids) }

// Query returns the topK nearest documents by cosine similarity,
// descending, ties broken by ascending doc id. Degenerate queries
// return an empty list.
func (k *KNN) Query(counts []float64, topK int) []Result {
	q := k.unitVector(counts)
	if q == nil || topK <= 0 {
		return nil
	}

	// Bounded min-heap: the root is the weakest of the current topK.
	h := &resultHeap{}
	heap.Init(h)
	for i, vec := range k.vecs {
		var dot float64
		for j, w := range q {
			dot += w * vec[j]
		}
		r := Result{DocID: k.ids[i], Score: dot}
		if h.Len() < topK {
			heap.Push(h, r)
		} else if less((*h)[0], r) {
			(*h)[0] = r
			heap.Fix(h, 0)
		}
	}

	// Popping yields weakest first; fill from the back for the final
	// descending order.
	results := make([]Result, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(Result)
	}
	return results
}

// unitVector mirrors the searcher's query transform so both paths
// score identically.
func (k *KNN) unitVector(counts []float64) []float64 {
	if len(counts) != len(k.idf) {
		return nil
	}
	total := sum(counts)
	if total <= 0 {
		return nil
	}
	vec := make([]float64, len(counts))
	var normSq float64
	for j, c := range counts {
		w := (c / total) * k.idf[j]
		vec[j] = w
		normSq += w * w
	}
	if normSq <= 0 {
		return nil
	}
	norm := math.Sqrt(normSq)
	for j := range vec {
		vec[j] /= norm
	}
	return vec
}

// less orders a strictly below b: lower score first, higher doc id
// first on ties, so the heap evicts the right candidate.
func less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

type resultHeap []Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)         { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}
