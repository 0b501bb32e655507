// Package audioindex builds and queries the acoustic inverted index:
// codeword histograms weighted by a smoothed IDF, ranked by cosine.
package audioindex

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quaverlab/quaver/internal/artifact"
	"github.com/quaverlab/quaver/internal/trackid"
)

var (
	// ErrInvalidHistogram reports a histogram of the wrong length or a
	// malformed frame matrix.
	ErrInvalidHistogram = errors.New("invalid histogram")
	// ErrNotFound reports a track with no stored histogram.
	ErrNotFound = errors.New("histogram not found")
)

// Artifact file names inside the acoustic index directory.
const (
	IndexFile    = "inverted_index.bin"
	NormsFile    = "doc_norms.bin"
	IDFFile      = "idf.bin"
	CodebookFile = "codebook.bin"

	histExt = ".hist"
)

// Histogram is one document's codeword-count vector.
type Histogram struct {
	DocID  string
	Counts []float64
}

// Source streams histograms in a stable order. Build scans it twice,
// so implementations must be re-scannable.
type Source interface {
	Scan(fn func(Histogram) error) error
}

// ScoredPosting is one (document, tf-idf weight) pair in a posting
// list. Postings keep histogram-scan order; ranking sorts by score so
// file order never leaks into results.
type ScoredPosting struct {
	DocID string
	Score float64
}

// postingEntry is the on-disk shape: codeword index plus its postings.
// Codewords with empty posting lists are omitted.
type postingEntry struct {
	Term     int
	Postings []ScoredPosting
}

// DocNorm pairs a document with the L2 norm of its tf-idf vector.
type DocNorm struct {
	DocID string
	Norm  float64
}

func indexPath(dir string) string { return filepath.Join(dir, IndexFile) }
func normsPath(dir string) string { return filepath.Join(dir, NormsFile) }
func idfPath(dir string) string   { return filepath.Join(dir, IDFFile) }

// SaveHistogram persists one histogram under its canonical track id.
func SaveHistogram(dir, docID string, counts []float64) error {
	return artifact.Save(histogramPath(dir, docID), append([]float64(nil), counts...))
}

// LoadHistogram reads the histogram for docID, trying the canonical
// 6-digit form first and the raw id second.
func LoadHistogram(dir, docID string) ([]float64, error) {
	var counts []float64
	err := artifact.Load(histogramPath(dir, docID), &counts)
	if err != nil && trackid.Canonical(docID) != docID {
		err = artifact.Load(filepath.Join(dir, docID+histExt), &counts)
	}
	if err != nil {
		if errors.Is(err, artifact.ErrIoFailure) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, docID)
		}
		return nil, err
	}
	return counts, nil
}

func histogramPath(dir, docID string) string {
	return filepath.Join(dir, trackid.Canonical(docID)+histExt)
}

// DirSource scans per-track histogram files from a directory in
// sorted file-name order.
type DirSource struct {
	Dir string
}

// Scan walks the directory, yielding one histogram per *.hist file.
func (s *DirSource) Scan(fn func(Histogram) error) error {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*"+histExt))
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, path := range matches {
		var counts []float64
		if err := artifact.Load(path, &counts); err != nil {
			return err
		}
		base := filepath.Base(path)
		docID := strings.TrimSuffix(base, histExt)
		if err := fn(Histogram{DocID: trackid.Canonical(docID), Counts: counts}); err != nil {
			return err
		}
	}
	return nil
}

// SliceSource is an in-memory Source, mainly for tests and callers
// that already hold the histograms.
type SliceSource []Histogram

// Scan yields the slice in order.
func (s SliceSource) Scan(fn func(Histogram) error) error {
	for _, h := range s {
		if err := fn(h); err != nil {
			return err
		}
	}
	return nil
}
