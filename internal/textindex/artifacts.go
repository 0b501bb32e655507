package textindex

import (
	"path/filepath"
	"strconv"

	"github.com/quaverlab/quaver/internal/artifact"
)

// Artifact file names inside the text index directory.
const (
	IndexFile       = "final_index.bin"
	NormsFile       = "doc_norms.bin"
	tempBlockPrefix = "temp_block_"
)

// Posting is one (document, term frequency) pair. Posting lists are
// kept sorted by DocID so repeated builds serialize identically.
type Posting struct {
	DocID string
	Count int
}

// TermEntry is a term with its inverse document frequency and flat
// posting list, the on-disk shape of the final index.
type TermEntry struct {
	Term     string
	IDF      float64
	Postings []Posting
}

// Index is the final postings artifact: every indexed term in
// lexicographic order plus the corpus document count.
type Index struct {
	Docs  int
	Terms []TermEntry
}

// DocNorm pairs a document with the L2 norm of its TF-IDF vector.
type DocNorm struct {
	DocID string
	Norm  float64
}

// Norms is the document-norm artifact, sorted by DocID.
type Norms struct {
	Norms []DocNorm
}

// blockEntry is one term inside an ephemeral SPIMI block file.
type blockEntry struct {
	Term     string
	Postings []Posting
}

func indexPath(dir string) string { return filepath.Join(dir, IndexFile) }
func normsPath(dir string) string { return filepath.Join(dir, NormsFile) }

func blockPath(dir string, i int) string {
	return filepath.Join(dir, tempBlockPrefix+strconv.Itoa(i)+".bin")
}

func loadBlock(path string) ([]blockEntry, error) {
	var entries []blockEntry
	if err := artifact.Load(path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
