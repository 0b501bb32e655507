package textindex

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/quaverlab/quaver/internal/analysis"
	"github.com/quaverlab/quaver/internal/artifact"
	"github.com/quaverlab/quaver/internal/corpus"
)

type sliceSource []corpus.Document

func (s sliceSource) Scan(fn func(corpus.Document) error) error {
	for _, d := range s {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func lyricsDoc(id, lyrics string) corpus.Document {
	return corpus.Document{ID: id, Fields: map[string]string{"lyrics": lyrics}}
}

func newBuilder(t *testing.T, dir string, blockLimit int) *Builder {
	t.Helper()
	a, err := analysis.New("")
	if err != nil {
		t.Fatal(err)
	}
	return &Builder{Analyzer: a, Fields: []string{"lyrics"}, Dir: dir, BlockLimit: blockLimit}
}

func loadArtifacts(t *testing.T, dir string) (Index, Norms) {
	t.Helper()
	var idx Index
	if err := artifact.Load(indexPath(dir), &idx); err != nil {
		t.Fatal(err)
	}
	var norms Norms
	if err := artifact.Load(normsPath(dir), &norms); err != nil {
		t.Fatal(err)
	}
	return idx, norms
}

var fourDocs = sliceSource{
	lyricsDoc("000001", "love forever"),
	lyricsDoc("000002", "dance with me love"),
	lyricsDoc("000003", "nothing here"),
	lyricsDoc("000004", "forever dancing alone"),
}

func TestBuildInvariants(t *testing.T) {
	dir := t.TempDir()
	b := newBuilder(t, dir, 10)
	sum, err := b.Build(context.Background(), fourDocs)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Docs != 4 || sum.Blocks != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	idx, norms := loadArtifacts(t, dir)
	if idx.Docs != 4 {
		t.Fatalf("idx.Docs = %d", idx.Docs)
	}

	normByDoc := make(map[string]float64)
	for _, n := range norms.Norms {
		if n.Norm <= 0 {
			t.Errorf("doc %s has non-positive norm %v", n.DocID, n.Norm)
		}
		normByDoc[n.DocID] = n.Norm
	}

	wantNorm := make(map[string]float64)
	for _, te := range idx.Terms {
		if len(te.Postings) == 0 {
			t.Fatalf("term %q has empty posting list", te.Term)
		}
		wantIDF := math.Log10(float64(idx.Docs) / float64(len(te.Postings)))
		if math.Abs(te.IDF-wantIDF) > 1e-12 {
			t.Errorf("term %q idf = %v, want %v", te.Term, te.IDF, wantIDF)
		}
		for _, p := range te.Postings {
			if _, ok := normByDoc[p.DocID]; !ok {
				t.Errorf("doc %s in postings but missing from norms", p.DocID)
			}
			w := math.Log10(1+float64(p.Count)) * te.IDF
			wantNorm[p.DocID] += w * w
		}
	}
	for docID, sumSq := range wantNorm {
		if want := math.Sqrt(sumSq); want > 0 && math.Abs(normByDoc[docID]-want) > 1e-12 {
			t.Errorf("doc %s norm = %v, want %v", docID, normByDoc[docID], want)
		}
	}
}

func TestMultiBlockMatchesSingleBlock(t *testing.T) {
	single := t.TempDir()
	multi := t.TempDir()
	if _, err := newBuilder(t, single, 10).Build(context.Background(), fourDocs); err != nil {
		t.Fatal(err)
	}
	sum, err := newBuilder(t, multi, 1).Build(context.Background(), fourDocs)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Blocks != 4 {
		t.Fatalf("blocks = %d, want 4", sum.Blocks)
	}

	idxA, normsA := loadArtifacts(t, single)
	idxB, normsB := loadArtifacts(t, multi)
	if !reflect.DeepEqual(idxA, idxB) {
		t.Error("multi-block index differs from single-block index")
	}
	if !reflect.DeepEqual(normsA, normsB) {
		t.Error("multi-block norms differ from single-block norms")
	}

	entries, err := os.ReadDir(multi)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if len(e.Name()) >= len(tempBlockPrefix) && e.Name()[:len(tempBlockPrefix)] == tempBlockPrefix {
			t.Errorf("temp block %s survived a successful build", e.Name())
		}
	}
}

func TestRebuildIsByteEquivalent(t *testing.T) {
	dir := t.TempDir()
	b := newBuilder(t, dir, 2)
	if _, err := b.Build(context.Background(), fourDocs); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(indexPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	firstNorms, err := os.ReadFile(normsPath(dir))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(context.Background(), fourDocs); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(indexPath(dir))
	secondNorms, _ := os.ReadFile(normsPath(dir))
	if !reflect.DeepEqual(first, second) {
		t.Error("rebuild produced different postings bytes")
	}
	if !reflect.DeepEqual(firstNorms, secondNorms) {
		t.Error("rebuild produced different norms bytes")
	}
}

func TestBuildCanceled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newBuilder(t, dir, 1).Build(ctx, fourDocs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if _, err := os.Stat(indexPath(dir)); !errors.Is(err, os.ErrNotExist) {
		t.Error("canceled build left a final index behind")
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	dir := t.TempDir()
	sum, err := newBuilder(t, dir, 5).Build(context.Background(), sliceSource{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Docs != 0 || sum.Terms != 0 {
		t.Errorf("summary = %+v", sum)
	}
	idx, norms := loadArtifacts(t, dir)
	if len(idx.Terms) != 0 || len(norms.Norms) != 0 {
		t.Errorf("empty corpus produced terms or norms")
	}
}

func TestBuildLeavesBlocksOnMergeFailure(t *testing.T) {
	// A block file that is not valid zstd makes the merge fail; the
	// remaining temp blocks must stay on disk for forensics.
	dir := t.TempDir()
	b := newBuilder(t, dir, 1)
	if _, _, err := b.flushBlocks(context.Background(), fourDocs); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(blockPath(dir, 1), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := b.mergeCascade(context.Background(), 4); err == nil {
		t.Fatal("expected merge failure on corrupt block")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, tempBlockPrefix+"*"))
	if len(matches) == 0 {
		t.Error("no temp blocks left after failed merge")
	}
}
