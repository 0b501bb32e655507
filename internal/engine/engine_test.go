package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/quaverlab/quaver/internal/analysis"
	"github.com/quaverlab/quaver/internal/audioindex"
	"github.com/quaverlab/quaver/internal/config"
	"github.com/quaverlab/quaver/internal/corpus"
	"github.com/quaverlab/quaver/internal/metadata"
	"github.com/quaverlab/quaver/internal/textindex"
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

// buildFixture lays down a full artifact set: text index, acoustic
// index with histograms, and metadata rows.
func buildFixture(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		DataDir:    t.TempDir(),
		TextFields: []string{"lyrics"},
		BlockLimit: 100,
		CodebookK:  4,
		TopK:       10,
		Alpha:      0.7,
	}

	analyzer, err := analysis.New("")
	if err != nil {
		t.Fatal(err)
	}
	tb := &textindex.Builder{
		Analyzer:   analyzer,
		Fields:     []string{"lyrics"},
		Dir:        cfg.TextIndexDir(),
		BlockLimit: cfg.BlockLimit,
	}
	docs := sliceSource{
		{ID: "034996", Fields: map[string]string{"lyrics": "love forever"}},
		{ID: "000002", Fields: map[string]string{"lyrics": "dance with me love"}},
		{ID: "122911", Fields: map[string]string{"lyrics": "nothing here"}},
	}
	if _, err := tb.Build(context.Background(), docs); err != nil {
		t.Fatal(err)
	}

	hists := map[string][]float64{
		"034996": {4, 0, 2, 0},
		"000002": {0, 3, 1, 0},
		"122911": {2, 2, 2, 2},
	}
	for id, counts := range hists {
		if err := audioindex.SaveHistogram(cfg.HistogramDir(), id, counts); err != nil {
			t.Fatal(err)
		}
	}
	ab := &audioindex.Builder{K: cfg.CodebookK, Dir: cfg.AudioIndexDir()}
	if _, err := ab.Build(context.Background(), &audioindex.DirSource{Dir: cfg.HistogramDir()}); err != nil {
		t.Fatal(err)
	}

	cb := &audioindex.Codebook{
		Centroids: [][]float64{{0, 0}, {10, 0}, {0, 10}, {10, 10}},
		Mean:      []float64{0, 0},
		Std:       []float64{1, 1},
	}
	if err := audioindex.SaveCodebook(cfg.AudioIndexDir(), cb); err != nil {
		t.Fatal(err)
	}

	store, err := metadata.Open(cfg.MetadataDBPath())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	rows := []metadata.Row{
		{TrackID: "034996", Title: "Love Forever", Artist: "A", Genre: "Rock", Year: 1990},
		{TrackID: "000002", Title: "Dance", Artist: "B", Genre: "Rock", Year: 1990},
		{TrackID: "122911", Title: "Nothing", Artist: "C", Genre: "Jazz", Year: 1955},
	}
	if err := store.Insert(rows); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func loadEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	e, err := Load(cfg, Options{Text: true, Audio: true, Meta: true, KNN: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestTextSearchThroughEngine(t *testing.T) {
	e := loadEngine(t, buildFixture(t))
	results, elapsed, err := e.TextSearch("love", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed < 0 || len(results) != 2 {
		t.Fatalf("results = %v (elapsed %v)", results, elapsed)
	}
	for _, r := range results {
		if r.DocID == "122911" {
			t.Error("non-matching doc ranked")
		}
	}
}

func TestAudioSearchByIDCanonicalization(t *testing.T) {
	e := loadEngine(t, buildFixture(t))
	short, err := e.SearchByID("34996", 3)
	if err != nil {
		t.Fatal(err)
	}
	long, err := e.SearchByID("034996", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(short, long) {
		t.Errorf("canonicalization broke: %v vs %v", short, long)
	}
	if len(short) == 0 || short[0].DocID != "034996" {
		t.Errorf("self query first hit = %v", short)
	}
}

func TestAudioSearchByFrames(t *testing.T) {
	e := loadEngine(t, buildFixture(t))
	// Frames clustering on centroids 0 and 2 quantize to a histogram
	// shaped like track 034996's {4, 0, 2, 0}.
	frames := [][]float64{
		{0.1, 0.2}, {-0.3, 0.1}, {0.2, -0.1}, {0.0, 0.4},
		{0.5, 9.8}, {-0.2, 10.3},
	}
	results, err := e.AudioSearchByFrames(frames, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].DocID != "034996" {
		t.Errorf("results = %v", results)
	}
}

func TestSearchByIDUnknown(t *testing.T) {
	e := loadEngine(t, buildFixture(t))
	if _, err := e.SearchByID("999999", 3); !errors.Is(err, audioindex.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestKNNMatchesInvertedThroughEngine(t *testing.T) {
	e := loadEngine(t, buildFixture(t))
	inverted, err := e.SearchByID("34996", 3)
	if err != nil {
		t.Fatal(err)
	}
	brute, err := e.KNNSearchByID("34996", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(inverted) != len(brute) {
		t.Fatalf("sizes differ: %d vs %d", len(inverted), len(brute))
	}
	for i := range inverted {
		if inverted[i].DocID != brute[i].DocID {
			t.Errorf("rank %d differs: %s vs %s", i, inverted[i].DocID, brute[i].DocID)
		}
	}
}

func TestFusionThroughEngine(t *testing.T) {
	e := loadEngine(t, buildFixture(t))
	fused, err := e.FusionSearch("34996", 3, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(fused) == 0 {
		t.Fatal("no fused results")
	}
	for _, c := range fused {
		if c.Final < 0 {
			t.Errorf("negative final score: %+v", c)
		}
	}
	// Track 000002 shares genre and year with the reference.
	var found bool
	for _, c := range fused {
		if c.TrackID == "000002" {
			found = true
			if c.MetadataScore != 2 {
				t.Errorf("metadata score = %v, want 2", c.MetadataScore)
			}
		}
	}
	if !found {
		t.Error("expected candidate 000002 in fused results")
	}
}

func TestMetadataQueryThroughEngine(t *testing.T) {
	e := loadEngine(t, buildFixture(t))
	res, err := e.MetadataQuery(`genre = "Rock" AND year >= 1980`)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("rows = %v", res.Rows)
	}
}

func TestUnloadedSide(t *testing.T) {
	cfg := buildFixture(t)
	e, err := Load(cfg, Options{Meta: true})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, _, err := e.TextSearch("love", 1, nil); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("want ErrNotLoaded, got %v", err)
	}
	if _, err := e.FusionSearch("34996", 1, 0.5); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("want ErrNotLoaded, got %v", err)
	}
}
