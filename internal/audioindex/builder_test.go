package audioindex

import (
	"context"
	"errors"
	"math"
	"testing"
)

var histograms = SliceSource{
	{DocID: "000001", Counts: []float64{4, 0, 2, 0}},
	{DocID: "000002", Counts: []float64{0, 3, 1, 0}},
	{DocID: "000003", Counts: []float64{2, 2, 2, 2}},
}

func buildIndex(t *testing.T, src Source, k int) string {
	t.Helper()
	dir := t.TempDir()
	b := &Builder{K: k, Dir: dir}
	if _, err := b.Build(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestBuildArtifacts(t *testing.T) {
	dir := buildIndex(t, histograms, 4)
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.K() != 4 || s.DocCount() != 3 {
		t.Fatalf("K=%d docs=%d", s.K(), s.DocCount())
	}
	// df = [2 2 3 1], N = 3; smoothed idf is strictly positive.
	wantIDF := []float64{
		math.Log(4.0/3.0) + 1,
		math.Log(4.0/3.0) + 1,
		math.Log(4.0/4.0) + 1,
		math.Log(4.0/2.0) + 1,
	}
	for j, want := range wantIDF {
		if math.Abs(s.IDF()[j]-want) > 1e-12 {
			t.Errorf("idf[%d] = %v, want %v", j, s.IDF()[j], want)
		}
	}
	for _, n := range s.norms {
		if n <= 0 {
			t.Errorf("non-positive doc norm %v", n)
		}
	}
	// Codeword 3 appears only in doc 3.
	if got := s.postings[3]; len(got) != 1 || got[0].DocID != "000003" {
		t.Errorf("postings[3] = %v", got)
	}
}

func TestBuildSkipsBadHistograms(t *testing.T) {
	src := SliceSource{
		{DocID: "000001", Counts: []float64{1, 2, 3, 4}},
		{DocID: "000002", Counts: []float64{0, 0, 0, 0}}, // zero total
		{DocID: "000003", Counts: []float64{1, 2}},       // wrong length
	}
	dir := t.TempDir()
	b := &Builder{K: 4, Dir: dir}
	sum, err := b.Build(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Docs != 1 || sum.Skipped != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestBuildAllDegenerate(t *testing.T) {
	src := SliceSource{{DocID: "000001", Counts: []float64{0, 0}}}
	b := &Builder{K: 2, Dir: t.TempDir()}
	if _, err := b.Build(context.Background(), src); !errors.Is(err, ErrInvalidHistogram) {
		t.Errorf("want ErrInvalidHistogram, got %v", err)
	}
}

func TestHistogramRoundTripAndCanonicalID(t *testing.T) {
	dir := t.TempDir()
	if err := SaveHistogram(dir, "34996", []float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	a, err := LoadHistogram(dir, "34996")
	if err != nil {
		t.Fatal(err)
	}
	b, err := LoadHistogram(dir, "034996")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 3 || len(b) != 3 || a[2] != 3 || b[2] != 3 {
		t.Errorf("round trip mismatch: %v %v", a, b)
	}
	if _, err := LoadHistogram(dir, "99999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}
