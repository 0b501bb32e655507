package metadata

import (
	"errors"
	"path/filepath"
	"testing"
)

var seed = []Row{
	{TrackID: "34996", Title: "Thunder Road", Artist: "Bruce", Genre: "Rock", Year: 1975},
	{TrackID: "2", Title: "Nocturne", Artist: "Chopin", Genre: "Classical", Year: 1832},
	{TrackID: "122911", Title: "One More Time", Artist: "Daft Punk", Genre: "Electronic", Year: 2000},
}

func openSeeded(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Insert(seed); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGetCanonicalizesID(t *testing.T) {
	s := openSeeded(t)
	for _, id := range []string{"34996", "034996"} {
		r, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get(%q): %v", id, err)
		}
		if r.TrackID != "034996" || r.Title != "Thunder Road" {
			t.Errorf("Get(%q) = %+v", id, r)
		}
	}
	if _, err := s.Get("999999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestRunShortForm(t *testing.T) {
	s := openSeeded(t)
	res, err := s.Run(`genre = "Rock" AND year >= 1970`)
	if err != nil {
		t.Fatal(err)
	}
	if res.SQL != `SELECT * FROM metadata WHERE (genre = ? AND year >= ?)` {
		t.Errorf("sql = %q", res.SQL)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %v", res.Rows)
	}
	if res.Rows[0]["track_id"] != "034996" {
		t.Errorf("row = %v", res.Rows[0])
	}
}

func TestRunColumnSubset(t *testing.T) {
	s := openSeeded(t)
	res, err := s.Run(`SELECT title, year FROM metadata WHERE year BETWEEN 1800 AND 1900`)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %v", res.Rows)
	}
	row := res.Rows[0]
	if row["title"] != "Nocturne" {
		t.Errorf("row = %v", row)
	}
	if _, leaked := row["artist"]; leaked {
		t.Error("unselected column leaked into row")
	}
}

func TestRunTrackIDBinding(t *testing.T) {
	s := openSeeded(t)
	res, err := s.Run(`track_id = "2"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 || res.Rows[0]["track_id"] != "000002" {
		t.Errorf("rows = %v", res.Rows)
	}
	if len(res.Params) != 1 || res.Params[0] != "000002" {
		t.Errorf("params = %v", res.Params)
	}
}

func TestReadOnlyOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")
	rw, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Insert(seed); err != nil {
		t.Fatal(err)
	}
	rw.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()
	n, err := ro.Count()
	if err != nil || n != 3 {
		t.Errorf("count = %d, err %v", n, err)
	}
	if _, err := ro.db.Exec(`INSERT INTO metadata (track_id) VALUES ('x')`); err == nil {
		t.Error("write succeeded on read-only store")
	}
}
