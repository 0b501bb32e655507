// Package corpus streams documents out of the tabular lyrics/metadata
// dataset. The id column is mandatory; rows missing any configured
// text field are dropped and counted.
package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quaverlab/quaver/internal/trackid"
)

// ErrInvalidCorpus reports a structurally unusable dataset: missing
// file, missing id column, or a missing configured text column.
var ErrInvalidCorpus = errors.New("invalid corpus")

// Document is one corpus row with its text fields.
type Document struct {
	ID     string
	Fields map[string]string
}

// Reader streams documents from a CSV dataset.
type Reader struct {
	Path       string
	IDColumn   string
	TextFields []string

	// Dropped counts rows skipped for missing text fields, filled in
	// by Scan.
	Dropped int
}

// Scan reads the dataset once, invoking fn for each usable row in file
// order. Ids are canonicalized. fn returning an error stops the scan.
func (r *Reader) Scan(fn func(Document) error) error {
	f, err := os.Open(r.Path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrInvalidCorpus, r.Path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("%w: read header: %v", ErrInvalidCorpus, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	idIdx, ok := col[r.IDColumn]
	if !ok {
		return fmt.Errorf("%w: dataset has no id column %q", ErrInvalidCorpus, r.IDColumn)
	}
	fieldIdx := make([]int, len(r.TextFields))
	for i, name := range r.TextFields {
		idx, ok := col[name]
		if !ok {
			return fmt.Errorf("%w: dataset has no text column %q", ErrInvalidCorpus, name)
		}
		fieldIdx[i] = idx
	}

	r.Dropped = 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read row: %v", ErrInvalidCorpus, err)
		}
		doc, ok := r.row(record, idIdx, fieldIdx)
		if !ok {
			r.Dropped++
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

func (r *Reader) row(record []string, idIdx int, fieldIdx []int) (Document, bool) {
	if idIdx >= len(record) || strings.TrimSpace(record[idIdx]) == "" {
		return Document{}, false
	}
	fields := make(map[string]string, len(fieldIdx))
	for i, idx := range fieldIdx {
		if idx >= len(record) || strings.TrimSpace(record[idx]) == "" {
			return Document{}, false
		}
		fields[r.TextFields[i]] = record[idx]
	}
	return Document{ID: trackid.Canonical(strings.TrimSpace(record[idIdx])), Fields: fields}, true
}
