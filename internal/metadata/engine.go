package metadata

import (
	"github.com/rs/zerolog/log"

	"github.com/quaverlab/quaver/internal/metadata/query"
)

// QueryResult carries the translated SQL, its bound parameters and
// the selected rows, mirroring what callers need to display or debug
// a metadata query.
type QueryResult struct {
	SQL    string           `json:"sql"`
	Params []any            `json:"params"`
	Rows   []map[string]any `json:"rows"`
}

// Run parses the restricted dialect (or its short condition-only
// form), translates it to parameterized SQL and executes it against
// the store.
func (s *Store) Run(input string) (*QueryResult, error) {
	sel, err := query.Parse(input)
	if err != nil {
		return nil, err
	}
	tr, err := query.Translate(sel)
	if err != nil {
		return nil, err
	}
	rows, err := s.Select(tr.SQL, tr.Params, tr.Columns)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("sql", tr.SQL).Int("rows", len(rows)).Msg("metadata query executed")
	return &QueryResult{SQL: tr.SQL, Params: tr.Params, Rows: rows}, nil
}
