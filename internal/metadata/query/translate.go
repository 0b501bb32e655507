package query

import (
	"fmt"
	"strings"

	"github.com/quaverlab/quaver/internal/trackid"
)

// Table is the only table the dialect may address.
const Table = "metadata"

// Columns lists the permitted column names in schema order.
var Columns = []string{"track_id", "title", "artist", "genre", "year"}

var allowedColumn = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

var allowedOp = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// Translated is a validated, parameterized sqlite query.
type Translated struct {
	SQL     string
	Params  []any
	Columns []string
}

// Translate validates the AST and renders parameterized SQL. Every
// value becomes a positional `?`; track_id values canonicalize before
// binding.
func Translate(sel *Select) (*Translated, error) {
	if sel.Table != Table {
		return nil, fmt.Errorf("%w: table %q not permitted (only %s)", ErrInvalidQuery, sel.Table, Table)
	}
	cols := sel.Columns
	if cols == nil {
		cols = Columns
	}
	for _, c := range cols {
		if !allowedColumn[c] {
			return nil, fmt.Errorf("%w: column %q not permitted", ErrInvalidQuery, c)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if sel.Columns == nil {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(cols, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(Table)

	var params []any
	if sel.Where != nil {
		where, p, err := renderExpr(sel.Where)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		params = p
	}
	return &Translated{SQL: sb.String(), Params: params, Columns: cols}, nil
}

func renderExpr(e Expr) (string, []any, error) {
	switch n := e.(type) {
	case Compare:
		if !allowedColumn[n.Attr] {
			return "", nil, fmt.Errorf("%w: column %q not permitted", ErrInvalidQuery, n.Attr)
		}
		if !allowedOp[n.Op] {
			return "", nil, fmt.Errorf("%w: operator %q not supported", ErrInvalidQuery, n.Op)
		}
		return fmt.Sprintf("%s %s ?", n.Attr, n.Op), []any{bindValue(n.Attr, n.Value)}, nil
	case Between:
		if !allowedColumn[n.Attr] {
			return "", nil, fmt.Errorf("%w: column %q not permitted", ErrInvalidQuery, n.Attr)
		}
		return fmt.Sprintf("%s BETWEEN ? AND ?", n.Attr),
			[]any{bindValue(n.Attr, n.Lo), bindValue(n.Attr, n.Hi)}, nil
	case Logical:
		left, lp, err := renderExpr(n.Left)
		if err != nil {
			return "", nil, err
		}
		right, rp, err := renderExpr(n.Right)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s %s %s)", left, n.Op, right), append(lp, rp...), nil
	default:
		return "", nil, fmt.Errorf("%w: unknown expression node %T", ErrInvalidQuery, e)
	}
}

// bindValue canonicalizes track_id bindings so "34996" and "034996"
// address the same row.
func bindValue(attr string, v any) any {
	if attr != "track_id" {
		return v
	}
	switch s := v.(type) {
	case string:
		return trackid.Canonical(s)
	case int64:
		return trackid.Canonical(fmt.Sprintf("%d", s))
	default:
		return v
	}
}
