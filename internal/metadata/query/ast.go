// Package query parses the restricted SQL dialect used against the
// metadata store and translates it into parameterized sqlite. User
// values never reach the SQL text; they bind as positional parameters.
package query

import "errors"

// ErrInvalidQuery reports a grammar violation, a disallowed table or
// column, or an unsupported operator.
var ErrInvalidQuery = errors.New("invalid query")

// Expr is a WHERE-clause node: Compare, Between or Logical.
type Expr interface {
	isExpr()
}

// Compare is `attr op value` with op one of = != < <= > >=.
type Compare struct {
	Attr  string
	Op    string
	Value any
}

// Between is `attr BETWEEN lo AND hi`.
type Between struct {
	Attr string
	Lo   any
	Hi   any
}

// Logical joins two conditions with AND or OR. AND binds tighter.
type Logical struct {
	Left  Expr
	Op    string
	Right Expr
}

// Select is the root node. Columns is nil for `SELECT *`.
type Select struct {
	Table   string
	Columns []string
	Where   Expr
}

func (Compare) isExpr() {}
func (Between) isExpr() {}
func (Logical) isExpr() {}
