package query

import (
	"fmt"
	"strings"
)

// Parse turns user input into a Select AST. Input not beginning with
// SELECT is treated as the short form: a bare condition over the
// metadata table, wrapped as `SELECT * FROM metadata WHERE <input>`.
func Parse(input string) (*Select, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidQuery)
	}
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	var sel *Select
	if p.peek().kind == tokKeyword && p.peek().text == "SELECT" {
		sel, err = p.parseSelect()
	} else {
		var where Expr
		where, err = p.parseCondition()
		sel = &Select{Table: "metadata", Where: where}
	}
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected trailing %q", ErrInvalidQuery, p.peek().text)
	}
	return sel, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expectKeyword(kw string) error {
	t := p.next()
	if t.kind != tokKeyword || t.text != kw {
		return fmt.Errorf("%w: expected %s, got %q", ErrInvalidQuery, kw, t.text)
	}
	return nil
}

func (p *parser) parseSelect() (*Select, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table := p.next()
	if table.kind != tokIdent {
		return nil, fmt.Errorf("%w: expected table name, got %q", ErrInvalidQuery, table.text)
	}
	sel := &Select{Table: table.text, Columns: cols}
	if p.peek().kind == tokKeyword && p.peek().text == "WHERE" {
		p.next()
		where, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}
	return sel, nil
}

// parseColumnList handles `*` or `ident ("," ident)*`. Nil means all
// columns.
func (p *parser) parseColumnList() ([]string, error) {
	if p.peek().kind == tokStar {
		p.next()
		return nil, nil
	}
	var cols []string
	for {
		t := p.next()
		if t.kind != tokIdent {
			return nil, fmt.Errorf("%w: expected column name, got %q", ErrInvalidQuery, t.text)
		}
		cols = append(cols, t.text)
		if p.peek().kind != tokComma {
			return cols, nil
		}
		p.next()
	}
}

// parseCondition is the OR level; AND binds tighter.
func (p *parser) parseCondition() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokKeyword && p.peek().text == "OR" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Logical{Left: left, Op: "OR", Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokKeyword && p.peek().text == "AND" {
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = Logical{Left: left, Op: "AND", Right: right}
	}
	return left, nil
}

// parsePrimary handles parentheses, comparisons and BETWEEN.
func (p *parser) parsePrimary() (Expr, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')', got %q", ErrInvalidQuery, t.text)
		}
		return inner, nil
	}

	attr := p.next()
	if attr.kind != tokIdent {
		return nil, fmt.Errorf("%w: expected attribute, got %q", ErrInvalidQuery, attr.text)
	}

	switch t := p.next(); {
	case t.kind == tokOp:
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Compare{Attr: attr.text, Op: t.text, Value: val}, nil
	case t.kind == tokKeyword && t.text == "BETWEEN":
		lo, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Between{Attr: attr.text, Lo: lo, Hi: hi}, nil
	default:
		return nil, fmt.Errorf("%w: expected operator or BETWEEN after %q", ErrInvalidQuery, attr.text)
	}
}

func (p *parser) parseValue() (any, error) {
	switch t := p.next(); t.kind {
	case tokNumber:
		return t.num, nil
	case tokString:
		return t.text, nil
	default:
		return nil, fmt.Errorf("%w: expected value, got %q", ErrInvalidQuery, t.text)
	}
}
