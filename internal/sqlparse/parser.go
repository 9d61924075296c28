// Package sqlparse recovers a schema draft from CREATE TABLE and
// ALTER TABLE ... FOREIGN KEY statements.
//
// Unrecognised or malformed statements are skipped up to the next semicolon.
// Parsed entities receive synthetic, name-derived ids; tables are laid out on
// a fixed grid in declaration order.
package sqlparse

import (
	"strings"

	"github.com/tordrt/schemasync/internal/schema"
)

// typeModifiers may follow the first word of a column type, as in DOUBLE PRECISION
var typeModifiers = map[string]bool{
	"PRECISION": true,
	"VARYING":   true,
	"UNSIGNED":  true,
	"SIGNED":    true,
	"ZEROFILL":  true,
	"WITH":      true,
	"WITHOUT":   true,
	"TIME":      true,
	"ZONE":      true,
}

// Decode parses text into a draft schema. It only fails when text cannot be tokenized.
func Decode(text string) (*schema.Draft, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}

	p := &parser{
		cursor: cursor{toks: toks},
		src:    text,
		b:      schema.NewBuilder(),
	}
	p.parse()
	return p.b.Build(), nil
}

type parser struct {
	cursor
	src    string
	b      *schema.Builder
	alters []schema.RelationRef
}

func (p *parser) parse() {
	for !p.done() {
		switch {
		case p.accept("CREATE", "TABLE"):
			p.createTable()
		case p.accept("ALTER", "TABLE"):
			p.alterTable()
		default:
			p.skipStatement()
		}
	}

	// foreign keys added by ALTER TABLE apply once every table is known
	for _, ref := range p.alters {
		p.b.AddRelation(ref)
		p.b.MarkForeignKey(ref.FromTable, ref.FromColumn)
	}
}

// createTable parses the remainder of CREATE TABLE [IF NOT EXISTS] name ( body ) [options] ;
func (p *parser) createTable() {
	p.accept("IF", "NOT", "EXISTS")
	name, ok := p.qualifiedName()
	if !ok || !p.acceptPunct("(") {
		p.skipStatement()
		return
	}
	body, ok := p.balanced()
	if !ok {
		p.skipStatement()
		return
	}
	p.skipStatement()

	t := p.b.AddTable(name)
	var fkColumns []string
	for _, clause := range splitClauses(body) {
		fkColumns = append(fkColumns, p.clause(t, name, &cursor{toks: clause})...)
	}
	for _, col := range fkColumns {
		p.b.MarkForeignKeyAt(t, col)
	}
}

// clause handles one top-level element of a table body and returns the
// columns named by a table-level foreign key
func (p *parser) clause(t int, table string, c *cursor) []string {
	if c.done() {
		return nil
	}

	named := false
	if c.accept("CONSTRAINT") {
		c.name()
		named = true
	}

	switch {
	case c.accept("FOREIGN", "KEY"):
		from, to, ok := c.references()
		if !ok {
			return nil
		}
		for _, ref := range pairRefs(table, from, to) {
			p.b.AddRelation(ref)
		}
		return from
	case c.accept("PRIMARY", "KEY"):
		cols, _ := c.nameList()
		for _, col := range cols {
			p.b.MarkPrimaryKey(t, col)
		}
		return nil
	case named, c.isConstraintClause():
		return nil
	}

	p.column(t, table, c)
	return nil
}

// column parses name type [constraints...]
func (p *parser) column(t int, table string, c *cursor) {
	name, ok := c.name()
	if !ok {
		return
	}
	typ, ok := c.columnType(p.src)
	if !ok {
		return
	}

	var pk bool
	var refs []schema.RelationRef
	for !c.done() {
		switch {
		case c.accept("PRIMARY", "KEY"):
			pk = true
		case c.accept("REFERENCES"):
			toTable, ok := c.qualifiedName()
			if !ok {
				continue
			}
			toCols, ok := c.nameList()
			if !ok || len(toCols) == 0 {
				continue
			}
			refs = append(refs, schema.RelationRef{
				FromTable: table, FromColumn: name, ToTable: toTable, ToColumn: toCols[0],
			})
		default:
			c.next()
		}
	}

	p.b.AddColumn(t, name, typ, pk, len(refs) > 0)
	for _, ref := range refs {
		p.b.AddRelation(ref)
	}
}

// alterTable parses the remainder of
// ALTER TABLE [IF EXISTS] [ONLY] name [ADD] [CONSTRAINT c] FOREIGN KEY (a) REFERENCES t (b)
func (p *parser) alterTable() {
	defer p.skipStatement()

	p.accept("IF", "EXISTS")
	p.accept("ONLY")
	table, ok := p.qualifiedName()
	if !ok {
		return
	}
	p.accept("ADD")
	if p.accept("CONSTRAINT") {
		p.name()
	}
	if !p.accept("FOREIGN", "KEY") {
		return
	}
	from, to, ok := p.references()
	if !ok {
		return
	}
	p.alters = append(p.alters, pairRefs(table, from, to)...)
}

// target carries the referenced side of a foreign key
type target struct {
	table   string
	columns []string
}

// pairRefs matches referencing and referenced columns by position
func pairRefs(table string, from []string, to target) []schema.RelationRef {
	n := min(len(from), len(to.columns))
	refs := make([]schema.RelationRef, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, schema.RelationRef{
			FromTable:  table,
			FromColumn: from[i],
			ToTable:    to.table,
			ToColumn:   to.columns[i],
		})
	}
	return refs
}

// splitClauses splits a table body on commas outside parentheses
func splitClauses(body []token) [][]token {
	var clauses [][]token
	depth, start := 0, 0
	for i, tok := range body {
		switch {
		case tok.isPunct("("):
			depth++
		case tok.isPunct(")"):
			if depth > 0 {
				depth--
			}
		case tok.isPunct(",") && depth == 0:
			clauses = append(clauses, body[start:i])
			start = i + 1
		}
	}
	return append(clauses, body[start:])
}

// cursor walks a token slice
type cursor struct {
	toks []token
	pos  int
}

func (c *cursor) done() bool { return c.pos >= len(c.toks) }

func (c *cursor) peek() token {
	if c.done() {
		return token{kind: tOther}
	}
	return c.toks[c.pos]
}

func (c *cursor) peekAt(offset int) token {
	if c.pos+offset >= len(c.toks) {
		return token{kind: tOther}
	}
	return c.toks[c.pos+offset]
}

func (c *cursor) next() token {
	tok := c.peek()
	if !c.done() {
		c.pos++
	}
	return tok
}

// accept consumes the keyword sequence only if every word matches
func (c *cursor) accept(words ...string) bool {
	for i, w := range words {
		if !c.peekAt(i).is(w) {
			return false
		}
	}
	c.pos += len(words)
	return true
}

func (c *cursor) peekAny(words ...string) bool {
	for _, w := range words {
		if c.peek().is(w) {
			return true
		}
	}
	return false
}

// isConstraintClause detects a table constraint or index definition without
// consuming it. Columns named like the keywords, such as key VARCHAR(255) or
// check INT, are not matched.
func (c *cursor) isConstraintClause() bool {
	next := c.peekAt(1)
	switch {
	case c.peekAny("CHECK"):
		return next.isPunct("(")
	case c.peekAny("EXCLUDE"):
		return next.isPunct("(") || next.is("USING")
	case c.peekAny("UNIQUE", "FULLTEXT", "SPATIAL"):
		return next.isPunct("(") || next.is("KEY") || next.is("INDEX") || c.indexNameAt(1)
	case c.peekAny("INDEX", "KEY"):
		return next.isPunct("(") || c.indexNameAt(1)
	}
	return false
}

// indexNameAt detects "name USING" or "name (column" at offset. A type such
// as VARCHAR(255) or DECIMAL(10, 2) has literals inside its parentheses.
func (c *cursor) indexNameAt(offset int) bool {
	if !c.peekAt(offset).isName() {
		return false
	}
	after := c.peekAt(offset + 1)
	if after.is("USING") {
		return true
	}
	return after.isPunct("(") && c.peekAt(offset+2).isName()
}

func (c *cursor) acceptPunct(p string) bool {
	if c.peek().isPunct(p) {
		c.pos++
		return true
	}
	return false
}

func (c *cursor) name() (string, bool) {
	tok := c.peek()
	if tok.kind != tIdent && tok.kind != tQuoted {
		return "", false
	}
	c.pos++
	return tok.text(), true
}

// qualifiedName reads a dotted name and keeps its final segment
func (c *cursor) qualifiedName() (string, bool) {
	name, ok := c.name()
	if !ok {
		return "", false
	}
	for c.peek().isPunct(".") {
		c.pos++
		if name, ok = c.name(); !ok {
			return "", false
		}
	}
	return name, true
}

// nameList reads ( name, name, ... )
func (c *cursor) nameList() ([]string, bool) {
	if !c.acceptPunct("(") {
		return nil, false
	}
	var names []string
	for {
		name, ok := c.name()
		if !ok {
			return nil, false
		}
		names = append(names, name)
		if c.acceptPunct(")") {
			return names, true
		}
		if !c.acceptPunct(",") {
			return nil, false
		}
	}
}

// references reads (cols) REFERENCES table (cols)
func (c *cursor) references() ([]string, target, bool) {
	from, ok := c.nameList()
	if !ok || !c.accept("REFERENCES") {
		return nil, target{}, false
	}
	table, ok := c.qualifiedName()
	if !ok {
		return nil, target{}, false
	}
	cols, ok := c.nameList()
	if !ok {
		return nil, target{}, false
	}
	return from, target{table: table, columns: cols}, true
}

// balanced consumes tokens up to the parenthesis closing an already consumed "("
func (c *cursor) balanced() ([]token, bool) {
	start, depth := c.pos, 1
	for !c.done() {
		tok := c.next()
		switch {
		case tok.isPunct("("):
			depth++
		case tok.isPunct(")"):
			depth--
			if depth == 0 {
				return c.toks[start : c.pos-1], true
			}
		}
	}
	return nil, false
}

// skipParens consumes a parenthesised group if one starts at the cursor
func (c *cursor) skipParens() {
	if c.acceptPunct("(") {
		c.balanced()
	}
}

// columnType reads a type such as INT, DECIMAL(10, 2), DOUBLE PRECISION or
// TIMESTAMP(3) WITH TIME ZONE and returns it upper-cased from the source text
func (c *cursor) columnType(src string) (string, bool) {
	first := c.peek()
	if first.kind != tIdent && first.kind != tQuoted {
		return "", false
	}
	c.pos++
	c.skipParens()
	for {
		tok := c.peek()
		switch {
		case tok.kind == tIdent && typeModifiers[strings.ToUpper(tok.value)]:
			c.pos++
			c.skipParens()
			continue
		case tok.kind == tQuoted && strings.HasPrefix(tok.value, "["):
			// array suffix such as INT[]
			c.pos++
			continue
		}
		break
	}

	end := c.toks[c.pos-1].end
	typ := strings.Join(strings.Fields(src[first.start:end]), " ")
	return strings.ToUpper(typ), true
}

// skipStatement advances past the next semicolon. It stops early in front of a
// CREATE TABLE or ALTER TABLE so a missing semicolon loses only one statement.
func (c *cursor) skipStatement() {
	for !c.done() && !c.startsStatement() {
		if c.next().isPunct(";") {
			return
		}
	}
}

func (c *cursor) startsStatement() bool {
	return (c.peek().is("CREATE") || c.peek().is("ALTER")) && c.peekAt(1).is("TABLE")
}
