// Package reconcile merges a freshly decoded draft onto the previous schema,
// carrying stable ids and canvas positions over to the entities it can match.
//
// Tables and columns are matched in two passes: first by case-insensitive
// name, then, only when both sides have the same number of entries, by
// position among whatever the name pass left unmatched. Anything unmatched is
// treated as new and keeps its synthetic id.
package reconcile

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/schema"
)

// Reconciler merges drafts onto previous schemas. It holds no state between calls.
type Reconciler struct {
	logger *zap.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLogger traces match decisions at debug level
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// New creates a Reconciler
func New(opts ...Option) *Reconciler {
	r := &Reconciler{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile is a convenience wrapper around a Reconciler without logging
func Reconcile(draft *schema.Draft, previous schema.Schema) schema.Schema {
	return New().Reconcile(draft, previous)
}

// Reconcile returns the merged schema. Neither argument is modified.
func (r *Reconciler) Reconcile(draft *schema.Draft, previous schema.Schema) schema.Schema {
	if draft == nil {
		return previous.Clone()
	}
	out := draft.Schema.Clone()
	synthetic := indexSyntheticIDs(out)

	tableMatch := pair(tableNames(out.Tables), tableNames(previous.Tables))
	tableIDs := idSet{}
	for i, j := range tableMatch {
		if j < 0 {
			continue
		}
		prev := previous.Tables[j]
		cur := &out.Tables[i]
		r.logger.Debug("table matched",
			zap.String("name", cur.Name),
			zap.String("previous", prev.Name),
			zap.String("id", prev.ID))
		cur.ID = prev.ID
		cur.PosX, cur.PosY = prev.PosX, prev.PosY
		tableIDs.reserve(cur.ID)
		r.reconcileColumns(cur, prev)
	}
	for i, j := range tableMatch {
		if j < 0 {
			cur := &out.Tables[i]
			cur.ID = tableIDs.claim(cur.ID)
			cur.Columns = uniqueColumns(cur.Columns, idSet{})
			r.logger.Debug("table added", zap.String("name", cur.Name), zap.String("id", cur.ID))
		}
	}

	r.reconcileRelations(&out, draft.Refs, synthetic, previous.Relations)
	return out
}

func (r *Reconciler) reconcileColumns(cur *schema.Table, prev schema.Table) {
	match := pair(columnNames(cur.Columns), columnNames(prev.Columns))
	ids := idSet{}
	for i, j := range match {
		if j >= 0 {
			cur.Columns[i].ID = prev.Columns[j].ID
			ids.reserve(cur.Columns[i].ID)
		}
	}
	for i, j := range match {
		if j < 0 {
			cur.Columns[i].ID = ids.claim(cur.Columns[i].ID)
			r.logger.Debug("column added",
				zap.String("table", cur.Name),
				zap.String("column", cur.Columns[i].Name))
		}
	}
}

// uniqueColumns resolves duplicate column ids inside one new table
func uniqueColumns(cols []schema.Column, ids idSet) []schema.Column {
	for i := range cols {
		cols[i].ID = ids.claim(cols[i].ID)
	}
	return cols
}

func (r *Reconciler) reconcileRelations(out *schema.Schema, refs []schema.RelationRef, synthetic syntheticIndex, previous []schema.Relation) {
	inherited := make([]bool, len(previous))
	ids := idSet{}
	fresh := make([]bool, len(out.Relations))

	for i := range out.Relations {
		rel := &out.Relations[i]
		var ref *schema.RelationRef
		if i < len(refs) {
			ref = &refs[i]
		}

		e, ok := resolve(out, *rel, ref, synthetic)
		if !ok {
			r.logger.Debug("relation unresolved", zap.String("id", rel.ID))
			fresh[i] = true
			continue
		}
		rel.FromTable, rel.FromCol = e.From.ID, e.FromCol.ID
		rel.ToTable, rel.ToCol = e.To.ID, e.ToCol.ID

		if j := findRelation(previous, inherited, *rel); j >= 0 {
			inherited[j] = true
			rel.ID = previous[j].ID
			rel.Type = previous[j].Type
			ids.reserve(rel.ID)
			continue
		}
		fresh[i] = true
	}

	for i := range out.Relations {
		if fresh[i] {
			out.Relations[i].ID = ids.claim(out.Relations[i].ID)
		}
	}
}

// resolve finds the endpoints of rel in the reconciled schema, by the parsed
// names when a ref is present and by the draft's synthetic ids otherwise
func resolve(out *schema.Schema, rel schema.Relation, ref *schema.RelationRef, synthetic syntheticIndex) (schema.Endpoints, bool) {
	if ref != nil {
		var e schema.Endpoints
		var ok bool
		if e.From, ok = out.TableByName(ref.FromTable); !ok {
			return e, false
		}
		if e.To, ok = out.TableByName(ref.ToTable); !ok {
			return e, false
		}
		if e.FromCol, ok = e.From.ColumnByName(ref.FromColumn); !ok {
			return e, false
		}
		if e.ToCol, ok = e.To.ColumnByName(ref.ToColumn); !ok {
			return e, false
		}
		return e, true
	}

	if e, ok := synthetic.resolve(out, rel); ok {
		return e, true
	}
	return out.ResolveRelation(rel)
}

func findRelation(previous []schema.Relation, taken []bool, rel schema.Relation) int {
	for j, p := range previous {
		if taken[j] {
			continue
		}
		if p.FromTable == rel.FromTable && p.FromCol == rel.FromCol &&
			p.ToTable == rel.ToTable && p.ToCol == rel.ToCol {
			return j
		}
	}
	return -1
}

// pair maps every current name to the index of its previous counterpart, or -1.
// The name pass runs over all entries before the positional pass starts.
func pair(current, previous []string) []int {
	match := make([]int, len(current))
	consumed := make([]bool, len(previous))

	for i, name := range current {
		match[i] = -1
		for j, prev := range previous {
			if !consumed[j] && strings.EqualFold(name, prev) {
				match[i] = j
				consumed[j] = true
				break
			}
		}
	}

	if len(current) != len(previous) {
		return match
	}
	for i := range current {
		if match[i] < 0 && !consumed[i] {
			match[i] = i
			consumed[i] = true
		}
	}
	return match
}

func tableNames(tables []schema.Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

func columnNames(cols []schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// idSet hands out ids that are unique within one scope
type idSet map[string]bool

func (s idSet) reserve(id string) { s[id] = true }

// claim returns id, or id with the first free numeric suffix when it is taken
func (s idSet) claim(id string) string {
	if !s[id] {
		s[id] = true
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if !s[candidate] {
			s[candidate] = true
			return candidate
		}
	}
}

// syntheticIndex remembers where each draft id ended up, by table and column position
type syntheticIndex struct {
	tables  map[string]int
	columns []map[string]int
}

func indexSyntheticIDs(d schema.Schema) syntheticIndex {
	idx := syntheticIndex{
		tables:  make(map[string]int, len(d.Tables)),
		columns: make([]map[string]int, len(d.Tables)),
	}
	for i, t := range d.Tables {
		if _, dup := idx.tables[t.ID]; !dup {
			idx.tables[t.ID] = i
		}
		idx.columns[i] = make(map[string]int, len(t.Columns))
		for k, c := range t.Columns {
			if _, dup := idx.columns[i][c.ID]; !dup {
				idx.columns[i][c.ID] = k
			}
		}
	}
	return idx
}

func (s syntheticIndex) resolve(out *schema.Schema, rel schema.Relation) (schema.Endpoints, bool) {
	from, ok := s.tables[rel.FromTable]
	if !ok {
		return schema.Endpoints{}, false
	}
	to, ok := s.tables[rel.ToTable]
	if !ok {
		return schema.Endpoints{}, false
	}
	fromCol, ok := s.columns[from][rel.FromCol]
	if !ok {
		return schema.Endpoints{}, false
	}
	toCol, ok := s.columns[to][rel.ToCol]
	if !ok {
		return schema.Endpoints{}, false
	}
	return schema.Endpoints{
		From:    &out.Tables[from],
		FromCol: &out.Tables[from].Columns[fromCol],
		To:      &out.Tables[to],
		ToCol:   &out.Tables[to].Columns[toCol],
	}, true
}
