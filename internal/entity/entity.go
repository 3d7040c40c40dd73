// Package entity models one extracted row, detached from any live
// database session: no lazy loads ever fire on it again. This is the
// unit the extraction engine produces, the cache store serializes, and
// the load pipeline consumes.
package entity

import (
	"encoding/gob"
	"time"
)

func init() {
	// time.Time is the one non-universe type sql drivers commonly hand
	// back for timestamp columns; gob needs it registered to transmit
	// it through an interface{} value.
	gob.Register(time.Time{})
}

// Entity is a single detached row: a table name, its column values in
// schema-declared order, and any child entities materialized by an
// eager-load path, keyed by the relationship attribute that produced
// them.
type Entity struct {
	Table    string
	Columns  []string
	Values   map[string]interface{}
	Children map[string][]*Entity
}

// New builds an empty Entity for table with the given column order.
func New(table string, columns []string) *Entity {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Entity{
		Table:   table,
		Columns: cols,
		Values:  make(map[string]interface{}, len(columns)),
	}
}

// Set records column's value.
func (e *Entity) Set(column string, value interface{}) {
	e.Values[column] = value
}

// Get returns column's value and whether it was set.
func (e *Entity) Get(column string) (interface{}, bool) {
	v, ok := e.Values[column]
	return v, ok
}

// OrderedValues returns e's values in Columns order, suitable for
// positional parameter binding on an INSERT.
func (e *Entity) OrderedValues() []interface{} {
	out := make([]interface{}, len(e.Columns))
	for i, c := range e.Columns {
		out[i] = e.Values[c]
	}
	return out
}

// AddChild appends child under relationship key.
func (e *Entity) AddChild(key string, child *Entity) {
	if e.Children == nil {
		e.Children = make(map[string][]*Entity)
	}
	e.Children[key] = append(e.Children[key], child)
}

// Walk calls fn for e and, recursively, every descendant entity
// reachable through Children, parent before child. Traversal order
// within a single relationship key follows Children's slice order;
// traversal order across relationship keys is not defined, since
// callers that care about ordering (e.g. the load pipeline emitting
// parent rows before child rows per table) group by table name
// downstream rather than relying on this walk's sequence.
func Walk(e *Entity, fn func(*Entity)) {
	if e == nil {
		return
	}
	fn(e)
	for _, children := range e.Children {
		for _, c := range children {
			Walk(c, fn)
		}
	}
}

// Flatten collects e and every descendant into per-table batches,
// preserving within-table discovery order. Used by the load pipeline to
// build one INSERT batch per destination table regardless of how deep
// the eager-load tree nested them.
func Flatten(roots []*Entity) map[string][]*Entity {
	out := make(map[string][]*Entity)
	for _, r := range roots {
		Walk(r, func(e *Entity) {
			out[e.Table] = append(out[e.Table], e)
		})
	}
	return out
}
