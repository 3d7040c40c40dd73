// Package predicate parses and compiles the manifest's "where" mini
// language — $and/$or/$not plus a small set of leaf comparators — into a
// bound expression tree that can render itself as a SQL WHERE fragment.
package predicate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// Operator is a leaf comparator.
type Operator string

const (
	Eq    Operator = "="
	Ne    Operator = "!="
	Lt    Operator = "<"
	Le    Operator = "<="
	Gt    Operator = ">"
	Ge    Operator = ">="
	In    Operator = "$in"
	NotIn Operator = "$nin"
	Like  Operator = "$like"
	NLike Operator = "$nlike"
)

var validOperators = map[string]Operator{
	"=": Eq, "!=": Ne, "<": Lt, "<=": Le, ">": Gt, ">=": Ge,
	"$in": In, "$nin": NotIn, "$like": Like, "$nlike": NLike,
}

// Node is one node of a compiled predicate tree.
type Node interface {
	// Render appends table-qualified SQL for this node to sql, using
	// placeholder to render each bound parameter's position, numbered
	// from argIndex. It does not append to args; Values returns the
	// bound arguments in the same order.
	Render(sql *strings.Builder, args []interface{}, argIndex int, placeholder func(int) string)
}

// AndNode is a conjunction of children.
type AndNode struct{ Children []Node }

// OrNode is a disjunction of children.
type OrNode struct{ Children []Node }

// NotNode negates a single child.
type NotNode struct{ Child Node }

// Comparison is a single leaf: table.field OP value.
type Comparison struct {
	Table    string
	Field    string
	Operator Operator
	Value    interface{}
}

func (n *AndNode) Render(sql *strings.Builder, args []interface{}, argIndex int, ph func(int) string) {
	renderJunction(n.Children, "AND", sql, args, argIndex, ph)
}

func (n *OrNode) Render(sql *strings.Builder, args []interface{}, argIndex int, ph func(int) string) {
	renderJunction(n.Children, "OR", sql, args, argIndex, ph)
}

func renderJunction(children []Node, joiner string, sql *strings.Builder, args []interface{}, argIndex int, ph func(int) string) {
	sql.WriteString("(")
	for i, c := range children {
		if i > 0 {
			sql.WriteString(" " + joiner + " ")
		}
		c.Render(sql, args, argIndex, ph)
		argIndex += len(Values(c))
	}
	sql.WriteString(")")
}

func (n *NotNode) Render(sql *strings.Builder, args []interface{}, argIndex int, ph func(int) string) {
	sql.WriteString("NOT (")
	n.Child.Render(sql, args, argIndex, ph)
	sql.WriteString(")")
}

func (n *Comparison) Render(sql *strings.Builder, args []interface{}, argIndex int, ph func(int) string) {
	column := n.Table + "." + n.Field
	switch n.Operator {
	case In, NotIn:
		op := "IN"
		if n.Operator == NotIn {
			op = "NOT IN"
		}
		values, _ := n.Value.([]interface{})
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = ph(argIndex + i)
		}
		fmt.Fprintf(sql, "%s %s (%s)", column, op, strings.Join(placeholders, ", "))
	case Like:
		fmt.Fprintf(sql, "%s LIKE %s", column, ph(argIndex))
	case NLike:
		fmt.Fprintf(sql, "%s NOT LIKE %s", column, ph(argIndex))
	default:
		fmt.Fprintf(sql, "%s %s %s", column, string(n.Operator), ph(argIndex))
	}
}

// Values flattens the argument values bound to n and its descendants, in
// render order — used by compile sites that need to build the full args
// slice before rendering placeholders (placeholder numbering is
// positional in postgres, so args must be collected up front).
func Values(n Node) []interface{} {
	switch v := n.(type) {
	case *AndNode:
		return flattenChildren(v.Children)
	case *OrNode:
		return flattenChildren(v.Children)
	case *NotNode:
		return Values(v.Child)
	case *Comparison:
		switch v.Operator {
		case In, NotIn:
			values, _ := v.Value.([]interface{})
			return values
		default:
			return []interface{}{v.Value}
		}
	default:
		return nil
	}
}

func flattenChildren(children []Node) []interface{} {
	var out []interface{}
	for _, c := range children {
		out = append(out, Values(c)...)
	}
	return out
}

// reachable is the set of tables a bound field reference is allowed to
// target: the plan's root table plus every table on an eager-load path.
type reachable = map[string]bool

// Parse parses raw (the YAML-decoded value of a manifest entry's "where"
// key) into a predicate tree, validating field references against
// schema and the reachable table set. rootTable is used to resolve bare
// (unqualified) field references.
func Parse(raw interface{}, schema *database.Schema, rootTable string, reach reachable) (Node, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &database.QuerySyntaxError{Detail: "where must be a mapping"}
	}
	return parseMapping(m, schema, rootTable, reach)
}

func parseMapping(m map[string]interface{}, schema *database.Schema, rootTable string, reach reachable) (Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic traversal order for error messages and cache-key stability

	var clauses []Node
	for _, key := range keys {
		value := m[key]
		node, err := parseKey(key, value, schema, rootTable, reach)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, node)
	}

	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return &AndNode{Children: clauses}, nil
}

func parseKey(key string, value interface{}, schema *database.Schema, rootTable string, reach reachable) (Node, error) {
	switch key {
	case "$and", "$or":
		items, ok := value.([]interface{})
		if !ok {
			return nil, &database.QuerySyntaxError{Detail: key + " requires a list"}
		}
		children := make([]Node, 0, len(items))
		for _, item := range items {
			sub, ok := item.(map[string]interface{})
			if !ok {
				return nil, &database.QuerySyntaxError{Detail: key + " elements must be mappings"}
			}
			node, err := parseMapping(sub, schema, rootTable, reach)
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		}
		if key == "$and" {
			return &AndNode{Children: children}, nil
		}
		return &OrNode{Children: children}, nil

	case "$not":
		sub, ok := value.(map[string]interface{})
		if !ok {
			return nil, &database.QuerySyntaxError{Detail: "$not requires a mapping"}
		}
		child, err := parseMapping(sub, schema, rootTable, reach)
		if err != nil {
			return nil, err
		}
		return &NotNode{Child: child}, nil

	default:
		return parseLeaf(key, value, schema, rootTable, reach)
	}
}

func parseLeaf(field string, value interface{}, schema *database.Schema, rootTable string, reach reachable) (Node, error) {
	table, column := splitField(field, rootTable)

	if !reach[table] {
		return nil, &database.InvalidFieldError{Field: column, Table: table}
	}
	t := schema.TableByName(table)
	if t == nil {
		return nil, &database.InvalidTableError{Table: table}
	}
	if t.ColumnByName(column) == nil {
		return nil, &database.InvalidFieldError{Field: column, Table: table}
	}

	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) != 1 {
			return nil, &database.QuerySyntaxError{Detail: fmt.Sprintf("field %q must have exactly one comparator", field)}
		}
		for opKey, opVal := range v {
			op, ok := validOperators[opKey]
			if !ok {
				return nil, &database.InvalidOperatorError{Operator: opKey}
			}
			if (op == In || op == NotIn) && !isSlice(opVal) {
				return nil, &database.QuerySyntaxError{Detail: opKey + " requires a list value"}
			}
			return &Comparison{Table: table, Field: column, Operator: op, Value: opVal}, nil
		}
		panic("unreachable")
	default:
		return &Comparison{Table: table, Field: column, Operator: Eq, Value: value}, nil
	}
}

func isSlice(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}

func splitField(field, rootTable string) (table, column string) {
	if idx := strings.IndexByte(field, '.'); idx >= 0 {
		return field[:idx], field[idx+1:]
	}
	return rootTable, field
}
