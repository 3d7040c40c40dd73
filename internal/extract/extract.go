// Package extract implements the extraction engine: it runs a compiled
// FetchPlan against the source database and materializes a tree of
// detached entity.Entity values, folding MANY_TO_ONE hops into a single
// SELECT per join-chain and issuing follow-up selectin queries for
// collection hops.
package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/entity"
	"github.com/yourorg/dbcut/internal/plan"
	"github.com/yourorg/dbcut/internal/predicate"
)

// Engine runs fetch plans against one source connection.
type Engine struct {
	DB     *sql.DB
	Driver database.Driver
	Schema *database.Schema
}

// New returns an Engine reading from db via driver, against schema.
func New(db *sql.DB, driver database.Driver, schema *database.Schema) *Engine {
	return &Engine{DB: db, Driver: driver, Schema: schema}
}

// node is the execution-time counterpart of plan.RelationTreeNode: it
// additionally carries the Relationship that reached it, split by
// direction so the SQL builder knows which hops fold into the parent's
// SELECT (joined) and which become follow-up queries (selectin).
type node struct {
	rel      *database.Relationship // nil at the root
	joined   []*node
	selectin []*node
}

func buildExecTree(paths []plan.EagerLoadPath) *node {
	root := &node{}
	for _, p := range paths {
		cur := root
		for i := range p.Relationships {
			rel := p.Relationships[i]
			var bucket *[]*node
			if rel.Direction == database.ManyToOne {
				bucket = &cur.joined
			} else {
				bucket = &cur.selectin
			}
			var child *node
			for _, c := range *bucket {
				if c.rel.Key == rel.Key {
					child = c
					break
				}
			}
			if child == nil {
				relCopy := rel
				child = &node{rel: &relCopy}
				*bucket = append(*bucket, child)
			}
			cur = child
		}
	}
	return root
}

// Run executes p and returns its root entities.
func (e *Engine) Run(ctx context.Context, p *plan.FetchPlan) ([]*entity.Entity, error) {
	tree := buildExecTree(p.EagerLoad)
	return e.fetchLevel(ctx, p.RootTable, tree, p.Predicate, p.OrderBy, p.Offset, p.Limit, nil, p.BackrefLimit)
}

// fetchLevel runs one SELECT rooted at table — folding in tree.joined
// (and their own nested joined descendants) as LEFT JOINs — then
// recurses into tree.selectin for each resulting entity.
//
// filterColumn/filterValues, when filterColumn is non-empty, restrict
// the query to rows whose filterColumn is one of filterValues: this is
// how a selectin hop scopes its query to the parent batch's primary
// keys. limit, when non-nil, is applied per parent via one query per
// parent value rather than a single batched, partitioned query — simpler
// to get right across three SQL dialects than a ROW_NUMBER() OVER
// (PARTITION BY ...) formulation, at the cost of one round trip per
// parent row for bounded collections.
func (e *Engine) fetchLevel(ctx context.Context, table string, tree *node, pred predicate.Node, orderBy []plan.OrderTerm, offset, limit *int, filter *levelFilter, backrefLimit *int) ([]*entity.Entity, error) {
	t := e.Schema.TableByName(table)
	if t == nil {
		return nil, &database.InvalidTableError{Table: table}
	}

	b := &queryBuilder{driver: e.Driver, schema: e.Schema}
	spec := b.buildJoinSpec(table, b.nextAlias(), tree)

	sqlText, args := b.render(spec, pred, orderBy, offset, limit, filter)
	rows, err := e.DB.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, &database.SourceQueryError{Query: sqlText, Err: err}
	}
	defer rows.Close()

	entities, err := scan(spec, rows)
	if err != nil {
		return nil, &database.SourceQueryError{Query: sqlText, Err: err}
	}

	for _, child := range tree.selectin {
		if err := e.fetchSelectin(ctx, child, entities, backrefLimit); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// fetchSelectin populates child.rel on every entity in parents, one
// query per parent (bounded by backrefLimit when set), and recurses into
// the child's own joined/selectin descendants.
func (e *Engine) fetchSelectin(ctx context.Context, child *node, parents []*entity.Entity, backrefLimit *int) error {
	rel := *child.rel
	for _, parent := range parents {
		var lim *int
		if backrefLimit != nil {
			l := *backrefLimit
			lim = &l
		}

		var filter *levelFilter
		if rel.Direction == database.ManyToMany {
			keys, err := e.associationKeys(ctx, rel, parent)
			if err != nil {
				return err
			}
			assoc := e.Schema.TableByName(rel.AssociationTable)
			referredFK := foreignKeyTo(assoc, rel.ReferredTable)
			filter = &levelFilter{column: referredFK.ReferencedColumns[0], values: keys}
		} else {
			// OneToMany: rel.Columns[i].Local is on rel.LocalTable (the
			// parent we're already holding); rel.Columns[i].Referred is
			// the FK column on rel.ReferredTable (the child table).
			if len(rel.Columns) != 1 {
				return &database.DialectError{Detail: "composite foreign keys are not supported by selectin loading"}
			}
			v, _ := parent.Get(rel.Columns[0].Local)
			filter = &levelFilter{column: rel.Columns[0].Referred, values: []interface{}{v}}
		}

		children, err := e.fetchLevel(ctx, rel.ReferredTable, child, nil, nil, nil, lim, filter, backrefLimit)
		if err != nil {
			return err
		}
		for _, c := range children {
			parent.AddChild(rel.Key, c)
		}
	}
	return nil
}

// associationKeys resolves parent's row through the many-to-many
// association table and returns the referred table's matching primary
// key values.
func (e *Engine) associationKeys(ctx context.Context, rel database.Relationship, parent *entity.Entity) ([]interface{}, error) {
	assoc := e.Schema.TableByName(rel.AssociationTable)
	if assoc == nil {
		return nil, &database.InvalidTableError{Table: rel.AssociationTable}
	}
	localFK := foreignKeyTo(assoc, rel.LocalTable)
	referredFK := foreignKeyTo(assoc, rel.ReferredTable)
	if localFK == nil || referredFK == nil {
		return nil, &database.DialectError{Detail: fmt.Sprintf("association table %s does not reference both %s and %s", rel.AssociationTable, rel.LocalTable, rel.ReferredTable)}
	}
	parentTable := e.Schema.TableByName(rel.LocalTable)
	if len(parentTable.PrimaryKey) != 1 || len(localFK.Columns) != 1 {
		return nil, &database.DialectError{Detail: "many-to-many traversal requires a single-column primary key and foreign key"}
	}
	pkValue, _ := parent.Get(parentTable.PrimaryKey[0])

	ph := e.Driver.ParameterPlaceholder(1)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", referredFK.Columns[0], rel.AssociationTable, localFK.Columns[0], ph)
	rows, err := e.DB.QueryContext(ctx, query, pkValue)
	if err != nil {
		return nil, &database.SourceQueryError{Query: query, Err: err}
	}
	defer rows.Close()

	var keys []interface{}
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		keys = append(keys, v)
	}
	return keys, rows.Err()
}

func foreignKeyTo(t *database.Table, referencedTable string) *database.ForeignKey {
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].ReferencedTable == referencedTable {
			return &t.ForeignKeys[i]
		}
	}
	return nil
}

// levelFilter scopes a fetchLevel call to one column's membership in a
// fixed value set — how a selectin hop binds its query to a single
// parent's key (the parent-query-at-a-time strategy documented above
// means values is always length 1 for the one-to-many case, but can be
// many for a many-to-many association lookup).
type levelFilter struct {
	column string
	values []interface{}
}

// joinColumn is one scalar column selected by a query, qualified by the
// alias of the table it came from.
type joinColumn struct {
	alias  string
	column string
}

// joinSpec describes one table in a folded join chain: its alias, the
// columns it contributes to the SELECT list, and any further joined
// children (each recursively folded into the same statement).
type joinSpec struct {
	rel      *database.Relationship // nil at the root
	table    string
	alias    string
	columns  []joinColumn
	children []*joinSpec
}

type queryBuilder struct {
	driver   database.Driver
	schema   *database.Schema
	aliasSeq int
}

func (b *queryBuilder) nextAlias() string {
	a := fmt.Sprintf("t%d", b.aliasSeq)
	b.aliasSeq++
	return a
}

func (b *queryBuilder) buildJoinSpec(table, alias string, tree *node) *joinSpec {
	t := b.schema.TableByName(table)
	spec := &joinSpec{table: table, alias: alias}
	for _, c := range t.Columns {
		spec.columns = append(spec.columns, joinColumn{alias: alias, column: c.Name})
	}
	for _, childNode := range tree.joined {
		childAlias := b.nextAlias()
		childSpec := b.buildJoinSpec(childNode.rel.ReferredTable, childAlias, childNode)
		childSpec.rel = childNode.rel
		spec.children = append(spec.children, childSpec)
	}
	return spec
}

func (b *queryBuilder) render(spec *joinSpec, pred predicate.Node, orderBy []plan.OrderTerm, offset, limit *int, filter *levelFilter) (string, []interface{}) {
	var sb strings.Builder
	var selectCols []string
	collectColumns(spec, &selectCols)

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selectCols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(spec.table + " AS " + spec.alias)
	collectJoins(spec, &sb)

	var args []interface{}
	argIndex := 1
	var whereParts []string

	if filter != nil {
		placeholders := make([]string, len(filter.values))
		for i := range filter.values {
			placeholders[i] = b.driver.ParameterPlaceholder(argIndex)
			args = append(args, filter.values[i])
			argIndex++
		}
		whereParts = append(whereParts, fmt.Sprintf("%s.%s IN (%s)", spec.alias, filter.column, strings.Join(placeholders, ", ")))
	}

	if pred != nil {
		predArgs := predicate.Values(pred)
		var predSQL strings.Builder
		pred.Render(&predSQL, nil, argIndex, b.driver.ParameterPlaceholder)
		whereParts = append(whereParts, predSQL.String())
		args = append(args, predArgs...)
		argIndex += len(predArgs)
	}

	if len(whereParts) > 0 {
		sb.WriteString(" WHERE " + strings.Join(whereParts, " AND "))
	}

	if len(orderBy) > 0 {
		var orderParts []string
		for _, ot := range orderBy {
			dir := "ASC"
			if ot.Desc {
				dir = "DESC"
			}
			orderParts = append(orderParts, fmt.Sprintf("%s.%s %s", spec.alias, ot.Column, dir))
		}
		sb.WriteString(" ORDER BY " + strings.Join(orderParts, ", "))
	}

	if limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *limit)
	}
	if offset != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *offset)
	}

	return sb.String(), args
}

func collectColumns(spec *joinSpec, out *[]string) {
	for _, c := range spec.columns {
		*out = append(*out, fmt.Sprintf("%s.%s", c.alias, c.column))
	}
	for _, child := range spec.children {
		collectColumns(child, out)
	}
}

func collectJoins(spec *joinSpec, sb *strings.Builder) {
	for _, child := range spec.children {
		on := make([]string, len(child.rel.Columns))
		for i, pair := range child.rel.Columns {
			on[i] = fmt.Sprintf("%s.%s = %s.%s", spec.alias, pair.Local, child.alias, pair.Referred)
		}
		fmt.Fprintf(sb, " LEFT JOIN %s AS %s ON %s", child.table, child.alias, strings.Join(on, " AND "))
		collectJoins(child, sb)
	}
}

// scan reads rows (whose column order matches collectColumns(spec, ...))
// into one entity per root row, attaching joined descendants via
// rel.Key. A joined child entity is omitted when its alias's columns are
// all NULL (the FK side of an optional relationship).
func scan(spec *joinSpec, rows *sql.Rows) ([]*entity.Entity, error) {
	var flat []*joinSpec
	flatten(spec, &flat)

	var results []*entity.Entity
	for rows.Next() {
		dest := make([]interface{}, 0)
		for _, s := range flat {
			for range s.columns {
				dest = append(dest, new(interface{}))
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		idx := 0
		built := make(map[*joinSpec]*entity.Entity, len(flat))
		for _, s := range flat {
			names := make([]string, len(s.columns))
			for i, c := range s.columns {
				names[i] = c.column
			}
			e := entity.New(s.table, names)
			allNull := true
			for i, c := range s.columns {
				v := *(dest[idx+i].(*interface{}))
				if v != nil {
					allNull = false
				}
				e.Set(c.column, v)
			}
			idx += len(s.columns)
			if s.rel != nil && allNull {
				continue // optional many-to-one side with no match
			}
			built[s] = e
		}

		root := built[flat[0]]
		for _, s := range flat[1:] {
			if built[s] == nil {
				continue
			}
			parent := built[findParent(spec, s)]
			if parent != nil {
				parent.AddChild(s.rel.Key, built[s])
			}
		}
		results = append(results, root)
	}
	return results, rows.Err()
}

func flatten(spec *joinSpec, out *[]*joinSpec) {
	*out = append(*out, spec)
	for _, c := range spec.children {
		flatten(c, out)
	}
}

func findParent(spec, target *joinSpec) *joinSpec {
	for _, c := range spec.children {
		if c == target {
			return spec
		}
		if p := findParent(c, target); p != nil {
			return p
		}
	}
	return nil
}
