// Package reflector builds the dialect-neutral relational model the rest
// of dbcut operates on: it drives a database.Driver's Introspector across
// every table, then derives the bidirectional relationship graph that the
// teacher's own introspectors never computed (they stopped at raw foreign
// keys, one direction only).
package reflector

import (
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// Reflect introspects db and returns the complete Schema: tables, columns,
// indexes, foreign keys, and the derived Relationships slice (every
// MANY_TO_ONE edge mirrored by a OneToMany edge on the referred table,
// MANY_TO_MANY edges synthesized from association tables).
func Reflect(ctx context.Context, db *sql.DB, driver database.Driver, schemaName string) (*database.Schema, error) {
	schema, err := driver.IntrospectSchema(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}
	schema.Dialect = driver.Name()
	schema.Relationships = deriveRelationships(schema)
	return schema, nil
}

// deriveRelationships walks every table's foreign keys and builds the
// bidirectional edge list. Association tables (see Table.IsAssociation)
// contribute a MANY_TO_MANY edge between the two tables they join, in
// addition to their own plain MANY_TO_ONE edges — the association table
// is still a real table an eager-load path can stop at directly.
func deriveRelationships(schema *database.Schema) []database.Relationship {
	var rels []database.Relationship
	keyCounts := map[string]int{} // "localTable.key" -> count, for collision suffixing

	addEdge := func(rel database.Relationship) database.Relationship {
		base := rel.Key
		counterKey := rel.LocalTable + "." + base
		if n := keyCounts[counterKey]; n > 0 {
			rel.Key = fmt.Sprintf("%s_%d", base, n+1)
		}
		keyCounts[counterKey] = keyCounts[counterKey] + 1
		rels = append(rels, rel)
		return rel
	}

	for _, table := range schema.Tables {
		for _, fk := range table.ForeignKeys {
			key := attributeName(fk.Columns, fk.ReferencedTable)
			backPopulates := pluralize(table.Name)

			m2o := addEdge(database.Relationship{
				LocalTable:    table.Name,
				ReferredTable: fk.ReferencedTable,
				Direction:     database.ManyToOne,
				Key:           key,
				BackPopulates: backPopulates,
				Columns:       columnPairs(fk),
			})

			addEdge(database.Relationship{
				LocalTable:    fk.ReferencedTable,
				ReferredTable: table.Name,
				Direction:     database.OneToMany,
				Key:           backPopulates,
				BackPopulates: m2o.Key,
				Columns:       reversePairs(m2o.Columns),
			})
		}
	}

	for _, table := range schema.Tables {
		if !table.IsAssociation() {
			continue
		}
		if len(table.ForeignKeys) != 2 {
			continue // a 3+-way association has no clean pairwise M2M edge
		}
		left, right := table.ForeignKeys[0], table.ForeignKeys[1]

		addEdge(database.Relationship{
			LocalTable:       left.ReferencedTable,
			ReferredTable:    right.ReferencedTable,
			Direction:        database.ManyToMany,
			Key:              pluralize(right.ReferencedTable),
			BackPopulates:    pluralize(left.ReferencedTable),
			AssociationTable: table.Name,
		})
		addEdge(database.Relationship{
			LocalTable:       right.ReferencedTable,
			ReferredTable:    left.ReferencedTable,
			Direction:        database.ManyToMany,
			Key:              pluralize(left.ReferencedTable),
			BackPopulates:    pluralize(right.ReferencedTable),
			AssociationTable: table.Name,
		})
	}

	return rels
}

func columnPairs(fk database.ForeignKey) []database.ColumnPair {
	pairs := make([]database.ColumnPair, len(fk.Columns))
	for i := range fk.Columns {
		pairs[i] = database.ColumnPair{Local: fk.Columns[i], Referred: fk.ReferencedColumns[i]}
	}
	return pairs
}

func reversePairs(pairs []database.ColumnPair) []database.ColumnPair {
	out := make([]database.ColumnPair, len(pairs))
	for i, p := range pairs {
		out[i] = database.ColumnPair{Local: p.Referred, Referred: p.Local}
	}
	return out
}

// attributeName derives the local attribute name for a many-to-one edge:
// a single "<x>_id" column yields "x"; anything else falls back to the
// referenced table name.
func attributeName(columns []string, referencedTable string) string {
	if len(columns) == 1 && strings.HasSuffix(columns[0], "_id") {
		return strings.TrimSuffix(columns[0], "_id")
	}
	return referencedTable
}

// pluralize is a deliberately small heuristic: dbcut only uses the result
// as a generated attribute name (never rendered SQL), so getting
// irregular plurals wrong is cosmetic, not a correctness bug.
func pluralize(name string) string {
	switch {
	case strings.HasSuffix(name, "s"):
		return name
	case strings.HasSuffix(name, "y") && len(name) > 1 && !isVowel(name[len(name)-2]):
		return name[:len(name)-1] + "ies"
	default:
		return name + "s"
	}
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}

// ApplyDialect rewrites schema's column types for target by
// round-tripping each column's canonical tag through the destination
// driver's RenderType; indexes and foreign keys are copied unchanged.
// Columns whose canonical tag the destination cannot render are left with
// their original Type untouched and the error is ignored here — EmitDDL
// returns that DialectError when it generates the table's DDL.
func ApplyDialect(schema *database.Schema, target database.Driver) *database.Schema {
	out := *schema
	out.Dialect = target.Name()
	out.Tables = make([]database.Table, len(schema.Tables))
	for i, table := range schema.Tables {
		t := table
		t.Columns = make([]database.Column, len(table.Columns))
		for j, col := range table.Columns {
			c := col
			if rendered, err := target.RenderType(col.Canonical); err == nil {
				c.Type = rendered
			}
			t.Columns[j] = c
		}
		out.Tables[i] = t
	}
	return &out
}

// EmitDDL renders schema as a sequence of PlanSteps against target,
// ordered so that every table is created before any table that
// references it: tables first (topologically sorted by foreign key
// dependency), then non-PK indexes, then foreign key constraints last.
func EmitDDL(schema *database.Schema, target database.Driver) ([]database.PlanStep, error) {
	order, err := TopologicalOrder(schema)
	if err != nil {
		return nil, err
	}

	var steps []database.PlanStep
	for _, name := range order {
		table := schema.TableByName(name)
		if table == nil {
			continue
		}
		for _, col := range table.Columns {
			if _, err := target.RenderType(col.Canonical); err != nil {
				return nil, err
			}
		}
		sql, desc := target.CreateTable(*table)
		steps = append(steps, database.PlanStep{SQL: sql, Description: desc})
	}
	for _, name := range order {
		table := schema.TableByName(name)
		for _, idx := range table.Indexes {
			sql, desc := target.AddIndex(table.Name, idx)
			steps = append(steps, database.PlanStep{SQL: sql, Description: desc})
		}
	}
	if target.SupportsFeature("ALTER_ADD_FOREIGN_KEY") {
		for _, name := range order {
			table := schema.TableByName(name)
			for _, fk := range table.ForeignKeys {
				sql, desc := target.AddForeignKey(table.Name, fk)
				steps = append(steps, database.PlanStep{SQL: sql, Description: desc})
			}
		}
	}
	return steps, nil
}

// TopologicalOrder returns table names ordered so that every table
// appears after every table it references via foreign key. Cycles
// (possible with nullable self-referencing or mutual FKs) are broken by
// falling back to name order for any table left over once no more
// dependency-free tables remain.
func TopologicalOrder(schema *database.Schema) ([]string, error) {
	remaining := map[string]database.Table{}
	var names []string
	for _, t := range schema.Tables {
		remaining[t.Name] = t
		names = append(names, t.Name)
	}
	sort.Strings(names)

	var order []string
	placed := map[string]bool{}

	for len(placed) < len(names) {
		progressed := false
		for _, name := range names {
			if placed[name] {
				continue
			}
			table := remaining[name]
			ready := true
			for _, fk := range table.ForeignKeys {
				if fk.ReferencedTable != name && !placed[fk.ReferencedTable] {
					if _, exists := remaining[fk.ReferencedTable]; exists {
						ready = false
						break
					}
				}
			}
			if ready {
				order = append(order, name)
				placed[name] = true
				progressed = true
			}
		}
		if !progressed {
			// cyclic FK group: place whatever's left in name order so
			// EmitDDL still terminates; AddForeignKey runs as a separate
			// pass afterward so the cycle itself never blocks CREATE TABLE.
			for _, name := range names {
				if !placed[name] {
					order = append(order, name)
					placed[name] = true
				}
			}
		}
	}
	return order, nil
}

// CacheSchema gob-encodes schema to path, creating parent directories as
// needed. Writes happen to a temp file in the same directory followed by
// a rename, so a concurrent LoadCachedSchema never observes a partial
// file.
func CacheSchema(schema *database.Schema, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(schema); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCachedSchema reads back a schema written by CacheSchema.
func LoadCachedSchema(path string) (*database.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var schema database.Schema
	if err := gob.NewDecoder(f).Decode(&schema); err != nil {
		return nil, err
	}
	return &schema, nil
}
