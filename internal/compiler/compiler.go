// Package compiler translates a manifest entry plus a reflected schema
// into a FetchPlan: a depth-bounded, cycle-safe eager-load traversal,
// a bound predicate tree, and a deterministic cache key.
package compiler

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/manifest"
	"github.com/yourorg/dbcut/internal/plan"
	"github.com/yourorg/dbcut/internal/predicate"
	"github.com/yourorg/dbcut/internal/relgraph"
)

// Compile derives a FetchPlan for entry against schema. engineURL is the
// source connection string, folded into the cache key so that two
// manifests pointed at different databases never collide on disk.
func Compile(entry manifest.ManifestEntry, m *manifest.Manifest, schema *database.Schema, engineURL string) (*plan.FetchPlan, error) {
	root := schema.TableByName(entry.From)
	if root == nil {
		return nil, &database.InvalidTableError{Table: entry.From}
	}

	exclude := toSet(m.EffectiveExclude(entry))
	include := toSet(entry.Include)
	joinDepth := m.EffectiveJoinDepth(entry)
	backrefDepth := m.EffectiveBackrefDepth(entry)
	backrefLimit := m.EffectiveBackrefLimit(entry)

	graph := relgraph.Build(schema)
	paths := traverse(graph, entry.From, joinDepth, backrefDepth, exclude, len(include) > 0)
	sort.Slice(paths, func(i, j int) bool { return paths[i].Dotted < paths[j].Dotted })

	if len(include) > 0 {
		paths = pruneToInclude(paths, include)
	}

	reach := map[string]bool{entry.From: true}
	for _, p := range paths {
		for _, rel := range p.Relationships {
			reach[rel.ReferredTable] = true
		}
	}

	pred, err := predicate.Parse(entry.Where, schema, entry.From, reach)
	if err != nil {
		return nil, err
	}

	orderBy, err := resolveOrderBy(entry, root)
	if err != nil {
		return nil, err
	}

	fp := &plan.FetchPlan{
		RootTable:    entry.From,
		Predicate:    pred,
		OrderBy:      orderBy,
		Offset:       entry.Offset,
		Limit:        m.EffectiveLimit(entry),
		EagerLoad:    paths,
		Tree:         buildTree(entry.From, paths),
		BackrefLimit: backrefLimit,
	}
	fp.CacheKey = cacheKey(engineURL, root, entry, joinDepth, backrefDepth, backrefLimit, exclude, include)
	return fp, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

// traverse runs the breadth-first eager-load walk described in the
// compiler's design: MANY_TO_ONE edges bounded by joinDepth, collection
// edges bounded by backrefDepth, both treated as unbounded when
// unbounded is true (the include override). Cycle safety is enforced by
// never revisiting a table already on the current path — a stronger,
// simpler guarantee than tracking individual (table, attribute) edges
// that still prevents every A-B-A echo and longer cycle.
func traverse(graph *relgraph.Graph, root string, joinDepth, backrefDepth *int, exclude map[string]bool, unbounded bool) []plan.EagerLoadPath {
	type frame struct {
		table     string
		dotted    string
		chain     []database.Relationship
		join      *int
		backref   *int
		visited   map[string]bool
		selfLoops map[string]bool
	}

	start := frame{table: root, visited: map[string]bool{root: true}, join: joinDepth, backref: backrefDepth}
	queue := []frame{start}
	var paths []plan.EagerLoadPath

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, rel := range graph.OutEdges(cur.table) {
			if exclude[rel.ReferredTable] {
				continue
			}

			// A self-referential edge (local table == referred table)
			// lands back on a table already marked visited by
			// definition, so the ordinary ancestor check below would
			// always block it. Allow it exactly once per table instead
			// of folding it into the general cycle guard.
			if rel.ReferredTable == cur.table {
				if cur.selfLoops[cur.table] {
					continue
				}
			} else if cur.visited[rel.ReferredTable] {
				continue
			}

			var allowed bool
			var nextJoin, nextBackref *int
			if rel.Direction == database.ManyToOne {
				allowed = unbounded || remaining(cur.join)
				nextJoin = decrement(cur.join)
				nextBackref = cur.backref
			} else {
				allowed = unbounded || remaining(cur.backref)
				nextJoin = cur.join
				nextBackref = decrement(cur.backref)
			}
			if !allowed {
				continue
			}

			dotted := cur.dotted
			if dotted == "" {
				dotted = root + "." + rel.Key
			} else {
				dotted = dotted + "." + rel.Key
			}
			chain := append(append([]database.Relationship{}, cur.chain...), rel)

			paths = append(paths, plan.EagerLoadPath{Dotted: dotted, Relationships: chain})

			visited := make(map[string]bool, len(cur.visited)+1)
			for k := range cur.visited {
				visited[k] = true
			}
			visited[rel.ReferredTable] = true

			selfLoops := make(map[string]bool, len(cur.selfLoops)+1)
			for k := range cur.selfLoops {
				selfLoops[k] = true
			}
			if rel.ReferredTable == cur.table {
				selfLoops[cur.table] = true
			}

			queue = append(queue, frame{
				table: rel.ReferredTable, dotted: dotted, chain: chain,
				join: nextJoin, backref: nextBackref, visited: visited, selfLoops: selfLoops,
			})
		}
	}
	return paths
}

func remaining(depth *int) bool {
	return depth == nil || *depth > 0
}

func decrement(depth *int) *int {
	if depth == nil {
		return nil
	}
	d := *depth - 1
	return &d
}

// pruneToInclude keeps only paths whose final table is in include; each
// such path's own Relationships chain already carries every intermediate
// ancestor hop, so dropping non-terminal entries loses no join
// information.
func pruneToInclude(paths []plan.EagerLoadPath, include map[string]bool) []plan.EagerLoadPath {
	var kept []plan.EagerLoadPath
	for _, p := range paths {
		if len(p.Relationships) == 0 {
			continue
		}
		final := p.Relationships[len(p.Relationships)-1].ReferredTable
		if include[final] {
			kept = append(kept, p)
		}
	}
	return kept
}

func buildTree(root string, paths []plan.EagerLoadPath) *plan.RelationTreeNode {
	tree := &plan.RelationTreeNode{Table: root}
	for _, p := range paths {
		node := tree
		for _, rel := range p.Relationships {
			var child *plan.RelationTreeNode
			for _, c := range node.Children {
				if c.Key == rel.Key {
					child = c
					break
				}
			}
			if child == nil {
				strategy := plan.Selectin
				if rel.Direction == database.ManyToOne {
					strategy = plan.Joined
				}
				child = &plan.RelationTreeNode{Table: rel.ReferredTable, Key: rel.Key, Strategy: strategy}
				node.Children = append(node.Children, child)
			}
			node = child
		}
	}
	return tree
}

func resolveOrderBy(entry manifest.ManifestEntry, root *database.Table) ([]plan.OrderTerm, error) {
	if len(entry.OrderBy) == 0 {
		terms := make([]plan.OrderTerm, len(root.PrimaryKey))
		for i, col := range root.PrimaryKey {
			terms[i] = plan.OrderTerm{Column: col, Desc: true}
		}
		return terms, nil
	}
	terms := make([]plan.OrderTerm, len(entry.OrderBy))
	for i, ot := range entry.OrderBy {
		if root.ColumnByName(ot.Column) == nil {
			return nil, &database.InvalidFieldError{Field: ot.Column, Table: root.Name}
		}
		terms[i] = plan.OrderTerm{Column: ot.Column, Desc: ot.Desc}
	}
	return terms, nil
}

// cacheKey computes a stable SHA-1 over the canonicalized tuple
// {engine_url, root_table, columns(sorted), normalized(manifest_entry)}.
// Relying on encoding/json's own "object keys sorted" marshaling
// behavior for map[string]interface{} handles dict-key-order
// independence; normalizeValue additionally sorts slices of comparable
// scalars so list order in e.g. $in/exclude/include doesn't change the
// hash either.
func cacheKey(engineURL string, root *database.Table, entry manifest.ManifestEntry, joinDepth, backrefDepth, backrefLimit *int, exclude, include map[string]bool) string {
	columns := make([]string, len(root.Columns))
	for i, c := range root.Columns {
		columns[i] = c.Name
	}
	sort.Strings(columns)

	canonical := map[string]interface{}{
		"engine_url": engineURL,
		"root_table": root.Name,
		"columns":    columns,
		"manifest_entry": normalizeValue(map[string]interface{}{
			"from":          entry.From,
			"where":         entry.Where,
			"order_by":      entry.OrderBy,
			"offset":        entry.Offset,
			"limit":         entry.Limit,
			"join_depth":    joinDepth,
			"backref_depth": backrefDepth,
			"backref_limit": backrefLimit,
			"exclude":       setKeys(exclude),
			"include":       setKeys(include),
		}),
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		// canonical is built entirely from JSON-safe types; a marshal
		// failure here means a programming error, not a runtime condition.
		panic(fmt.Sprintf("compiler: cache key canonicalization failed: %v", err))
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func setKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// normalizeValue recursively sorts slices of comparable scalars so that
// equivalent manifest entries with differently-ordered lists hash
// identically.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = normalizeValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		allStrings := true
		for i, vv := range val {
			out[i] = normalizeValue(vv)
			if _, ok := out[i].(string); !ok {
				allStrings = false
			}
		}
		if allStrings {
			sort.Slice(out, func(i, j int) bool { return out[i].(string) < out[j].(string) })
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		sort.Strings(out)
		return out
	default:
		return val
	}
}
