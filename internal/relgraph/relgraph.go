// Package relgraph derives a traversable relationship graph from a
// reflected database.Schema. It is pure data: no I/O, no caching, just
// the deterministic edge ordering the query compiler traverses, plus a
// breadth-first path finder (FindPath).
package relgraph

import (
	"sort"

	"github.com/yourorg/dbcut/database"
)

// Graph is the relationship graph of a single reflected schema.
type Graph struct {
	schema *database.Schema
	edges  map[string][]database.Relationship // by LocalTable, pre-sorted
}

// Build derives a Graph from schema. Schema.Relationships is expected to
// already carry both directions of every many-to-one edge (the schema
// reflector mirrors them when it builds the Schema), so Build only needs
// to group and order them for deterministic traversal.
func Build(schema *database.Schema) *Graph {
	g := &Graph{
		schema: schema,
		edges:  make(map[string][]database.Relationship),
	}
	for _, rel := range schema.Relationships {
		g.edges[rel.LocalTable] = append(g.edges[rel.LocalTable], rel)
	}
	for table := range g.edges {
		edges := g.edges[table]
		sort.SliceStable(edges, func(i, j int) bool {
			if edges[i].Direction != edges[j].Direction {
				return rank(edges[i].Direction) < rank(edges[j].Direction)
			}
			return edges[i].Key < edges[j].Key
		})
		g.edges[table] = edges
	}
	return g
}

// rank orders ManyToOne first, then OneToMany, then ManyToMany: the
// cheapest edges to eagerly join come first, matching the query
// compiler's preference for joined loading over a separate select.
func rank(d database.RelationDirection) int {
	switch d {
	case database.ManyToOne:
		return 0
	case database.OneToMany:
		return 1
	case database.ManyToMany:
		return 2
	default:
		return 3
	}
}

// OutEdges returns table's relationships ordered deterministically:
// ManyToOne edges first, then OneToMany, then ManyToMany, ties broken by
// attribute key. The ordering is stable across runs against identical
// schemas, which the cache key's determinism depends on.
func (g *Graph) OutEdges(table string) []database.Relationship {
	edges := g.edges[table]
	out := make([]database.Relationship, len(edges))
	copy(out, edges)
	return out
}

// IsAssociation reports whether table is a pure many-to-many join table.
func (g *Graph) IsAssociation(table string) bool {
	t := g.schema.TableByName(table)
	return t != nil && t.IsAssociation()
}

// FindPath returns the sequence of relationships connecting src to dst,
// following OutEdges in order and visiting each table at most once. It
// returns the first path found by breadth-first search, which — given
// OutEdges' deterministic ordering — is itself deterministic. Returns nil
// if no path exists.
func (g *Graph) FindPath(src, dst string) []database.Relationship {
	if src == dst {
		return nil
	}

	type frame struct {
		table string
		path  []database.Relationship
	}

	visited := map[string]bool{src: true}
	queue := []frame{{table: src}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, rel := range g.OutEdges(cur.table) {
			if visited[rel.ReferredTable] {
				continue
			}
			path := append(append([]database.Relationship{}, cur.path...), rel)
			if rel.ReferredTable == dst {
				return path
			}
			visited[rel.ReferredTable] = true
			queue = append(queue, frame{table: rel.ReferredTable, path: path})
		}
	}
	return nil
}
