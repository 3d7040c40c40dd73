// Package plan defines the FetchPlan the query compiler produces and the
// extraction engine consumes: everything needed to run one manifest
// entry's query against a reflected schema.
package plan

import (
	"strings"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/predicate"
)

// OrderTerm is one (column, direction) pair in a FetchPlan's ordering.
type OrderTerm struct {
	Column string
	Desc   bool
}

// EagerLoadPath is one dotted relationship chain rooted at the plan's
// root table, e.g. "orders.customer.address" reached via
// Relationships []{orders->customer, customer->address}.
type EagerLoadPath struct {
	Dotted        string
	Relationships []database.Relationship
}

// Strategy classifies how an EagerLoadPath's final hop is materialized.
type Strategy string

const (
	Joined   Strategy = "joined"   // MANY_TO_ONE: single SELECT join
	Selectin Strategy = "selectin" // ONE_TO_MANY / MANY_TO_MANY: follow-up SELECT keyed by parent PKs
)

// FinalDirection reports the direction of an EagerLoadPath's last hop.
func (p EagerLoadPath) FinalDirection() database.RelationDirection {
	if len(p.Relationships) == 0 {
		return ""
	}
	return p.Relationships[len(p.Relationships)-1].Direction
}

// LoadStrategy maps FinalDirection to the materialization strategy used
// by the extraction engine.
func (p EagerLoadPath) LoadStrategy() Strategy {
	if p.FinalDirection() == database.ManyToOne {
		return Joined
	}
	return Selectin
}

// RelationTreeNode is one node of the diagnostic traversal tree rendered
// by `dbcut inspect` and debug logging.
type RelationTreeNode struct {
	Table    string
	Key      string // attribute name that reached this node from its parent; "" at the root
	Strategy Strategy
	Children []*RelationTreeNode
}

// FetchPlan is the fully resolved description of one manifest entry's
// query, ready for the extraction engine.
type FetchPlan struct {
	RootTable    string
	Predicate    predicate.Node
	OrderBy      []OrderTerm
	Offset       *int
	Limit        *int
	EagerLoad    []EagerLoadPath
	Tree         *RelationTreeNode
	CacheKey     string
	BackrefLimit *int
}

// RenderTree formats p.Tree as an indented outline, e.g. for `inspect`
// diagnostic output.
func (p *FetchPlan) RenderTree() string {
	if p.Tree == nil {
		return p.RootTable
	}
	var sb strings.Builder
	renderNode(&sb, p.Tree, 0)
	return sb.String()
}

func renderNode(sb *strings.Builder, node *RelationTreeNode, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if node.Key != "" {
		sb.WriteString(node.Key)
		sb.WriteString(" -> ")
	}
	sb.WriteString(node.Table)
	if node.Strategy != "" {
		sb.WriteString(" [" + string(node.Strategy) + "]")
	}
	sb.WriteString("\n")
	for _, child := range node.Children {
		renderNode(sb, child, depth+1)
	}
}
