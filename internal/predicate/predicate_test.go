package predicate

import (
	"strconv"
	"strings"
	"testing"

	"github.com/yourorg/dbcut/database"
)

func sampleSchema() *database.Schema {
	return &database.Schema{
		Tables: []database.Table{
			{Name: "orders", Columns: []database.Column{{Name: "id"}, {Name: "status"}, {Name: "total"}}},
			{Name: "customers", Columns: []database.Column{{Name: "id"}, {Name: "region"}}},
		},
	}
}

func reach(tables ...string) map[string]bool {
	m := map[string]bool{}
	for _, t := range tables {
		m[t] = true
	}
	return m
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func TestParseImplicitEquality(t *testing.T) {
	raw := map[string]interface{}{"status": "shipped"}
	node, err := Parse(raw, sampleSchema(), "orders", reach("orders"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cmp, ok := node.(*Comparison)
	if !ok {
		t.Fatalf("expected *Comparison, got %T", node)
	}
	if cmp.Operator != Eq || cmp.Value != "shipped" {
		t.Errorf("unexpected comparison: %+v", cmp)
	}
}

func TestParseOperatorLeaf(t *testing.T) {
	raw := map[string]interface{}{"total": map[string]interface{}{">": 100}}
	node, err := Parse(raw, sampleSchema(), "orders", reach("orders"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cmp := node.(*Comparison)
	if cmp.Operator != Gt {
		t.Errorf("expected Gt, got %s", cmp.Operator)
	}
}

func TestParseQualifiedField(t *testing.T) {
	raw := map[string]interface{}{"customers.region": "EU"}
	node, err := Parse(raw, sampleSchema(), "orders", reach("orders", "customers"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cmp := node.(*Comparison)
	if cmp.Table != "customers" || cmp.Field != "region" {
		t.Errorf("unexpected binding: %+v", cmp)
	}
}

func TestParseUnreachableTableFails(t *testing.T) {
	raw := map[string]interface{}{"customers.region": "EU"}
	_, err := Parse(raw, sampleSchema(), "orders", reach("orders"))
	if _, ok := err.(*database.InvalidFieldError); !ok {
		t.Fatalf("expected InvalidFieldError, got %T: %v", err, err)
	}
}

func TestParseUnknownColumnFails(t *testing.T) {
	raw := map[string]interface{}{"nonexistent_column": "x"}
	_, err := Parse(raw, sampleSchema(), "orders", reach("orders"))
	if _, ok := err.(*database.InvalidFieldError); !ok {
		t.Fatalf("expected InvalidFieldError, got %T: %v", err, err)
	}
}

func TestParseUnknownOperatorFails(t *testing.T) {
	raw := map[string]interface{}{"status": map[string]interface{}{"$regex": "x"}}
	_, err := Parse(raw, sampleSchema(), "orders", reach("orders"))
	if _, ok := err.(*database.InvalidOperatorError); !ok {
		t.Fatalf("expected InvalidOperatorError, got %T: %v", err, err)
	}
}

func TestParseMultipleComparatorsOnOneFieldFails(t *testing.T) {
	raw := map[string]interface{}{
		"total": map[string]interface{}{">": 1, "<": 10},
	}
	_, err := Parse(raw, sampleSchema(), "orders", reach("orders"))
	if _, ok := err.(*database.QuerySyntaxError); !ok {
		t.Fatalf("expected QuerySyntaxError, got %T: %v", err, err)
	}
}

func TestParseAndOr(t *testing.T) {
	raw := map[string]interface{}{
		"$and": []interface{}{
			map[string]interface{}{"status": "shipped"},
			map[string]interface{}{"$or": []interface{}{
				map[string]interface{}{"total": map[string]interface{}{">": 100}},
				map[string]interface{}{"total": map[string]interface{}{"<": 10}},
			}},
		},
	}
	node, err := Parse(raw, sampleSchema(), "orders", reach("orders"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	and, ok := node.(*AndNode)
	if !ok || len(and.Children) != 2 {
		t.Fatalf("expected a 2-child AndNode, got %#v", node)
	}
}

func TestRenderComparison(t *testing.T) {
	node := &Comparison{Table: "orders", Field: "status", Operator: Eq, Value: "shipped"}
	var sb strings.Builder
	node.Render(&sb, nil, 1, placeholder)
	if sb.String() != "orders.status = $1" {
		t.Errorf("unexpected SQL: %s", sb.String())
	}
}

func TestRenderIn(t *testing.T) {
	node := &Comparison{Table: "orders", Field: "status", Operator: In, Value: []interface{}{"a", "b"}}
	var sb strings.Builder
	node.Render(&sb, nil, 1, placeholder)
	if sb.String() != "orders.status IN ($1, $2)" {
		t.Errorf("unexpected SQL: %s", sb.String())
	}
}

func TestValuesFlattensTree(t *testing.T) {
	node := &AndNode{Children: []Node{
		&Comparison{Table: "orders", Field: "status", Operator: Eq, Value: "shipped"},
		&Comparison{Table: "orders", Field: "id", Operator: In, Value: []interface{}{1, 2, 3}},
	}}
	values := Values(node)
	if len(values) != 4 {
		t.Fatalf("expected 4 flattened values, got %d: %v", len(values), values)
	}
}
