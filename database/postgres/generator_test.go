package postgres

import (
	"strings"
	"testing"

	"github.com/yourorg/dbcut/database"
)

func TestGeneratorCreateTable(t *testing.T) {
	gen := &Generator{}

	table := database.Table{
		Name: "customers",
		Columns: []database.Column{
			{Name: "id", Type: "integer", Nullable: false, IsPrimaryKey: true},
			{Name: "email", Type: "text", Nullable: false},
			{Name: "region", Type: "text", Nullable: true},
		},
	}

	sql, desc := gen.CreateTable(table)

	if !strings.Contains(desc, "Create table customers") {
		t.Errorf("expected description to mention customers, got %q", desc)
	}
	if !strings.Contains(sql, "CREATE TABLE customers") {
		t.Errorf("expected CREATE TABLE customers, got %q", sql)
	}
	if !strings.Contains(sql, "id integer NOT NULL PRIMARY KEY") {
		t.Errorf("expected id column definition, got %q", sql)
	}
	if !strings.Contains(sql, "email text NOT NULL") {
		t.Errorf("expected email column definition, got %q", sql)
	}
	if strings.Contains(sql, "region text NOT NULL") {
		t.Errorf("expected region to be nullable, got %q", sql)
	}
}

func TestGeneratorDropTableUsesCascade(t *testing.T) {
	gen := &Generator{}

	sql, desc := gen.DropTable(database.Table{Name: "orders"})

	if sql != "DROP TABLE orders CASCADE" {
		t.Errorf("got %q, want DROP TABLE orders CASCADE", sql)
	}
	if !strings.Contains(desc, "Drop table orders") {
		t.Errorf("unexpected description: %q", desc)
	}
}

func TestGeneratorAddIndex(t *testing.T) {
	gen := &Generator{}

	idx := database.Index{Name: "orders_email_unique_idx", Columns: []string{"email"}, Unique: true}
	sql, desc := gen.AddIndex("orders", idx)

	want := "CREATE UNIQUE INDEX orders_email_unique_idx ON orders (email)"
	if sql != want {
		t.Errorf("got %q, want %q", sql, want)
	}
	if !strings.Contains(desc, "Create index orders_email_unique_idx on table orders") {
		t.Errorf("unexpected description: %q", desc)
	}
}

func TestGeneratorAddForeignKeyWithActions(t *testing.T) {
	gen := &Generator{}

	onDelete := "CASCADE"
	fk := database.ForeignKey{
		Name:              "fk_orders_customer",
		Columns:           []string{"customer_id"},
		ReferencedTable:   "customers",
		ReferencedColumns: []string{"id"},
		OnDelete:          &onDelete,
	}

	sql, desc := gen.AddForeignKey("orders", fk)

	want := "ALTER TABLE orders ADD CONSTRAINT fk_orders_customer FOREIGN KEY (customer_id) REFERENCES customers (id) ON DELETE CASCADE"
	if sql != want {
		t.Errorf("got %q, want %q", sql, want)
	}
	if !strings.Contains(desc, "Add foreign key fk_orders_customer to table orders") {
		t.Errorf("unexpected description: %q", desc)
	}
}

func TestGeneratorFormatColumnDefinition(t *testing.T) {
	gen := &Generator{}

	defaultVal := "0"
	tests := []struct {
		name     string
		column   database.Column
		expected []string
	}{
		{
			name:     "simple column",
			column:   database.Column{Name: "region", Type: "text", Nullable: true},
			expected: []string{"region text"},
		},
		{
			name:     "not null column",
			column:   database.Column{Name: "email", Type: "text", Nullable: false},
			expected: []string{"email text", "NOT NULL"},
		},
		{
			name:     "column with default",
			column:   database.Column{Name: "score", Type: "integer", Nullable: true, Default: &defaultVal},
			expected: []string{"score integer", "DEFAULT 0"},
		},
		{
			name:     "primary key column",
			column:   database.Column{Name: "id", Type: "integer", Nullable: false, IsPrimaryKey: true},
			expected: []string{"id integer", "NOT NULL", "PRIMARY KEY"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gen.FormatColumnDefinition(tt.column)
			for _, exp := range tt.expected {
				if !strings.Contains(result, exp) {
					t.Errorf("expected result to contain %q, got %q", exp, result)
				}
			}
		})
	}
}

func TestGeneratorParameterPlaceholder(t *testing.T) {
	gen := &Generator{}

	tests := []struct {
		position int
		expected string
	}{
		{1, "$1"},
		{2, "$2"},
		{10, "$10"},
	}

	for _, tt := range tests {
		if got := gen.ParameterPlaceholder(tt.position); got != tt.expected {
			t.Errorf("ParameterPlaceholder(%d) = %s, want %s", tt.position, got, tt.expected)
		}
	}
}

func TestGeneratorIndexName(t *testing.T) {
	gen := &Generator{}

	if got := gen.IndexName("orders", []string{"customer_id"}, false); got != "orders_customer_id_idx" {
		t.Errorf("got %q", got)
	}
	if got := gen.IndexName("orders", []string{"email"}, true); got != "orders_email_unique_idx" {
		t.Errorf("got %q", got)
	}
}

func TestGeneratorTextIndexPrefixLength(t *testing.T) {
	gen := &Generator{}
	if got := gen.TextIndexPrefixLength(); got != 0 {
		t.Errorf("expected postgres to have no text index prefix restriction, got %d", got)
	}
}

func TestGeneratorNormalizeTypeDetectsSerial(t *testing.T) {
	gen := &Generator{}

	tests := []struct {
		source string
		want   string
	}{
		{"integer", "INTEGER"},
		{"bigint", "INT8"},
		{"serial", "INTEGER"},
		{"bigserial", "INT8"},
		{"character varying", "VARCHAR"},
		{"jsonb", "JSONB"},
	}

	for _, tt := range tests {
		got, err := gen.NormalizeType(tt.source)
		if err != nil {
			t.Fatalf("NormalizeType(%q): %v", tt.source, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeType(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}

	if _, err := gen.NormalizeType("money"); err == nil {
		t.Error("expected an error for an unrecognized postgres type")
	}
}

func TestGeneratorRenderType(t *testing.T) {
	gen := &Generator{}

	got, err := gen.RenderType("VARCHAR(255)")
	if err != nil {
		t.Fatalf("RenderType: %v", err)
	}
	if got != "character varying(255)" {
		t.Errorf("got %q", got)
	}

	if _, err := gen.RenderType("NOPE"); err == nil {
		t.Error("expected an error for an unrenderable canonical type")
	}
}
