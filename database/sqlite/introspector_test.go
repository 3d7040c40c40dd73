package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/yourorg/dbcut/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newIntrospector() *Introspector {
	return &Introspector{gen: &Generator{}}
}

func TestIntrospectorGetTablesExcludesSqliteInternal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	introspector := newIntrospector()

	if _, err := db.ExecContext(ctx, `CREATE TABLE customers (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	tables, err := introspector.GetTables(ctx, db, "")
	if err != nil {
		t.Fatalf("GetTables: %v", err)
	}
	if len(tables) != 1 || tables[0] != "customers" {
		t.Errorf("expected [customers], got %v", tables)
	}
}

func TestIntrospectorGetColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	introspector := newIntrospector()

	_, err := db.ExecContext(ctx, `
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER NOT NULL,
			status TEXT DEFAULT 'pending'
		)
	`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	columns, pk, err := introspector.GetColumns(ctx, db, "", "orders")
	if err != nil {
		t.Fatalf("GetColumns: %v", err)
	}
	if len(columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(columns))
	}
	if len(pk) != 1 || pk[0] != "id" {
		t.Errorf("expected primary key [id], got %v", pk)
	}

	idCol := findColumn(columns, "id")
	if idCol == nil || !idCol.IsPrimaryKey {
		t.Error("expected id to be the primary key")
	}

	customerCol := findColumn(columns, "customer_id")
	if customerCol == nil || customerCol.Nullable {
		t.Error("expected customer_id to be NOT NULL")
	}

	statusCol := findColumn(columns, "status")
	if statusCol == nil {
		t.Fatal("expected to find status column")
	}
	if !statusCol.Nullable {
		t.Error("expected status to be nullable")
	}
	if statusCol.Default == nil || *statusCol.Default != "'pending'" {
		t.Errorf("expected status default to be preserved verbatim, got %v", statusCol.Default)
	}
}

func TestIntrospectorGetIndexesExcludesAutoindexes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	introspector := newIntrospector()

	_, err := db.ExecContext(ctx, `
		CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			email TEXT UNIQUE,
			region TEXT
		)
	`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX idx_customers_region ON customers (region)`); err != nil {
		t.Fatalf("create index: %v", err)
	}

	indexes, err := introspector.GetIndexes(ctx, db, "", "customers")
	if err != nil {
		t.Fatalf("GetIndexes: %v", err)
	}

	found := false
	for _, idx := range indexes {
		if idx.Name == "idx_customers_region" {
			found = true
			if idx.Unique {
				t.Error("expected idx_customers_region to not be unique")
			}
		}
		if idx.Name == "sqlite_autoindex_customers_1" {
			t.Error("expected sqlite's auto-created unique-constraint index to be excluded")
		}
	}
	if !found {
		t.Error("expected to find idx_customers_region")
	}
}

func TestIntrospectorGetForeignKeys(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	introspector := newIntrospector()

	_, err := db.ExecContext(ctx, `CREATE TABLE customers (id INTEGER PRIMARY KEY)`)
	if err != nil {
		t.Fatalf("create parent table: %v", err)
	}
	_, err = db.ExecContext(ctx, `
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER,
			FOREIGN KEY (customer_id) REFERENCES customers (id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		t.Fatalf("create child table: %v", err)
	}

	fks, err := introspector.GetForeignKeys(ctx, db, "", "orders")
	if err != nil {
		t.Fatalf("GetForeignKeys: %v", err)
	}
	if len(fks) != 1 {
		t.Fatalf("expected 1 foreign key, got %d", len(fks))
	}

	fk := fks[0]
	if len(fk.Columns) != 1 || fk.Columns[0] != "customer_id" {
		t.Errorf("expected columns [customer_id], got %v", fk.Columns)
	}
	if fk.ReferencedTable != "customers" {
		t.Errorf("expected referenced table customers, got %q", fk.ReferencedTable)
	}
	if fk.OnDelete == nil || *fk.OnDelete != "CASCADE" {
		t.Errorf("expected OnDelete CASCADE, got %v", fk.OnDelete)
	}
}

func TestIntrospectorIntrospectSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	introspector := newIntrospector()

	_, err := db.ExecContext(ctx, `
		CREATE TABLE customers (
			id INTEGER PRIMARY KEY,
			region TEXT
		)
	`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	schema, err := introspector.IntrospectSchema(ctx, db, "")
	if err != nil {
		t.Fatalf("IntrospectSchema: %v", err)
	}
	if schema.Dialect != database.DialectSQLite {
		t.Errorf("expected sqlite dialect tag, got %q", schema.Dialect)
	}

	found := false
	for _, table := range schema.Tables {
		if table.Name == "customers" {
			found = true
			if len(table.Columns) != 2 {
				t.Errorf("expected 2 columns, got %d", len(table.Columns))
			}
		}
	}
	if !found {
		t.Error("expected to find customers in schema")
	}
}

func findColumn(columns []database.Column, name string) *database.Column {
	for i := range columns {
		if columns[i].Name == name {
			return &columns[i]
		}
	}
	return nil
}
