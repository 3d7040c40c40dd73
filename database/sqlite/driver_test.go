package sqlite

import (
	"context"
	"testing"

	"github.com/yourorg/dbcut/database"
)

func newTestDriver() *Driver {
	gen := &Generator{}
	return &Driver{Introspector: &Introspector{gen: gen}, Generator: gen}
}

func TestDriverImplementsInterface(t *testing.T) {
	var _ database.Driver = (*Driver)(nil)
	var _ database.Introspector = (*Introspector)(nil)
	var _ database.SQLGenerator = (*Generator)(nil)
}

func TestDriverName(t *testing.T) {
	driver := newTestDriver()
	if driver.Name() != database.DialectSQLite {
		t.Errorf("got %q, want %q", driver.Name(), database.DialectSQLite)
	}
}

func TestDriverSupportsFeature(t *testing.T) {
	driver := newTestDriver()

	tests := []struct {
		feature  string
		expected bool
	}{
		{"CASCADE", false},
		{"ALTER_COLUMN_TYPE", false},
		{"ALTER_COLUMN_NULLABLE", false},
		{"ALTER_COLUMN_DEFAULT", false},
		{"ALTER_ADD_FOREIGN_KEY", false},
		{"FOREIGN_KEYS", true},
		{"DROP_COLUMN", true},
		{"UNSUPPORTED_FEATURE", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.feature, func(t *testing.T) {
			if got := driver.SupportsFeature(tt.feature); got != tt.expected {
				t.Errorf("SupportsFeature(%q) = %v, want %v", tt.feature, got, tt.expected)
			}
		})
	}
}

func TestDriverOpenUsesModerncDriver(t *testing.T) {
	driver := newTestDriver()

	db, err := driver.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestDriverRenderInsertUsesInsertOrIgnore(t *testing.T) {
	driver := newTestDriver()

	stmt := driver.RenderInsert("customers", []string{"id", "region"})
	want := "INSERT OR IGNORE INTO customers (id, region) VALUES (?, ?)"
	if stmt != want {
		t.Errorf("got %q, want %q", stmt, want)
	}
}

func TestDriverEstimatedRowCountFallsBackToCount(t *testing.T) {
	driver := newTestDriver()
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `CREATE TABLE customers (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO customers (id) VALUES (1), (2), (3)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	count, err := driver.EstimatedRowCount(ctx, db, "customers")
	if err != nil {
		t.Fatalf("EstimatedRowCount: %v", err)
	}
	if count != 3 {
		t.Errorf("got %d, want 3", count)
	}
}

func TestDriverDisableFKReleaseRestoresEnforcement(t *testing.T) {
	driver := newTestDriver()
	db := openTestDB(t)
	ctx := context.Background()

	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn: %v", err)
	}
	defer conn.Close()

	guard, err := driver.DisableFK(ctx, conn, []string{"customers"})
	if err != nil {
		t.Fatalf("DisableFK: %v", err)
	}
	if err := guard.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	var enforced int
	if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enforced); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if enforced != 1 {
		t.Errorf("expected foreign_keys enforcement restored after Release, got %d", enforced)
	}
}
