package load

import (
	"context"
	"database/sql"
	"testing"

	"github.com/yourorg/dbcut/database"
	_ "github.com/yourorg/dbcut/database/sqlite"
	"github.com/yourorg/dbcut/internal/entity"
)

func destFixture(t *testing.T) (*sql.DB, *database.Schema, database.Driver) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, region TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id), status TEXT)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}

	schema := &database.Schema{
		Tables: []database.Table{
			{Name: "customers", Columns: []database.Column{{Name: "id"}, {Name: "region"}}, PrimaryKey: []string{"id"}},
			{
				Name:       "orders",
				Columns:    []database.Column{{Name: "id"}, {Name: "customer_id"}, {Name: "status"}},
				PrimaryKey: []string{"id"},
				ForeignKeys: []database.ForeignKey{
					{Name: "fk_orders_customer", Columns: []string{"customer_id"}, ReferencedTable: "customers", ReferencedColumns: []string{"id"}},
				},
			},
		},
	}

	d, err := database.NewDriver(database.DialectSQLite)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	return db, schema, d
}

func TestLoadInsertsParentAndChild(t *testing.T) {
	db, schema, driver := destFixture(t)
	p := New(db, driver, schema)

	order := entity.New("orders", []string{"id", "customer_id", "status"})
	order.Set("id", int64(1))
	order.Set("customer_id", int64(1))
	order.Set("status", "shipped")
	customer := entity.New("customers", []string{"id", "region"})
	customer.Set("id", int64(1))
	customer.Set("region", "EU")
	order.AddChild("customer", customer)

	if err := p.Load(context.Background(), []*entity.Entity{order}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 customer row, got %d", count)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 order row, got %d", count)
	}
}

func TestLoadIsDuplicateTolerant(t *testing.T) {
	db, schema, driver := destFixture(t)
	p := New(db, driver, schema)

	mk := func() *entity.Entity {
		e := entity.New("customers", []string{"id", "region"})
		e.Set("id", int64(1))
		e.Set("region", "EU")
		return e
	}

	if err := p.Load(context.Background(), []*entity.Entity{mk()}); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if err := p.Load(context.Background(), []*entity.Entity{mk()}); err != nil {
		t.Fatalf("second Load (duplicate pk): %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected INSERT OR IGNORE to dedupe on primary key, got %d rows", count)
	}
}

func TestLoadRespectsChunkSize(t *testing.T) {
	db, schema, driver := destFixture(t)
	p := New(db, driver, schema)
	p.ChunkSize = 2

	var roots []*entity.Entity
	for i := int64(1); i <= 5; i++ {
		e := entity.New("customers", []string{"id", "region"})
		e.Set("id", i)
		e.Set("region", "EU")
		roots = append(roots, e)
	}

	if err := p.Load(context.Background(), roots); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM customers").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("expected all 5 rows across multiple chunks, got %d", count)
	}
}
