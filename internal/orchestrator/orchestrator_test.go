package orchestrator

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/yourorg/dbcut/database/sqlite"
	"github.com/yourorg/dbcut/internal/cache"
	"github.com/yourorg/dbcut/internal/entity"
	"github.com/yourorg/dbcut/internal/logging"
	"github.com/yourorg/dbcut/internal/manifest"
	"github.com/yourorg/dbcut/internal/plan"
)

func seedSource(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, region TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id), status TEXT)`,
		`INSERT INTO customers VALUES (1, 'EU'), (2, 'US')`,
		`INSERT INTO orders VALUES (10, 1, 'shipped'), (11, 2, 'pending')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed exec %q: %v", s, err)
		}
	}
}

func newTestManifest(sourcePath, destPath string) *manifest.Manifest {
	return &manifest.Manifest{
		Databases: manifest.Databases{SourceURI: sourcePath, DestinationURI: destPath},
		Queries: []manifest.ManifestEntry{
			{From: "orders"},
		},
	}
}

func TestRunEndToEndLoadsDestination(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.db")
	destPath := filepath.Join(dir, "dest.db")
	seedSource(t, sourcePath)

	m := newTestManifest(sourcePath, destPath)
	store := cache.NewStore(filepath.Join(dir, "cache"))
	o := New(m, logging.New(logging.LevelDebug), store, Options{})

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o.State != StateDone {
		t.Fatalf("expected final state DONE, got %s", o.State)
	}

	destDB, err := sql.Open("sqlite", destPath)
	if err != nil {
		t.Fatalf("open dest: %v", err)
	}
	defer destDB.Close()

	var orderCount, customerCount int
	if err := destDB.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orderCount); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 2 {
		t.Errorf("expected 2 orders loaded, got %d", orderCount)
	}
	if err := destDB.QueryRow("SELECT COUNT(*) FROM customers").Scan(&customerCount); err != nil {
		t.Fatalf("count customers: %v", err)
	}
	if customerCount != 2 {
		t.Errorf("expected 2 customers loaded (each order's customer is eager-loaded through orders.customer), got %d", customerCount)
	}
}

func TestRunWritesCacheEntryAndReusesItOnSecondRun(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.db")
	destPath := filepath.Join(dir, "dest.db")
	seedSource(t, sourcePath)

	m := newTestManifest(sourcePath, destPath)
	store := cache.NewStore(filepath.Join(dir, "cache"))

	o1 := New(m, logging.New(logging.LevelQuiet), store, Options{})
	if err := o1.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Empty the source table: the second run can only load 2 orders by
	// reading them back from the cache entry the first run wrote.
	srcDB, err := sql.Open("sqlite", sourcePath)
	if err != nil {
		t.Fatalf("open source: %v", err)
	}
	if _, err := srcDB.Exec("DELETE FROM orders"); err != nil {
		t.Fatalf("empty source orders: %v", err)
	}
	srcDB.Close()

	destPath2 := filepath.Join(dir, "dest2.db")
	m2 := newTestManifest(sourcePath, destPath2)
	o2 := New(m2, logging.New(logging.LevelQuiet), store, Options{})
	if err := o2.Run(context.Background()); err != nil {
		t.Fatalf("second Run (should hit cache): %v", err)
	}

	destDB2, err := sql.Open("sqlite", destPath2)
	if err != nil {
		t.Fatalf("open dest2: %v", err)
	}
	defer destDB2.Close()
	var count int
	if err := destDB2.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 2 {
		t.Errorf("expected cache-hit run to still load 2 orders, got %d", count)
	}
}

func TestRunRespectsOnlyFilter(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.db")
	destPath := filepath.Join(dir, "dest.db")
	seedSource(t, sourcePath)

	m := &manifest.Manifest{
		Databases: manifest.Databases{SourceURI: sourcePath, DestinationURI: destPath},
		Queries: []manifest.ManifestEntry{
			{From: "customers"},
			{From: "orders"},
		},
	}
	store := cache.NewStore(filepath.Join(dir, "cache"))
	o := New(m, logging.New(logging.LevelQuiet), store, Options{Only: []string{"orders"}})

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	destDB, err := sql.Open("sqlite", destPath)
	if err != nil {
		t.Fatalf("open dest: %v", err)
	}
	defer destDB.Close()
	var orderCount int
	if err := destDB.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orderCount); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 2 {
		t.Errorf("expected orders query to run under --only orders, got %d rows", orderCount)
	}
}

type recordingSink struct {
	received []*plan.FetchPlan
}

func (s *recordingSink) Receive(ctx context.Context, p *plan.FetchPlan, rows []*entity.Entity) error {
	s.received = append(s.received, p)
	return nil
}

func TestRunRedirectsToSinkInsteadOfLoading(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.db")
	destPath := filepath.Join(dir, "dest.db")
	seedSource(t, sourcePath)

	m := newTestManifest(sourcePath, destPath)
	store := cache.NewStore(filepath.Join(dir, "cache"))
	sink := &recordingSink{}
	o := New(m, logging.New(logging.LevelQuiet), store, Options{Sink: sink})

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.received) != 1 {
		t.Fatalf("expected sink to receive exactly 1 plan, got %d", len(sink.received))
	}

	destDB, err := sql.Open("sqlite", destPath)
	if err != nil {
		t.Fatalf("open dest: %v", err)
	}
	defer destDB.Close()
	var orderCount int
	if err := destDB.QueryRow("SELECT COUNT(*) FROM orders").Scan(&orderCount); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("expected sink redirection to skip the destination load, got %d rows", orderCount)
	}
}
