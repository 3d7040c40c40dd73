// Package load implements the load pipeline: it streams extracted
// entities into the destination database with foreign-key enforcement
// suspended for the run, inserting through each dialect's
// duplicate-tolerant form in bounded chunks.
package load

import (
	"context"
	"database/sql"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/entity"
	"github.com/yourorg/dbcut/internal/reflector"
)

// DefaultChunkSize is the number of rows inserted per transaction when
// Pipeline.ChunkSize is left unset.
const DefaultChunkSize = 100_000

// Pipeline loads entity batches into one destination connection.
type Pipeline struct {
	DB        *sql.DB
	Driver    database.Driver
	Schema    *database.Schema
	ChunkSize int
}

// New returns a Pipeline writing to db via driver, against the
// destination schema.
func New(db *sql.DB, driver database.Driver, schema *database.Schema) *Pipeline {
	return &Pipeline{DB: db, Driver: driver, Schema: schema, ChunkSize: DefaultChunkSize}
}

// Load flattens roots into per-table batches and inserts them, walking
// tables in foreign-key dependency order for readability — correctness
// doesn't require it, since FK enforcement is disabled for the whole
// run.
func (p *Pipeline) Load(ctx context.Context, roots []*entity.Entity) error {
	batches := entity.Flatten(roots)

	order, err := reflector.TopologicalOrder(p.Schema)
	if err != nil {
		return err
	}

	conn, err := p.DB.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tableNames := make([]string, len(p.Schema.Tables))
	for i, t := range p.Schema.Tables {
		tableNames[i] = t.Name
	}
	guard, err := p.Driver.DisableFK(ctx, conn, tableNames)
	if err != nil {
		return err
	}
	defer guard.Release(ctx)

	for _, table := range order {
		rows := batches[table]
		if len(rows) == 0 {
			continue
		}
		if err := p.loadTable(ctx, conn, table, rows); err != nil {
			return err
		}
	}
	return nil
}

// loadTable inserts rows for one table in chunks of ChunkSize (or
// DefaultChunkSize when unset), each chunk committed as its own
// transaction: a mid-stream failure rolls back only the in-flight
// chunk, not rows already committed.
func (p *Pipeline) loadTable(ctx context.Context, conn *sql.Conn, table string, rows []*entity.Entity) error {
	insertSQL := p.Driver.RenderInsert(table, rows[0].Columns)

	chunkSize := p.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := p.loadChunk(ctx, conn, table, insertSQL, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) loadChunk(ctx context.Context, conn *sql.Conn, table, insertSQL string, chunk []*entity.Entity) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &database.LoadError{Table: table, Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return &database.LoadError{Table: table, Err: err}
	}
	defer stmt.Close()

	for _, e := range chunk {
		if _, err := stmt.ExecContext(ctx, e.OrderedValues()...); err != nil {
			tx.Rollback()
			return &database.LoadError{Table: table, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &database.LoadError{Table: table, Err: err}
	}
	return nil
}
