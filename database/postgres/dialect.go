package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// RenderInsert produces a duplicate-tolerant INSERT using
// ON CONFLICT DO NOTHING.
func (d *Driver) RenderInsert(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = d.ParameterPlaceholder(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
}

// fkGuard disables per-table triggers (including FK-enforcing ones) for the
// duration of a load and restores them on Release.
type fkGuard struct {
	conn   *sql.Conn
	tables []string
}

func (g *fkGuard) Release(ctx context.Context) error {
	var firstErr error
	for _, t := range g.tables {
		if _, err := g.conn.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ENABLE TRIGGER ALL", t)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DisableFK disables ALL triggers (including FK-enforcing ones) on every
// table named in tables, since postgres has no single session-wide switch.
func (d *Driver) DisableFK(ctx context.Context, conn *sql.Conn, tables []string) (database.FKGuard, error) {
	disabled := make([]string, 0, len(tables))
	for _, t := range tables {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DISABLE TRIGGER ALL", t)); err != nil {
			// best-effort rollback of triggers already disabled
			for _, d := range disabled {
				_, _ = conn.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ENABLE TRIGGER ALL", d))
			}
			return nil, fmt.Errorf("disable triggers on %s: %w", t, err)
		}
		disabled = append(disabled, t)
	}
	return &fkGuard{conn: conn, tables: disabled}, nil
}

// EstimatedRowCount always falls back to COUNT(*): postgres' planner
// statistics (reltuples) are too stale immediately after a bulk load for
// the inspect command's purposes.
func (d *Driver) EstimatedRowCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	return count, err
}
