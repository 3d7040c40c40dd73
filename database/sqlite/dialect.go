package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// RenderInsert produces a duplicate-tolerant INSERT using INSERT OR IGNORE.
func (d *Driver) RenderInsert(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
}

type fkGuard struct{ conn *sql.Conn }

func (g *fkGuard) Release(ctx context.Context) error {
	_, err := g.conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	return err
}

// DisableFK toggles the session-wide foreign_keys pragma off; tables is
// unused since sqlite enforces (or doesn't) at the connection level.
func (d *Driver) DisableFK(ctx context.Context, conn *sql.Conn, tables []string) (database.FKGuard, error) {
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return nil, err
	}
	return &fkGuard{conn: conn}, nil
}

// EstimatedRowCount always falls back to COUNT(*): sqlite keeps no
// out-of-band row count statistic usable without ANALYZE having run.
func (d *Driver) EstimatedRowCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	return count, err
}
