package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// RenderInsert produces a duplicate-tolerant INSERT using MySQL's
// non-standard INSERT IGNORE, which skips rows that would violate a
// unique or primary key constraint instead of erroring the batch.
func (d *Driver) RenderInsert(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)
}

type fkGuard struct{ conn *sql.Conn }

func (g *fkGuard) Release(ctx context.Context) error {
	_, err := g.conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 1")
	return err
}

// DisableFK toggles the session-wide foreign_key_checks variable off;
// tables is unused since the check applies to the whole connection.
func (d *Driver) DisableFK(ctx context.Context, conn *sql.Conn, tables []string) (database.FKGuard, error) {
	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return nil, err
	}
	return &fkGuard{conn: conn}, nil
}

// EstimatedRowCount reads InnoDB's cached table_rows estimate first, since
// COUNT(*) on a large InnoDB table forces a full index scan. table_rows
// can be stale after bulk loads without ANALYZE TABLE, so a zero or
// missing estimate falls back to COUNT(*).
func (d *Driver) EstimatedRowCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var estimate sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT table_rows
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?
	`, table).Scan(&estimate)
	if err == nil && estimate.Valid && estimate.Int64 > 0 {
		return estimate.Int64, nil
	}

	var count int64
	err = db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	return count, err
}
