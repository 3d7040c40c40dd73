package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// Introspector implements database.Introspector for SQLite.
type Introspector struct {
	gen *Generator
}

func (i *Introspector) IntrospectSchema(ctx context.Context, db *sql.DB, schemaName string) (*database.Schema, error) {
	schema := &database.Schema{Dialect: database.DialectSQLite}

	tables, err := i.GetTables(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}

	for _, tableName := range tables {
		table := database.Table{Name: tableName}

		columns, pk, err := i.GetColumns(ctx, db, schemaName, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
		table.Columns = columns
		table.PrimaryKey = pk

		indexes, err := i.GetIndexes(ctx, db, schemaName, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get indexes for table %s: %w", tableName, err)
		}
		table.Indexes = indexes

		foreignKeys, err := i.GetForeignKeys(ctx, db, schemaName, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get foreign keys for table %s: %w", tableName, err)
		}
		table.ForeignKeys = foreignKeys

		schema.Tables = append(schema.Tables, table)
	}

	return schema, nil
}

// GetTables returns all table names in the SQLite database. schemaName is
// unused (sqlite has no schema namespace beyond the attached database).
func (i *Introspector) GetTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tableNames []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tableNames = append(tableNames, tableName)
	}
	return tableNames, rows.Err()
}

// GetColumns returns the columns of tableName plus its primary-key column
// names, via PRAGMA table_info.
func (i *Introspector) GetColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Column, []string, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", tableName)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []database.Column
	var pk []string
	for rows.Next() {
		var cid int
		var col database.Column
		var sourceType string
		var notNull int
		var defaultVal sql.NullString
		var pkOrdinal int

		if err := rows.Scan(&cid, &col.Name, &sourceType, &notNull, &defaultVal, &pkOrdinal); err != nil {
			return nil, nil, err
		}

		col.Type = sourceType
		canonical, err := i.gen.NormalizeType(sourceType)
		if err != nil {
			canonical = "TEXT"
		}
		col.Canonical = canonical

		col.Nullable = notNull == 0
		col.IsPrimaryKey = pkOrdinal > 0
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		if col.IsPrimaryKey {
			pk = append(pk, col.Name)
		}

		columns = append(columns, col)
	}
	return columns, pk, rows.Err()
}

// GetIndexes returns the secondary indexes of tableName, skipping the
// auto-created indexes backing PRIMARY KEY / UNIQUE constraints.
func (i *Introspector) GetIndexes(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Index, error) {
	query := fmt.Sprintf("PRAGMA index_list(%s)", tableName)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var indexes []database.Index
	for rows.Next() {
		var seq int
		var idx database.Index
		var origin string
		var partial int
		var unique int

		if err := rows.Scan(&seq, &idx.Name, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		idx.Unique = unique == 1

		indexInfoQuery := fmt.Sprintf("PRAGMA index_info(%s)", idx.Name)
		indexRows, err := db.QueryContext(ctx, indexInfoQuery)
		if err != nil {
			return nil, err
		}
		for indexRows.Next() {
			var seqno, cid int
			var name sql.NullString
			if err := indexRows.Scan(&seqno, &cid, &name); err != nil {
				_ = indexRows.Close()
				return nil, err
			}
			if name.Valid {
				idx.Columns = append(idx.Columns, name.String)
			}
		}
		_ = indexRows.Close()

		if origin == "c" && !strings.HasPrefix(idx.Name, "sqlite_autoindex") {
			indexes = append(indexes, idx)
		}
	}
	return indexes, rows.Err()
}

// GetForeignKeys returns the outbound foreign keys of tableName, via
// PRAGMA foreign_key_list.
func (i *Introspector) GetForeignKeys(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.ForeignKey, error) {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", tableName)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	fkMap := make(map[int]*database.ForeignKey)
	var fkIds []int

	for rows.Next() {
		var id, seq int
		var table, from, to string
		var onUpdate, onDelete, match string

		if err := rows.Scan(&id, &seq, &table, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		if _, exists := fkMap[id]; !exists {
			fk := &database.ForeignKey{
				Name:            fmt.Sprintf("fk_%s_%d", tableName, id),
				ReferencedTable: table,
			}
			if onUpdate != "NO ACTION" {
				fk.OnUpdate = &onUpdate
			}
			if onDelete != "NO ACTION" {
				fk.OnDelete = &onDelete
			}
			fkMap[id] = fk
			fkIds = append(fkIds, id)
		}

		fkMap[id].Columns = append(fkMap[id].Columns, from)
		fkMap[id].ReferencedColumns = append(fkMap[id].ReferencedColumns, to)
	}

	foreignKeys := make([]database.ForeignKey, 0, len(fkIds))
	for _, id := range fkIds {
		foreignKeys = append(foreignKeys, *fkMap[id])
	}
	return foreignKeys, rows.Err()
}
