package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// Introspector implements database.Introspector for MySQL, reading the
// same information_schema tables skeema's tengo introspector relies on
// (schemata/columns/statistics/key_column_usage/referential_constraints),
// but through plain sequential queries rather than a concurrent task graph.
type Introspector struct {
	gen *Generator
}

func (i *Introspector) IntrospectSchema(ctx context.Context, db *sql.DB, schemaName string) (*database.Schema, error) {
	schema := &database.Schema{Dialect: database.DialectMySQL}

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

// GetTables returns all base table names in schemaName (the mysql database
// name), ordered by name.
func (i *Introspector) GetTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, schemaName)
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
// names.
func (i *Introspector) GetColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Column, []string, error) {
	query := `
		SELECT
			column_name,
			column_type,
			is_nullable,
			column_default,
			column_key
		FROM information_schema.columns
		WHERE table_schema = ?
		  AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []database.Column
	var pk []string
	for rows.Next() {
		var col database.Column
		var columnType string
		var nullable string
		var defaultVal sql.NullString
		var columnKey string

		if err := rows.Scan(&col.Name, &columnType, &nullable, &defaultVal, &columnKey); err != nil {
			return nil, nil, err
		}

		col.Type = strings.TrimSpace(columnType)
		canonical, err := i.gen.NormalizeType(columnType)
		if err != nil {
			canonical = "TEXT"
		}
		col.Canonical = canonical
		col.Nullable = nullable == "YES"
		col.IsPrimaryKey = columnKey == "PRI"

		if defaultVal.Valid {
			v := defaultVal.String
			col.Default = &v
		}
		if col.IsPrimaryKey {
			pk = append(pk, col.Name)
		}

		columns = append(columns, col)
	}
	return columns, pk, rows.Err()
}

// GetIndexes returns the secondary indexes of tableName, excluding the
// index backing the PRIMARY KEY.
func (i *Introspector) GetIndexes(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Index, error) {
	query := `
		SELECT index_name, non_unique, column_name
		FROM information_schema.statistics
		WHERE table_schema = ?
		  AND table_name = ?
		  AND index_name != 'PRIMARY'
		ORDER BY index_name, seq_in_index
	`

	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order := []string{}
	byName := map[string]*database.Index{}
	for rows.Next() {
		var name string
		var nonUnique int
		var column string
		if err := rows.Scan(&name, &nonUnique, &column); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &database.Index{Name: name, Unique: nonUnique == 0}
			byName[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]database.Index, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *byName[name])
	}
	return indexes, nil
}

// GetForeignKeys returns the outbound foreign keys of tableName.
func (i *Introspector) GetForeignKeys(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.ForeignKey, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.table_schema
			AND rc.constraint_name = kcu.constraint_name
		WHERE kcu.table_schema = ?
		  AND kcu.table_name = ?
		  AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	fkMap := make(map[string]*database.ForeignKey)
	var fkNames []string

	for rows.Next() {
		var constraintName, columnName, refTable, refColumn, updateRule, deleteRule string
		if err := rows.Scan(&constraintName, &columnName, &refTable, &refColumn, &updateRule, &deleteRule); err != nil {
			return nil, err
		}

		if _, exists := fkMap[constraintName]; !exists {
			fk := &database.ForeignKey{
				Name:            constraintName,
				ReferencedTable: refTable,
			}
			if updateRule != "NO ACTION" {
				fk.OnUpdate = &updateRule
			}
			if deleteRule != "NO ACTION" {
				fk.OnDelete = &deleteRule
			}
			fkMap[constraintName] = fk
			fkNames = append(fkNames, constraintName)
		}

		fkMap[constraintName].Columns = append(fkMap[constraintName].Columns, columnName)
		fkMap[constraintName].ReferencedColumns = append(fkMap[constraintName].ReferencedColumns, refColumn)
	}

	foreignKeys := make([]database.ForeignKey, 0, len(fkNames))
	for _, name := range fkNames {
		foreignKeys = append(foreignKeys, *fkMap[name])
	}
	return foreignKeys, rows.Err()
}
