package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// Introspector implements database.Introspector for PostgreSQL.
type Introspector struct {
	gen *Generator
}

func (i *Introspector) IntrospectSchema(ctx context.Context, db *sql.DB, schemaName string) (*database.Schema, error) {
	if schemaName == "" {
		schemaName = "public"
	}
	schema := &database.Schema{Dialect: database.DialectPostgres}

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

// GetTables returns all base table names in schemaName, ordered by name.
func (i *Introspector) GetTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
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
// names. SERIAL/BIGSERIAL pseudo-types are detected from their nextval()
// defaults since postgres reports them back as plain integer/bigint.
func (i *Introspector) GetColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Column, []string, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.character_maximum_length,
			c.is_nullable,
			c.column_default,
			COALESCE(
				(SELECT true
				 FROM information_schema.table_constraints tc
				 JOIN information_schema.key_column_usage kcu
				   ON tc.constraint_name = kcu.constraint_name
				   AND tc.table_schema = kcu.table_schema
				 WHERE tc.table_name = c.table_name
				   AND tc.table_schema = c.table_schema
				   AND tc.constraint_type = 'PRIMARY KEY'
				   AND kcu.column_name = c.column_name),
				false
			) as is_primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		  AND c.table_name = $2
		ORDER BY c.ordinal_position
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
		var dataType string
		var charLen sql.NullInt64
		var nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &dataType, &charLen, &nullable, &defaultVal, &col.IsPrimaryKey); err != nil {
			return nil, nil, err
		}

		rendered := strings.TrimSpace(dataType)
		isSerial := false
		if defaultVal.Valid && isSerialDefault(defaultVal.String) {
			if strings.EqualFold(dataType, "bigint") {
				rendered, isSerial = "bigserial", true
			} else if strings.EqualFold(dataType, "integer") {
				rendered, isSerial = "serial", true
			}
		}
		if charLen.Valid && !isSerial {
			rendered = fmt.Sprintf("%s(%d)", rendered, charLen.Int64)
		}
		col.Type = rendered

		canonical, err := i.gen.NormalizeType(dataType)
		if err != nil {
			canonical = "TEXT"
		}
		if charLen.Valid {
			canonical = fmt.Sprintf("%s(%d)", canonical, charLen.Int64)
		}
		col.Canonical = canonical

		col.Nullable = nullable == "YES"

		if isSerial {
			col.Default = nil
		} else if defaultVal.Valid {
			normalized := normalizeDefault(defaultVal.String)
			col.Default = &normalized
		}

		if col.IsPrimaryKey {
			pk = append(pk, col.Name)
		}

		columns = append(columns, col)
	}
	return columns, pk, rows.Err()
}

// GetIndexes returns the secondary indexes of tableName, excluding indexes
// backing PRIMARY KEY / UNIQUE constraints.
func (i *Introspector) GetIndexes(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]database.Index, error) {
	query := `
		SELECT
			ic.relname AS index_name,
			ix.indisunique,
			a.attname
		FROM pg_index ix
		JOIN pg_class ic ON ic.oid = ix.indexrelid
		JOIN pg_class tc ON tc.oid = ix.indrelid
		JOIN pg_namespace n ON n.oid = tc.relnamespace
		JOIN pg_attribute a ON a.attrelid = tc.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1
		  AND tc.relname = $2
		  AND ix.indisprimary = false
		  AND NOT EXISTS (
			SELECT 1 FROM pg_constraint con
			WHERE con.conindid = ix.indexrelid AND con.contype IN ('p', 'u')
		  )
		ORDER BY ic.relname, a.attnum
	`

	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query indexes for table %q: %w", tableName, err)
	}
	defer func() { _ = rows.Close() }()

	order := []string{}
	byName := map[string]*database.Index{}
	for rows.Next() {
		var name, column string
		var unique bool
		if err := rows.Scan(&name, &unique, &column); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &database.Index{Name: name, Unique: unique}
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
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints AS rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	fkMap := make(map[string]*database.ForeignKey)
	var fkNames []string

	for rows.Next() {
		var constraintName, columnName, foreignTableName, foreignColumnName string
		var updateRule, deleteRule string

		if err := rows.Scan(&constraintName, &columnName, &foreignTableName, &foreignColumnName, &updateRule, &deleteRule); err != nil {
			return nil, err
		}

		if _, exists := fkMap[constraintName]; !exists {
			fk := &database.ForeignKey{
				Name:            constraintName,
				ReferencedTable: foreignTableName,
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
		fkMap[constraintName].ReferencedColumns = append(fkMap[constraintName].ReferencedColumns, foreignColumnName)
	}

	foreignKeys := make([]database.ForeignKey, 0, len(fkNames))
	for _, name := range fkNames {
		foreignKeys = append(foreignKeys, *fkMap[name])
	}
	return foreignKeys, rows.Err()
}

// isSerialDefault reports whether a default value comes from a sequence,
// indicating a SERIAL/BIGSERIAL pseudo-type.
func isSerialDefault(defaultVal string) bool {
	return strings.HasPrefix(defaultVal, "nextval(") && strings.Contains(defaultVal, "_seq")
}

// normalizeDefault strips a redundant trailing type cast such as
// '{}'::jsonb -> '{}', leaving casts inside balanced string literals alone.
func normalizeDefault(defaultVal string) string {
	if idx := strings.LastIndex(defaultVal, "::"); idx > 0 {
		beforeCast := defaultVal[:idx]
		if strings.Count(beforeCast, "'")%2 == 0 {
			return beforeCast
		}
	}
	return defaultVal
}
