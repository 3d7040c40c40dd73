package sqlite

import (
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// Generator implements database.SQLGenerator for SQLite.
type Generator struct{}

// CreateTable generates SQLite SQL to create a table. Foreign keys are
// embedded inline since sqlite has no ALTER TABLE ADD CONSTRAINT.
func (g *Generator) CreateTable(table database.Table) (string, string) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", table.Name))

	for _, col := range table.Columns {
		sb.WriteString("  ")
		sb.WriteString(g.FormatColumnDefinition(col))
		sb.WriteString(",\n")
	}
	for i, fk := range table.ForeignKeys {
		sb.WriteString("  ")
		sb.WriteString(g.inlineForeignKey(fk))
		if i < len(table.ForeignKeys)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	// trim a trailing ",\n" left when there were no foreign keys
	out := sb.String()
	if len(table.ForeignKeys) == 0 {
		out = strings.TrimSuffix(out, ",\n") + "\n"
	}

	result := out + ")"
	description := fmt.Sprintf("Create table %s", table.Name)
	return result, description
}

func (g *Generator) inlineForeignKey(fk database.ForeignKey) string {
	sql := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		strings.Join(fk.Columns, ", "), fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "))
	if fk.OnDelete != nil {
		sql += fmt.Sprintf(" ON DELETE %s", *fk.OnDelete)
	}
	if fk.OnUpdate != nil {
		sql += fmt.Sprintf(" ON UPDATE %s", *fk.OnUpdate)
	}
	return sql
}

// DropTable generates SQLite SQL to drop a table. sqlite has no CASCADE.
func (g *Generator) DropTable(table database.Table) (string, string) {
	sql := fmt.Sprintf("DROP TABLE %s", table.Name)
	description := fmt.Sprintf("Drop table %s", table.Name)
	return sql, description
}

// AddIndex generates SQLite SQL to add an index.
func (g *Generator) AddIndex(tableName string, idx database.Index) (string, string) {
	uniqueStr := ""
	if idx.Unique {
		uniqueStr = "UNIQUE "
	}
	columns := strings.Join(idx.Columns, ", ")

	sql := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", uniqueStr, idx.Name, tableName, columns)
	description := fmt.Sprintf("Create index %s on table %s", idx.Name, tableName)
	return sql, description
}

// AddForeignKey is unsupported on sqlite after table creation: foreign keys
// must be declared inline in CreateTable. Returns a no-op comment so
// callers that naively emit it do not break the statement stream.
func (g *Generator) AddForeignKey(tableName string, fk database.ForeignKey) (string, string) {
	description := fmt.Sprintf("sqlite: foreign key %s on %s must be declared inline at table creation", fk.Name, tableName)
	return fmt.Sprintf("-- %s", description), description
}

// FormatColumnDefinition formats a column definition for CREATE TABLE.
// Primary key must precede NOT NULL in sqlite's grammar.
func (g *Generator) FormatColumnDefinition(col database.Column) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s", col.Name, col.Type))

	if col.IsPrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		sb.WriteString(fmt.Sprintf(" DEFAULT %s", *col.Default))
	}

	return sb.String()
}

// ParameterPlaceholder returns the SQLite parameter placeholder (?).
func (g *Generator) ParameterPlaceholder(position int) string {
	return "?"
}

// IndexName produces the deterministic "<table>_<col1>_<col2>..._{idx|unique_idx}" name.
func (g *Generator) IndexName(table string, columns []string, unique bool) string {
	suffix := "idx"
	if unique {
		suffix = "unique_idx"
	}
	return fmt.Sprintf("%s_%s_%s", table, strings.Join(columns, "_"), suffix)
}

// TextIndexPrefixLength: sqlite has no prefix-length restriction.
func (g *Generator) TextIndexPrefixLength() int { return 0 }

var sqliteToCanonical = map[string]string{
	"integer":   "INTEGER",
	"int":       "INTEGER",
	"smallint":  "SMALLINT",
	"tinyint":   "SMALLINT",
	"bigint":    "INT8",
	"boolean":   "BOOLEAN",
	"real":      "REAL",
	"double":    "DOUBLE",
	"float":     "REAL",
	"numeric":   "NUMERIC",
	"varchar":   "VARCHAR",
	"text":      "TEXT",
	"blob":      "BLOB",
	"date":      "DATE",
	"time":      "TIME",
	"datetime":  "TIMESTAMP",
	"timestamp": "TIMESTAMP",
}

var canonicalToSqlite = map[string]string{
	"SMALLINT":    "SMALLINT",
	"INTEGER":     "INTEGER",
	"INT8":        "BIGINT",
	"BOOLEAN":     "BOOLEAN",
	"REAL":        "REAL",
	"DOUBLE":      "DOUBLE",
	"NUMERIC":     "NUMERIC",
	"VARCHAR":     "VARCHAR",
	"TEXT":        "TEXT",
	"BLOB":        "BLOB",
	"DATE":        "DATE",
	"TIME":        "TIME",
	"TIMESTAMP":   "TIMESTAMP",
	"TIMESTAMPTZ": "TIMESTAMP",
	"JSON":        "TEXT",
	"JSONB":       "TEXT",
	"UUID":        "TEXT",
}

// NormalizeType maps a reflected sqlite type affinity to its canonical tag.
func (g *Generator) NormalizeType(sourceType string) (string, error) {
	base, arg := splitTypeArg(sourceType)
	canonical, ok := sqliteToCanonical[strings.ToLower(base)]
	if !ok {
		// sqlite is dynamically typed: an unrecognized declared type is
		// preserved as opaque TEXT rather than failing reflection.
		return "TEXT", nil
	}
	if arg != "" && canonical == "VARCHAR" {
		return canonical + "(" + arg + ")", nil
	}
	return canonical, nil
}

// RenderType renders a canonical type tag into sqlite column syntax.
func (g *Generator) RenderType(canonical string) (string, error) {
	base, arg := splitTypeArg(canonical)
	switch base {
	case "LONGTEXT":
		base = "TEXT"
	case "LONGBLOB":
		base = "BLOB"
	}
	rendered, ok := canonicalToSqlite[base]
	if !ok {
		return "", &database.DialectError{Dialect: database.DialectSQLite, Detail: "no sqlite rendering for canonical type: " + canonical}
	}
	if arg != "" && base == "VARCHAR" {
		return fmt.Sprintf("%s(%s)", rendered, arg), nil
	}
	return rendered, nil
}

func splitTypeArg(t string) (string, string) {
	if idx := strings.IndexByte(t, '('); idx >= 0 && strings.HasSuffix(t, ")") {
		return t[:idx], t[idx+1 : len(t)-1]
	}
	return t, ""
}
