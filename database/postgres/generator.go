package postgres

import (
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// Generator implements database.SQLGenerator for PostgreSQL.
type Generator struct{}

// CreateTable generates PostgreSQL SQL to create a table.
func (g *Generator) CreateTable(table database.Table) (string, string) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", table.Name))

	for i, col := range table.Columns {
		sb.WriteString("  ")
		sb.WriteString(g.FormatColumnDefinition(col))
		if i < len(table.Columns)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(")")

	description := fmt.Sprintf("Create table %s", table.Name)
	return sb.String(), description
}

// DropTable generates PostgreSQL SQL to drop a table.
func (g *Generator) DropTable(table database.Table) (string, string) {
	sql := fmt.Sprintf("DROP TABLE %s CASCADE", table.Name)
	description := fmt.Sprintf("Drop table %s", table.Name)
	return sql, description
}

// AddIndex generates PostgreSQL SQL to add an index.
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

// AddForeignKey generates PostgreSQL SQL to add a foreign key constraint.
func (g *Generator) AddForeignKey(tableName string, fk database.ForeignKey) (string, string) {
	columns := strings.Join(fk.Columns, ", ")
	refColumns := strings.Join(fk.ReferencedColumns, ", ")

	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		tableName, fk.Name, columns, fk.ReferencedTable, refColumns)

	if fk.OnDelete != nil {
		sql += fmt.Sprintf(" ON DELETE %s", *fk.OnDelete)
	}
	if fk.OnUpdate != nil {
		sql += fmt.Sprintf(" ON UPDATE %s", *fk.OnUpdate)
	}

	description := fmt.Sprintf("Add foreign key %s to table %s", fk.Name, tableName)
	return sql, description
}

// FormatColumnDefinition formats a column definition for CREATE TABLE.
func (g *Generator) FormatColumnDefinition(col database.Column) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s %s", col.Name, col.Type))

	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		sb.WriteString(fmt.Sprintf(" DEFAULT %s", *col.Default))
	}
	if col.IsPrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}

	return sb.String()
}

// ParameterPlaceholder returns the PostgreSQL parameter placeholder ($1, $2, ...).
func (g *Generator) ParameterPlaceholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

// IndexName produces the deterministic "<table>_<col1>_<col2>..._{idx|unique_idx}" name.
func (g *Generator) IndexName(table string, columns []string, unique bool) string {
	suffix := "idx"
	if unique {
		suffix = "unique_idx"
	}
	return fmt.Sprintf("%s_%s_%s", table, strings.Join(columns, "_"), suffix)
}

// TextIndexPrefixLength: postgres has no prefix-length restriction on text indexes.
func (g *Generator) TextIndexPrefixLength() int { return 0 }

// postgresToCanonical maps a postgres data_type to the dialect-neutral tag.
var postgresToCanonical = map[string]string{
	"smallint":                    "SMALLINT",
	"integer":                     "INTEGER",
	"bigint":                      "INT8",
	"serial":                      "INTEGER",
	"bigserial":                   "INT8",
	"boolean":                     "BOOLEAN",
	"real":                        "REAL",
	"double precision":            "DOUBLE",
	"numeric":                     "NUMERIC",
	"character varying":           "VARCHAR",
	"character":                   "VARCHAR",
	"text":                        "TEXT",
	"bytea":                       "BLOB",
	"date":                        "DATE",
	"time without time zone":      "TIME",
	"timestamp without time zone": "TIMESTAMP",
	"timestamp with time zone":    "TIMESTAMPTZ",
	"json":                        "JSON",
	"jsonb":                       "JSONB",
	"uuid":                        "UUID",
}

// canonicalToPostgres is the inverse rendering table.
var canonicalToPostgres = map[string]string{
	"SMALLINT":    "smallint",
	"INTEGER":     "integer",
	"INT8":        "bigint",
	"BOOLEAN":     "boolean",
	"REAL":        "real",
	"DOUBLE":      "double precision",
	"NUMERIC":     "numeric",
	"VARCHAR":     "character varying",
	"TEXT":        "text",
	"BLOB":        "bytea",
	"DATE":        "date",
	"TIME":        "time without time zone",
	"TIMESTAMP":   "timestamp without time zone",
	"TIMESTAMPTZ": "timestamp with time zone",
	"JSON":        "json",
	"JSONB":       "jsonb",
	"UUID":        "uuid",
}

// NormalizeType maps a reflected postgres type to its canonical tag.
func (g *Generator) NormalizeType(sourceType string) (string, error) {
	base, arg := splitTypeArg(sourceType)
	canonical, ok := postgresToCanonical[strings.ToLower(base)]
	if !ok {
		return "", &database.DialectError{Dialect: database.DialectPostgres, Detail: "unrecognized source type: " + sourceType}
	}
	if arg != "" && canonical == "VARCHAR" {
		return canonical + "(" + arg + ")", nil
	}
	return canonical, nil
}

// RenderType renders a canonical type tag into postgres column syntax.
func (g *Generator) RenderType(canonical string) (string, error) {
	base, arg := splitTypeArg(canonical)
	switch base {
	case "LONGTEXT":
		base = "TEXT"
	case "LONGBLOB":
		base = "BLOB"
	}
	rendered, ok := canonicalToPostgres[base]
	if !ok {
		return "", &database.DialectError{Dialect: database.DialectPostgres, Detail: "no postgres rendering for canonical type: " + canonical}
	}
	if arg != "" && base == "VARCHAR" {
		return fmt.Sprintf("%s(%s)", rendered, arg), nil
	}
	return rendered, nil
}

// splitTypeArg splits "VARCHAR(255)" into ("VARCHAR", "255").
func splitTypeArg(t string) (string, string) {
	if idx := strings.IndexByte(t, '('); idx >= 0 && strings.HasSuffix(t, ")") {
		return t[:idx], t[idx+1 : len(t)-1]
	}
	return t, ""
}
