package mysql

import (
	"fmt"
	"strings"

	"github.com/yourorg/dbcut/database"
)

// Generator implements database.SQLGenerator for MySQL.
type Generator struct{}

func (g *Generator) CreateTable(table database.Table) (string, string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", table.Name))

	defs := make([]string, 0, len(table.Columns)+1)
	for _, col := range table.Columns {
		defs = append(defs, "  "+g.FormatColumnDefinition(col))
	}
	if len(table.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(table.PrimaryKey, ", ")))
	}
	sb.WriteString(strings.Join(defs, ",\n"))
	sb.WriteString("\n)")

	return sb.String(), fmt.Sprintf("Create table %s", table.Name)
}

func (g *Generator) DropTable(table database.Table) (string, string) {
	sql := fmt.Sprintf("DROP TABLE %s", table.Name)
	return sql, fmt.Sprintf("Drop table %s", table.Name)
}

func (g *Generator) AddForeignKey(tableName string, fk database.ForeignKey) (string, string) {
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		tableName, fk.Name, strings.Join(fk.Columns, ", "), fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "))
	if fk.OnDelete != nil {
		sql += fmt.Sprintf(" ON DELETE %s", *fk.OnDelete)
	}
	if fk.OnUpdate != nil {
		sql += fmt.Sprintf(" ON UPDATE %s", *fk.OnUpdate)
	}
	return sql, fmt.Sprintf("Add foreign key %s to table %s", fk.Name, tableName)
}

func (g *Generator) AddIndex(tableName string, idx database.Index) (string, string) {
	uniqueStr := ""
	if idx.Unique {
		uniqueStr = "UNIQUE "
	}
	sql := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", uniqueStr, idx.Name, tableName, strings.Join(idx.Columns, ", "))
	return sql, fmt.Sprintf("Create index %s on table %s", idx.Name, tableName)
}

func (g *Generator) FormatColumnDefinition(col database.Column) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s", col.Name, col.Type))
	if !col.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		sb.WriteString(fmt.Sprintf(" DEFAULT %s", *col.Default))
	}
	return sb.String()
}

// ParameterPlaceholder returns MySQL's single placeholder style; the
// driver binds by position so the argument is unused.
func (g *Generator) ParameterPlaceholder(position int) string {
	return "?"
}

func (g *Generator) IndexName(table string, columns []string, unique bool) string {
	suffix := "idx"
	if unique {
		suffix = "unique_idx"
	}
	return fmt.Sprintf("%s_%s_%s", table, strings.Join(columns, "_"), suffix)
}

// TextIndexPrefixLength: InnoDB requires an explicit prefix length for
// indexes over TEXT/BLOB columns; 128 fits within the 767-byte limit of
// utf8mb4 keys on the default COMPACT row format.
func (g *Generator) TextIndexPrefixLength() int { return 128 }

var mysqlToCanonical = map[string]string{
	"tinyint":    "SMALLINT",
	"smallint":   "SMALLINT",
	"mediumint":  "INTEGER",
	"int":        "INTEGER",
	"integer":    "INTEGER",
	"bigint":     "INT8",
	"bit":        "BOOLEAN",
	"float":      "REAL",
	"double":     "DOUBLE",
	"decimal":    "NUMERIC",
	"numeric":    "NUMERIC",
	"varchar":    "VARCHAR",
	"char":       "VARCHAR",
	"tinytext":   "TEXT",
	"text":       "TEXT",
	"mediumtext": "TEXT",
	"longtext":   "TEXT",
	"tinyblob":   "BLOB",
	"blob":       "BLOB",
	"mediumblob": "BLOB",
	"longblob":   "BLOB",
	"binary":     "BLOB",
	"varbinary":  "BLOB",
	"date":       "DATE",
	"time":       "TIME",
	"datetime":   "TIMESTAMP",
	"timestamp":  "TIMESTAMPTZ",
	"json":       "JSON",
}

var canonicalToMysql = map[string]string{
	"SMALLINT":    "SMALLINT",
	"INTEGER":     "INT",
	"INT8":        "BIGINT",
	"BOOLEAN":     "TINYINT(1)",
	"REAL":        "FLOAT",
	"DOUBLE":      "DOUBLE",
	"NUMERIC":     "DECIMAL",
	"VARCHAR":     "VARCHAR",
	"TEXT":        "TEXT",
	"BLOB":        "BLOB",
	"DATE":        "DATE",
	"TIME":        "TIME",
	"TIMESTAMP":   "DATETIME",
	"TIMESTAMPTZ": "TIMESTAMP",
	"JSON":        "JSON",
	"JSONB":       "JSON",
	"UUID":        "CHAR(36)",
}

// NormalizeType maps a reflected MySQL column_type (e.g. "int(11)",
// "varchar(255)", "tinyint(1) unsigned") to its canonical tag. column_type
// carries a "(1)" display width on tinyint that MySQL itself uses to flag
// booleans, so tinyint(1) is treated as an ordinary SMALLINT here: dbcut
// has no canonical BOOLEAN-vs-tinyint ambiguity to resolve, since the only
// dialect that needs true BOOLEAN (postgres) never reads this mapping.
func (g *Generator) NormalizeType(sourceType string) (string, error) {
	lowered := strings.ToLower(sourceType)
	lowered = strings.TrimSuffix(strings.TrimSpace(lowered), " unsigned")
	base, arg := splitTypeArg(lowered)

	canonical, ok := mysqlToCanonical[base]
	if !ok {
		return "", &database.DialectError{Dialect: database.DialectMySQL, Detail: "unrecognized mysql type: " + sourceType}
	}
	if arg != "" && canonical == "VARCHAR" {
		return canonical + "(" + arg + ")", nil
	}
	return canonical, nil
}

// RenderType renders a canonical type tag into MySQL column syntax.
func (g *Generator) RenderType(canonical string) (string, error) {
	base, arg := splitTypeArg(canonical)
	rendered, ok := canonicalToMysql[base]
	if !ok {
		return "", &database.DialectError{Dialect: database.DialectMySQL, Detail: "no mysql rendering for canonical type: " + canonical}
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
