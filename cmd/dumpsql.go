package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/entity"
	"github.com/yourorg/dbcut/internal/orchestrator"
	"github.com/yourorg/dbcut/internal/plan"
	"github.com/yourorg/dbcut/internal/sqlvalidation"
)

var dumpsqlCmd = &cobra.Command{
	Use:   "dumpsql",
	Short: "Run extraction and emit INSERT statements to stdout instead of loading",
	Long: `dumpsql runs the manifest's queries against the source exactly as
"load" would, but instead of opening a destination connection it writes
one duplicate-tolerant INSERT statement per row to stdout, grouped by
table in the order rows were extracted.`,
	RunE: runDumpsql,
}

func init() {
	rootCmd.AddCommand(dumpsqlCmd)
}

func runDumpsql(cmd *cobra.Command, args []string) error {
	m, store, logger := loadRunContext()

	dialect := orchestrator.DetectDialect(m.Databases.DestinationURI)
	driver, err := database.NewDriver(dialect)
	if err != nil {
		fatalf("resolving destination dialect: %v", err)
	}

	sink := &sqlSink{driver: driver, validate: dialect == database.DialectPostgres}
	o := newOrchestrator(m, store, logger, orchestrator.Options{Sink: sink})
	return o.Run(cmd.Context())
}

type sqlSink struct {
	driver   database.Driver
	validate bool
}

func (s *sqlSink) Receive(ctx context.Context, p *plan.FetchPlan, rows []*entity.Entity) error {
	tables, batches := flattenInExtractionOrder(rows)
	for _, table := range tables {
		for _, row := range batches[table] {
			stmt := renderInsertLiteral(s.driver, table, row)
			if s.validate {
				if err := sqlvalidation.ValidateStatement(strings.TrimSuffix(stmt, ";")); err != nil {
					return err
				}
			}
			fmt.Println(stmt)
		}
	}
	return nil
}

// flattenInExtractionOrder groups rows by table the way entity.Flatten
// does, but returns the table names in first-seen order from a
// depth-first walk of roots (parent before child) rather than
// Flatten's map iteration order, so a dump's INSERTs read top-down the
// way the rows were actually fetched.
func flattenInExtractionOrder(roots []*entity.Entity) ([]string, map[string][]*entity.Entity) {
	var order []string
	seen := map[string]bool{}
	batches := map[string][]*entity.Entity{}

	var walk func(e *entity.Entity)
	walk = func(e *entity.Entity) {
		if !seen[e.Table] {
			seen[e.Table] = true
			order = append(order, e.Table)
		}
		batches[e.Table] = append(batches[e.Table], e)
		for _, children := range e.Children {
			for _, child := range children {
				walk(child)
			}
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return order, batches
}

// renderInsertLiteral takes the dialect's own parameterized INSERT
// template and substitutes row's values as SQL literals in place of the
// placeholder tuple, keeping the template's dialect-specific
// duplicate-tolerant prefix/suffix (ON CONFLICT DO NOTHING, INSERT
// IGNORE, INSERT OR IGNORE) intact.
func renderInsertLiteral(driver database.Driver, table string, row *entity.Entity) string {
	template := driver.RenderInsert(table, row.Columns)

	valuesKeyword := "VALUES ("
	start := strings.Index(template, valuesKeyword)
	prefix := template[:start+len(valuesKeyword)]
	rest := template[start+len(valuesKeyword):]
	closeIdx := strings.Index(rest, ")")
	suffix := rest[closeIdx+1:]

	literals := make([]string, len(row.Columns))
	for i, v := range row.OrderedValues() {
		literals[i] = sqlLiteral(v)
	}
	return prefix + strings.Join(literals, ", ") + ")" + suffix + ";"
}

func sqlLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case []byte:
		return quoteSQLString(string(val))
	case string:
		return quoteSQLString(val)
	case time.Time:
		return quoteSQLString(val.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("%v", val)
	}
}

func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
