package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/orchestrator"
	"github.com/yourorg/dbcut/internal/reflector"
)

var inspectEstimate bool

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Tabulate per-table row counts for the source and destination",
	Long: `inspect reflects the source schema and prints, per table, the row
count in the source, the row count in the destination (0 if the
destination table doesn't exist yet), and the difference. --estimate
swaps exact COUNT(*) for each dialect's EstimatedRowCount: on mysql that
is the cached table_rows statistic, which is far faster on large tables
but may be stale; postgres and sqlite still run an exact COUNT(*).`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectEstimate, "estimate", false, "use a cheap row-count estimate instead of COUNT(*)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	m, _, logger := loadRunContext()
	ctx := cmd.Context()

	sourceDriver, sourceDB, err := openDriverForInspect(m.Databases.SourceURI)
	if err != nil {
		fatalf("opening source: %v", err)
	}
	defer sourceDB.Close()

	schema, err := reflector.Reflect(ctx, sourceDB, sourceDriver, "")
	if err != nil {
		fatalf("reflecting source schema: %v", err)
	}

	destDriver, destDB, err := openDriverForInspect(m.Databases.DestinationURI)
	destReachable := err == nil
	if destReachable {
		defer destDB.Close()
	} else {
		logger.Warnf("destination unreachable, reporting source counts only: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tSOURCE\tDESTINATION\tDIFF")
	for _, table := range schema.Tables {
		srcCount, err := rowCount(ctx, sourceDriver, sourceDB, table.Name, inspectEstimate)
		if err != nil {
			fatalf("counting source.%s: %v", table.Name, err)
		}

		var destCount int64
		if destReachable {
			destCount, err = rowCount(ctx, destDriver, destDB, table.Name, inspectEstimate)
			if err != nil {
				destCount = 0
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			table.Name,
			humanize.Comma(srcCount),
			humanize.Comma(destCount),
			humanize.Comma(srcCount-destCount))
	}
	return w.Flush()
}

func rowCount(ctx context.Context, driver database.Driver, db *sql.DB, table string, estimate bool) (int64, error) {
	if estimate {
		return driver.EstimatedRowCount(ctx, db, table)
	}
	var count int64
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	return count, err
}

func openDriverForInspect(uri string) (database.Driver, *sql.DB, error) {
	return orchestrator.OpenDriver(uri)
}
