package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yourorg/dbcut/internal/orchestrator"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every row from the destination without dropping tables",
	Long: `clear deletes all rows from every destination table, in reverse
dependency order, leaving the table structure in place. Unlike "flush"
it does not run the manifest's queries afterward.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if err := confirm("This will delete all rows from every destination table."); err != nil {
		return err
	}

	m, store, logger := loadRunContext()
	o := newOrchestrator(m, store, logger, orchestrator.Options{})
	return o.Clear(cmd.Context())
}
