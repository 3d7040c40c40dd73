package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yourorg/dbcut/internal/orchestrator"
)

var flushWithCache bool

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drop and recreate every destination table, then reload",
	Long: `flush drops every table in the destination (in reverse dependency
order), recreates them from the source's reflected schema, and then runs
the manifest's queries exactly as "load" does. --with-cache additionally
purges the on-disk cache first, forcing every query to re-extract.`,
	RunE: runFlush,
}

func init() {
	rootCmd.AddCommand(flushCmd)
	flushCmd.Flags().BoolVar(&flushWithCache, "with-cache", false, "also purge the cache before running")
}

func runFlush(cmd *cobra.Command, args []string) error {
	if err := confirm("This will drop and recreate every destination table."); err != nil {
		return err
	}

	m, store, logger := loadRunContext()

	if flushWithCache {
		if err := store.Purge(); err != nil {
			fatalf("purging cache: %v", err)
		}
	}

	opts := orchestrator.Options{Flush: true}
	if flagInteractive {
		opts.Interactive = true
		opts.ConfirmSkip = confirmSkip
	}
	o := newOrchestrator(m, store, logger, opts)
	return o.Run(cmd.Context())
}
