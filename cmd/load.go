package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/yourorg/dbcut/internal/orchestrator"
)

var (
	loadNoCache      bool
	loadForceRefresh bool
	loadOnly         string
	loadLastOnly     bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Run the manifest's queries and load the result into the destination",
	Long: `load reflects the source schema, creates the destination schema if
needed, and runs every query in the manifest end to end: compile, fetch
(or reuse a cached result), and insert into the destination with foreign
key enforcement disabled.`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().BoolVar(&loadNoCache, "no-cache", false, "never read or write the cache for this run")
	loadCmd.Flags().BoolVar(&loadForceRefresh, "force-refresh", false, "re-extract every query even if a cache entry exists (still written back, unless --no-cache)")
	loadCmd.Flags().StringVar(&loadOnly, "only", "", "comma-separated root table names; run only those queries")
	loadCmd.Flags().BoolVarP(&loadLastOnly, "last-only", "l", false, "run only the manifest's final query")
}

func runLoad(cmd *cobra.Command, args []string) error {
	m, store, logger := loadRunContext()

	opts := orchestrator.Options{
		NoCache:      loadNoCache,
		ForceRefresh: loadForceRefresh,
		Only:         splitCSV(loadOnly),
		LastOnly:     loadLastOnly,
	}
	if flagInteractive {
		opts.Interactive = true
		opts.ConfirmSkip = confirmSkip
	}
	o := newOrchestrator(m, store, logger, opts)
	return o.Run(cmd.Context())
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
