// Package cmd is dbcut's cobra command tree: one subcommand per run mode,
// all sharing the same manifest-loading and orchestrator-construction
// path through newOrchestrator.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourorg/dbcut/internal/config"
	"github.com/yourorg/dbcut/internal/logging"
)

var (
	flagConfigPath  string
	flagVerbose     bool
	flagDebug       bool
	flagQuiet       bool
	flagForceYes    bool
	flagInteractive bool
)

var rootCmd = &cobra.Command{
	Use:   "dbcut",
	Short: "dbcut extracts a relationally-consistent subset of a database",
	Long: `dbcut extracts a bounded, relationally-consistent subset of a
relational source database into a destination database (or a JSON/SQL
dump), following a declarative manifest of root queries and relation
depth controls.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "manifest YAML path (overrides dbcut.toml)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging (includes query timing)")
	rootCmd.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "suppress all but error output")
	rootCmd.PersistentFlags().BoolVarP(&flagForceYes, "force-yes", "y", false, "skip interactive confirmation prompts")
	rootCmd.PersistentFlags().BoolVarP(&flagInteractive, "interactive", "i", false, "on a per-plan load failure, prompt to skip rather than abort")
}

// Execute runs the command tree. Exit codes: 0 success, 1 generic error,
// 2 configuration error, 130 user abort — matching the codes documented
// for dbcut's CLI surface.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newLogger() *logging.Logger {
	return logging.New(logging.LevelFromFlags(flagQuiet, flagVerbose, flagDebug))
}

// resolveManifestPath applies the --config flag over dbcut.toml's
// configured manifest path over the "dbcut.yml" default, the same
// explicit-flag-beats-config-file-beats-default priority used
// throughout the teacher's own config resolution.
func resolveManifestPath(cfg *config.ProjectConfig) string {
	return config.EffectiveManifestPath(flagConfigPath, cfg, "dbcut.yml")
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
