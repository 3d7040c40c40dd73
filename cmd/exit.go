package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/orchestrator"
)

// errAborted is returned by a command when the user declines an
// interactive confirmation prompt.
var errAborted = errors.New("aborted")

// exitCodeFor maps a terminal error to the process exit code documented
// for the CLI: 0 is handled by cobra itself (no error), 2 is reserved
// for configuration problems discovered before any database work began,
// 130 for a user-declined confirmation, and 1 for everything else.
func exitCodeFor(err error) int {
	if errors.Is(err, errAborted) {
		return 130
	}
	var cfgErr *database.ConfigError
	if errors.As(err, &cfgErr) {
		return 2
	}
	var planErr *orchestrator.PlanError
	if errors.As(err, &planErr) {
		var innerCfg *database.ConfigError
		if errors.As(planErr.Err, &innerCfg) {
			return 2
		}
	}
	return 1
}

// exitForManifestError prints a manifest-loading failure and exits with
// the configuration exit code directly — manifest errors never reach
// exitCodeFor since loadRunContext exits before returning to a command.
func exitForManifestError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	var cfgErr *database.ConfigError
	if errors.As(err, &cfgErr) {
		os.Exit(2)
	}
	os.Exit(1)
}
