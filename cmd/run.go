package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/yourorg/dbcut/internal/cache"
	"github.com/yourorg/dbcut/internal/config"
	"github.com/yourorg/dbcut/internal/logging"
	"github.com/yourorg/dbcut/internal/manifest"
	"github.com/yourorg/dbcut/internal/orchestrator"
)

// confirm prompts prompt on stderr and requires the user to type "yes",
// unless --force-yes was given. Returns errAborted on any other input,
// matching the teacher's apply command's confirmation idiom.
func confirm(prompt string) error {
	if flagForceYes {
		return nil
	}
	fmt.Fprintf(os.Stderr, "%s\nOnly 'yes' will be accepted to approve.\n\nEnter a value: ", prompt)
	var response string
	if _, err := fmt.Scanln(&response); err != nil || response != "yes" {
		fmt.Fprintf(os.Stderr, "\naborted.\n")
		return errAborted
	}
	return nil
}

// confirmSkip is the orchestrator.Options.ConfirmSkip implementation wired
// in for --interactive: it presents msg and waits for a y/n answer on
// stderr, defaulting to "no" (abort) on anything else, including EOF.
func confirmSkip(msg string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", msg)
	var response string
	fmt.Scanln(&response)
	return strings.EqualFold(response, "y") || strings.EqualFold(response, "yes")
}

// loadRunContext resolves the project config and manifest, and builds
// the cache.Store every subcommand shares. It exits directly on a
// manifest error through exitForManifestError (exit code 2 for a
// ConfigError, 1 otherwise), matching the "validation errors surface
// before any database work" propagation rule — there is nothing useful
// to return past a manifest that doesn't parse.
func loadRunContext() (*manifest.Manifest, *cache.Store, *logging.Logger) {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		fatalf("loading dbcut.toml: %v", err)
	}

	manifestPath := resolveManifestPath(cfg)
	m, err := manifest.Load(manifestPath)
	if err != nil {
		exitForManifestError(err)
	}

	cacheDir := config.EffectiveCacheDir("", cfg, m.Cache)
	if cacheDir == "" {
		cacheDir = ".dbcut-cache"
	}
	store := cache.NewStore(cacheDir)

	return m, store, logger
}

func newOrchestrator(m *manifest.Manifest, store *cache.Store, logger *logging.Logger, opts orchestrator.Options) *orchestrator.Orchestrator {
	return orchestrator.New(m, logger, store, opts)
}
