package cmd

import (
	"errors"
	"testing"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/orchestrator"
)

func TestExitCodeForAbort(t *testing.T) {
	if got := exitCodeFor(errAborted); got != 130 {
		t.Errorf("expected 130 for an aborted run, got %d", got)
	}
}

func TestExitCodeForConfigError(t *testing.T) {
	err := &database.ConfigError{Detail: "bad manifest"}
	if got := exitCodeFor(err); got != 2 {
		t.Errorf("expected 2 for a bare ConfigError, got %d", got)
	}
}

func TestExitCodeForPlanErrorWrappingConfigError(t *testing.T) {
	err := &orchestrator.PlanError{Index: 0, RootTable: "orders", Err: &database.ConfigError{Detail: "bad predicate"}}
	if got := exitCodeFor(err); got != 2 {
		t.Errorf("expected 2 for a PlanError wrapping a ConfigError, got %d", got)
	}
}

func TestExitCodeForGenericError(t *testing.T) {
	err := &orchestrator.PlanError{Index: 1, RootTable: "orders", Err: errors.New("boom")}
	if got := exitCodeFor(err); got != 1 {
		t.Errorf("expected 1 for a generic PlanError, got %d", got)
	}
}
