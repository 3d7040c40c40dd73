package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yourorg/dbcut/database"
)

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing fixture manifest: %v", err)
	}
	return path
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("SOURCE_DSN", "postgres://localhost/source")
	t.Setenv("DEST_DSN", "postgres://localhost/dest")

	path := writeManifest(t, `
databases:
  source_uri: "${SOURCE_DSN}"
  destination_uri: "${DEST_DSN}"
queries:
  - from: orders
`)

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Databases.SourceURI != "postgres://localhost/source" {
		t.Errorf("unexpected source_uri: %s", m.Databases.SourceURI)
	}
	if m.Databases.DestinationURI != "postgres://localhost/dest" {
		t.Errorf("unexpected destination_uri: %s", m.Databases.DestinationURI)
	}
}

func TestLoadUndefinedVariableFailsClosed(t *testing.T) {
	path := writeManifest(t, `
databases:
  source_uri: "${DOES_NOT_EXIST_12345}"
  destination_uri: "postgres://localhost/dest"
queries:
  - from: orders
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for an undefined variable")
	}
	var undef *database.UndefinedVariableError
	if !asUndefinedVariableError(err, &undef) {
		t.Fatalf("expected UndefinedVariableError, got %T: %v", err, err)
	}
	if undef.Name != "DOES_NOT_EXIST_12345" {
		t.Errorf("unexpected variable name: %s", undef.Name)
	}
}

func asUndefinedVariableError(err error, target **database.UndefinedVariableError) bool {
	if e, ok := err.(*database.UndefinedVariableError); ok {
		*target = e
		return true
	}
	return false
}

func TestLoadRejectsMissingQueries(t *testing.T) {
	path := writeManifest(t, `
databases:
  source_uri: "postgres://localhost/source"
  destination_uri: "postgres://localhost/dest"
queries: []
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a manifest with no queries")
	}
}

func TestLoadRejectsSchemaViolation(t *testing.T) {
	path := writeManifest(t, `
databases:
  source_uri: "postgres://localhost/source"
queries:
  - from: orders
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected a schema validation error for a missing destination_uri")
	}
}

func TestEffectiveDefaults(t *testing.T) {
	def := 50
	m := &Manifest{DefaultLimit: &def, GlobalExclude: []string{"audit_log"}}
	q := ManifestEntry{From: "orders", Exclude: []string{"internal_notes"}}

	if got := m.EffectiveLimit(q); got == nil || *got != 50 {
		t.Errorf("expected default limit 50, got %v", got)
	}

	excl := m.EffectiveExclude(q)
	if len(excl) != 2 || excl[0] != "audit_log" || excl[1] != "internal_notes" {
		t.Errorf("unexpected merged exclude list: %v", excl)
	}
}
