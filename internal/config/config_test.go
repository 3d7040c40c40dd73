package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfigPathFromWalksUpToFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	configPath := filepath.Join(root, fileName)
	if err := os.WriteFile(configPath, []byte(`manifest = "manifest.yml"`), 0o644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}

	found, err := findConfigPathFrom(nested)
	if err != nil {
		t.Fatalf("findConfigPathFrom: %v", err)
	}
	if found != configPath {
		t.Errorf("expected %s, got %s", configPath, found)
	}
}

func TestFindConfigPathFromStopsAtProjectRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	nested := filepath.Join(root, "sub")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("mkdir sub: %v", err)
	}

	if _, err := findConfigPathFrom(nested); err == nil {
		t.Fatal("expected an error when no dbcut.toml exists up to the project root")
	}
}

func TestEffectiveManifestPathPriority(t *testing.T) {
	cfg := &ProjectConfig{Manifest: "from-config.yml"}

	if got := EffectiveManifestPath("from-flag.yml", cfg, "default.yml"); got != "from-flag.yml" {
		t.Errorf("expected explicit flag to win, got %s", got)
	}
	if got := EffectiveManifestPath("", cfg, "default.yml"); got != "from-config.yml" {
		t.Errorf("expected config value, got %s", got)
	}
	if got := EffectiveManifestPath("", &ProjectConfig{}, "default.yml"); got != "default.yml" {
		t.Errorf("expected default value, got %s", got)
	}
}

func TestEffectiveCacheDirPriority(t *testing.T) {
	cfg := &ProjectConfig{CacheDir: ".dbcut-cache"}
	if got := EffectiveCacheDir("", cfg, ".cache"); got != ".dbcut-cache" {
		t.Errorf("expected config cache dir, got %s", got)
	}
}
