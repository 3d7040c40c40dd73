// Package cache implements the content-addressed on-disk cache of fetch
// plans and their result sets: a gob-encoded ".cache" sidecar plus a
// JSON ".count" sidecar, written atomically and guarded by a
// per-cache-key advisory lock so concurrent runs never race on the same
// entry.
package cache

import (
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/entity"
	"github.com/yourorg/dbcut/internal/plan"
)

// Store is a cache rooted at BaseDir, laid out as
// <BaseDir>/<dialect>/<host>/<database>/<rootTable>-<cacheKey>{.cache,.count}.
type Store struct {
	BaseDir string
}

// NewStore returns a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{BaseDir: baseDir}
}

type countFile struct {
	Count int `json:"count"`
}

func (s *Store) basePath(dialect database.Dialect, host, dbName string, p *plan.FetchPlan) string {
	return filepath.Join(s.BaseDir, string(dialect), host, dbName, p.RootTable+"-"+p.CacheKey)
}

// IsCached reports whether both sidecars exist for p. A lone ".cache" or
// lone ".count" file is treated as absent (it is also CacheCorruption,
// which Load surfaces explicitly).
func (s *Store) IsCached(dialect database.Dialect, host, dbName string, p *plan.FetchPlan) bool {
	base := s.basePath(dialect, host, dbName, p)
	_, cacheErr := os.Stat(base + ".cache")
	_, countErr := os.Stat(base + ".count")
	return cacheErr == nil && countErr == nil
}

// Save gob-encodes rows to a temp file, renames it into place, then does
// the same for the JSON count sidecar — in that order, so a process that
// crashes mid-write never leaves a valid ".count" pointing at a missing
// or truncated ".cache". The save is held under a per-cache-key flock so
// two concurrent runs targeting the same manifest entry never interleave
// writes to the same path.
func (s *Store) Save(dialect database.Dialect, host, dbName string, p *plan.FetchPlan, rows []*entity.Entity) error {
	base := s.basePath(dialect, host, dbName, p)
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return err
	}

	lock := flock.New(base + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	if err := writeAtomic(base+".cache", func(f *os.File) error {
		return gob.NewEncoder(f).Encode(rows)
	}); err != nil {
		return err
	}

	return writeAtomic(base+".count", func(f *os.File) error {
		return json.NewEncoder(f).Encode(countFile{Count: len(rows)})
	})
}

func writeAtomic(finalPath string, write func(*os.File) error) error {
	tmpPath := finalPath + ".tmp-" + uuid.New().String()
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, finalPath)
}

// Load reads the count sidecar then decodes the row sidecar. It returns
// *database.CacheCorruption if exactly one of the two sidecars exists.
func (s *Store) Load(dialect database.Dialect, host, dbName string, p *plan.FetchPlan) (int, []*entity.Entity, error) {
	base := s.basePath(dialect, host, dbName, p)
	cachePath, countPath := base+".cache", base+".count"

	_, cacheErr := os.Stat(cachePath)
	_, countErr := os.Stat(countPath)
	switch {
	case os.IsNotExist(cacheErr) && os.IsNotExist(countErr):
		return 0, nil, nil
	case os.IsNotExist(cacheErr):
		return 0, nil, &database.CacheCorruption{Path: base, Detail: "count sidecar present without cache sidecar"}
	case os.IsNotExist(countErr):
		return 0, nil, &database.CacheCorruption{Path: base, Detail: "cache sidecar present without count sidecar"}
	}

	countBytes, err := os.ReadFile(countPath)
	if err != nil {
		return 0, nil, err
	}
	var cf countFile
	if err := json.Unmarshal(countBytes, &cf); err != nil {
		return 0, nil, &database.CacheCorruption{Path: base, Detail: "malformed count sidecar: " + err.Error()}
	}

	f, err := os.Open(cachePath)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	var rows []*entity.Entity
	if err := gob.NewDecoder(f).Decode(&rows); err != nil {
		return 0, nil, &database.CacheCorruption{Path: base, Detail: "malformed cache sidecar: " + err.Error()}
	}
	return cf.Count, rows, nil
}

// Purge removes every ".cache" and ".count" file under the store's
// BaseDir, including per-dialect "metadata.cache" schema caches. Lock
// files are left in place — they are harmless once nothing holds them,
// and removing one out from under an in-flight flock would be unsafe.
func (s *Store) Purge() error {
	return filepath.Walk(s.BaseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".cache", ".count":
			return os.Remove(path)
		}
		return nil
	})
}
