// Package orchestrator drives one dbcut run end to end: it owns the
// state machine that takes a manifest from schema reflection through
// per-query compilation, caching, extraction and loading.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/yourorg/dbcut/database"
	"github.com/yourorg/dbcut/internal/cache"
	"github.com/yourorg/dbcut/internal/compiler"
	"github.com/yourorg/dbcut/internal/entity"
	"github.com/yourorg/dbcut/internal/extract"
	"github.com/yourorg/dbcut/internal/load"
	"github.com/yourorg/dbcut/internal/logging"
	"github.com/yourorg/dbcut/internal/manifest"
	"github.com/yourorg/dbcut/internal/plan"
	"github.com/yourorg/dbcut/internal/reflector"
	"github.com/yourorg/dbcut/internal/sqlvalidation"
)

// State is one node of the run's state machine.
type State string

const (
	StateInit        State = "INIT"
	StateReflecting  State = "REFLECTING"
	StateSchemaReady State = "SCHEMA_READY"
	StateCompiling   State = "COMPILING"
	StateCacheHit    State = "CACHE_HIT"
	StateExtracting  State = "EXTRACTING"
	StateCaching     State = "CACHING"
	StateLoading     State = "LOADING"
	StateDone        State = "DONE"
	StateError       State = "ERROR"
)

// Sink receives a compiled plan's extracted rows instead of the
// destination Load Pipeline. dumpjson and dumpsql implement this to
// redirect the run's output without touching a destination database.
type Sink interface {
	Receive(ctx context.Context, p *plan.FetchPlan, rows []*entity.Entity) error
}

// PlanError carries the plan index and root table alongside the
// underlying cause, the single-line diagnostic SPEC_FULL asks for on any
// terminal error.
type PlanError struct {
	Index     int
	RootTable string
	Err       error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan %d (%s): %v", e.Index, e.RootTable, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// Options configures one run. Only a subset of fields are required;
// zero values mean "default behavior" (no caching bypass, every query
// in manifest order, load into the destination).
type Options struct {
	NoCache      bool
	ForceRefresh bool
	Flush        bool
	Only         []string // root table names; empty means every query
	LastOnly     bool
	Sink         Sink // nil means load into the destination

	// Interactive, when set, turns a failed plan into a skip-or-abort
	// prompt instead of an immediate abort. ConfirmSkip is required
	// when Interactive is set: it is shown a description of the
	// failure and returns whether to skip the plan and continue with
	// the rest of the manifest. Run aborts as if Interactive were
	// unset if ConfirmSkip is nil.
	Interactive bool
	ConfirmSkip func(msg string) bool
}

// Orchestrator runs one manifest end to end against a pair of opened
// driver/connection handles.
type Orchestrator struct {
	Manifest *manifest.Manifest
	Logger   *logging.Logger
	Cache    *cache.Store
	Options  Options

	State State

	sourceDriver database.Driver
	sourceDB     *sql.DB
	destDriver   database.Driver
	destDB       *sql.DB
	schema       *database.Schema
}

// New constructs an Orchestrator for m. Callers supply a Logger (use
// logging.New(logging.LevelInfo) for the default) and a cache.Store
// rooted at the manifest's configured cache directory.
func New(m *manifest.Manifest, logger *logging.Logger, store *cache.Store, opts Options) *Orchestrator {
	return &Orchestrator{Manifest: m, Logger: logger, Cache: store, Options: opts, State: StateInit}
}

// Run drives the full state machine. Any unrecoverable failure
// transitions to StateError, wraps the cause in a *PlanError naming the
// offending plan, and returns — plans already committed before the
// failure are retained.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.State = StateInit

	var err error
	o.sourceDriver, o.sourceDB, err = openDriver(o.Manifest.Databases.SourceURI)
	if err != nil {
		return o.fail(-1, "source", err)
	}
	defer o.sourceDB.Close()

	o.destDriver, o.destDB, err = openDriver(o.Manifest.Databases.DestinationURI)
	if err != nil {
		return o.fail(-1, "destination", err)
	}
	defer o.destDB.Close()

	o.State = StateReflecting
	o.Logger.Verbosef("reflecting source schema (%s)", o.sourceDriver.Name())
	o.schema, err = reflector.Reflect(ctx, o.sourceDB, o.sourceDriver, "")
	if err != nil {
		return o.fail(-1, "reflect", err)
	}

	destSchema := reflector.ApplyDialect(o.schema, o.destDriver)
	needsDDL, err := o.destinationNeedsDDL(ctx)
	if err != nil {
		return o.fail(-1, "inspect destination", err)
	}
	if needsDDL || o.Options.Flush {
		if o.Options.Flush {
			if err := o.dropDestinationTables(ctx, destSchema); err != nil {
				return o.fail(-1, "flush destination", err)
			}
		}
		if err := o.emitDestinationDDL(ctx, destSchema); err != nil {
			return o.fail(-1, "emit destination DDL", err)
		}
	}
	o.State = StateSchemaReady

	queries := o.selectQueries()
	engine := extract.New(o.sourceDB, o.sourceDriver, o.schema)
	pipeline := load.New(o.destDB, o.destDriver, destSchema)

	for i, q := range queries {
		if err := o.runPlan(ctx, i, q, engine, pipeline); err != nil {
			if o.Options.Interactive && o.Options.ConfirmSkip != nil {
				msg := fmt.Sprintf("plan %d (%s) failed: %v. Skip and continue with the rest of the manifest?", i, q.From, err)
				if o.Options.ConfirmSkip(msg) {
					o.Logger.Warnf("skipping plan %d (%s) after failure: %v", i, q.From, err)
					continue
				}
			}
			return o.fail(i, q.From, err)
		}
	}

	o.State = StateDone
	return nil
}

func (o *Orchestrator) runPlan(ctx context.Context, idx int, q manifest.ManifestEntry, engine *extract.Engine, pipeline *load.Pipeline) error {
	o.State = StateCompiling
	fp, err := compiler.Compile(q, o.Manifest, o.schema, o.Manifest.Databases.SourceURI)
	if err != nil {
		return err
	}

	host, dbName := splitHostDB(o.Manifest.Databases.SourceURI)

	var rows []*entity.Entity
	useCache := o.Cache != nil && !o.Options.NoCache && !o.Options.ForceRefresh
	if useCache && o.Cache.IsCached(o.sourceDriver.Name(), host, dbName, fp) {
		o.State = StateCacheHit
		_, rows, err = o.Cache.Load(o.sourceDriver.Name(), host, dbName, fp)
		if err != nil {
			o.Logger.Warnf("cache corruption for %s: %v — falling back to extraction", fp.RootTable, err)
			rows = nil
		}
	}

	if rows == nil {
		o.State = StateExtracting
		if err := o.Logger.Timed(fmt.Sprintf("extract %s", fp.RootTable), func() error {
			var runErr error
			rows, runErr = engine.Run(ctx, fp)
			return runErr
		}); err != nil {
			return err
		}

		if o.Cache != nil && !o.Options.NoCache {
			o.State = StateCaching
			if err := o.Cache.Save(o.sourceDriver.Name(), host, dbName, fp, rows); err != nil {
				return err
			}
		}
	}

	o.State = StateLoading
	if o.Options.Sink != nil {
		return o.Options.Sink.Receive(ctx, fp, rows)
	}
	return o.Logger.Timed(fmt.Sprintf("load %s", fp.RootTable), func() error {
		return pipeline.Load(ctx, rows)
	})
}

func (o *Orchestrator) selectQueries() []manifest.ManifestEntry {
	queries := o.Manifest.Queries
	if o.Options.LastOnly && len(queries) > 0 {
		queries = queries[len(queries)-1:]
	}
	if len(o.Options.Only) == 0 {
		return queries
	}
	only := map[string]bool{}
	for _, t := range o.Options.Only {
		only[t] = true
	}
	var filtered []manifest.ManifestEntry
	for _, q := range queries {
		if only[q.From] {
			filtered = append(filtered, q)
		}
	}
	return filtered
}

func (o *Orchestrator) destinationNeedsDDL(ctx context.Context) (bool, error) {
	tables, err := o.destDriver.GetTables(ctx, o.destDB, "")
	if err != nil {
		return true, nil // destination unreachable/empty schema: treat as "needs DDL"
	}
	return len(tables) == 0, nil
}

// Clear opens the source and destination, reflects the source schema to
// learn table dependency order, and deletes every row from every
// destination table (reverse topological order, so a table is emptied
// before whatever it references) without dropping or recreating any
// table. It does not run any manifest queries.
func (o *Orchestrator) Clear(ctx context.Context) error {
	o.State = StateInit

	var err error
	o.sourceDriver, o.sourceDB, err = openDriver(o.Manifest.Databases.SourceURI)
	if err != nil {
		return o.fail(-1, "source", err)
	}
	defer o.sourceDB.Close()

	o.destDriver, o.destDB, err = openDriver(o.Manifest.Databases.DestinationURI)
	if err != nil {
		return o.fail(-1, "destination", err)
	}
	defer o.destDB.Close()

	o.State = StateReflecting
	o.schema, err = reflector.Reflect(ctx, o.sourceDB, o.sourceDriver, "")
	if err != nil {
		return o.fail(-1, "reflect", err)
	}
	destSchema := reflector.ApplyDialect(o.schema, o.destDriver)

	order, err := reflector.TopologicalOrder(destSchema)
	if err != nil {
		return o.fail(-1, "clear", err)
	}
	for i := len(order) - 1; i >= 0; i-- {
		stmt := fmt.Sprintf("DELETE FROM %s", order[i])
		o.Logger.Debugf("clear: %s", stmt)
		if _, err := o.destDB.ExecContext(ctx, stmt); err != nil {
			return o.fail(-1, "clear", &database.DestQueryError{Query: stmt, Err: err})
		}
	}

	o.State = StateDone
	return nil
}

func (o *Orchestrator) dropDestinationTables(ctx context.Context, destSchema *database.Schema) error {
	order, err := reflector.TopologicalOrder(destSchema)
	if err != nil {
		return err
	}
	for i := len(order) - 1; i >= 0; i-- {
		table := destSchema.TableByName(order[i])
		if table == nil {
			continue
		}
		sqlText, _ := o.destDriver.DropTable(*table)
		if _, err := o.destDB.ExecContext(ctx, sqlText); err != nil {
			return &database.DestQueryError{Query: sqlText, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) emitDestinationDDL(ctx context.Context, destSchema *database.Schema) error {
	steps, err := reflector.EmitDDL(destSchema, o.destDriver)
	if err != nil {
		return err
	}
	for _, step := range steps {
		o.Logger.Debugf("DDL: %s", step.Description)
		if o.destDriver.Name() == database.DialectPostgres {
			if err := sqlvalidation.ValidateStatement(step.SQL); err != nil {
				return err
			}
		}
		if _, err := o.destDB.ExecContext(ctx, step.SQL); err != nil {
			return &database.DestQueryError{Query: step.SQL, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) fail(planIndex int, rootTable string, cause error) error {
	o.State = StateError
	err := &PlanError{Index: planIndex, RootTable: rootTable, Err: cause}
	o.Logger.Errorf("%v", err)
	return err
}

// OpenDriver detects the dialect from rawURL's scheme/suffix and opens a
// *sql.DB via that dialect's own Open, the way the teacher's
// detectDriver/newDriver pair in main.go picks a driver from a
// connection string. Exported for callers that need a connection
// outside a full Run, such as the inspect command.
func OpenDriver(rawURL string) (database.Driver, *sql.DB, error) {
	return openDriver(rawURL)
}

func openDriver(rawURL string) (database.Driver, *sql.DB, error) {
	dialect := detectDialect(rawURL)
	driver, err := database.NewDriver(dialect)
	if err != nil {
		return nil, nil, err
	}
	db, err := driver.Open(rawURL)
	if err != nil {
		return nil, nil, err
	}
	return driver, db, nil
}

// DetectDialect sniffs a connection URI's dialect without opening a
// connection, for callers (such as the dumpsql command) that need a
// dialect's SQL-rendering rules but not a live destination.
func DetectDialect(rawURL string) database.Dialect {
	return detectDialect(rawURL)
}

func detectDialect(rawURL string) database.Dialect {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return database.DialectPostgres
	case strings.Contains(lower, "@tcp(") || strings.HasPrefix(lower, "mysql://"):
		return database.DialectMySQL
	case strings.HasPrefix(lower, "sqlite://") || strings.HasPrefix(lower, "file:") ||
		strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") ||
		strings.HasSuffix(lower, ".sqlite3") || lower == ":memory:":
		return database.DialectSQLite
	default:
		return database.DialectPostgres
	}
}

// splitHostDB extracts the (host, database-name) pair from a connection
// URL for use as cache-path components. Non-URL DSNs (sqlite paths,
// mysql's "user:pass@tcp(host)/db" form) fall back to an empty host and
// the raw string as the "database" component — still stable and unique
// per source, which is all the cache layout needs.
func splitHostDB(rawURL string) (host, dbName string) {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
		dbName = strings.TrimPrefix(u.Path, "/")
		return host, dbName
	}
	return "", sanitizePathComponent(rawURL)
}

func sanitizePathComponent(s string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", "\\", "_", "?", "_")
	return replacer.Replace(s)
}
