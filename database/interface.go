package database

import (
	"context"
	"database/sql"
)

// Introspector reads a live database's schema into the in-memory
// relational model. Relationship inference (mirroring many-to-one edges,
// detecting association tables) happens one layer up in the schema
// reflector, since it needs every table at once.
type Introspector interface {
	// IntrospectSchema reads every table: its columns, primary key,
	// indexes and foreign keys.
	IntrospectSchema(ctx context.Context, db *sql.DB, schemaName string) (*Schema, error)

	// GetTables returns all base table names, in a stable order.
	GetTables(ctx context.Context, db *sql.DB, schemaName string) ([]string, error)

	// GetColumns returns the columns of tableName in ordinal order,
	// plus the primary-key column names.
	GetColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]Column, []string, error)

	// GetIndexes returns the secondary indexes of tableName, excluding
	// the index backing the PRIMARY KEY. postgres and sqlite also exclude
	// the indexes backing UNIQUE constraints; mysql returns those.
	GetIndexes(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]Index, error)

	// GetForeignKeys returns the outbound foreign keys of tableName.
	GetForeignKeys(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]ForeignKey, error)
}

// SQLGenerator renders dialect-specific DDL and DML text from the
// dialect-neutral model.
type SQLGenerator interface {
	CreateTable(table Table) (sql string, description string)
	DropTable(table Table) (sql string, description string)
	AddForeignKey(tableName string, fk ForeignKey) (sql string, description string)
	AddIndex(tableName string, idx Index) (sql string, description string)
	FormatColumnDefinition(col Column) string

	// ParameterPlaceholder returns the parameter placeholder for
	// position (1-based): "$1" for postgres, "?" for mysql/sqlite.
	ParameterPlaceholder(position int) string

	// NormalizeType maps a reflected source type to the canonical,
	// dialect-neutral tag used throughout the schema model (e.g.
	// "TINYINT" and "SMALLINT" both normalize to "SMALLINT").
	NormalizeType(sourceType string) (string, error)

	// RenderType renders a canonical type tag back into this dialect's
	// concrete column type syntax. Returns a *DialectError if this
	// dialect has no rendering for canonical.
	RenderType(canonical string) (string, error)

	// IndexName produces the deterministic name
	// "<table>_<col1>_<col2>..._{idx|unique_idx}".
	IndexName(table string, columns []string, unique bool) string

	// TextIndexPrefixLength is the prefix length dialects that require
	// one (mysql, for TEXT/BLOB columns in an index) apply. Dialects
	// without the restriction return 0.
	TextIndexPrefixLength() int
}

// FKGuard is a scoped handle on "foreign keys disabled" mode for a
// session. Release restores enforcement and must be safe to call more
// than once.
type FKGuard interface {
	Release(ctx context.Context) error
}

// DialectAdapter is the cross-dialect capability set: duplicate-tolerant
// inserts, FK-disabled sessions and row-count estimation. One
// implementation exists per supported dialect.
type DialectAdapter interface {
	// RenderInsert produces an INSERT statement for table's columns
	// that silently skips rows that violate a unique or primary key
	// constraint: INSERT IGNORE (mysql), ON CONFLICT DO NOTHING
	// (postgres), INSERT OR IGNORE (sqlite).
	RenderInsert(table string, columns []string) string

	// DisableFK acquires FK-disabled mode for the session and returns
	// a guard that restores enforcement on Release. tables is the
	// full table set, needed by the postgres implementation which
	// disables triggers per table rather than session-wide.
	DisableFK(ctx context.Context, conn *sql.Conn, tables []string) (FKGuard, error)

	// EstimatedRowCount returns a cheap estimate of table's row count,
	// falling back to COUNT(*) where the dialect has no usable
	// statistics (mysql: information_schema.tables.table_rows when
	// > 0; sqlite/postgres: always COUNT(*)).
	EstimatedRowCount(ctx context.Context, db *sql.DB, table string) (int64, error)
}

// Driver bundles every capability the engine needs for one dialect.
type Driver interface {
	Introspector
	SQLGenerator
	DialectAdapter

	// Name returns the dialect name.
	Name() Dialect

	// SupportsFeature reports whether this dialect supports a named
	// capability, e.g. "ALTER_ADD_FOREIGN_KEY", "CASCADE".
	SupportsFeature(feature string) bool

	// Open opens a *sql.DB for uri using this dialect's driver.
	Open(uri string) (*sql.DB, error)
}

var registry = map[Dialect]func() Driver{}

// RegisterDriver installs factory as the Driver constructor for dialect.
// Dialect packages call this from init(), so dispatch stays a table
// lookup keyed by dialect name instead of a hand-maintained switch or a
// process-global compiler registry.
func RegisterDriver(dialect Dialect, factory func() Driver) {
	registry[dialect] = factory
}

// NewDriver resolves a Driver implementation by dialect name.
func NewDriver(dialect Dialect) (Driver, error) {
	factory, ok := registry[dialect]
	if !ok {
		return nil, &DialectError{Dialect: dialect, Detail: "unsupported dialect"}
	}
	return factory(), nil
}
