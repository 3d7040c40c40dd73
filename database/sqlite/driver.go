package sqlite

import (
	"database/sql"

	"github.com/yourorg/dbcut/database"
	_ "modernc.org/sqlite"
)

// Driver implements database.Driver for SQLite by embedding an
// Introspector and a Generator.
type Driver struct {
	*Introspector
	*Generator
}

func init() {
	database.RegisterDriver(database.DialectSQLite, func() database.Driver {
		gen := &Generator{}
		return &Driver{
			Introspector: &Introspector{gen: gen},
			Generator:    gen,
		}
	})
}

// Name returns the dialect name.
func (d *Driver) Name() database.Dialect { return database.DialectSQLite }

// SupportsFeature reports capability flags for SQLite.
func (d *Driver) SupportsFeature(feature string) bool {
	switch feature {
	case "CASCADE":
		return false // sqlite has no CASCADE on DROP TABLE
	case "ALTER_COLUMN_TYPE", "ALTER_COLUMN_NULLABLE", "ALTER_COLUMN_DEFAULT":
		return false // would require table recreation
	case "ALTER_ADD_FOREIGN_KEY":
		return false // foreign keys must be declared at table creation
	case "FOREIGN_KEYS":
		return true
	case "DROP_COLUMN":
		return true // sqlite 3.35.0+
	default:
		return false
	}
}

// Open opens a *sql.DB against uri using the modernc.org/sqlite driver,
// which needs no cgo toolchain.
func (d *Driver) Open(uri string) (*sql.DB, error) {
	return sql.Open("sqlite", uri)
}

var _ database.Driver = (*Driver)(nil)
