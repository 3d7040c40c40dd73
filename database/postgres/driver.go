package postgres

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/yourorg/dbcut/database"
)

// Driver implements database.Driver for PostgreSQL by embedding an
// Introspector and a Generator; the Introspector holds a pointer to the
// same Generator, since it needs the Generator's NormalizeType.
type Driver struct {
	*Introspector
	*Generator
}

func init() {
	database.RegisterDriver(database.DialectPostgres, func() database.Driver {
		gen := &Generator{}
		return &Driver{
			Introspector: &Introspector{gen: gen},
			Generator:    gen,
		}
	})
}

// Name returns the dialect name.
func (d *Driver) Name() database.Dialect { return database.DialectPostgres }

// SupportsFeature reports capability flags for PostgreSQL.
func (d *Driver) SupportsFeature(feature string) bool {
	switch feature {
	case "CASCADE", "ALTER_COLUMN_TYPE", "ALTER_COLUMN_NULLABLE", "ALTER_COLUMN_DEFAULT",
		"ALTER_ADD_FOREIGN_KEY", "FOREIGN_KEYS", "information_schema":
		return true
	default:
		return false
	}
}

// Open opens a *sql.DB against uri using the lib/pq driver.
func (d *Driver) Open(uri string) (*sql.DB, error) {
	return sql.Open("postgres", uri)
}

var _ database.Driver = (*Driver)(nil)
var _ pq.Driver // forces the pq driver's init() registration to stay linked
