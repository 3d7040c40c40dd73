package mysql

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/yourorg/dbcut/database"
)

// Driver implements database.Driver for MySQL by embedding an
// Introspector and a Generator.
type Driver struct {
	*Introspector
	*Generator
}

func init() {
	database.RegisterDriver(database.DialectMySQL, func() database.Driver {
		gen := &Generator{}
		return &Driver{
			Introspector: &Introspector{gen: gen},
			Generator:    gen,
		}
	})
}

func (d *Driver) Name() database.Dialect { return database.DialectMySQL }

func (d *Driver) SupportsFeature(feature string) bool {
	switch feature {
	case "CASCADE", "ALTER_ADD_FOREIGN_KEY", "FOREIGN_KEYS", "information_schema":
		return true
	case "ALTER_COLUMN_TYPE", "ALTER_COLUMN_NULLABLE", "ALTER_COLUMN_DEFAULT":
		return true // MODIFY COLUMN rewrites in place
	default:
		return false
	}
}

// Open opens a *sql.DB against uri (a go-sql-driver/mysql DSN, e.g.
// "user:pass@tcp(host:3306)/dbname?parseTime=true").
func (d *Driver) Open(uri string) (*sql.DB, error) {
	return sql.Open("mysql", uri)
}

var _ database.Driver = (*Driver)(nil)
