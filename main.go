// Command dbcut extracts a relationally-consistent subset of a
// relational source database into a destination database or dump file.
package main

import (
	"github.com/yourorg/dbcut/cmd"
	_ "github.com/yourorg/dbcut/database/mysql"
	_ "github.com/yourorg/dbcut/database/postgres"
	_ "github.com/yourorg/dbcut/database/sqlite"
)

func main() {
	cmd.Execute()
}
