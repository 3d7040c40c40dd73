package database

// Dialect identifies a SQL dialect the engine can speak, on either the
// source or the destination side of an extraction run.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
	DialectUnknown  Dialect = ""
)

// RelationDirection classifies a Relationship edge as seen from its local
// table.
type RelationDirection string

const (
	ManyToOne  RelationDirection = "many_to_one"
	OneToMany  RelationDirection = "one_to_many"
	ManyToMany RelationDirection = "many_to_many"
)

// ColumnPair is one (local, referred) column pairing used to join the two
// sides of a Relationship.
type ColumnPair struct {
	Local    string
	Referred string
}

// Relationship is a directed labeled edge from a local table to a referred
// table. For every ManyToOne edge the Schema also carries the mirror
// OneToMany edge on the referred table; ManyToMany edges always reference
// exactly one association table (see Table.IsAssociation).
type Relationship struct {
	LocalTable    string
	ReferredTable string
	Direction     RelationDirection
	Key           string // attribute name seen from the local side, e.g. "customer"
	BackPopulates string // attribute name seen from the referred side, may be empty
	Columns       []ColumnPair
	// AssociationTable is set only for ManyToMany edges: the table that
	// joins LocalTable and ReferredTable via a composite foreign key.
	AssociationTable string
}

// Column represents a single column of a Table.
type Column struct {
	Name         string
	Type         string // dialect-specific rendering, e.g. "varchar(255)"
	Canonical    string // dialect-neutral type tag, e.g. "VARCHAR(255)", "INT8", "TEXT"
	Nullable     bool
	Default      *string
	IsPrimaryKey bool
}

// Index represents a secondary index on a Table.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey represents an outbound foreign key constraint.
type ForeignKey struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          *string
	OnUpdate          *string
}

// Table is a reflected relational table: its columns, constraints and
// indexes. Tables are immutable once reflection completes.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	Indexes     []Index
	ForeignKeys []ForeignKey
}

// ColumnByName returns the column named name, or nil.
func (t *Table) ColumnByName(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// IsAssociation reports whether t looks like a pure many-to-many join table:
// every non-FK column participates in the primary key, and the primary key
// is exactly the union of two distinct foreign keys' local columns.
func (t *Table) IsAssociation() bool {
	if len(t.ForeignKeys) < 2 || len(t.PrimaryKey) == 0 {
		return false
	}
	fkCols := map[string]bool{}
	referredTables := map[string]bool{}
	for _, fk := range t.ForeignKeys {
		referredTables[fk.ReferencedTable] = true
		for _, c := range fk.Columns {
			fkCols[c] = true
		}
	}
	if len(referredTables) < 2 {
		return false
	}
	pkSet := map[string]bool{}
	for _, c := range t.PrimaryKey {
		pkSet[c] = true
	}
	if len(pkSet) != len(fkCols) {
		return false
	}
	for c := range pkSet {
		if !fkCols[c] {
			return false
		}
	}
	// every column must be part of a foreign key (no extra payload columns)
	for _, col := range t.Columns {
		if !fkCols[col.Name] {
			return false
		}
	}
	return true
}

// Schema is the complete reflected relational model of a database:
// every table plus the bidirectional relationship graph derived from
// foreign keys.
type Schema struct {
	Dialect       Dialect
	Tables        []Table
	Relationships []Relationship
}

// TableByName returns the table named name, or nil.
func (s *Schema) TableByName(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// ColumnDiff describes a change to a single column between two reflections
// of "the same" table.
type ColumnDiff struct {
	ColumnName string
	Old        Column
	New        Column
	Changes    []string
}

// PlanStep is a single DDL statement plus a human-readable description,
// emitted by reflector.EmitDDL or by the SQL generator when more than one
// statement is needed for an operation.
type PlanStep struct {
	Description string
	SQL         string
}
