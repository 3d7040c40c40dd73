package database

import "fmt"

// DialectError is returned when a canonical type or construct has no
// rendering for a given dialect.
type DialectError struct {
	Dialect Dialect
	Detail  string
}

func (e *DialectError) Error() string {
	return fmt.Sprintf("dialect %s: %s", e.Dialect, e.Detail)
}

// InvalidTableError is returned when a manifest or predicate references a
// table that does not exist in the reflected schema.
type InvalidTableError struct {
	Table string
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("invalid table: %s", e.Table)
}

// InvalidFieldError is returned when a predicate or order_by references a
// column that does not exist, or a qualified reference targets a table
// outside the plan's eager-load set.
type InvalidFieldError struct {
	Field string
	Table string
}

func (e *InvalidFieldError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("invalid field %q on table %q", e.Field, e.Table)
	}
	return fmt.Sprintf("invalid field: %s", e.Field)
}

// InvalidOperatorError is returned when a predicate uses an operator the
// compiler does not recognize.
type InvalidOperatorError struct {
	Operator string
}

func (e *InvalidOperatorError) Error() string {
	return fmt.Sprintf("invalid operator: %s", e.Operator)
}

// QuerySyntaxError is returned when a predicate tree is malformed, e.g. a
// leaf with more than one comparator key or an operator applied to the
// wrong shape of value.
type QuerySyntaxError struct {
	Detail string
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("query syntax error: %s", e.Detail)
}

// SourceQueryError wraps a SQL error encountered while reading the source.
type SourceQueryError struct {
	Query string
	Err   error
}

func (e *SourceQueryError) Error() string {
	return fmt.Sprintf("source query failed: %v", e.Err)
}

func (e *SourceQueryError) Unwrap() error { return e.Err }

// DestQueryError wraps a SQL error encountered while writing the
// destination.
type DestQueryError struct {
	Query string
	Err   error
}

func (e *DestQueryError) Error() string {
	return fmt.Sprintf("destination query failed: %v", e.Err)
}

func (e *DestQueryError) Unwrap() error { return e.Err }

// CacheCorruption is returned when a .cache sidecar exists without a
// matching .count sidecar (or vice versa). Callers treat it as a cache
// miss and log at WARN.
type CacheCorruption struct {
	Path   string
	Detail string
}

func (e *CacheCorruption) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %s", e.Path, e.Detail)
}

// LoadError is returned when an insert or commit fails during the load
// pipeline. The plan's transaction has already been rolled back.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed for table %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ConfigError is returned for malformed manifests, missing required keys,
// or any other problem discovered before database work begins.
type ConfigError struct {
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Detail)
}

// UndefinedVariableError is returned when a ${NAME} reference in a
// connection URI cannot be resolved from the environment.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable in connection URI: %s", e.Name)
}
