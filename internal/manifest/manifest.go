// Package manifest decodes and validates dbcut's YAML run manifest: which
// databases to connect to, and which queries to extract from the source.
package manifest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/yourorg/dbcut/database"
	"gopkg.in/yaml.v3"
)

// OrderTerm is a single (column, direction) pair in an order_by clause.
type OrderTerm struct {
	Column string `yaml:"column"`
	Desc   bool   `yaml:"desc"`
}

// ManifestEntry describes one extraction query rooted at a table.
type ManifestEntry struct {
	From         string      `yaml:"from"`
	Where        interface{} `yaml:"where,omitempty"`
	OrderBy      []OrderTerm `yaml:"order_by,omitempty"`
	Offset       *int        `yaml:"offset,omitempty"`
	Limit        *int        `yaml:"limit,omitempty"`
	JoinDepth    *int        `yaml:"join_depth,omitempty"`
	BackrefDepth *int        `yaml:"backref_depth,omitempty"`
	BackrefLimit *int        `yaml:"backref_limit,omitempty"`
	Exclude      []string    `yaml:"exclude,omitempty"`
	Include      []string    `yaml:"include,omitempty"`
}

// Databases holds the source and destination connection URIs, prior to
// ${NAME} expansion.
type Databases struct {
	SourceURI      string `yaml:"source_uri"`
	DestinationURI string `yaml:"destination_uri"`
}

// Manifest is the root document of a dbcut run.
type Manifest struct {
	Databases           Databases       `yaml:"databases"`
	Cache               string          `yaml:"cache"`
	DefaultLimit        *int            `yaml:"default_limit,omitempty"`
	DefaultBackrefLimit *int            `yaml:"default_backref_limit,omitempty"`
	DefaultBackrefDepth *int            `yaml:"default_backref_depth,omitempty"`
	DefaultJoinDepth    *int            `yaml:"default_join_depth,omitempty"`
	GlobalExclude       []string        `yaml:"global_exclude,omitempty"`
	Queries             []ManifestEntry `yaml:"queries"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads path, expands ${NAME} references in the database URIs
// against the process environment (loading a .env file from the working
// directory first, if one exists), validates the result against the manifest JSON Schema,
// and returns the decoded Manifest.
func Load(path string) (*Manifest, error) {
	loadDotenv()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &database.ConfigError{Detail: fmt.Sprintf("reading manifest %s: %v", path, err)}
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, &database.ConfigError{Detail: fmt.Sprintf("parsing manifest %s: %v", path, err)}
	}

	if err := validateAgainstSchema(raw); err != nil {
		return nil, err
	}

	m.Databases.SourceURI, err = expandEnv(m.Databases.SourceURI)
	if err != nil {
		return nil, err
	}
	m.Databases.DestinationURI, err = expandEnv(m.Databases.DestinationURI)
	if err != nil {
		return nil, err
	}

	if len(m.Queries) == 0 {
		return nil, &database.ConfigError{Detail: "manifest has no queries"}
	}
	for i, q := range m.Queries {
		if strings.TrimSpace(q.From) == "" {
			return nil, &database.ConfigError{Detail: fmt.Sprintf("queries[%d]: from is required", i)}
		}
	}

	return &m, nil
}

// loadDotenv loads a .env file from the working directory if present.
// godotenv.Load returns an error when the file is absent; that's the
// expected common case, so it's deliberately swallowed here.
func loadDotenv() {
	_ = godotenv.Load()
}

// expandEnv replaces every ${NAME} in uri with its environment value,
// failing closed with UndefinedVariableError when NAME is unset.
func expandEnv(uri string) (string, error) {
	var firstErr error
	expanded := envVarPattern.ReplaceAllStringFunc(uri, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		value, ok := os.LookupEnv(name)
		if !ok {
			if firstErr == nil {
				firstErr = &database.UndefinedVariableError{Name: name}
			}
			return match
		}
		return value
	})
	if firstErr != nil {
		return "", firstErr
	}
	return expanded, nil
}

// EffectiveLimit resolves q's limit, falling back to m's default.
func (m *Manifest) EffectiveLimit(q ManifestEntry) *int {
	if q.Limit != nil {
		return q.Limit
	}
	return m.DefaultLimit
}

// EffectiveJoinDepth resolves q's join_depth, falling back to m's default.
func (m *Manifest) EffectiveJoinDepth(q ManifestEntry) *int {
	if q.JoinDepth != nil {
		return q.JoinDepth
	}
	return m.DefaultJoinDepth
}

// EffectiveBackrefDepth resolves q's backref_depth, falling back to m's default.
func (m *Manifest) EffectiveBackrefDepth(q ManifestEntry) *int {
	if q.BackrefDepth != nil {
		return q.BackrefDepth
	}
	return m.DefaultBackrefDepth
}

// EffectiveBackrefLimit resolves q's backref_limit, falling back to m's default.
func (m *Manifest) EffectiveBackrefLimit(q ManifestEntry) *int {
	if q.BackrefLimit != nil {
		return q.BackrefLimit
	}
	return m.DefaultBackrefLimit
}

// EffectiveExclude merges m's global_exclude with q's own exclude list.
func (m *Manifest) EffectiveExclude(q ManifestEntry) []string {
	out := make([]string, 0, len(m.GlobalExclude)+len(q.Exclude))
	out = append(out, m.GlobalExclude...)
	out = append(out, q.Exclude...)
	return out
}
