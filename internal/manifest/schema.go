package manifest

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"github.com/yourorg/dbcut/database"
	"gopkg.in/yaml.v3"
)

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

// validateAgainstSchema structurally validates raw (YAML bytes) against
// the embedded manifest JSON Schema, the same way the teacher validates
// its own config documents with gojsonschema — by converting to a plain
// JSON-compatible value first, since gojsonschema works over JSON, not
// YAML.
func validateAgainstSchema(raw []byte) error {
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return &database.ConfigError{Detail: fmt.Sprintf("parsing manifest: %v", err)}
	}
	generic = normalizeForJSON(generic)

	schemaLoader := gojsonschema.NewBytesLoader(manifestSchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(generic)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &database.ConfigError{Detail: fmt.Sprintf("schema validation error: %v", err)}
	}
	if !result.Valid() {
		var b strings.Builder
		b.WriteString("manifest failed schema validation:\n")
		for _, e := range result.Errors() {
			b.WriteString("- ")
			b.WriteString(e.String())
			b.WriteString("\n")
		}
		return &database.ConfigError{Detail: b.String()}
	}
	return nil
}

// normalizeForJSON recursively converts map[interface{}]interface{} nodes
// (yaml.v3 decodes mapping nodes into map[string]interface{} already, but
// nested generic decode via interface{} can still surface non-string keys
// for anything yaml.v3 treats as a scalar key) into map[string]interface{}
// so gojsonschema's JSON-shaped walker can traverse it.
func normalizeForJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = normalizeForJSON(vv)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[fmt.Sprintf("%v", k)] = normalizeForJSON(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = normalizeForJSON(vv)
		}
		return out
	default:
		return val
	}
}
