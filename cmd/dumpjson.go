package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/yourorg/dbcut/internal/entity"
	"github.com/yourorg/dbcut/internal/orchestrator"
	"github.com/yourorg/dbcut/internal/plan"
)

var dumpjsonCmd = &cobra.Command{
	Use:   "dumpjson",
	Short: "Run extraction and write each query's rows to a JSON file instead of loading",
	Long: `dumpjson runs the manifest's queries against the source exactly as
"load" would, but instead of inserting into a destination it writes one
JSON file per query to the current directory, named
<table>-<cache_key>.json, each an array of row objects.`,
	RunE: runDumpjson,
}

func init() {
	rootCmd.AddCommand(dumpjsonCmd)
}

func runDumpjson(cmd *cobra.Command, args []string) error {
	m, store, logger := loadRunContext()
	o := newOrchestrator(m, store, logger, orchestrator.Options{Sink: &jsonSink{}})
	return o.Run(cmd.Context())
}

type jsonSink struct{}

func (s *jsonSink) Receive(ctx context.Context, p *plan.FetchPlan, rows []*entity.Entity) error {
	docs := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		docs[i] = encodeEntity(row)
	}

	f, err := os.Create(fmt.Sprintf("%s-%s.json", p.RootTable, p.CacheKey))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

// encodeEntity turns an Entity into a JSON-ready map: scalar columns in
// declared order (nulls included), plus one key per relationship that
// actually produced children — a relationship with zero children is
// omitted entirely rather than emitted as null, matching the original
// encoder's behavior of only ever describing rows that exist.
func encodeEntity(e *entity.Entity) map[string]interface{} {
	doc := make(map[string]interface{}, len(e.Columns)+len(e.Children))
	for _, col := range e.Columns {
		doc[col] = encodeScalar(e.Values[col])
	}
	for key, children := range e.Children {
		if len(children) == 0 {
			continue
		}
		encoded := make([]map[string]interface{}, len(children))
		for i, child := range children {
			encoded[i] = encodeEntity(child)
		}
		doc[key] = encoded
	}
	return doc
}

// encodeScalar mirrors the original JSONEncoder's policy for the two
// column types Go's encoding/json can't already render sensibly:
// time.Time as RFC3339 with a trailing "Z" (never "+00:00"), and []byte
// as a UTF-8 string when valid, base64 (via encoding/json's own []byte
// handling) otherwise.
func encodeScalar(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		s := val.UTC().Format(time.RFC3339)
		return s
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return val // encoding/json base64-encodes a []byte automatically
	default:
		return v
	}
}
