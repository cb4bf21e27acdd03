// Package annotate walks validated documents and produces positioned
// informational overlays for fields with known latency statistics.
package annotate

import (
	"fmt"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/validator"

	docset "github.com/hanpama/gqlproject/internal/docset"
	language "github.com/hanpama/gqlproject/internal/language"
)

// FieldStats maps parent type name to field name to a latency statistic.
// The table is an opaque snapshot supplied by the engine client and replaced
// in full on each refresh.
type FieldStats map[string]map[string]time.Duration

// Lookup returns the recorded latency for parent.field.
func (s FieldStats) Lookup(parent, field string) (time.Duration, bool) {
	fields, ok := s[parent]
	if !ok {
		return 0, false
	}
	d, ok := fields[field]
	return d, ok
}

// Decoration is an informational overlay attached to a source position.
type Decoration struct {
	URI     string `json:"uri"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// Run walks every document's AST with the schema-aware walker, infers each
// field's parent type structurally, and emits one decoration per field with
// known stats. The result is a full replacement list.
//
// With no schema or no stats table Run returns nil so callers do not
// overwrite stale-but-valid decorations with a forced clear. An empty
// (non-nil) stats table yields an empty replacement list.
func Run(schema *language.Schema, docs []*docset.Document, frags language.FragmentDefinitionList, stats FieldStats) []Decoration {
	if schema == nil || stats == nil {
		return nil
	}
	out := make([]Decoration, 0)
	for _, d := range docs {
		if d.AST == nil {
			continue
		}
		working := &language.QueryDocument{
			Operations: d.AST.Operations,
			Fragments:  frags,
		}
		uri := d.URI
		obs := &validator.Events{}
		obs.OnField(func(w *validator.Walker, f *ast.Field) {
			if f.ObjectDefinition == nil || f.Position == nil {
				return
			}
			// The working document carries every project fragment;
			// only emit for nodes positioned in this file.
			if f.Position.Src == nil || f.Position.Src.Name != uri {
				return
			}
			dur, ok := stats.Lookup(f.ObjectDefinition.Name, f.Name)
			if !ok {
				return
			}
			out = append(out, Decoration{
				URI:     uri,
				Message: FormatLatency(dur),
				Line:    f.Position.Line,
				Column:  f.Position.Column,
			})
		})
		validator.Walk(schema, working, obs)
	}
	return out
}

// FormatLatency renders a latency statistic for display next to a field.
func FormatLatency(d time.Duration) string {
	return fmt.Sprintf("~%s (p90)", d)
}
