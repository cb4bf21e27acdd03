// Package validate turns the merged schema plus the tracked document set
// into per-file diagnostic batches.
package validate

import (
	"errors"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	docset "github.com/hanpama/gqlproject/internal/docset"
	fragments "github.com/hanpama/gqlproject/internal/fragments"
	language "github.com/hanpama/gqlproject/internal/language"
)

// Issue is one positioned validation error inside a file.
type Issue struct {
	Message string `json:"message"`
	Rule    string `json:"rule,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Batch is the full diagnostic set for one file. An empty batch is emitted
// for clean files so previously reported errors are cleared.
type Batch struct {
	URI    string  `json:"uri"`
	Issues []Issue `json:"issues"`
}

// Fragment-only files never use their own fragments, and a client project
// cannot know the full operation universe, so the unused-fragment rule only
// produces noise here.
var skippedRules = map[string]struct{}{
	"NoUnusedFragments": {},
}

// Run validates every tracked document against the schema and returns
// exactly one batch per document, in document order. Each file is validated
// as its own operations plus the project-wide fragment index, so cross-file
// spreads resolve. Files that failed to parse report their parse error and
// are excluded from schema validation; they never block other files.
func Run(schema *language.Schema, docs []*docset.Document, frags map[string]*language.FragmentDefinition) []Batch {
	fragList := fragments.List(frags)
	batches := make([]Batch, 0, len(docs))
	for _, d := range docs {
		batches = append(batches, validateDocument(schema, d, fragList))
	}
	return batches
}

func validateDocument(schema *language.Schema, d *docset.Document, frags language.FragmentDefinitionList) Batch {
	b := Batch{URI: d.URI, Issues: []Issue{}}
	if d.ParseErr != nil {
		b.Issues = append(b.Issues, toIssue(d.ParseErr))
		return b
	}
	if d.AST == nil {
		// Type-system-only file: nothing executable to validate.
		return b
	}
	working := &language.QueryDocument{
		Operations: d.AST.Operations,
		Fragments:  frags,
	}
	for _, gerr := range validator.Validate(schema, working) {
		if _, skip := skippedRules[gerr.Rule]; skip {
			continue
		}
		// The working document carries every project fragment; errors
		// positioned in another file belong to that file's batch.
		if file, ok := gerr.Extensions["file"].(string); ok && file != d.URI {
			continue
		}
		b.Issues = append(b.Issues, fromGQLError(gerr))
	}
	return b
}

func toIssue(err error) Issue {
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		return fromGQLError(gerr)
	}
	return Issue{Message: err.Error()}
}

func fromGQLError(gerr *gqlerror.Error) Issue {
	is := Issue{Message: gerr.Message, Rule: gerr.Rule}
	if len(gerr.Locations) > 0 {
		is.Line = gerr.Locations[0].Line
		is.Column = gerr.Locations[0].Column
	}
	return is
}
