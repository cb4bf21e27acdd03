// Package fragments indexes fragment definitions across the tracked
// document set and resolves fragment spread references.
package fragments

import (
	"sort"

	docset "github.com/hanpama/gqlproject/internal/docset"
	language "github.com/hanpama/gqlproject/internal/language"
)

// Index maps fragment names to their defining nodes across all documents.
// Fragment names are unique across a project; if duplicates exist the
// definition seen last wins and no error is raised.
func Index(docs []*docset.Document) map[string]*language.FragmentDefinition {
	idx := make(map[string]*language.FragmentDefinition)
	for _, d := range docs {
		if d.AST == nil {
			continue
		}
		for _, f := range d.AST.Fragments {
			idx[f.Name] = f
		}
	}
	return idx
}

// List returns the indexed definitions sorted by fragment name.
func List(idx map[string]*language.FragmentDefinition) language.FragmentDefinitionList {
	names := make([]string, 0, len(idx))
	for name := range idx {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(language.FragmentDefinitionList, 0, len(names))
	for _, name := range names {
		out = append(out, idx[name])
	}
	return out
}

// SpreadsFor collects every spread node referencing the named fragment
// across every document, regardless of which file defines the fragment.
func SpreadsFor(docs []*docset.Document, name string) []*language.FragmentSpread {
	var out []*language.FragmentSpread
	for _, d := range docs {
		if d.AST == nil {
			continue
		}
		for _, op := range d.AST.Operations {
			collectSpreads(op.SelectionSet, name, &out)
		}
		for _, f := range d.AST.Fragments {
			collectSpreads(f.SelectionSet, name, &out)
		}
	}
	return out
}

func collectSpreads(ss language.SelectionSet, name string, out *[]*language.FragmentSpread) {
	for _, sel := range ss {
		switch s := sel.(type) {
		case *language.Field:
			collectSpreads(s.SelectionSet, name, out)
		case *language.InlineFragment:
			collectSpreads(s.SelectionSet, name, out)
		case *language.FragmentSpread:
			if s.Name == name {
				*out = append(*out, s)
			}
		}
	}
}
