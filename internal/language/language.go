package language

import (
	"strings"

	gqlparser "github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseQuery parses an executable document (operations and fragments).
func ParseQuery(name, source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseSchema parses a type-system document (definitions and extensions).
func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema builds a validated schema from the given sources. The standard
// prelude (built-in scalars and directives) is prepended by gqlparser.
func LoadSchema(sources ...*Source) (*Schema, error) {
	return gqlparser.LoadSchema(sources...)
}

// PrintSchema renders the schema as canonical SDL. Built-in definitions are
// omitted. Output is deterministic for a given schema.
func PrintSchema(s *Schema) string {
	var b strings.Builder
	formatter.NewFormatter(&b).FormatSchema(s)
	return b.String()
}
