// Package docset tracks the project's GraphQL source files: parsing them
// into executable documents or client type-system extensions, scanning the
// workspace for matching files, and watching for changes.
package docset

import (
	language "github.com/hanpama/gqlproject/internal/language"
)

// Document is one tracked GraphQL source file. A document is replaced
// wholesale on every edit and removed when its file is deleted or excluded.
type Document struct {
	URI    string
	Source string

	// AST is set when the file parses as an executable document
	// (operations and fragments).
	AST *language.QueryDocument

	// TypeDefs is set when the file holds client-local type-system
	// definitions or extensions instead.
	TypeDefs *language.SchemaDocument

	// ParseErr is set when the file parses as neither.
	ParseErr error
}

// Parse builds a Document from raw file content. Executable syntax is tried
// first; files holding type-system definitions become client extension
// documents instead.
func Parse(uri, source string) *Document {
	doc := &Document{URI: uri, Source: source}
	qdoc, qerr := language.ParseQuery(uri, source)
	if qerr == nil {
		doc.AST = qdoc
		return doc
	}
	sdoc, serr := language.ParseSchema(uri, source)
	if serr == nil && len(sdoc.Definitions)+len(sdoc.Extensions)+len(sdoc.Directives) > 0 {
		doc.TypeDefs = sdoc
		return doc
	}
	doc.ParseErr = qerr
	return doc
}

// HasExecutable reports whether the document carries operations or fragments.
func (d *Document) HasExecutable() bool { return d.AST != nil }

// HasTypeDefs reports whether the document carries client type-system
// definitions.
func (d *Document) HasTypeDefs() bool { return d.TypeDefs != nil }

// ExtensionSource returns the file as a schema source for merging, or nil
// when the file holds no type-system definitions.
func (d *Document) ExtensionSource() *language.Source {
	if d.TypeDefs == nil {
		return nil
	}
	return &language.Source{Name: d.URI, Input: d.Source}
}
