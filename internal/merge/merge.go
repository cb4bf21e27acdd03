// Package merge combines a remote service schema with client-local
// type-system extensions into the single schema used for validating the
// project's documents.
package merge

import (
	"fmt"
	"net/url"
	"strings"

	language "github.com/hanpama/gqlproject/internal/language"
)

// ServiceSchema is a schema resolved from the remote service. SDL holds the
// schema's source text when the transport preserved it; a schema
// reconstructed from structured data (for example an introspection result)
// arrives with no SDL and no positions on its definitions.
type ServiceSchema struct {
	Schema     *language.Schema
	SDL        string
	SourceName string
}

// MergeError reports a structural incompatibility between the client
// extensions and the service schema, such as extending a type that does not
// exist. The caller must fall back to the unmerged service schema.
type MergeError struct {
	Err error
}

func (e *MergeError) Error() string { return fmt.Sprintf("merge client extensions: %v", e.Err) }

func (e *MergeError) Unwrap() error { return e.Err }

// reconstitutedPrefix tags synthetic sources produced by Reconstitute. The
// literal SDL follows, URL-encoded, so the origin text can be re-derived
// from the source name alone.
const reconstitutedPrefix = "reconstituted-schema.graphql?sdl="

// NeedsReconstitution reports whether the schema lacks the AST metadata
// required for structural extension: its query type is present but carries
// no defining position.
func NeedsReconstitution(svc ServiceSchema) bool {
	if svc.SDL == "" {
		return true
	}
	s := svc.Schema
	return s != nil && s.Query != nil && s.Query.Position == nil
}

// Reconstitute serializes the schema to canonical SDL and reparses it so the
// result carries real AST nodes and can be merged. Printing the
// reconstituted schema again yields the same source text.
func Reconstitute(svc ServiceSchema) (ServiceSchema, error) {
	if svc.Schema == nil {
		return svc, fmt.Errorf("reconstitute: no schema")
	}
	sdl := language.PrintSchema(svc.Schema)
	name := reconstitutedPrefix + url.QueryEscape(sdl)
	reparsed, err := language.LoadSchema(&language.Source{Name: name, Input: sdl})
	if err != nil {
		return svc, fmt.Errorf("reconstitute schema: %w", err)
	}
	return ServiceSchema{Schema: reparsed, SDL: sdl, SourceName: name}, nil
}

// OriginSDL re-derives the literal SDL embedded in a reconstituted source
// name.
func OriginSDL(sourceName string) (string, bool) {
	rest, ok := strings.CutPrefix(sourceName, reconstitutedPrefix)
	if !ok {
		return "", false
	}
	sdl, err := url.QueryUnescape(rest)
	if err != nil {
		return "", false
	}
	return sdl, true
}

// Merge extends the service schema with the client extension sources.
// Schemas without AST metadata are reconstituted first. A structurally
// invalid extension document fails with *MergeError and leaves the service
// schema untouched.
func Merge(svc ServiceSchema, ext []*language.Source) (*language.Schema, error) {
	if NeedsReconstitution(svc) {
		var err error
		svc, err = Reconstitute(svc)
		if err != nil {
			return nil, &MergeError{Err: err}
		}
	}
	name := svc.SourceName
	if name == "" {
		name = "service-schema.graphql"
	}
	sources := make([]*language.Source, 0, len(ext)+1)
	sources = append(sources, &language.Source{Name: name, Input: svc.SDL})
	sources = append(sources, ext...)
	merged, err := language.LoadSchema(sources...)
	if err != nil {
		return nil, &MergeError{Err: err}
	}
	return merged, nil
}
