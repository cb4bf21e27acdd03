package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	docset "github.com/hanpama/gqlproject/internal/docset"
	fragments "github.com/hanpama/gqlproject/internal/fragments"
	language "github.com/hanpama/gqlproject/internal/language"
)

const testSDL = `type Query {
	user(id: ID!): User
	version: String!
}

type User {
	id: ID!
	name: String!
}
`

func loadSchema(t *testing.T) *language.Schema {
	t.Helper()
	schema, err := language.LoadSchema(&language.Source{Name: "service.graphql", Input: testSDL})
	require.NoError(t, err)
	return schema
}

func buildDocs(t *testing.T, files map[string]string) []*docset.Document {
	t.Helper()
	set := docset.NewSet()
	for uri, src := range files {
		set.Upsert(docset.Parse(uri, src))
	}
	return set.Snapshot()
}

func runAll(t *testing.T, files map[string]string) []Batch {
	t.Helper()
	docs := buildDocs(t, files)
	return Run(loadSchema(t), docs, fragments.Index(docs))
}

func TestOneBatchPerFile(t *testing.T) {
	batches := runAll(t, map[string]string{
		"clean.graphql":  "query Version { version }",
		"broken.graphql": "query Bad { nonsense }",
		"syntax.graphql": "query {",
		"ext.graphql":    "extend type User { starred: Boolean! }",
	})
	require.Len(t, batches, 4)

	byURI := map[string]Batch{}
	for _, b := range batches {
		require.NotNil(t, b.Issues)
		byURI[b.URI] = b
	}
	require.Empty(t, byURI["clean.graphql"].Issues)
	require.Empty(t, byURI["ext.graphql"].Issues)
	require.NotEmpty(t, byURI["broken.graphql"].Issues)
	require.NotEmpty(t, byURI["syntax.graphql"].Issues)
}

func TestUnknownFieldPositioned(t *testing.T) {
	batches := runAll(t, map[string]string{
		"q.graphql": "query Bad {\n  nonsense\n}",
	})
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Issues, 1)

	is := batches[0].Issues[0]
	require.Contains(t, is.Message, "nonsense")
	require.Equal(t, 2, is.Line)
}

func TestCrossFileFragmentSpreadResolves(t *testing.T) {
	batches := runAll(t, map[string]string{
		"frag.graphql":  "fragment UserBits on User { id name }",
		"query.graphql": "query U { user(id: 1) { ...UserBits } }",
	})
	for _, b := range batches {
		require.Empty(t, b.Issues, "unexpected issues in %s: %v", b.URI, b.Issues)
	}
}

func TestFragmentErrorsStayInDefiningFile(t *testing.T) {
	batches := runAll(t, map[string]string{
		"frag.graphql":  "fragment Bits on User { nope }",
		"query.graphql": "query U { user(id: 1) { ...Bits } }",
	})
	require.Len(t, batches, 2)

	byURI := map[string]Batch{}
	for _, b := range batches {
		byURI[b.URI] = b
	}
	require.Len(t, byURI["frag.graphql"].Issues, 1)
	require.Contains(t, byURI["frag.graphql"].Issues[0].Message, "nope")
	require.Empty(t, byURI["query.graphql"].Issues,
		"errors inside a fragment belong to the defining file only")
}

func TestParseErrorExcludedFromValidation(t *testing.T) {
	batches := runAll(t, map[string]string{
		"syntax.graphql": "query {",
	})
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Issues, 1)
	require.NotZero(t, batches[0].Issues[0].Line)
}

func TestEmptyBatchClearsStaleDiagnostics(t *testing.T) {
	// A clean pass still yields a batch with a non-nil empty issue list so
	// sinks can clear previously reported errors.
	batches := runAll(t, map[string]string{
		"clean.graphql": "query Version { version }",
	})
	require.Len(t, batches, 1)
	require.NotNil(t, batches[0].Issues)
	require.Empty(t, batches[0].Issues)
}
