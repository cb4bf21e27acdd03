package annotate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	docset "github.com/hanpama/gqlproject/internal/docset"
	fragments "github.com/hanpama/gqlproject/internal/fragments"
	language "github.com/hanpama/gqlproject/internal/language"
)

const testSDL = `type Query {
	field: Int
	user: User
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
		d := docset.Parse(uri, src)
		require.NoError(t, d.ParseErr)
		set.Upsert(d)
	}
	return set.Snapshot()
}

func TestSingleFieldDecoration(t *testing.T) {
	docs := buildDocs(t, map[string]string{
		"q.graphql": "query F {\n  field\n}",
	})
	stats := FieldStats{"Query": {"field": 42 * time.Millisecond}}

	decs := Run(loadSchema(t), docs, nil, stats)
	require.Len(t, decs, 1)
	require.Equal(t, "q.graphql", decs[0].URI)
	require.Equal(t, 2, decs[0].Line)
	require.Contains(t, decs[0].Message, "42ms")
}

func TestParentTypeInference(t *testing.T) {
	docs := buildDocs(t, map[string]string{
		"q.graphql": "query U { user { name } }",
	})
	stats := FieldStats{
		"Query": {"user": 10 * time.Millisecond},
		"User":  {"name": 3 * time.Millisecond},
	}

	decs := Run(loadSchema(t), docs, nil, stats)
	require.Len(t, decs, 2)
}

func TestNoSchemaOrStatsIsNoOp(t *testing.T) {
	docs := buildDocs(t, map[string]string{
		"q.graphql": "query F { field }",
	})
	require.Nil(t, Run(nil, docs, nil, FieldStats{}))
	require.Nil(t, Run(loadSchema(t), docs, nil, nil))
}

func TestEmptyStatsYieldsEmptyReplacement(t *testing.T) {
	docs := buildDocs(t, map[string]string{
		"q.graphql": "query F { field }",
	})
	decs := Run(loadSchema(t), docs, nil, FieldStats{})
	require.NotNil(t, decs)
	require.Empty(t, decs)
}

func TestFragmentFieldsAttributedToDefiningFile(t *testing.T) {
	docs := buildDocs(t, map[string]string{
		"frag.graphql": "fragment UserBits on User { name }",
		"q.graphql":    "query U { user { ...UserBits } }",
	})
	frags := fragments.List(fragments.Index(docs))
	stats := FieldStats{"User": {"name": 3 * time.Millisecond}}

	decs := Run(loadSchema(t), docs, frags, stats)
	require.Len(t, decs, 1)
	require.Equal(t, "frag.graphql", decs[0].URI)
}

func TestFormatLatency(t *testing.T) {
	require.Equal(t, "~42ms (p90)", FormatLatency(42*time.Millisecond))
}
