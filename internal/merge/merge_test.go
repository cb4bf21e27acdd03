package merge

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/gqlproject/internal/language"
)

const serviceSDL = `type Query {
	user(id: ID!): User
}

type User {
	id: ID!
	name: String!
}
`

func loadService(t *testing.T, sdl string) ServiceSchema {
	t.Helper()
	schema, err := language.LoadSchema(&language.Source{Name: "service.graphql", Input: sdl})
	require.NoError(t, err)
	return ServiceSchema{Schema: schema, SDL: sdl, SourceName: "service.graphql"}
}

func TestMergeEmptyExtensions(t *testing.T) {
	svc := loadService(t, serviceSDL)
	merged, err := Merge(svc, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(language.PrintSchema(svc.Schema), language.PrintSchema(merged)); diff != "" {
		t.Errorf("merged schema differs from service schema (-want +got):\n%s", diff)
	}
}

func TestMergeClientExtension(t *testing.T) {
	svc := loadService(t, serviceSDL)
	ext := &language.Source{
		Name:  "client.graphql",
		Input: "extend type User { isFavorite: Boolean! }",
	}
	merged, err := Merge(svc, []*language.Source{ext})
	require.NoError(t, err)

	user := merged.Types["User"]
	require.NotNil(t, user)
	var names []string
	for _, f := range user.Fields {
		names = append(names, f.Name)
	}
	require.Contains(t, names, "isFavorite")
}

func TestMergeUnknownBaseType(t *testing.T) {
	svc := loadService(t, serviceSDL)
	ext := &language.Source{
		Name:  "client.graphql",
		Input: "extend type DoesNotExist { x: Int }",
	}
	_, err := Merge(svc, []*language.Source{ext})
	require.Error(t, err)

	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)

	// The service schema object is untouched and still usable.
	require.NotNil(t, svc.Schema.Query)
	require.NotNil(t, svc.Schema.Types["User"])
}

// stripPositions simulates a schema fetched over a transport that drops AST
// metadata from its definitions.
func stripPositions(svc ServiceSchema) ServiceSchema {
	for _, def := range svc.Schema.Types {
		def.Position = nil
	}
	svc.SDL = ""
	svc.SourceName = ""
	return svc
}

func TestNeedsReconstitution(t *testing.T) {
	svc := loadService(t, serviceSDL)
	require.False(t, NeedsReconstitution(svc))
	require.True(t, NeedsReconstitution(stripPositions(svc)))
}

func TestReconstituteRoundTrip(t *testing.T) {
	svc := stripPositions(loadService(t, serviceSDL))

	re, err := Reconstitute(svc)
	require.NoError(t, err)
	require.NotNil(t, re.Schema.Query)
	require.NotNil(t, re.Schema.Query.Position)

	// Printing the reconstituted schema yields the same source text.
	require.Equal(t, re.SDL, language.PrintSchema(re.Schema))

	// The origin text is re-derivable from the synthetic source name.
	sdl, ok := OriginSDL(re.SourceName)
	require.True(t, ok)
	require.Equal(t, re.SDL, sdl)
	require.True(t, strings.HasPrefix(re.SourceName, "reconstituted-schema.graphql?sdl="))
}

func TestMergeReconstitutesTransparently(t *testing.T) {
	svc := stripPositions(loadService(t, serviceSDL))
	ext := &language.Source{
		Name:  "client.graphql",
		Input: "extend type User { isFavorite: Boolean! }",
	}
	merged, err := Merge(svc, []*language.Source{ext})
	require.NoError(t, err)
	require.NotNil(t, merged.Types["User"])

	var names []string
	for _, f := range merged.Types["User"].Fields {
		names = append(names, f.Name)
	}
	require.Contains(t, names, "isFavorite")
}
