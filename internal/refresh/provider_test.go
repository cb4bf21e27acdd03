package refresh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	schemacache "github.com/hanpama/gqlproject/internal/schemacache"
)

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "staging", r.URL.Query().Get("tag"))
		w.Write([]byte(serviceSDL))
	}))
	defer srv.Close()

	p := &HTTPProvider{Endpoint: srv.URL}
	svc, err := p.ResolveSchema(context.Background(), "staging")
	require.NoError(t, err)
	require.Equal(t, serviceSDL, svc.SDL)
	require.Equal(t, srv.URL, svc.SourceName)
	require.NotNil(t, svc.Schema.Types["User"])
}

func TestHTTPProviderBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := &HTTPProvider{Endpoint: srv.URL}
	_, err := p.ResolveSchema(context.Background(), DefaultTag)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, DefaultTag, fetchErr.Tag)
}

func TestHTTPProviderInvalidSDL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("type Query {"))
	}))
	defer srv.Close()

	p := &HTTPProvider{Endpoint: srv.URL}
	_, err := p.ResolveSchema(context.Background(), DefaultTag)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, os.WriteFile(path, []byte(serviceSDL), 0o644))

	p := &FileProvider{Path: path}
	svc, err := p.ResolveSchema(context.Background(), DefaultTag)
	require.NoError(t, err)
	require.Equal(t, path, svc.SourceName)
	require.NotNil(t, svc.Schema.Types["Query"])
}

func TestCachedProviderWritesThrough(t *testing.T) {
	cache, err := schemacache.OpenAt(t.TempDir())
	require.NoError(t, err)

	inner := &stubProvider{sdls: map[string]string{DefaultTag: serviceSDL}}
	p := &CachedProvider{Inner: inner, Origin: "stub", Cache: cache}

	_, err = p.ResolveSchema(context.Background(), DefaultTag)
	require.NoError(t, err)

	sdl, ok, err := cache.Get("stub", DefaultTag)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, serviceSDL, sdl)
}

func TestCachedProviderFallsBackWhenInnerFails(t *testing.T) {
	cache, err := schemacache.OpenAt(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Put("stub", DefaultTag, serviceSDL))

	inner := &stubProvider{err: context.DeadlineExceeded}
	p := &CachedProvider{Inner: inner, Origin: "stub", Cache: cache}

	svc, err := p.ResolveSchema(context.Background(), DefaultTag)
	require.NoError(t, err)
	require.Equal(t, serviceSDL, svc.SDL)
	require.NotNil(t, svc.Schema.Types["User"])
}

func TestCachedProviderColdMissSurfacesError(t *testing.T) {
	cache, err := schemacache.OpenAt(t.TempDir())
	require.NoError(t, err)

	inner := &stubProvider{err: context.DeadlineExceeded}
	p := &CachedProvider{Inner: inner, Origin: "stub", Cache: cache}

	_, err = p.ResolveSchema(context.Background(), DefaultTag)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
