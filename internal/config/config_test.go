package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFile))
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(Default(), cfg))
	require.Contains(t, cfg.Includes, "**/*.graphql")
	require.Equal(t, "GQLPROJECT_API_KEY", cfg.Engine.KeyEnv)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  name: reviews
  endpoint: https://schema.example.com/sdl
  tag: staging
excludes:
  - generated/**
engine:
  endpoint: https://engine.example.com/stats
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "reviews", cfg.Service.Name)
	require.Equal(t, "https://schema.example.com/sdl", cfg.Service.Endpoint)
	require.Equal(t, "staging", cfg.Service.Tag)
	require.Equal(t, []string{"generated/**"}, cfg.Excludes)
	// Unset fields keep their defaults.
	require.Contains(t, cfg.Includes, "**/*.gql")
	require.Equal(t, "GQLPROJECT_API_KEY", cfg.Engine.KeyEnv)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("service: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
