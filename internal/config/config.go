// Package config loads project configuration from gqlproject.yml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the conventional config file name at the project root.
const DefaultFile = "gqlproject.yml"

type Config struct {
	Service struct {
		// Name identifies the service to the stats engine.
		Name string `yaml:"name"`
		// Endpoint serves the service schema SDL.
		Endpoint string `yaml:"endpoint"`
		// Tag selects the schema variant; empty means current production.
		Tag string `yaml:"tag"`
	} `yaml:"service"`

	// Includes and Excludes are gitignore-style patterns selecting the
	// tracked GraphQL files under the project root.
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`

	Engine struct {
		// Endpoint serves schema tags and field stats.
		Endpoint string `yaml:"endpoint"`
		// KeyEnv names the environment variable holding the API key.
		KeyEnv string `yaml:"keyEnv"`
	} `yaml:"engine"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Includes = []string{"**/*.graphql", "**/*.gql", "**/*.graphqls"}
	cfg.Engine.KeyEnv = "GQLPROJECT_API_KEY"
	return cfg
}

// Load reads path and overlays it on the defaults. A missing file is not an
// error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Includes) == 0 {
		cfg.Includes = Default().Includes
	}
	if cfg.Engine.KeyEnv == "" {
		cfg.Engine.KeyEnv = Default().Engine.KeyEnv
	}
	return cfg, nil
}
