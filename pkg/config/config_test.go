package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "careswarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "groq", cfg.Provider.Name)
	assert.Equal(t, "gsk-test", cfg.Provider.APIKey)
	assert.Equal(t, "memory", cfg.Sessions.Backend)
	assert.Equal(t, 10, cfg.Router.MaxIterations)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
provider:
  name: gemini
  model: gemini-2.0-flash
  api_key: from-file
sessions:
  backend: redis
  redis:
    addr: localhost:6379
`)
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "gemini-2.0-flash", cfg.Provider.Model)
	// Env wins over the file for credentials.
	assert.Equal(t, "from-env", cfg.Provider.APIKey)
	assert.Equal(t, "redis", cfg.Sessions.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }},
		{"unknown provider", func(c *Config) { c.Provider.Name = "carrier-pigeon" }},
		{"missing model", func(c *Config) { c.Provider.Model = "" }},
		{"redis without addr", func(c *Config) {
			c.Sessions.Backend = "redis"
			c.Sessions.Redis.Addr = ""
		}},
		{"unknown session backend", func(c *Config) { c.Sessions.Backend = "papyrus" }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Provider.APIKey = "key"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMockProviderNeedsNoKey(t *testing.T) {
	cfg := Default()
	cfg.Provider.Name = "mock"
	cfg.Provider.APIKey = ""
	cfg.Provider.Model = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
