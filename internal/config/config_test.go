package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Server.Mode)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "data/graph.db", cfg.Storage.Path)
	assert.Equal(t, "bolt://localhost:7687", cfg.Storage.URI)
	assert.Equal(t, 10, cfg.Traversal.MaxDepth)
	assert.Empty(t, cfg.LLM.Provider)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[server]
port = "9000"
mode = "prod"

[storage]
backend = "memgraph"
uri = "bolt://memgraph:7687"
user = "neo"

[llm]
provider = "openai"
model = "gpt-4o"

[traversal]
max_depth = 6
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "prod", cfg.Server.Mode)
	assert.Equal(t, "memgraph", cfg.Storage.Backend)
	assert.Equal(t, "bolt://memgraph:7687", cfg.Storage.URI)
	assert.Equal(t, "neo", cfg.Storage.User)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 6, cfg.Traversal.MaxDepth)
	// Unset keys still pick up defaults.
	assert.Equal(t, "data/graph.db", cfg.Storage.Path)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[server\nport="), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "7777", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "dev", cfg.Server.Mode, "unset vars leave values alone")
}
