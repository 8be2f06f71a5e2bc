package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port string `toml:"port"`
	Mode string `toml:"mode"` // dev or prod, selects log encoding
}

type StorageConfig struct {
	// Backend selects the store: "sqlite" (default), "memgraph", or "memory".
	Backend string `toml:"backend"`
	// Path is the sqlite database file, one graph per user.
	Path     string `toml:"path"`
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type ExtractionPrompts struct {
	Concepts      string `toml:"concepts"`
	Relationships string `toml:"relationships"`
}

type TraversalConfig struct {
	// MaxDepth bounds transitive prerequisite walks and path searches when a
	// request does not carry its own bound.
	MaxDepth int `toml:"max_depth"`
}

type Config struct {
	Server     ServerConfig      `toml:"server"`
	Storage    StorageConfig     `toml:"storage"`
	LLM        LLMConfig         `toml:"llm"`
	Extraction ExtractionPrompts `toml:"extraction"`
	Traversal  TraversalConfig   `toml:"traversal"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ApplyEnv overrides file values with environment variables when present.
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Server.Port, "PORT")
	setFromEnv(&c.Server.Mode, "SERVER_MODE")
	setFromEnv(&c.Storage.Backend, "STORAGE_BACKEND")
	setFromEnv(&c.Storage.Path, "SQLITE_PATH")
	setFromEnv(&c.Storage.URI, "MEMGRAPH_URI")
	setFromEnv(&c.Storage.User, "MEMGRAPH_USER")
	setFromEnv(&c.Storage.Password, "MEMGRAPH_PASSWORD")
	setFromEnv(&c.LLM.Provider, "LLM_PROVIDER")
	setFromEnv(&c.LLM.Model, "LLM_MODEL")
	setFromEnv(&c.LLM.APIKey, "LLM_API_KEY")
	setFromEnv(&c.LLM.BaseURL, "LLM_BASE_URL")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "dev"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/graph.db"
	}
	if c.Storage.URI == "" {
		c.Storage.URI = "bolt://localhost:7687"
	}
	if c.Traversal.MaxDepth <= 0 {
		c.Traversal.MaxDepth = 10
	}
}

func setFromEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
