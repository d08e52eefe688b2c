package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":8003", cfg.Server.Addr)
	assert.Equal(t, "http://llm-router:8001", cfg.LLM.BaseURL)
	assert.Equal(t, "http://rag-service:8002", cfg.RAG.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10*time.Second, cfg.RAG.Timeout)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Store.SessionTTL)
	assert.Equal(t, 3, cfg.Engage.ConsensusMaxRounds)
	assert.InDelta(t, 0.7, cfg.Engage.ConsensusThreshold, 1e-9)

	require.NoError(t, cfg.Validate())
}

func TestLoader_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  addr: ":9000"
llm:
  base_url: "http://localhost:8001"
  timeout: 90s
store:
  driver: sqlite
  dsn: parley.db
engage:
  consensus_max_rounds: 5
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8001", cfg.LLM.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Engage.ConsensusMaxRounds)

	// Untouched sections keep their defaults.
	assert.Equal(t, "http://rag-service:8002", cfg.RAG.BaseURL)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("PARLEY_SERVER_ADDR", ":7777")
	t.Setenv("PARLEY_LLM_TIMEOUT", "45s")
	t.Setenv("PARLEY_CACHE_ENABLED", "true")
	t.Setenv("PARLEY_ENGAGE_CONSENSUS_THRESHOLD", "0.85")
	t.Setenv("PARLEY_LOG_OUTPUT_PATHS", "stdout, /var/log/parley.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.Cache.Enabled)
	assert.InDelta(t, 0.85, cfg.Engage.ConsensusThreshold, 1e-9)
	assert.Equal(t, []string{"stdout", "/var/log/parley.log"}, cfg.Log.OutputPaths)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, ":8003", cfg.Server.Addr)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "mongo" }, "store.driver"},
		{"empty llm url", func(c *Config) { c.LLM.BaseURL = "" }, "llm.base_url"},
		{"empty rag url", func(c *Config) { c.RAG.BaseURL = "" }, "rag.base_url"},
		{"zero iteration timeout", func(c *Config) { c.Engage.IterationTimeout = 0 }, "iteration_timeout"},
		{"threshold out of range", func(c *Config) { c.Engage.ConsensusThreshold = 1.5 }, "consensus_threshold"},
		{"zero rounds", func(c *Config) { c.Engage.ConsensusMaxRounds = 0 }, "consensus_max_rounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
