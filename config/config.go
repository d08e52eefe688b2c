// Package config provides unified configuration loading for parley:
// defaults, a YAML file, and environment variable overrides, in that order
// of precedence.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("PARLEY").
//	    Load()
package config

import (
	"fmt"
	"time"
)

// Config is the complete parley configuration.
type Config struct {
	// Server is the HTTP server configuration.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM configures the persona backend gateway (llm-router).
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// RAG configures the knowledge gateway (rag-service).
	RAG RAGConfig `yaml:"rag" env:"RAG"`

	// Store configures the team directory and conversation ledger.
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Cache configures the optional redis directory cache.
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Engage configures the orchestration engine.
	Engage EngageConfig `yaml:"engage" env:"ENGAGE"`

	// Metrics configures prometheus exposure.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log is the logging configuration.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Listen address, e.g. ":8003"
	Addr string `yaml:"addr" env:"ADDR"`
	// Read timeout
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout. Must exceed the engine iteration timeout or slow
	// persona backends get cut off mid-response.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Idle timeout
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// Max request header size
	MaxHeaderBytes int `yaml:"max_header_bytes" env:"MAX_HEADER_BYTES"`
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LLMConfig holds persona backend gateway settings.
type LLMConfig struct {
	// Base URL of the llm-router service
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Per-request timeout; backend generation is slow, keep this generous
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Sampling temperature sent with every completion
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	// Max completion tokens
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// Client-side request rate limit (requests/second); 0 disables
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// Rate limiter burst
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// RAGConfig holds knowledge gateway settings.
type RAGConfig struct {
	// Base URL of the rag-service
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// Per-request timeout
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Results requested per knowledge query
	TopK int `yaml:"top_k" env:"TOP_K"`
	// Default minimum confidence threshold
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
}

// StoreConfig holds directory/ledger persistence settings.
type StoreConfig struct {
	// Driver: memory, sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN for sqlite (file path) or full DSN for mysql
	DSN string `yaml:"dsn" env:"DSN"`
	// Host/Port/User/Password/Name build the postgres DSN when DSN is empty
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`
	// Connection pool
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// Session lifetime stamped at creation
	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
}

// CacheConfig holds redis cache settings for the team directory.
type CacheConfig struct {
	// Enabled toggles the read-through cache
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Redis address
	Addr string `yaml:"addr" env:"ADDR"`
	// Password
	Password string `yaml:"password" env:"PASSWORD"`
	// Database number
	DB int `yaml:"db" env:"DB"`
	// Entry TTL
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// Pool size
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// EngageConfig holds orchestration engine settings.
type EngageConfig struct {
	// Wall-clock budget for one iteration, all modes
	IterationTimeout time.Duration `yaml:"iteration_timeout" env:"ITERATION_TIMEOUT"`
	// Upper bound accepted for a session's max_iterations
	MaxIterationsCap int `yaml:"max_iterations_cap" env:"MAX_ITERATIONS_CAP"`
	// Consensus mode: rounds per iteration and convergence threshold
	ConsensusMaxRounds int     `yaml:"consensus_max_rounds" env:"CONSENSUS_MAX_ROUNDS"`
	ConsensusThreshold float64 `yaml:"consensus_threshold" env:"CONSENSUS_THRESHOLD"`
	// Prompt assembly budgets
	HistoryEntries     int `yaml:"history_entries" env:"HISTORY_ENTRIES"`
	InsightEntries     int `yaml:"insight_entries" env:"INSIGHT_ENTRIES"`
	TeamContextEntries int `yaml:"team_context_entries" env:"TEAM_CONTEXT_ENTRIES"`
	HistoryTruncate    int `yaml:"history_truncate" env:"HISTORY_TRUNCATE"`
	InsightTruncate    int `yaml:"insight_truncate" env:"INSIGHT_TRUNCATE"`
	// Writeback queue
	WritebackWorkers int `yaml:"writeback_workers" env:"WRITEBACK_WORKERS"`
	WritebackQueue   int `yaml:"writeback_queue" env:"WRITEBACK_QUEUE"`
}

// MetricsConfig holds prometheus settings.
type MetricsConfig struct {
	// Enabled toggles the /metrics endpoint
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Metric namespace
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url must not be empty")
	}
	if c.RAG.BaseURL == "" {
		return fmt.Errorf("rag.base_url must not be empty")
	}
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("store.driver %q not supported (memory, sqlite, postgres, mysql)", c.Store.Driver)
	}
	if c.Engage.IterationTimeout <= 0 {
		return fmt.Errorf("engage.iteration_timeout must be positive")
	}
	if c.Engage.MaxIterationsCap < 1 {
		return fmt.Errorf("engage.max_iterations_cap must be >= 1")
	}
	if c.Engage.ConsensusMaxRounds < 1 {
		return fmt.Errorf("engage.consensus_max_rounds must be >= 1")
	}
	if c.Engage.ConsensusThreshold < 0 || c.Engage.ConsensusThreshold > 1 {
		return fmt.Errorf("engage.consensus_threshold must be within [0,1]")
	}
	return nil
}

// PostgresDSN builds a postgres DSN from the discrete store fields.
func (s StoreConfig) PostgresDSN() string {
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.Name, sslMode)
}
