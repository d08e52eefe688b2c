package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:  DefaultServerConfig(),
		LLM:     DefaultLLMConfig(),
		RAG:     DefaultRAGConfig(),
		Store:   DefaultStoreConfig(),
		Cache:   DefaultCacheConfig(),
		Engage:  DefaultEngageConfig(),
		Metrics: DefaultMetricsConfig(),
		Log:     DefaultLogConfig(),
	}
}

// DefaultServerConfig returns the default HTTP server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8003",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    150 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: 30 * time.Second,
	}
}

// DefaultLLMConfig returns the default persona backend gateway configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:        "http://llm-router:8001",
		Timeout:        60 * time.Second,
		Temperature:    0.7,
		MaxTokens:      2048,
		RateLimitRPS:   0,
		RateLimitBurst: 1,
	}
}

// DefaultRAGConfig returns the default knowledge gateway configuration.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		BaseURL:       "http://rag-service:8002",
		Timeout:       10 * time.Second,
		TopK:          5,
		MinConfidence: 0.7,
	}
}

// DefaultStoreConfig returns the default persistence configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Driver:          "memory",
		Host:            "localhost",
		Port:            5432,
		User:            "parley",
		Name:            "parley",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		SessionTTL:      24 * time.Hour,
	}
}

// DefaultCacheConfig returns the default redis cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  false,
		Addr:     "localhost:6379",
		DB:       3,
		TTL:      5 * time.Minute,
		PoolSize: 10,
	}
}

// DefaultEngageConfig returns the default orchestration configuration.
func DefaultEngageConfig() EngageConfig {
	return EngageConfig{
		IterationTimeout:   120 * time.Second,
		MaxIterationsCap:   20,
		ConsensusMaxRounds: 3,
		ConsensusThreshold: 0.7,
		HistoryEntries:     5,
		InsightEntries:     3,
		TeamContextEntries: 5,
		HistoryTruncate:    200,
		InsightTruncate:    100,
		WritebackWorkers:   4,
		WritebackQueue:     256,
	}
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "parley",
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}
