package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Log            LogConfig            `mapstructure:"log"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Vector         VectorConfig         `mapstructure:"vector"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding"`
	Search         SearchConfig         `mapstructure:"search"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds the SQLite store configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// VectorConfig holds the vector index configuration. An empty path keeps the
// index in memory.
type VectorConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, hash
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// SearchConfig tunes the hybrid search orchestrator.
type SearchConfig struct {
	StrategyTimeout  time.Duration `mapstructure:"strategy_timeout"`
	GraphSeedLimit   int           `mapstructure:"graph_seed_limit"`
	GraphMaxDistance int           `mapstructure:"graph_max_distance"`
}

// CircuitBreakerConfig tunes the breaker around the vector client.
type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // seconds
	Timeout          int     `mapstructure:"timeout"`  // seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from defaults, an optional config file already
// registered with viper, and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)
	return config, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("database.path", home+"/.contexto/contexto.db")
		viper.SetDefault("vector.path", home+"/.contexto/vectors")
	} else {
		viper.SetDefault("database.path", "./contexto.db")
		viper.SetDefault("vector.path", "./vectors")
	}

	viper.SetDefault("embedding.provider", "hash")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimensions", 384)

	viper.SetDefault("search.strategy_timeout", "5s")
	viper.SetDefault("search.graph_seed_limit", 5)
	viper.SetDefault("search.graph_max_distance", 2)

	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)
}

func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
		if config.Embedding.Provider == "hash" {
			config.Embedding.Provider = "openai"
		}
	}
	if provider := os.Getenv("CONTEXTO_EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = provider
	}
	if dbPath := os.Getenv("CONTEXTO_DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if vecPath := os.Getenv("CONTEXTO_VECTOR_PATH"); vecPath != "" {
		config.Vector.Path = vecPath
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
