package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// EmbeddingConfig selects and parameterizes the embedding provider
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"` // openai, ollama
	Model    string        `mapstructure:"model"`
	Dim      int           `mapstructure:"dim"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLMConfig selects and parameterizes the chat completion provider
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, ollama
	Model       string        `mapstructure:"model"`
	Host        string        `mapstructure:"host"` // ollama host
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// QdrantConfig locates the vector index
type QdrantConfig struct {
	Addr       string `mapstructure:"addr"` // host:port of the gRPC endpoint
	Collection string `mapstructure:"collection"`
}

// StorageConfig groups the persistence backends
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a postgres connection string from the URL or the parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	host := p.Host
	port := p.Port
	ssl := p.SSLMode
	if host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, host, port, p.DBName, ssl), nil
}

type RedisConfig struct {
	Host       string        `mapstructure:"host"`
	Port       string        `mapstructure:"port"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	HistoryTTL time.Duration `mapstructure:"history_ttl"`
}

// LoadConfig reads configuration from file and environment. Environment
// variables use the DOCASSIST_ prefix with dots replaced by underscores,
// e.g. DOCASSIST_QDRANT_COLLECTION. A missing config file is not an error;
// defaults plus environment are enough to run.
func LoadConfig(path string) (*Config, error) {
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("embedding.provider", "ollama")
	viper.SetDefault("embedding.model", "nomic-embed-text")
	viper.SetDefault("embedding.dim", 768)
	viper.SetDefault("embedding.base_url", "http://localhost:11434")
	viper.SetDefault("embedding.timeout", 30*time.Second)
	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.model", "gemma:2b")
	viper.SetDefault("llm.host", "http://localhost:11434")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.timeout", 120*time.Second)
	viper.SetDefault("qdrant.addr", "localhost:6334")
	viper.SetDefault("qdrant.collection", "docs_local")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.history_ttl", 7*24*time.Hour)

	if path == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DOCASSIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
