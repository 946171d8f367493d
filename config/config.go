package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the docchat service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ProvidersConfig groups external AI service configurations
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig contains the embedding/generation provider settings
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// RetrievalConfig contains chunking and retrieval policy values.
// ContextK controls how many chunks reach the generator; CitationK how
// many are shown to the user. The two are independent knobs.
type RetrievalConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	ContextK     int `mapstructure:"context_k"`
	CitationK    int `mapstructure:"citation_k"`
	HistoryTurns int `mapstructure:"history_turns"`
	SnippetMax   int `mapstructure:"snippet_max"`
}

func (c RetrievalConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap must be in [0, retrieval.chunk_size)")
	}
	if c.CitationK < 1 {
		return fmt.Errorf("retrieval.citation_k must be at least 1")
	}
	if c.CitationK > c.ContextK {
		return fmt.Errorf("retrieval.citation_k must not exceed retrieval.context_k")
	}
	return nil
}

// SessionsConfig controls session lifetime. TTL zero disables eviction;
// sessions then live until process exit.
type SessionsConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	SweepCron string        `mapstructure:"sweep_cron"`
}

// AppConfig is the process-wide configuration, set by LoadConfig.
var AppConfig *Config

// LoadConfig loads config from file and environment (DOCCHAT_*). A missing
// config file is fine as long as required keys arrive via env.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.address", ":8808")
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("providers.openai.chat_model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("providers.openai.temperature", 0.0)
	viper.SetDefault("providers.openai.timeout", 30*time.Second)
	viper.SetDefault("retrieval.chunk_size", 1200)
	viper.SetDefault("retrieval.chunk_overlap", 150)
	viper.SetDefault("retrieval.context_k", 4)
	viper.SetDefault("retrieval.citation_k", 3)
	viper.SetDefault("retrieval.history_turns", 8)
	viper.SetDefault("retrieval.snippet_max", 400)
	viper.SetDefault("sessions.ttl", time.Duration(0))
	viper.SetDefault("sessions.sweep_cron", "*/10 * * * *")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DOCCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Retrieval.Validate(); err != nil {
		panic(err)
	}

	AppConfig = &config
	return &config
}
