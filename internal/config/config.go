package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pdf-assistant/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"

	DriverPG = "pg"
	DriverPQ = "pq"
)

type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	BaseURL     string   `yaml:"base_url"`
	Key         string   `yaml:"key"`
	KeyEnv      string   `yaml:"key_env"`
	Model       string   `yaml:"model"`
	TimeoutSecs int      `yaml:"timeout_secs"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// APIKey returns the configured key, falling back to the key_env variable
func (c *LLMConfig) APIKey() string {
	if c.Key != "" {
		return strings.TrimPrefix(c.Key, "Bearer ")
	}
	if c.KeyEnv != "" {
		return strings.TrimPrefix(os.Getenv(c.KeyEnv), "Bearer ")
	}
	return ""
}

func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

type RAGConfig struct {
	ChunkSize           int     `yaml:"chunk_size"`
	TopK                int     `yaml:"top_k"`
	MaxRetries          *int    `yaml:"max_retries"`
	BackoffBase         float64 `yaml:"backoff_base"`
	RateLimitWaitSecs   int     `yaml:"rate_limit_wait_secs"`
	MaxRateLimitRetries *int    `yaml:"max_rate_limit_retries"`
	Concurrency         int     `yaml:"concurrency"`
}

type VectorDBConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	InMemory      bool   `yaml:"in_memory"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
	ExportPath    string `yaml:"export_path"`
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	URL         string `yaml:"url"`
	Password    string `yaml:"password"`
	Debug       bool   `yaml:"debug"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type Config struct {
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	RAG          RAGConfig      `yaml:"rag"`
	VectorDB     VectorDBConfig `yaml:"vector_db"`
	Database     DatabaseConfig `yaml:"database"`
	LogLevel     string         `yaml:"log_level"`
}

// LoadConfig reads the yaml config at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func intPtr(v int) *int { return &v }

func negative(v *int) bool { return v != nil && *v < 0 }

// Default is the configuration used when no config file exists
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

func ApplyDefaults(cfg *Config) {
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderOllama
	}
	switch cfg.EmbedLLM.Provider {
	case ProviderOllama:
		if cfg.EmbedLLM.BaseURL == "" {
			cfg.EmbedLLM.BaseURL = "http://localhost:11434"
		}
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "nomic-embed-text"
		}
	case ProviderOpenAI:
		if cfg.EmbedLLM.BaseURL == "" {
			cfg.EmbedLLM.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.EmbedLLM.KeyEnv == "" {
			cfg.EmbedLLM.KeyEnv = "OPENAI_API_KEY"
		}
		if cfg.EmbedLLM.Model == "" {
			cfg.EmbedLLM.Model = "text-embedding-3-small"
		}
	}
	if cfg.EmbedLLM.TimeoutSecs == 0 {
		cfg.EmbedLLM.TimeoutSecs = 30
	}

	if cfg.InferenceLLM.Provider == "" {
		cfg.InferenceLLM.Provider = ProviderOpenAI
	}
	if cfg.InferenceLLM.BaseURL == "" {
		cfg.InferenceLLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.InferenceLLM.KeyEnv == "" {
		cfg.InferenceLLM.KeyEnv = "GROQ_API_KEY"
	}
	if cfg.InferenceLLM.Model == "" {
		cfg.InferenceLLM.Model = "llama3-8b-8192"
	}
	if cfg.InferenceLLM.TimeoutSecs == 0 {
		cfg.InferenceLLM.TimeoutSecs = 60
	}
	if cfg.InferenceLLM.MaxTokens == 0 {
		cfg.InferenceLLM.MaxTokens = models.DefaultMaxTokens
	}

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = models.DefaultChunkSize
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
	if cfg.RAG.MaxRetries == nil {
		cfg.RAG.MaxRetries = intPtr(3)
	}
	if cfg.RAG.BackoffBase == 0 {
		cfg.RAG.BackoffBase = 2
	}
	if cfg.RAG.RateLimitWaitSecs == 0 {
		cfg.RAG.RateLimitWaitSecs = models.DefaultRetryAfter
	}
	if cfg.RAG.MaxRateLimitRetries == nil {
		cfg.RAG.MaxRateLimitRetries = intPtr(5)
	}
	if cfg.RAG.Concurrency == 0 {
		cfg.RAG.Concurrency = 4
	}

	if cfg.VectorDB.Backend == "" {
		cfg.VectorDB.Backend = BackendChromem
	}
	if cfg.VectorDB.Path == "" {
		cfg.VectorDB.Path = "./chromemdb"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPG
	}
	if cfg.Database.TimeoutSecs == 0 {
		cfg.Database.TimeoutSecs = 10
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	switch c.EmbedLLM.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.EmbedLLM.Provider)
	}
	switch c.VectorDB.Backend {
	case BackendChromem:
	case BackendPGVector:
		if c.Database.URL == "" {
			return errors.New("database.url is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unsupported vector_db backend: %s", c.VectorDB.Backend)
	}
	switch c.Database.Driver {
	case DriverPG, DriverPQ:
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.RAG.ChunkSize < 0 || c.RAG.TopK < 0 || c.RAG.Concurrency < 0 ||
		negative(c.RAG.MaxRetries) || negative(c.RAG.MaxRateLimitRetries) {
		return errors.New("rag settings must not be negative")
	}
	if c.RAG.BackoffBase < 1 {
		return fmt.Errorf("rag.backoff_base must be >= 1, got %v", c.RAG.BackoffBase)
	}
	return nil
}
