package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	PDF      PDFConfig      `mapstructure:"pdf"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Export   ExportConfig   `mapstructure:"export"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	GRPCAddr    string `mapstructure:"grpc_addr"`
	UploadDir   string `mapstructure:"upload_dir"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

// DatabaseConfig holds run store configuration. A postgres:// DSN selects
// pgx; anything else is treated as a SQLite path.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
}

// PDFConfig holds document text extraction configuration
type PDFConfig struct {
	Pdftotext string `mapstructure:"pdftotext"`
	Fallback  bool   `mapstructure:"fallback"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Temperature      float32       `mapstructure:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout"`
	StructuredOutput bool          `mapstructure:"structured_output"`
	PromptFile       string        `mapstructure:"prompt_file"`
	Retries          int           `mapstructure:"retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
}

// PipelineConfig holds chunking and orchestration configuration
type PipelineConfig struct {
	ChunkSize   int           `mapstructure:"chunk_size"`
	Pacing      time.Duration `mapstructure:"pacing"`
	Concurrency int           `mapstructure:"concurrency"`
	Dedup       bool          `mapstructure:"dedup"`
}

// QueueConfig holds background run processing configuration
type QueueConfig struct {
	Backend        string        `mapstructure:"backend"`
	Workers        int           `mapstructure:"workers"`
	Size           int           `mapstructure:"size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	RedisKey       string        `mapstructure:"redis_key"`
}

// ExportConfig holds artifact output configuration
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// IngestConfig holds inbox watching configuration
type IngestConfig struct {
	InboxDir string        `mapstructure:"inbox_dir"`
	Debounce time.Duration `mapstructure:"debounce"`
}

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderOllama = "ollama"

	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// LoadConfig loads .env (if present), then the optional YAML file at path,
// then environment overrides (llm.model -> LLM_MODEL).
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read %s", path), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "decode config", err)
	}
	cfg.applyProviderDefaults()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.upload_dir", "./tmp/uploads")
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("database.dsn", "./tmp/runs.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)

	v.SetDefault("pdf.pdftotext", "pdftotext")
	v.SetDefault("pdf.fallback", true)

	v.SetDefault("llm.provider", ProviderGroq)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.structured_output", false)
	v.SetDefault("llm.prompt_file", "")
	v.SetDefault("llm.retries", 0)
	v.SetDefault("llm.retry_backoff", 2*time.Second)

	v.SetDefault("pipeline.chunk_size", 8000)
	v.SetDefault("pipeline.pacing", 200*time.Millisecond)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.dedup", false)

	v.SetDefault("queue.backend", QueueMemory)
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.size", 64)
	v.SetDefault("queue.process_timeout", 15*time.Minute)
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.redis_key", "extractor:runs")

	v.SetDefault("export.output_dir", ".")

	v.SetDefault("ingest.inbox_dir", "")
	v.SetDefault("ingest.debounce", 2*time.Second)
}

// applyProviderDefaults fills base URL, model and key from the provider preset.
// Provider and queue backend names are lower-cased so callers can match them
// exactly.
func (c *Config) applyProviderDefaults() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	switch c.LLM.Provider {
	case ProviderGroq:
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = "https://api.groq.com/openai/v1"
		}
		if c.LLM.Model == "" {
			c.LLM.Model = "llama-3.3-70b-versatile"
		}
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("GROQ_API_KEY")
		}
	case ProviderOpenAI:
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = "https://api.openai.com/v1"
		}
		if c.LLM.Model == "" {
			c.LLM.Model = "gpt-4o-mini"
		}
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case ProviderOllama:
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = getEnv("OLLAMA_HOST", "http://localhost:11434")
		}
		if c.LLM.Model == "" {
			c.LLM.Model = "llama3.1"
		}
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("llm.provider", c.LLM.Provider, OneOf(ProviderOpenAI, ProviderGroq, ProviderOllama)).
		Field("llm.model", c.LLM.Model, Required).
		Field("llm.retries", c.LLM.Retries, Min(0)).
		Field("pipeline.chunk_size", c.Pipeline.ChunkSize, Min(1)).
		Field("pipeline.concurrency", c.Pipeline.Concurrency, Min(1)).
		Field("queue.backend", c.Queue.Backend, OneOf(QueueMemory, QueueRedis)).
		Field("queue.workers", c.Queue.Workers, Min(1))
	if c.LLM.Provider != ProviderOllama {
		v.Field("llm.api_key", c.LLM.APIKey, Required)
	}
	return v.AsAppError("CONFIG_ERROR")
}

// ValidateServer adds the checks only the daemon needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return NewValidator().
		Field("server.http_addr", c.Server.HTTPAddr, Required).
		Field("server.grpc_addr", c.Server.GRPCAddr, Required).
		Field("server.upload_dir", c.Server.UploadDir, Required).
		Field("database.dsn", c.Database.DSN, Required).
		AsAppError("CONFIG_ERROR")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
