package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks the variables LoadConfig reads so the host environment
// does not leak into assertions. Empty values are ignored by viper.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_BASE_URL",
		"GROQ_API_KEY", "OPENAI_API_KEY", "OLLAMA_HOST",
		"PIPELINE_CHUNK_SIZE", "PIPELINE_DEDUP", "QUEUE_BACKEND", "DATABASE_DSN",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Provider != ProviderGroq {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.LLM.BaseURL != "https://api.groq.com/openai/v1" || cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("groq preset not applied: %+v", cfg.LLM)
	}
	if cfg.LLM.APIKey != "gsk-test" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
	if cfg.Pipeline.ChunkSize != 8000 || cfg.Pipeline.Pacing != 200*time.Millisecond || cfg.Pipeline.Dedup {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.Queue.Backend != QueueMemory || cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("queue/server defaults = %+v %+v", cfg.Queue, cfg.Server)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer: %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_MODEL", "gpt-4.1-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PIPELINE_CHUNK_SIZE", "1234")
	t.Setenv("PIPELINE_DEDUP", "true")
	t.Setenv("QUEUE_BACKEND", " Redis ")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Provider != ProviderOpenAI {
		t.Errorf("provider = %q, want lower-cased openai", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4.1-mini" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != "https://api.openai.com/v1" || cfg.LLM.APIKey != "sk-test" {
		t.Errorf("openai preset not applied: %+v", cfg.LLM)
	}
	if cfg.Pipeline.ChunkSize != 1234 || !cfg.Pipeline.Dedup {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Queue.Backend != QueueRedis {
		t.Errorf("queue backend = %q, want lower-cased redis", cfg.Queue.Backend)
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
llm:
  provider: ollama
  model: mistral
  timeout: 90s
pipeline:
  chunk_size: 500
  concurrency: 3
queue:
  backend: redis
  redis_key: test:runs
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Provider != ProviderOllama || cfg.LLM.Model != "mistral" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.BaseURL != "http://localhost:11434" {
		t.Errorf("ollama base url = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Pipeline.ChunkSize != 500 || cfg.Pipeline.Concurrency != 3 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Queue.Backend != QueueRedis || cfg.Queue.RedisKey != "test:runs" {
		t.Errorf("queue = %+v", cfg.Queue)
	}
	// Ollama needs no key.
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Fatalf("err = %v, want CONFIG_ERROR", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			LLM:      LLMConfig{Provider: ProviderGroq, Model: "m", APIKey: "k"},
			Pipeline: PipelineConfig{ChunkSize: 100, Concurrency: 1},
			Queue:    QueueConfig{Backend: QueueMemory, Workers: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "bard" }, "llm.provider"},
		{"missing model", func(c *Config) { c.LLM.Model = " " }, "llm.model"},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key"},
		{"zero chunk size", func(c *Config) { c.Pipeline.ChunkSize = 0 }, "pipeline.chunk_size"},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "pipeline.concurrency"},
		{"negative retries", func(c *Config) { c.LLM.Retries = -1 }, "llm.retries"},
		{"unknown queue", func(c *Config) { c.Queue.Backend = "kafka" }, "queue.backend"},
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	c := &Config{
		LLM:      LLMConfig{Provider: ProviderOllama, Model: "m"},
		Pipeline: PipelineConfig{ChunkSize: 100, Concurrency: 1},
		Queue:    QueueConfig{Backend: QueueMemory, Workers: 1},
		Server:   ServerConfig{HTTPAddr: ":8080", GRPCAddr: ":9090", UploadDir: "up"},
	}
	err := c.ValidateServer()
	if err == nil || !strings.Contains(err.Error(), "database.dsn") {
		t.Fatalf("err = %v, want database.dsn failure", err)
	}
	c.Database.DSN = "runs.db"
	if err := c.ValidateServer(); err != nil {
		t.Fatalf("ValidateServer: %v", err)
	}
}

func TestPipelineErrorsMatchClasses(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err    error
		target error
	}{
		{&ChunkingError{Err: cause}, ErrChunking},
		{&CompletionError{Chunk: 2, Err: cause}, ErrCompletion},
		{&ParseError{Chunk: 0, Reason: "no json", Err: cause}, ErrParse},
		{&ExportError{Err: cause}, ErrExport},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.target) {
			t.Errorf("%v does not match %v", tt.err, tt.target)
		}
		if !errors.Is(tt.err, cause) {
			t.Errorf("%v does not unwrap to its cause", tt.err)
		}
	}
	if got := (&ParseError{Chunk: -1, Reason: "empty"}).Error(); got != "parse: empty" {
		t.Errorf("ParseError outside a run = %q", got)
	}
}
