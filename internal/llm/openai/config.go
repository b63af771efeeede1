package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for any OpenAI-compatible chat/completions backend (OpenAI, Groq).
type Config struct {
	Provider         string        // label used in logs and model listings; default "openai"
	APIKey           string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL          string        // default https://api.openai.com/v1
	Model            string        // e.g., "llama-3.3-70b-versatile"
	Temperature      float32       // 0..2
	Timeout          time.Duration // http client timeout
	StructuredOutput bool          // request json_schema output and unwrap the envelope
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }
