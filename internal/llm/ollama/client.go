// Package ollama talks to a local Ollama server through its /api/chat endpoint.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/company-extractor/internal/llm"
)

// Config for the Ollama client.
type Config struct {
	BaseURL          string // default http://localhost:11434
	Model            string // e.g., "llama3.1"
	Temperature      float32
	Timeout          time.Duration // local models can be slow; default 5m
	StructuredOutput bool          // pass the envelope schema as "format"
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}, log: logger}
}

func (c *Client) Model() string { return c.cfg.Model }

// Complete implements llm.Completer with a non-streaming chat call.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("llm.complete.start",
		"req_id", rid,
		"provider", "ollama",
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"structured", c.cfg.StructuredOutput,
	)

	body := map[string]any{
		"model":  c.cfg.Model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"options": map[string]any{"temperature": c.cfg.Temperature},
	}
	if c.cfg.StructuredOutput {
		body["format"] = llm.BuildEnvelopeSchema()
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/chat"
	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, nil, c.log)
	if err != nil {
		c.log.Error("llm.complete.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("ollama: %w", err)
	}

	var cr struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &cr); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if cr.Error != "" {
		return "", fmt.Errorf("ollama: %s", cr.Error)
	}
	content := strings.TrimSpace(cr.Message.Content)

	if c.cfg.StructuredOutput {
		if arr, err := llm.UnwrapEnvelope(content); err == nil {
			content = arr
		} else {
			c.log.Warn("llm.complete.envelope_invalid", "req_id", rid, "error", err)
		}
	}

	c.log.Info("llm.complete.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// ListModels returns locally pulled models from /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/tags"
	raw, _, err := llm.GetJSON(ctx, c.httpClient, endpoint, nil, c.log)
	if err != nil {
		return nil, fmt.Errorf("ollama list models: %w", err)
	}
	var tr struct {
		Models []struct {
			Name       string    `json:"name"`
			Size       int64     `json:"size"`
			ModifiedAt time.Time `json:"modified_at"`
		} `json:"models"`
	}
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	out := make([]llm.ModelInfo, 0, len(tr.Models))
	for _, m := range tr.Models {
		out = append(out, llm.ModelInfo{ID: m.Name, Size: m.Size, Created: m.ModifiedAt, Provider: "ollama"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
