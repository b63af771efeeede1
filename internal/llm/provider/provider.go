// Package provider builds the configured completion backend.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/llm"
	"github.com/joseph-ayodele/company-extractor/internal/llm/ollama"
	"github.com/joseph-ayodele/company-extractor/internal/llm/openai"
)

// Backend is what commands need from a provider: completions, model
// listing and the resolved model name.
type Backend interface {
	llm.Completer
	llm.ModelLister
	Model() string
}

// New returns the backend selected by cfg.Provider.
func New(cfg common.LLMConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Provider {
	case common.ProviderOpenAI, common.ProviderGroq:
		return openai.NewClient(openai.Config{
			Provider:         cfg.Provider,
			APIKey:           cfg.APIKey,
			BaseURL:          cfg.BaseURL,
			Model:            cfg.Model,
			Temperature:      cfg.Temperature,
			Timeout:          cfg.Timeout,
			StructuredOutput: cfg.StructuredOutput,
		}, logger), nil
	case common.ProviderOllama:
		return ollama.NewClient(ollama.Config{
			BaseURL:          cfg.BaseURL,
			Model:            cfg.Model,
			Temperature:      cfg.Temperature,
			Timeout:          cfg.Timeout,
			StructuredOutput: cfg.StructuredOutput,
		}, logger), nil
	}
	return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown llm provider %q", cfg.Provider), common.ErrInvalidInput)
}

// Completer returns the backend's Completer, wrapped with retries when configured.
func Completer(b Backend, cfg common.LLMConfig, logger *slog.Logger) llm.Completer {
	return llm.WithRetry(b, cfg.Retries, cfg.RetryBackoff, logger)
}
