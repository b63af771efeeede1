package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/company-extractor/internal/app"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/llm"
	"github.com/joseph-ayodele/company-extractor/internal/llm/provider"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	providerArg := flag.String("provider", "", "llm provider: groq, openai or ollama")
	flag.Parse()

	logger := app.NewLogger(true, false)

	if *providerArg != "" {
		_ = os.Setenv("LLM_PROVIDER", *providerArg)
	}
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	backend, err := provider.New(cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to build backend", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	models, err := backend.ListModels(ctx)
	if err != nil {
		logger.Error("failed to list models", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}

	fmt.Printf("%d models from %s (configured: %s)\n", len(models), cfg.LLM.Provider, backend.Model())
	for _, m := range models {
		mark := " "
		if llm.Recommended(m.ID) {
			mark = "*"
		}
		if m.ID == backend.Model() {
			mark = ">"
		}
		fmt.Printf("%s %s\n", mark, m.ID)
	}
	fmt.Println("\n* recommended for extraction, > configured")
}
