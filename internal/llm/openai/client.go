package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/company-extractor/internal/llm"
)

// Complete implements llm.Completer using chat/completions with a single user message.
// With StructuredOutput the backend is asked for the {"companies": [...]} envelope,
// which is validated and unwrapped so callers always receive array text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.complete.start",
		"req_id", rid,
		"provider", c.cfg.Provider,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
		"structured", c.cfg.StructuredOutput,
	)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	if c.cfg.StructuredOutput {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "company_records",
				"strict": true,
				"schema": llm.BuildEnvelopeSchema(),
			},
		}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, _, httpErr := llm.SendJSON(ctx, c.httpClient, endpoint, body, c.headers(), c.log)
	if httpErr != nil {
		c.log.Error("llm.complete.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%s: %w", c.cfg.Provider, httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode %s response: %w", c.cfg.Provider, err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.complete.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("no choices in %s response", c.cfg.Provider)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	if c.cfg.StructuredOutput {
		arr, err := llm.UnwrapEnvelope(content)
		if err != nil {
			// Fall through with the raw text; the payload locator still gets a chance.
			c.log.Warn("llm.complete.envelope_invalid",
				"req_id", rid, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		} else {
			content = arr
		}
	}

	c.log.Info("llm.complete.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// ListModels returns the models visible to the configured key, sorted by id.
func (c *Client) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models"
	raw, _, err := llm.GetJSON(ctx, c.httpClient, endpoint, c.headers(), c.log)
	if err != nil {
		return nil, fmt.Errorf("%s list models: %w", c.cfg.Provider, err)
	}
	var lr struct {
		Data []struct {
			ID      string `json:"id"`
			OwnedBy string `json:"owned_by"`
			Created int64  `json:"created"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &lr); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	out := make([]llm.ModelInfo, 0, len(lr.Data))
	for _, m := range lr.Data {
		mi := llm.ModelInfo{ID: m.ID, OwnedBy: m.OwnedBy, Provider: c.cfg.Provider}
		if m.Created > 0 {
			mi.Created = time.Unix(m.Created, 0).UTC()
		}
		out = append(out, mi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.cfg.APIKey != "" {
		h["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	return h
}
