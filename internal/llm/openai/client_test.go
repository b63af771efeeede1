package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, content string, inspect func(body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if inspect != nil {
			inspect(body)
		}
		resp := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestComplete_ReturnsContent(t *testing.T) {
	srv := chatServer(t, "  [{\"Company\":\"Acme\"}]  ", func(body map[string]any) {
		if body["model"] != "llama-3.3-70b-versatile" {
			t.Errorf("model = %v", body["model"])
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 1 {
			t.Errorf("messages = %v", msgs)
			return
		}
		m := msgs[0].(map[string]any)
		if m["role"] != "user" || m["content"] != "PROMPT" {
			t.Errorf("message = %v", m)
		}
		if _, ok := body["response_format"]; ok {
			t.Errorf("response_format sent without structured output")
		}
	})
	defer srv.Close()

	c := NewClient(Config{Provider: "groq", APIKey: "test-key", BaseURL: srv.URL, Model: "llama-3.3-70b-versatile"}, nil)
	got, err := c.Complete(context.Background(), "PROMPT")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `[{"Company":"Acme"}]` {
		t.Fatalf("content = %q", got)
	}
}

func TestComplete_StructuredOutputUnwrapsEnvelope(t *testing.T) {
	env := `{"companies":[{"Company":"Acme","Product Group":"Valves","Country":"France","Address":"N/A","Phone":"N/A","Email":"N/A","Website":"N/A","Brands":"N/A"}]}`
	srv := chatServer(t, env, func(body map[string]any) {
		rf, ok := body["response_format"].(map[string]any)
		if !ok || rf["type"] != "json_schema" {
			t.Errorf("response_format = %v", body["response_format"])
		}
	})
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, StructuredOutput: true}, nil)
	got, err := c.Complete(context.Background(), "PROMPT")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.HasPrefix(got, `[{"Company":"Acme"`) {
		t.Fatalf("expected unwrapped array, got %q", got)
	}
}

func TestComplete_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limit"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	_, err := c.Complete(context.Background(), "PROMPT")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	if _, err := c.Complete(context.Background(), "PROMPT"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"mixtral-8x7b-32768","owned_by":"mistral","created":1700000000},{"id":"gemma2-9b-it","owned_by":"google"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Provider: "groq", APIKey: "k", BaseURL: srv.URL}, nil)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].ID != "gemma2-9b-it" || models[1].ID != "mixtral-8x7b-32768" {
		t.Fatalf("models = %+v", models)
	}
	if models[1].Provider != "groq" || models[1].Created.IsZero() {
		t.Errorf("model metadata not filled: %+v", models[1])
	}
}
