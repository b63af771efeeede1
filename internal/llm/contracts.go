package llm

import (
	"context"
	"time"
)

// Completer is the only capability the extraction pipeline needs from a
// model backend: one prompt in, one response text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ModelInfo describes one model offered by a backend.
type ModelInfo struct {
	ID       string    `json:"id"`
	OwnedBy  string    `json:"owned_by,omitempty"`
	Created  time.Time `json:"created,omitempty"`
	Size     int64     `json:"size,omitempty"`
	Provider string    `json:"provider"`
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
