package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/common"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
)

var reCodeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\s*```$")

// Warning describes one array element that could not become a record.
type Warning struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("element %d: %s", w.Index, w.Reason)
}

// Validator turns a model payload into normalized company records.
type Validator struct {
	element *jsonschema.Schema
	logger  *slog.Logger
}

func NewValidator(logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := CompileSchema(BuildCompanySchema())
	if err != nil {
		return nil, fmt.Errorf("company schema: %w", err)
	}
	return &Validator{element: schema, logger: logger}, nil
}

// Validate parses raw (optionally wrapped in a ```json fence). A single
// object is treated as a one-element array. Elements that are not objects
// are skipped and reported as warnings; the rest still produce records.
// Invalid JSON, or a top-level scalar, yields a *common.ParseError.
func (v *Validator) Validate(raw string) ([]entity.Company, []Warning, error) {
	text := StripCodeFence(raw)
	if text == "" {
		return nil, nil, &common.ParseError{Chunk: -1, Reason: "empty payload"}
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, nil, &common.ParseError{Chunk: -1, Reason: "invalid json", Err: err}
	}
	if dec.More() {
		return nil, nil, &common.ParseError{Chunk: -1, Reason: "trailing data after json value"}
	}

	var items []any
	switch t := parsed.(type) {
	case []any:
		items = t
	case map[string]any:
		items = []any{t}
	default:
		return nil, nil, &common.ParseError{Chunk: -1, Reason: fmt.Sprintf("unexpected top-level %T", parsed)}
	}

	records := make([]entity.Company, 0, len(items))
	var warnings []Warning
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			warnings = append(warnings, Warning{Index: i, Reason: fmt.Sprintf("expected object, got %s", jsonKind(item))})
			continue
		}
		if err := v.element.Validate(obj); err != nil {
			warnings = append(warnings, Warning{Index: i, Reason: err.Error()})
			continue
		}
		records = append(records, recordFrom(obj))
	}

	if len(warnings) > 0 {
		v.logger.Warn("llm.validate.elements_skipped",
			"elements", len(items),
			"skipped", len(warnings),
		)
	}
	return records, warnings, nil
}

func recordFrom(obj map[string]any) entity.Company {
	rec := entity.NewCompany()
	for _, f := range constants.Fields() {
		rec = rec.With(f, NormalizeValue(obj[string(f)]))
	}
	return rec
}

// StripCodeFence removes a surrounding ```json ... ``` (or bare ```) fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := reCodeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}
