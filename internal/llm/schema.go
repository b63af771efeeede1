package llm

import (
	"github.com/joseph-ayodele/company-extractor/constants"
)

// EnvelopeKey wraps the company array when a backend is asked for
// structured output, since those modes require an object at the root.
const EnvelopeKey = "companies"

// BuildCompanySchema returns the JSON Schema one array element must satisfy
// before it is normalized into a record. Most field values are loose:
// numbers, booleans, lists and nulls are stringified later. The company
// name must be a scalar, since an element whose name is a structure or a
// list does not describe one company.
func BuildCompanySchema() map[string]any {
	props := map[string]any{}
	for _, f := range constants.FieldNames() {
		props[f] = map[string]any{
			"type": []string{"string", "number", "boolean", "array", "object", "null"},
		}
	}
	props[string(constants.FieldCompany)] = map[string]any{
		"type": []string{"string", "number", "null"},
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
}

// BuildEnvelopeSchema returns the strict schema sent to backends that
// support constrained output: {"companies": [{8 string fields}]}.
func BuildEnvelopeSchema() map[string]any {
	props := map[string]any{}
	for _, f := range constants.FieldNames() {
		props[f] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			EnvelopeKey: map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"properties":           props,
					"required":             constants.FieldNames(),
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{EnvelopeKey},
		"additionalProperties": false,
	}
}
