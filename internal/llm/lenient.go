package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/company-extractor/constants"
)

// NormalizeValue turns one decoded JSON value into a record cell.
// nil, blanks and "null"/"none" (any case) collapse to constants.NotAvailable;
// everything else is stringified and trimmed.
func NormalizeValue(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return constants.NotAvailable
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		s = formatNumber(t)
	case bool:
		s = strconv.FormatBool(t)
	case []any:
		s = joinScalars(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprint(t)
		} else {
			s = string(b)
		}
	}
	s = strings.TrimSpace(s)
	if constants.IsNullLike(s) {
		return constants.NotAvailable
	}
	return s
}

// formatNumber keeps integers as written and renders anything else as the
// shortest decimal, so 12.50 becomes 12.5 and 1e3 becomes 1000.
func formatNumber(n json.Number) string {
	if _, err := n.Int64(); err == nil {
		return n.String()
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// joinScalars renders ["A","B"] as "A, B". Lists holding objects or nested
// lists fall back to compact JSON.
func joinScalars(items []any) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		switch it.(type) {
		case map[string]any, []any:
			b, _ := json.Marshal(items)
			return string(b)
		}
		if p := NormalizeValue(it); p != constants.NotAvailable {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
