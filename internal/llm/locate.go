package llm

import (
	"encoding/json"
	"regexp"

	"github.com/joseph-ayodele/company-extractor/constants"
)

var reGreedyArray = regexp.MustCompile(`(?s)\[.*\]`)

// LocatePayload pulls the JSON payload out of a free-form model reply.
// It prefers the first balanced array that parses, then the first balanced
// object, then the greedy first-'[' to last-']' span, and finally "[]".
// Arrays nested inside a record object, such as an empty "Brands" list,
// are field values and never the payload.
func LocatePayload(resp string) string {
	isPayload := func(start int, b []byte) bool {
		return holdsRecords(b) && !insideRecord(resp, start)
	}
	if s, ok := firstBalanced(resp, '[', ']', isPayload); ok {
		return s
	}
	if s, ok := firstBalanced(resp, '{', '}', func(_ int, b []byte) bool { return json.Valid(b) }); ok {
		return s
	}
	if m := reGreedyArray.FindString(resp); m != "" {
		return m
	}
	return "[]"
}

// holdsRecords accepts an empty array or one with at least one object, so
// prose such as "see [1]" is not mistaken for the payload.
func holdsRecords(b []byte) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return false
	}
	if len(items) == 0 {
		return true
	}
	for _, it := range items {
		if len(it) > 0 && it[0] == '{' {
			return true
		}
	}
	return false
}

// insideRecord reports whether pos falls within a balanced object that
// carries at least one company field.
func insideRecord(s string, pos int) bool {
	for start := 0; start < pos; start++ {
		if s[start] != '{' {
			continue
		}
		if end := matchClose(s, start, '{', '}'); end > pos && isRecord([]byte(s[start:end+1])) {
			return true
		}
	}
	return false
}

func isRecord(b []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return false
	}
	for _, f := range constants.FieldNames() {
		if _, ok := obj[f]; ok {
			return true
		}
	}
	return false
}

// firstBalanced scans for the first span opened by open and closed by its
// matching close that the accept func approves. Brackets inside JSON strings
// are ignored.
func firstBalanced(s string, open, close byte, accept func(start int, candidate []byte) bool) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != open {
			continue
		}
		end := matchClose(s, start, open, close)
		if end < 0 {
			continue
		}
		candidate := s[start : end+1]
		if accept(start, []byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

func matchClose(s string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
