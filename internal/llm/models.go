package llm

import "strings"

var recommendedFamilies = []string{"llama", "mixtral", "gemma"}

// Recommended reports whether a model id belongs to a family known to
// follow the extraction instruction well.
func Recommended(id string) bool {
	id = strings.ToLower(id)
	for _, f := range recommendedFamilies {
		if strings.Contains(id, f) {
			return true
		}
	}
	return false
}
