package export

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
)

// Summarize computes the preview figures for a record set: number of
// companies, share of filled cells (percent, one decimal) and distinct
// countries other than N/A.
func Summarize(records []entity.Company) entity.RunStats {
	st := entity.RunStats{Companies: len(records)}
	if len(records) == 0 {
		return st
	}

	fields := constants.Fields()
	filled := 0
	countries := map[string]struct{}{}
	for _, r := range records {
		for _, f := range fields {
			if r.Get(f) != constants.NotAvailable {
				filled++
			}
		}
		if c := strings.TrimSpace(r.Country); c != constants.NotAvailable && c != "" {
			countries[c] = struct{}{}
		}
	}
	total := len(records) * len(fields)
	st.CompletionRate = math.Round(float64(filled)/float64(total)*1000) / 10
	st.UniqueCountries = len(countries)
	return st
}
