package pipeline

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/company-extractor/constants"
	"github.com/joseph-ayodele/company-extractor/internal/entity"
	"github.com/joseph-ayodele/company-extractor/internal/llm"
)

// ChunkOutcome records what one chunk contributed to a run.
type ChunkOutcome struct {
	Index    int           `json:"index"`
	Records  int           `json:"records"`
	Warnings []llm.Warning `json:"warnings,omitempty"`
	Err      error         `json:"-"`
}

func (o ChunkOutcome) Failed() bool { return o.Err != nil }

// Accumulator is the ordered result set of one run. It is owned by the
// caller and passed through Extract; nothing in this package keeps one.
type Accumulator struct {
	dedup    bool
	records  []entity.Company
	index    map[string]int
	outcomes []ChunkOutcome
	merged   int
}

// NewAccumulator returns an empty result set. With dedup, records sharing
// a normalized company+country key are merged into the first one seen.
func NewAccumulator(dedup bool) *Accumulator {
	a := &Accumulator{dedup: dedup}
	if dedup {
		a.index = map[string]int{}
	}
	return a
}

// Add appends the outcome of one chunk and its records, in order.
func (a *Accumulator) Add(outcome ChunkOutcome, records []entity.Company) {
	outcome.Records = len(records)
	a.outcomes = append(a.outcomes, outcome)
	for _, r := range records {
		a.append(r)
	}
}

func (a *Accumulator) append(r entity.Company) {
	if !a.dedup {
		a.records = append(a.records, r)
		return
	}
	key, ok := IdentityKey(r)
	if !ok {
		a.records = append(a.records, r)
		return
	}
	if i, seen := a.index[key]; seen {
		a.records[i] = fillMissing(a.records[i], r)
		a.merged++
		return
	}
	a.index[key] = len(a.records)
	a.records = append(a.records, r)
}

// Records returns a copy of the accumulated records in order.
func (a *Accumulator) Records() []entity.Company {
	out := make([]entity.Company, len(a.records))
	copy(out, a.records)
	return out
}

func (a *Accumulator) Outcomes() []ChunkOutcome {
	out := make([]ChunkOutcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out
}

func (a *Accumulator) Len() int { return len(a.records) }

// Merged is the number of duplicate records folded into earlier ones.
func (a *Accumulator) Merged() int { return a.merged }

// FailedChunks counts chunks whose call or payload failed.
func (a *Accumulator) FailedChunks() int {
	n := 0
	for _, o := range a.outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Warnings flattens chunk failures and skipped elements into messages.
func (a *Accumulator) Warnings() []string {
	var out []string
	for _, o := range a.outcomes {
		if o.Err != nil {
			out = append(out, o.Err.Error())
		}
		for _, w := range o.Warnings {
			out = append(out, fmt.Sprintf("chunk %d: %s", o.Index, w.String()))
		}
	}
	return out
}

// IdentityKey is lower(trim(Company)) + "|" + lower(trim(Country)).
// Records without a company name have no identity.
func IdentityKey(r entity.Company) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(r.Company))
	if name == "" || r.Company == constants.NotAvailable {
		return "", false
	}
	return name + "|" + strings.ToLower(strings.TrimSpace(r.Country)), true
}

// fillMissing keeps first's values and takes N/A fields from later.
func fillMissing(first, later entity.Company) entity.Company {
	for _, f := range constants.Fields() {
		if first.Get(f) == constants.NotAvailable && later.Get(f) != constants.NotAvailable {
			first = first.With(f, later.Get(f))
		}
	}
	return first
}
