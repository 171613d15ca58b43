package employee

import (
	"cmp"
	"fmt"
	"math/big"
	"slices"
	"unicode/utf8"
)

// Defaults for the ABC sums report.
const DefaultThreshold int64 = 11171

// DefaultPrefixes returns the prefix set used when a caller supplies none.
func DefaultPrefixes() []string {
	return []string{"A", "B", "C"}
}

// GroupQuery selects which first-character groups GroupedSum reports.
type GroupQuery struct {
	// Prefixes holds single-character group keys. Duplicates are ignored.
	Prefixes []string
	// Threshold is the minimum inclusive total a group needs to be reported.
	Threshold int64
}

// DefaultGroupQuery is the {A, B, C} >= 11171 query.
func DefaultGroupQuery() GroupQuery {
	return GroupQuery{Prefixes: DefaultPrefixes(), Threshold: DefaultThreshold}
}

// Validate requires every prefix to be exactly one character.
func (q GroupQuery) Validate() error {
	for _, p := range q.Prefixes {
		if utf8.RuneCountInString(p) != 1 {
			return fmt.Errorf("%w: prefix %q must be a single character", ErrValidation, p)
		}
	}
	return nil
}

// Keys returns the de-duplicated prefixes in ascending order.
func (q GroupQuery) Keys() []string {
	keys := slices.Clone(q.Prefixes)
	slices.Sort(keys)
	return slices.Compact(keys)
}

// GroupTotal is one qualifying group of GroupedSum.
type GroupTotal struct {
	Initial string   `json:"initial"`
	Sum     *big.Int `json:"sum"`
}

// GroupKey returns the first character of name, or "" for an empty name.
func GroupKey(name string) string {
	_, size := utf8.DecodeRuneInString(name)
	return name[:size]
}

// Accumulator sums record values per group key. The zero value is not
// usable; construct with NewAccumulator.
type Accumulator struct {
	query  GroupQuery
	keys   map[string]struct{}
	totals map[string]*big.Int
}

// NewAccumulator prepares an accumulator for q.
func NewAccumulator(q GroupQuery) *Accumulator {
	keys := make(map[string]struct{}, len(q.Prefixes))
	for _, p := range q.Prefixes {
		keys[p] = struct{}{}
	}
	return &Accumulator{
		query:  q,
		keys:   keys,
		totals: make(map[string]*big.Int),
	}
}

// Add folds rec into its group if the group is selected.
func (a *Accumulator) Add(rec Record) {
	key := GroupKey(rec.Name)
	if _, ok := a.keys[key]; !ok {
		return
	}
	total, ok := a.totals[key]
	if !ok {
		total = new(big.Int)
		a.totals[key] = total
	}
	total.Add(total, big.NewInt(rec.Value))
}

// Totals returns the groups meeting the threshold ordered by key. The result
// is never nil.
func (a *Accumulator) Totals() []GroupTotal {
	threshold := big.NewInt(a.query.Threshold)
	out := make([]GroupTotal, 0, len(a.totals))
	for key, total := range a.totals {
		if total.Cmp(threshold) < 0 {
			continue
		}
		out = append(out, GroupTotal{Initial: key, Sum: new(big.Int).Set(total)})
	}
	slices.SortFunc(out, func(x, y GroupTotal) int {
		return cmp.Compare(x.Initial, y.Initial)
	})
	return out
}

// Aggregate computes GroupedSum over an in-memory listing. Engines without a
// native aggregate and callers that already hold a full listing share it.
func Aggregate(records []Record, q GroupQuery) []GroupTotal {
	acc := NewAccumulator(q)
	for _, rec := range records {
		acc.Add(rec)
	}
	return acc.Totals()
}
