package reconcile

import (
	"maps"
	"slices"

	"github.com/ginjaninja78/charge-reconciler/internal/filter"
	"github.com/ginjaninja78/charge-reconciler/internal/tabular"
	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

// IdentifierSet is a set of charge identifiers. Identifiers compare by exact
// string equality.
type IdentifierSet map[string]struct{}

// NewIdentifierSet returns a set holding ids, skipping empty strings.
func NewIdentifierSet(ids ...string) IdentifierSet {
	set := make(IdentifierSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

// Add inserts id. Empty identifiers are ignored.
func (s IdentifierSet) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Contains reports whether id is in the set.
func (s IdentifierSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers.
func (s IdentifierSet) Len() int {
	return len(s)
}

// Sorted returns the identifiers in ascending byte-wise order.
func (s IdentifierSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// ComputeMissing returns the identifiers in b that are not in a. Neither
// input is modified.
func ComputeMissing(a, b IdentifierSet) IdentifierSet {
	missing := make(IdentifierSet)
	for id := range b {
		if !a.Contains(id) {
			missing[id] = struct{}{}
		}
	}
	return missing
}

// ExtractIdentifiers reads every record of r and collects the values of
// field. Records where the field is empty or absent contribute nothing.
//
// PARAMETERS:
//   - r: An open reader positioned before its first record.
//   - field: The identifier column.
//
// RETURNS:
//   - The set of identifiers.
//   - A missing column error if field is not in the header, or the first
//     read error of r.
func ExtractIdentifiers(r tabular.Reader, field string) (IdentifierSet, error) {
	set, _, err := extract(r, field, nil)
	return set, err
}

// extract is ExtractIdentifiers with a row predicate and statistics.
func extract(r tabular.Reader, field string, where *filter.Filter) (IdentifierSet, SourceStats, error) {
	stats := SourceStats{
		Source:  r.Source(),
		Columns: len(r.Headers()),
	}

	if !tabular.HasColumn(r, field) {
		return nil, stats, recerrors.NewMissingColumn(r.Source(), field)
	}

	set := make(IdentifierSet)
	tally := func() {
		stats.Malformed = r.Malformed()
		stats.Identifiers = set.Len()
	}

	for r.Next() {
		stats.Rows++
		record := r.Record()

		matched, err := where.Match(record)
		if err != nil {
			tally()
			return nil, stats, recerrors.NewMalformedRecord(r.Source(), r.Line(), err)
		}
		if !matched {
			stats.Filtered++
			continue
		}

		id, ok := record.Get(field)
		if !ok || id == "" {
			stats.EmptyIdentifiers++
			continue
		}

		stats.WithIdentifier++
		set.Add(id)
	}

	tally()
	if err := r.Err(); err != nil {
		return nil, stats, err
	}

	return set, stats, nil
}
