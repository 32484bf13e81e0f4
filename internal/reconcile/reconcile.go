// =============================================================================
// Charge Reconciler - Reconcile Module
// =============================================================================
//
// This module contains the reconciliation pipeline. Given two tabular
// sources and the identifier column they share, it reports the identifiers
// found in the right source that the left source does not have.
//
// RECONCILIATION PIPELINE:
//   1. Compile the row filters of both sources
//   2. Extract the identifier set of the left source
//   3. Extract the identifier set of the right source
//   4. Compute right - left
//   5. Sort the difference
//
// Each source is opened, read to the end and closed before the next step
// starts. Any failure aborts the run; there is no partial result.
//
// =============================================================================

package reconcile

import (
	"context"
	"time"

	"github.com/ginjaninja78/charge-reconciler/internal/config"
	"github.com/ginjaninja78/charge-reconciler/internal/filter"
	"github.com/ginjaninja78/charge-reconciler/internal/logging"
	"github.com/ginjaninja78/charge-reconciler/internal/tabular"
	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

// =============================================================================
// REQUEST AND RESULT
// =============================================================================

// Opener opens a tabular source.
type Opener func(ctx context.Context, src config.SourceConfig, opts tabular.Options) (tabular.Reader, error)

// Request names everything a reconciliation reads.
type Request struct {
	// Field is the identifier column, looked up by name in both sources.
	Field string

	// Left is source A, whose identifiers are already accounted for.
	Left config.SourceConfig

	// Right is source B, checked for identifiers missing from Left.
	Right config.SourceConfig

	// Lenient tolerates rows whose width does not match the header.
	Lenient bool

	// Open overrides how sources are opened. Nil uses tabular.Open.
	Open Opener
}

// NewRequest builds a request from the loaded configuration.
func NewRequest(cfg *config.Config) Request {
	return Request{
		Field:   cfg.Field,
		Left:    cfg.Left,
		Right:   cfg.Right,
		Lenient: cfg.LenientRows,
	}
}

// Result is the outcome of one reconciliation.
type Result struct {
	// Field is the identifier column that was compared.
	Field string

	// Left and Right describe what was read from each source.
	Left  SourceStats
	Right SourceStats

	// Missing holds the identifiers of Right absent from Left, sorted
	// ascending. It is never nil.
	Missing []string

	// Duration is the wall time of the run.
	Duration time.Duration
}

// SourceStats contains statistics about one source.
type SourceStats struct {
	// Label is the display name of the source.
	Label string

	// Source is the locator the source was opened from.
	Source string

	// Columns is the number of header columns.
	Columns int

	// Rows is the number of records read.
	Rows int

	// Filtered is the number of records excluded by the row filter.
	Filtered int

	// Malformed is the number of records whose width did not match the
	// header and were tolerated.
	Malformed int

	// EmptyIdentifiers is the number of records whose identifier was empty
	// or absent.
	EmptyIdentifiers int

	// WithIdentifier is the number of records that carried an identifier.
	WithIdentifier int

	// Identifiers is the number of distinct identifiers.
	Identifiers int
}

// Duplicates returns how many records repeated an identifier already seen.
func (s SourceStats) Duplicates() int {
	return s.WithIdentifier - s.Identifiers
}

// =============================================================================
// PIPELINE
// =============================================================================

// Reconcile runs the reconciliation described by req.
//
// PARAMETERS:
//   - ctx: Carries the logger (see logging.WithContext) and bounds cloud reads.
//   - req: The sources and identifier column.
//
// RETURNS:
//   - The sorted identifiers present in req.Right and absent from req.Left,
//     with per-source statistics.
//   - The first error encountered. Errors name the source they happened in.
func Reconcile(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	// =========================================================================
	// STEP 1: COMPILE ROW FILTERS
	// =========================================================================

	leftWhere, err := compileWhere("left", req.Left)
	if err != nil {
		return nil, err
	}
	rightWhere, err := compileWhere("right", req.Right)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 2-3: EXTRACT BOTH IDENTIFIER SETS
	// =========================================================================

	leftSet, leftStats, err := extractSource(ctx, req, req.Left, leftWhere)
	if err != nil {
		return nil, err
	}

	rightSet, rightStats, err := extractSource(ctx, req, req.Right, rightWhere)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 4-5: DIFFERENCE AND SORT
	// =========================================================================

	missing := ComputeMissing(leftSet, rightSet).Sorted()
	if missing == nil {
		missing = []string{}
	}

	result := &Result{
		Field:    req.Field,
		Left:     leftStats,
		Right:    rightStats,
		Missing:  missing,
		Duration: time.Since(start),
	}

	log.Info().
		Str("field", req.Field).
		Int("left_identifiers", leftStats.Identifiers).
		Int("right_identifiers", rightStats.Identifiers).
		Int("missing", len(missing)).
		Dur("duration", result.Duration).
		Msg("reconciliation complete")

	return result, nil
}

// Inspection is the outcome of inspecting one source.
type Inspection struct {
	// Side is "left" or "right".
	Side string

	// Stats is what could be read before Err, if any.
	Stats SourceStats

	// Err is the failure, nil when the source is usable.
	Err error
}

// Inspect reads both sources of req independently, without comparing them.
// Unlike Reconcile it does not stop at the first failing source, so a single
// call reports every problem.
func Inspect(ctx context.Context, req Request) []Inspection {
	sides := []struct {
		name string
		src  config.SourceConfig
	}{
		{"left", req.Left},
		{"right", req.Right},
	}

	inspections := make([]Inspection, 0, len(sides))
	for _, side := range sides {
		inspection := Inspection{
			Side:  side.name,
			Stats: SourceStats{Label: side.src.Label, Source: side.src.Path},
		}

		where, err := compileWhere(side.name, side.src)
		if err == nil {
			_, inspection.Stats, err = extractSource(ctx, req, side.src, where)
		}
		inspection.Err = err

		inspections = append(inspections, inspection)
	}

	return inspections
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// compileWhere compiles the row filter of a source.
func compileWhere(side string, src config.SourceConfig) (*filter.Filter, error) {
	where, err := filter.Compile(src.Where)
	if err != nil {
		return nil, recerrors.NewConfigError(side+".where", "invalid row filter", err)
	}
	return where, nil
}

// extractSource opens src, extracts its identifiers and closes it again,
// whether or not extraction succeeded.
func extractSource(ctx context.Context, req Request, src config.SourceConfig, where *filter.Filter) (IdentifierSet, SourceStats, error) {
	log := logging.FromContext(ctx)
	stats := SourceStats{Label: src.Label, Source: src.Path}

	open := req.Open
	if open == nil {
		open = tabular.Open
	}

	reader, err := open(ctx, src, tabular.Options{Lenient: req.Lenient, Logger: &log})
	if err != nil {
		return nil, stats, err
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("source", src.Path).Msg("failed to close source")
		}
	}()

	set, stats, err := extract(reader, req.Field, where)
	stats.Label = src.Label
	if err != nil {
		return nil, stats, err
	}

	log.Debug().
		Str("source", src.Path).
		Int("rows", stats.Rows).
		Int("filtered", stats.Filtered).
		Int("malformed", stats.Malformed).
		Int("empty_identifiers", stats.EmptyIdentifiers).
		Int("identifiers", stats.Identifiers).
		Msg("extracted identifiers")

	if stats.Malformed > 0 {
		log.Warn().
			Str("source", src.Path).
			Int("malformed", stats.Malformed).
			Msg("tolerated rows whose width does not match the header")
	}

	return set, stats, nil
}
