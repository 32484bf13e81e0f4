package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/charge-reconciler/internal/config"
	"github.com/ginjaninja78/charge-reconciler/internal/tabular"
	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

// =============================================================================
// FAKE SOURCES
// =============================================================================

// fakeReader serves records from memory and records open/close events.
type fakeReader struct {
	source  string
	headers []string
	rows    []tabular.Record
	failAt  int
	pos     int
	err     error
	events  *[]string
}

func (r *fakeReader) Source() string         { return r.source }
func (r *fakeReader) Headers() []string      { return r.headers }
func (r *fakeReader) Record() tabular.Record { return r.rows[r.pos-1] }
func (r *fakeReader) Line() int              { return r.pos + 1 }
func (r *fakeReader) Malformed() int         { return 0 }
func (r *fakeReader) Err() error             { return r.err }

func (r *fakeReader) Next() bool {
	if r.failAt > 0 && r.pos+1 == r.failAt {
		r.err = recerrors.NewMalformedRecord(r.source, r.pos+2, errors.New("boom"))
		return false
	}
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeReader) Close() error {
	*r.events = append(*r.events, "close "+r.source)
	return nil
}

// fakeSource describes an in-memory source.
type fakeSource struct {
	headers []string
	rows    []tabular.Record
	failAt  int
}

// idSource builds a single-column source of stripe_charge_id values.
func idSource(ids ...string) fakeSource {
	rows := make([]tabular.Record, len(ids))
	for i, id := range ids {
		rows[i] = tabular.Record{"stripe_charge_id": id}
	}
	return fakeSource{headers: []string{"stripe_charge_id"}, rows: rows}
}

// fakeOpener opens sources by path and appends to events.
func fakeOpener(sources map[string]fakeSource, events *[]string) Opener {
	return func(_ context.Context, src config.SourceConfig, _ tabular.Options) (tabular.Reader, error) {
		s, ok := sources[src.Path]
		if !ok {
			return nil, recerrors.NewSourceNotFound(src.Path, os.ErrNotExist)
		}
		*events = append(*events, "open "+src.Path)
		return &fakeReader{source: src.Path, headers: s.headers, rows: s.rows, failAt: s.failAt, events: events}, nil
	}
}

func request(left, right fakeSource, events *[]string) Request {
	return Request{
		Field: "stripe_charge_id",
		Left:  config.SourceConfig{Path: "a", Label: "A"},
		Right: config.SourceConfig{Path: "b", Label: "B"},
		Open:  fakeOpener(map[string]fakeSource{"a": left, "b": right}, events),
	}
}

// =============================================================================
// SET OPERATIONS
// =============================================================================

func TestIdentifierSet(t *testing.T) {
	set := NewIdentifierSet("ch_2", "", "ch_1", "ch_2")

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains("ch_1"))
	assert.False(t, set.Contains(""))
	assert.Equal(t, []string{"ch_1", "ch_2"}, set.Sorted())
	assert.Empty(t, NewIdentifierSet().Sorted())
}

func TestSortedIsByteWise(t *testing.T) {
	set := NewIdentifierSet("ch_b", "ch_B", "ch_a", "ch_10", "ch_9", "ch_é")
	assert.Equal(t, []string{"ch_10", "ch_9", "ch_B", "ch_a", "ch_b", "ch_é"}, set.Sorted())
}

func TestComputeMissing(t *testing.T) {
	a := NewIdentifierSet("ch_1", "ch_2")
	b := NewIdentifierSet("ch_2", "ch_3", "ch_4")

	missing := ComputeMissing(a, b)
	assert.Equal(t, []string{"ch_3", "ch_4"}, missing.Sorted())

	// Inputs are left untouched.
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 3, b.Len())

	// No false positives or negatives.
	for id := range missing {
		assert.True(t, b.Contains(id))
		assert.False(t, a.Contains(id))
	}
	for id := range b {
		assert.Equal(t, !a.Contains(id), missing.Contains(id), id)
	}

	// Every identifier of b is in a: nothing is missing.
	assert.Zero(t, ComputeMissing(NewIdentifierSet("ch_1", "ch_2", "ch_9"), NewIdentifierSet("ch_1", "ch_2")).Len())

	// The difference is asymmetric.
	assert.Equal(t, []string{"ch_1"}, ComputeMissing(b, a).Sorted())
}

func TestExtractIdentifiers(t *testing.T) {
	var events []string
	src := fakeSource{
		headers: []string{"amount", "stripe_charge_id"},
		rows: []tabular.Record{
			{"amount": "1", "stripe_charge_id": "ch_1"},
			{"amount": "2", "stripe_charge_id": ""},
			{"amount": "3"},
			{"amount": "4", "stripe_charge_id": "ch_1"},
			{"amount": "5", "stripe_charge_id": " ch_1"},
		},
	}
	reader, err := fakeOpener(map[string]fakeSource{"a": src}, &events)(context.Background(), config.SourceConfig{Path: "a"}, tabular.Options{})
	require.NoError(t, err)

	set, stats, err := extract(reader, "stripe_charge_id", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{" ch_1", "ch_1"}, set.Sorted(), "values are compared exactly")
	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 2, stats.EmptyIdentifiers)
	assert.Equal(t, 3, stats.WithIdentifier)
	assert.Equal(t, 2, stats.Identifiers)
	assert.Equal(t, 1, stats.Duplicates())
}

func TestExtractIdentifiersMissingColumn(t *testing.T) {
	var events []string
	src := fakeSource{headers: []string{"charge"}, rows: []tabular.Record{{"charge": "ch_1"}}}
	reader, err := fakeOpener(map[string]fakeSource{"a.csv": src}, &events)(context.Background(), config.SourceConfig{Path: "a.csv"}, tabular.Options{})
	require.NoError(t, err)

	_, err = ExtractIdentifiers(reader, "stripe_charge_id")
	require.Error(t, err)
	assert.True(t, recerrors.IsMissingColumn(err))
	assert.Contains(t, err.Error(), "a.csv")
	assert.Contains(t, err.Error(), "stripe_charge_id")
}

// =============================================================================
// PIPELINE
// =============================================================================

func TestReconcileScenarios(t *testing.T) {
	tests := []struct {
		name  string
		left  fakeSource
		right fakeSource
		want  []string
	}{
		{
			name:  "one new charge",
			left:  idSource("ch_1", "ch_2"),
			right: idSource("ch_2", "ch_3"),
			want:  []string{"ch_3"},
		},
		{
			name:  "empty left",
			left:  idSource(),
			right: idSource("ch_1"),
			want:  []string{"ch_1"},
		},
		{
			name:  "empty identifier on the right",
			left:  idSource("ch_1"),
			right: idSource(""),
			want:  []string{},
		},
		{
			name:  "right has no rows",
			left:  idSource("ch_1", "ch_2", "ch_3"),
			right: idSource(),
			want:  []string{},
		},
		{
			name:  "identical sources",
			left:  idSource("ch_2", "ch_1"),
			right: idSource("ch_1", "ch_2", "ch_1"),
			want:  []string{},
		},
		{
			name:  "unsorted input",
			left:  idSource("ch_5"),
			right: idSource("ch_9", "ch_1", "ch_5", "ch_3"),
			want:  []string{"ch_1", "ch_3", "ch_9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []string
			result, err := Reconcile(context.Background(), request(tt.left, tt.right, &events))
			require.NoError(t, err)

			assert.Equal(t, tt.want, result.Missing)
			assert.Equal(t, "stripe_charge_id", result.Field)
			assert.Equal(t, "A", result.Left.Label)
			assert.Equal(t, "B", result.Right.Label)
		})
	}
}

func TestReconcileIdempotent(t *testing.T) {
	left := idSource("ch_1", "ch_4")
	right := idSource("ch_7", "ch_2", "ch_4", "ch_3")

	var events []string
	first, err := Reconcile(context.Background(), request(left, right, &events))
	require.NoError(t, err)
	second, err := Reconcile(context.Background(), request(left, right, &events))
	require.NoError(t, err)

	assert.Equal(t, first.Missing, second.Missing)
	assert.Equal(t, first.Left, second.Left)
	assert.Equal(t, first.Right, second.Right)
}

func TestReconcileReleasesSourcesInOrder(t *testing.T) {
	var events []string
	_, err := Reconcile(context.Background(), request(idSource("ch_1"), idSource("ch_2"), &events))
	require.NoError(t, err)

	assert.Equal(t, []string{"open a", "close a", "open b", "close b"}, events)
}

func TestReconcileReleasesSourceOnFailure(t *testing.T) {
	right := idSource("ch_1", "ch_2", "ch_3")
	right.failAt = 2

	var events []string
	result, err := Reconcile(context.Background(), request(idSource("ch_1"), right, &events))
	require.Error(t, err)
	assert.Nil(t, result, "no partial result")
	assert.True(t, recerrors.IsMalformedRecord(err))

	assert.Equal(t, []string{"open a", "close a", "open b", "close b"}, events)
}

func TestReconcileMissingColumnStopsBeforeRight(t *testing.T) {
	left := fakeSource{headers: []string{"id"}, rows: []tabular.Record{{"id": "ch_1"}}}

	var events []string
	_, err := Reconcile(context.Background(), request(left, idSource("ch_2"), &events))
	require.Error(t, err)
	assert.True(t, recerrors.IsMissingColumn(err))

	var se *recerrors.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "a", se.Source)
	assert.Equal(t, []string{"open a", "close a"}, events)
}

func TestReconcileSourceNotFound(t *testing.T) {
	dir := t.TempDir()
	left := filepath.Join(dir, "donations.csv")
	require.NoError(t, os.WriteFile(left, []byte("stripe_charge_id\nch_1\n"), 0644))

	req := Request{
		Field: "stripe_charge_id",
		Left:  config.SourceConfig{Path: left},
		Right: config.SourceConfig{Path: filepath.Join(dir, "absent.csv")},
	}

	_, err := Reconcile(context.Background(), req)
	require.Error(t, err)
	assert.True(t, recerrors.IsSourceNotFound(err))
	assert.Contains(t, err.Error(), "absent.csv")
}

func TestReconcileInvalidWhere(t *testing.T) {
	var events []string
	req := request(idSource("ch_1"), idSource("ch_2"), &events)
	req.Right.Where = `row.status ==`

	_, err := Reconcile(context.Background(), req)
	require.Error(t, err)

	var ce *recerrors.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "right.where", ce.Key)
	assert.Empty(t, events, "no source is opened with an invalid filter")
}

func TestReconcileFiles(t *testing.T) {
	dir := t.TempDir()
	left := filepath.Join(dir, "donation_rows (18).csv")
	right := filepath.Join(dir, "unified_payments.csv")

	require.NoError(t, os.WriteFile(left, []byte(
		"donor,stripe_charge_id,amount\n"+
			"Ada,ch_1,10\n"+
			"Grace,,5\n"+
			"Alan,ch_2,20\n"), 0644))
	require.NoError(t, os.WriteFile(right, []byte(
		"stripe_charge_id,status,amount\n"+
			"ch_3,succeeded,1\n"+
			"ch_2,succeeded,20\n"+
			"ch_4,failed,3\n"+
			"ch_0,succeeded,9\n"+
			"ch_3,succeeded,1\n"), 0644))

	req := Request{
		Field: "stripe_charge_id",
		Left:  config.SourceConfig{Path: left, Label: "donation_rows (18).csv"},
		Right: config.SourceConfig{Path: right, Label: "unified_payments.csv", Where: `row.status == "succeeded"`},
	}

	result, err := Reconcile(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"ch_0", "ch_3"}, result.Missing)

	assert.Equal(t, 3, result.Left.Rows)
	assert.Equal(t, 1, result.Left.EmptyIdentifiers)
	assert.Equal(t, 2, result.Left.Identifiers)

	assert.Equal(t, 5, result.Right.Rows)
	assert.Equal(t, 1, result.Right.Filtered)
	assert.Equal(t, 3, result.Right.Identifiers)
	assert.Equal(t, 1, result.Right.Duplicates())
}

func TestReconcileLenientRows(t *testing.T) {
	dir := t.TempDir()
	left := filepath.Join(dir, "a.csv")
	right := filepath.Join(dir, "b.csv")

	require.NoError(t, os.WriteFile(left, []byte("stripe_charge_id,amount\nch_1,1\n"), 0644))
	// Line 3 is short but still has the identifier; line 4 lacks it.
	require.NoError(t, os.WriteFile(right, []byte("stripe_charge_id,amount\nch_1,1\nch_2\n,\n"), 0644))

	req := Request{
		Field: "stripe_charge_id",
		Left:  config.SourceConfig{Path: left},
		Right: config.SourceConfig{Path: right},
	}

	_, err := Reconcile(context.Background(), req)
	require.Error(t, err)
	assert.True(t, recerrors.IsMalformedRecord(err))

	req.Lenient = true
	result, err := Reconcile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"ch_2"}, result.Missing)
	assert.Equal(t, 1, result.Right.Malformed)
}

func TestInspect(t *testing.T) {
	var events []string
	left := fakeSource{headers: []string{"id"}, rows: []tabular.Record{{"id": "ch_1"}}}
	req := request(left, idSource("ch_1", "ch_1", ""), &events)

	inspections := Inspect(context.Background(), req)
	require.Len(t, inspections, 2)

	assert.Equal(t, "left", inspections[0].Side)
	assert.True(t, recerrors.IsMissingColumn(inspections[0].Err))
	assert.Equal(t, 1, inspections[0].Stats.Columns)

	assert.Equal(t, "right", inspections[1].Side)
	require.NoError(t, inspections[1].Err)
	assert.Equal(t, "B", inspections[1].Stats.Label)
	assert.Equal(t, 3, inspections[1].Stats.Rows)
	assert.Equal(t, 1, inspections[1].Stats.Identifiers)
	assert.Equal(t, 1, inspections[1].Stats.Duplicates())

	assert.Equal(t, []string{"open a", "close a", "open b", "close b"}, events)
}

func TestNewRequest(t *testing.T) {
	cfg := config.Default()
	cfg.LenientRows = true

	req := NewRequest(cfg)
	assert.Equal(t, config.DefaultField, req.Field)
	assert.Equal(t, config.DefaultLeftPath, req.Left.Path)
	assert.Equal(t, config.DefaultRightPath, req.Right.Path)
	assert.True(t, req.Lenient)
	assert.Nil(t, req.Open)
}
