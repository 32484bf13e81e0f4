// =============================================================================
// Charge Reconciler - Excel Workbook Reader
// =============================================================================
//
// Streams one worksheet of an .xlsx workbook. The worksheet is laid out like
// a CSV export: a header row naming the columns, then one record per row.
//
// NOTES:
//   - The sheet is selected by the source's `sheet` setting, otherwise the
//     first sheet of the workbook is used.
//   - csv.header_row applies here as well; rows above it are skipped.
//   - Excel does not store trailing empty cells, so short rows are padded
//     with "" rather than treated as malformed. Rows wider than the header
//     are malformed.
//   - Fully empty rows are skipped.
//
// =============================================================================

package tabular

import (
	"fmt"
	"io"
	"slices"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/charge-reconciler/internal/config"
	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

// xlsxReader implements Reader over an excelize row iterator.
type xlsxReader struct {
	source    string
	sheet     string
	closer    io.Closer
	file      *excelize.File
	rows      *excelize.Rows
	headers   []string
	current   Record
	line      int
	malformed int
	err       error
	lenient   bool
	log       *zerolog.Logger
}

// newXLSXReader opens the configured worksheet and reads its header. rc is
// closed on failure.
func newXLSXReader(rc io.ReadCloser, src config.SourceConfig, opts Options) (Reader, error) {
	f, err := excelize.OpenReader(rc)
	if err != nil {
		rc.Close()
		return nil, recerrors.NewSourceNotFound(src.Path, fmt.Errorf("failed to open workbook: %w", err))
	}

	sheet, err := selectSheet(f, src.Sheet)
	if err != nil {
		f.Close()
		rc.Close()
		return nil, recerrors.NewSourceNotFound(src.Path, err)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		rc.Close()
		return nil, recerrors.NewSourceNotFound(src.Path, fmt.Errorf("failed to read sheet %q: %w", sheet, err))
	}

	r := &xlsxReader{
		source:  src.Path,
		sheet:   sheet,
		closer:  rc,
		file:    f,
		rows:    rows,
		lenient: opts.Lenient,
		log:     opts.logger(),
	}

	if err := r.readHeaders(max(src.CSV.HeaderRow, 1)); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

// selectSheet returns the requested sheet, or the first sheet when none is
// requested.
func selectSheet(f *excelize.File, requested string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	if requested == "" {
		return sheets[0], nil
	}

	if !slices.Contains(sheets, requested) {
		return "", fmt.Errorf("sheet %q not found (available: %v)", requested, sheets)
	}

	return requested, nil
}

// readHeaders skips the rows above headerRow and reads the header.
func (r *xlsxReader) readHeaders(headerRow int) error {
	for r.line < headerRow {
		if !r.rows.Next() {
			if err := r.rows.Error(); err != nil {
				return recerrors.NewMalformedRecord(r.source, r.line+1, err)
			}
			r.headers = []string{}
			return nil
		}
		r.line++

		row, err := r.rows.Columns()
		if err != nil {
			return recerrors.NewMalformedRecord(r.source, r.line, err)
		}

		if r.line == headerRow {
			r.headers = cleanHeaders(row)
		}
	}

	return nil
}

// Next advances to the next non-empty row.
func (r *xlsxReader) Next() bool {
	if r.err != nil {
		return false
	}

	for r.rows.Next() {
		r.line++

		row, err := r.rows.Columns()
		if err != nil {
			r.err = recerrors.NewMalformedRecord(r.source, r.line, err)
			return false
		}

		if isRowEmpty(row) {
			continue
		}

		if len(row) > len(r.headers) {
			if !r.lenient {
				r.err = recerrors.NewMalformedRecord(r.source, r.line, widthMismatch(len(r.headers), len(row)))
				return false
			}

			r.malformed++
			r.log.Warn().
				Str("source", r.source).
				Str("sheet", r.sheet).
				Int("row", r.line).
				Int("expected", len(r.headers)).
				Int("got", len(row)).
				Msg("row is wider than header")
		}

		for len(row) < len(r.headers) {
			row = append(row, "")
		}

		r.current = buildRecord(r.headers, row)
		return true
	}

	if err := r.rows.Error(); err != nil {
		r.err = recerrors.NewMalformedRecord(r.source, r.line+1, err)
	}

	return false
}

func (r *xlsxReader) Source() string    { return r.source }
func (r *xlsxReader) Headers() []string { return r.headers }
func (r *xlsxReader) Record() Record    { return r.current }
func (r *xlsxReader) Line() int         { return r.line }
func (r *xlsxReader) Malformed() int    { return r.malformed }
func (r *xlsxReader) Err() error        { return r.err }

// Close releases the row iterator, the workbook and the underlying stream.
func (r *xlsxReader) Close() error {
	var first error
	for _, closeFn := range []func() error{r.rows.Close, r.file.Close, r.closer.Close} {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
