// =============================================================================
// Charge Reconciler - Tabular Sources
// =============================================================================
//
// This module reads header-first tabular sources one record at a time.
// Each record is a mapping from column name to value; there are no
// positional or schema assumptions beyond the header.
//
// SUPPORTED SOURCES:
//   - Local delimited text (.csv, .tsv, .txt)
//   - Local Excel workbooks (.xlsx, .xlsm)
//   - Google Cloud Storage objects (gs://bucket/path/file.csv)
//   - BigQuery tables (bq://project/dataset/table)
//
// USAGE:
//   reader, err := tabular.Open(ctx, sourceConfig, tabular.Options{})
//   if err != nil {
//       return err
//   }
//   defer reader.Close()
//
//   for reader.Next() {
//       record := reader.Record()
//       // ...
//   }
//
//   if err := reader.Err(); err != nil {
//       return err
//   }
//
// =============================================================================

package tabular

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/charge-reconciler/internal/config"
	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

// =============================================================================
// RECORD
// =============================================================================

// Record is a single row keyed by column name. A column missing from the
// map is absent, which is different from a column holding "".
type Record map[string]string

// Get returns the value of a column and whether it is present.
func (r Record) Get(column string) (string, bool) {
	value, ok := r[column]
	return value, ok
}

// =============================================================================
// READER INTERFACE
// =============================================================================

// Reader streams the records of one tabular source.
type Reader interface {
	// Source returns the locator the reader was opened from.
	Source() string

	// Headers returns the column names in source order.
	Headers() []string

	// Next advances to the next record. It returns false at the end of the
	// source or on error; check Err afterwards.
	Next() bool

	// Record returns the current record.
	Record() Record

	// Line returns the 1-based line or row number of the current record.
	Line() int

	// Malformed returns how many rows did not match the header width and were
	// tolerated because the reader is lenient.
	Malformed() int

	// Err returns the first error encountered while reading.
	Err() error

	// Close releases the source.
	Close() error
}

// HasColumn reports whether the reader's header contains column.
func HasColumn(r Reader, column string) bool {
	for _, h := range r.Headers() {
		if h == column {
			return true
		}
	}
	return false
}

// Options controls how readers treat rows.
type Options struct {
	// Lenient tolerates rows whose width does not match the header. Present
	// columns are kept and a warning is logged. When false such rows stop the
	// read with a malformed record error.
	Lenient bool

	// Logger receives warnings. Nil disables logging.
	Logger *zerolog.Logger
}

func (o Options) logger() *zerolog.Logger {
	if o.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return o.Logger
}

// =============================================================================
// OPEN
// =============================================================================

// Open opens the source described by src.
//
// PARAMETERS:
//   - ctx: Used by the cloud backends for the lifetime of the reader.
//   - src: The source configuration (path, format, sheet, CSV settings).
//   - opts: Row handling options.
//
// RETURNS:
//   - A Reader positioned before the first record. The caller must Close it.
//   - A source-not-found error if the source cannot be opened.
func Open(ctx context.Context, src config.SourceConfig, opts Options) (Reader, error) {
	switch {
	case strings.HasPrefix(src.Path, bigQueryScheme):
		return openBigQuery(ctx, src, opts)

	case strings.HasPrefix(src.Path, gcsScheme):
		object, err := openGCS(ctx, src.Path)
		if err != nil {
			return nil, recerrors.NewSourceNotFound(src.Path, err)
		}
		return openStream(object, src, opts)

	default:
		file, err := os.Open(src.Path)
		if err != nil {
			return nil, recerrors.NewSourceNotFound(src.Path, err)
		}
		return openStream(file, src, opts)
	}
}

// openStream picks the file format reader for an opened byte stream. The
// reader takes ownership of rc.
func openStream(rc io.ReadCloser, src config.SourceConfig, opts Options) (Reader, error) {
	switch FormatOf(src) {
	case config.SourceFormatXLSX:
		return newXLSXReader(rc, src, opts)
	default:
		return newCSVReader(rc, src, opts)
	}
}

// FormatOf returns the file format of a source: the configured format, or
// one inferred from the path extension.
func FormatOf(src config.SourceConfig) string {
	if src.Format != "" {
		return strings.ToLower(src.Format)
	}

	switch strings.ToLower(path.Ext(src.Path)) {
	case ".xlsx", ".xlsm":
		return config.SourceFormatXLSX
	case ".tsv", ".tab":
		return config.SourceFormatTSV
	default:
		return config.SourceFormatCSV
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// cleanHeaders trims header names and names empty headers by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// isRowEmpty checks if a row contains only empty values. Whitespace is a
// value.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

// buildRecord pairs a row with the header. Columns beyond the end of a short
// row are absent. With duplicate header names the last column wins.
func buildRecord(headers, row []string) Record {
	record := make(Record, len(headers))
	for i, header := range headers {
		if i < len(row) {
			record[header] = row[i]
		}
	}
	return record
}

// widthMismatch builds the cause attached to malformed record errors.
func widthMismatch(expected, got int) error {
	return fmt.Errorf("expected %d fields, got %d", expected, got)
}
