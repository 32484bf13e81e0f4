// =============================================================================
// Charge Reconciler - Delimited Text Reader
// =============================================================================
//
// Streams CSV and TSV exports record by record. The first record at
// header_row names the columns; every following record is paired with it.
//
// FEATURES:
//   - Delimiter aliases (tab, pipe, semicolon) and a tab default for .tsv
//   - Skipping of title or metadata rows above the header
//   - UTF-8 byte order mark removal and legacy encodings
//   - Lazy quotes unless strict_quotes is set
//   - Values are returned exactly as written; only header names are trimmed
//
// =============================================================================

package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/charge-reconciler/internal/config"
	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

// csvReader implements Reader over encoding/csv.
type csvReader struct {
	source    string
	closer    io.Closer
	reader    *csv.Reader
	headers   []string
	current   Record
	line      int
	malformed int
	err       error
	lenient   bool
	log       *zerolog.Logger
}

// newCSVReader reads the header of a delimited text stream and returns a
// reader positioned before the first record. rc is closed on failure.
func newCSVReader(rc io.ReadCloser, src config.SourceConfig, opts Options) (Reader, error) {
	decoded, err := decodeReader(rc, src.CSV.Encoding)
	if err != nil {
		rc.Close()
		return nil, err
	}

	reader := csv.NewReader(decoded)
	if err := configureReader(reader, src); err != nil {
		rc.Close()
		return nil, err
	}

	r := &csvReader{
		source:  src.Path,
		closer:  rc,
		reader:  reader,
		lenient: opts.Lenient,
		log:     opts.logger(),
	}

	if err := r.readHeaders(max(src.CSV.HeaderRow, 1)); err != nil {
		rc.Close()
		return nil, err
	}

	return r, nil
}

// configureReader configures the CSV reader based on the source settings.
func configureReader(reader *csv.Reader, src config.SourceConfig) error {
	delimiter, err := resolveDelimiter(src)
	if err != nil {
		return err
	}
	reader.Comma = delimiter

	// Width is checked against the header by Next, not by encoding/csv.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = !src.CSV.StrictQuotes

	return nil
}

// resolveDelimiter maps the configured delimiter to a rune. An empty
// delimiter means tab for TSV sources and comma for everything else.
func resolveDelimiter(src config.SourceConfig) (rune, error) {
	switch strings.ToLower(src.CSV.Delimiter) {
	case "":
		if FormatOf(src) == config.SourceFormatTSV {
			return '\t', nil
		}
		return ',', nil
	case "\\t", "\t", "tab":
		return '\t', nil
	case "pipe":
		return '|', nil
	case "semicolon":
		return ';', nil
	case "comma":
		return ',', nil
	}

	delimiter, size := utf8.DecodeRuneInString(src.CSV.Delimiter)
	if size != len(src.CSV.Delimiter) || delimiter == utf8.RuneError ||
		delimiter == '"' || delimiter == '\r' || delimiter == '\n' {
		return 0, recerrors.NewConfigError("csv.delimiter", fmt.Sprintf("invalid delimiter %q", src.CSV.Delimiter), nil)
	}

	return delimiter, nil
}

// readHeaders skips the rows above headerRow and reads the header. A source
// that ends before the header has no columns.
func (r *csvReader) readHeaders(headerRow int) error {
	for i := 1; i <= headerRow; i++ {
		row, err := r.reader.Read()
		if err == io.EOF {
			r.headers = []string{}
			return nil
		}
		if err != nil {
			return r.readError(err)
		}

		if i == headerRow {
			r.headers = cleanHeaders(row)
			r.line, _ = r.reader.FieldPos(0)
		}
	}

	return nil
}

// readError converts an error from encoding/csv. Syntax errors are malformed
// records at the line they start on.
func (r *csvReader) readError(err error) error {
	var parseErr *csv.ParseError
	if recerrors.As(err, &parseErr) {
		return recerrors.NewMalformedRecord(r.source, parseErr.StartLine, parseErr.Err)
	}
	return fmt.Errorf("%s: failed to read: %w", r.source, err)
}

// Next advances to the next record.
func (r *csvReader) Next() bool {
	if r.err != nil {
		return false
	}

	row, err := r.reader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		r.err = r.readError(err)
		return false
	}

	r.line, _ = r.reader.FieldPos(0)

	if len(row) != len(r.headers) {
		if !r.lenient {
			r.err = recerrors.NewMalformedRecord(r.source, r.line, widthMismatch(len(r.headers), len(row)))
			return false
		}

		r.malformed++
		r.log.Warn().
			Str("source", r.source).
			Int("line", r.line).
			Int("expected", len(r.headers)).
			Int("got", len(row)).
			Msg("row width does not match header")
	}

	r.current = buildRecord(r.headers, row)
	return true
}

func (r *csvReader) Source() string    { return r.source }
func (r *csvReader) Headers() []string { return r.headers }
func (r *csvReader) Record() Record    { return r.current }
func (r *csvReader) Line() int         { return r.line }
func (r *csvReader) Malformed() int    { return r.malformed }
func (r *csvReader) Err() error        { return r.err }

// Close closes the underlying stream.
func (r *csvReader) Close() error {
	return r.closer.Close()
}
