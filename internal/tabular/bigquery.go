// =============================================================================
// Charge Reconciler - BigQuery Table Reader
// =============================================================================
//
// Reads a BigQuery table as a tabular source. The header is the table
// schema's top-level field names; each table row is one record.
//
// LOCATORS:
//   bq://project/dataset/table
//   bq://project.dataset.table
//
// VALUE MAPPING:
//   - NULL is an absent value, so a NULL identifier is skipped like "".
//   - STRING is passed through unchanged.
//   - TIMESTAMP is formatted as RFC 3339.
//   - Everything else uses its default Go formatting.
//
// Rows always match the schema, so this reader never reports malformed rows.
//
// =============================================================================

package tabular

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/ginjaninja78/charge-reconciler/internal/config"
	recerrors "github.com/ginjaninja78/charge-reconciler/pkg/errors"
)

const bigQueryScheme = "bq://"

// tableRef identifies a BigQuery table.
type tableRef struct {
	Project string
	Dataset string
	Table   string
}

// parseBigQueryURI parses bq://project/dataset/table or
// bq://project.dataset.table.
func parseBigQueryURI(uri string) (tableRef, error) {
	rest, ok := strings.CutPrefix(uri, bigQueryScheme)
	if !ok {
		return tableRef{}, fmt.Errorf("not a BigQuery URI: %q", uri)
	}

	sep := "."
	if strings.Contains(rest, "/") {
		sep = "/"
	}

	parts := strings.Split(rest, sep)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return tableRef{}, fmt.Errorf("invalid BigQuery URI %q, expected bq://project/dataset/table", uri)
	}

	return tableRef{Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil
}

// bigQueryReader implements Reader over a table row iterator.
type bigQueryReader struct {
	source  string
	client  *bigquery.Client
	it      *bigquery.RowIterator
	headers []string
	current Record
	line    int
	err     error
}

// openBigQuery reads the table schema and starts a full table read.
func openBigQuery(ctx context.Context, src config.SourceConfig, _ Options) (Reader, error) {
	ref, err := parseBigQueryURI(src.Path)
	if err != nil {
		return nil, recerrors.NewSourceNotFound(src.Path, err)
	}

	client, err := bigquery.NewClient(ctx, ref.Project)
	if err != nil {
		return nil, recerrors.NewSourceNotFound(src.Path, fmt.Errorf("create bigquery client: %w", err))
	}

	table := client.Dataset(ref.Dataset).Table(ref.Table)

	meta, err := table.Metadata(ctx)
	if err != nil {
		client.Close()
		return nil, recerrors.NewSourceNotFound(src.Path, fmt.Errorf("reading table metadata: %w", err))
	}

	headers := make([]string, len(meta.Schema))
	for i, field := range meta.Schema {
		headers[i] = field.Name
	}

	return &bigQueryReader{
		source:  src.Path,
		client:  client,
		it:      table.Read(ctx),
		headers: headers,
	}, nil
}

// Next advances to the next table row.
func (r *bigQueryReader) Next() bool {
	if r.err != nil {
		return false
	}

	var row map[string]bigquery.Value
	err := r.it.Next(&row)
	if err == iterator.Done {
		return false
	}
	if err != nil {
		r.err = fmt.Errorf("%s: iterating rows: %w", r.source, err)
		return false
	}

	r.line++
	r.current = make(Record, len(row))
	for column, value := range row {
		if value == nil {
			continue
		}
		r.current[column] = formatValue(value)
	}

	return true
}

// formatValue renders a BigQuery cell as text.
func formatValue(value bigquery.Value) string {
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

func (r *bigQueryReader) Source() string    { return r.source }
func (r *bigQueryReader) Headers() []string { return r.headers }
func (r *bigQueryReader) Record() Record    { return r.current }
func (r *bigQueryReader) Line() int         { return r.line }
func (r *bigQueryReader) Malformed() int    { return 0 }
func (r *bigQueryReader) Err() error        { return r.err }

// Close closes the BigQuery client.
func (r *bigQueryReader) Close() error {
	return r.client.Close()
}
