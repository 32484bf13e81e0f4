// =============================================================================
// Charge Reconciler - Report Module
// =============================================================================
//
// This module renders a reconciliation result on standard output. Every
// format prints the same sorted identifiers; they differ only in layout.
//
// TEXT (default):
//   Charges in unified_payments.csv that don't exist in donation_rows (18).csv:
//   ch_3NfZ...
//   ch_3Ng1...
//
//   Total missing charges: 2
//
// JSON / YAML:
//   A Summary document with the field, both sources' statistics, the
//   missing identifiers and their count.
//
// TABLE:
//   The text heading, a numbered table of identifiers and the total line.
//
// =============================================================================

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/charge-reconciler/internal/config"
	"github.com/ginjaninja78/charge-reconciler/internal/reconcile"
)

// =============================================================================
// FORMATTERS
// =============================================================================

// Formatter renders a reconciliation result.
type Formatter interface {
	Format(w io.Writer, result *reconcile.Result) error
}

// NewFormatter returns the formatter for one of the config.Format* names.
func NewFormatter(format string) (Formatter, error) {
	switch strings.ToLower(format) {
	case config.FormatText, "":
		return &TextFormatter{}, nil
	case config.FormatJSON:
		return &JSONFormatter{Indent: "  "}, nil
	case config.FormatYAML:
		return &YAMLFormatter{}, nil
	case config.FormatTable:
		return &TableFormatter{}, nil
	default:
		return nil, fmt.Errorf("invalid format %q: must be one of: text, json, yaml, table", format)
	}
}

// Write renders result to w in the named format.
func Write(w io.Writer, result *reconcile.Result, format string) error {
	formatter, err := NewFormatter(format)
	if err != nil {
		return err
	}
	return formatter.Format(w, result)
}

// TextFormatter prints the plain report.
type TextFormatter struct{}

// Format implements the Formatter interface for text output.
func (f *TextFormatter) Format(w io.Writer, result *reconcile.Result) error {
	var b strings.Builder

	b.WriteString(Heading(result))
	b.WriteByte('\n')
	for _, id := range result.Missing {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(Total(result))
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// JSONFormatter outputs the Summary as JSON.
type JSONFormatter struct {
	Indent string
}

// Format implements the Formatter interface for JSON output.
func (f *JSONFormatter) Format(w io.Writer, result *reconcile.Result) error {
	encoder := json.NewEncoder(w)
	if f.Indent != "" {
		encoder.SetIndent("", f.Indent)
	}
	return encoder.Encode(NewSummary(result))
}

// YAMLFormatter outputs the Summary as YAML.
type YAMLFormatter struct{}

// Format implements the Formatter interface for YAML output.
func (f *YAMLFormatter) Format(w io.Writer, result *reconcile.Result) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(NewSummary(result)); err != nil {
		return err
	}
	return encoder.Close()
}

// TableFormatter prints the identifiers as a numbered table.
type TableFormatter struct{}

// Format implements the Formatter interface for table output.
func (f *TableFormatter) Format(w io.Writer, result *reconcile.Result) error {
	if _, err := fmt.Fprintln(w, Heading(result)); err != nil {
		return err
	}

	table := tablewriter.NewTable(w)
	table.Header("#", result.Field)
	for i, id := range result.Missing {
		if err := table.Append(strconv.Itoa(i+1), id); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, Total(result))
	return err
}

// =============================================================================
// SHARED PIECES
// =============================================================================

// Heading names the comparison that was performed.
func Heading(result *reconcile.Result) string {
	return fmt.Sprintf("Charges in %s that don't exist in %s:", label(result.Right), label(result.Left))
}

// Total is the trailing count line.
func Total(result *reconcile.Result) string {
	return fmt.Sprintf("Total missing charges: %d", len(result.Missing))
}

func label(stats reconcile.SourceStats) string {
	if stats.Label != "" {
		return stats.Label
	}
	return stats.Source
}

// Summary is the machine-readable form of a result.
type Summary struct {
	Field        string        `json:"field" yaml:"field"`
	Left         SourceSummary `json:"left" yaml:"left"`
	Right        SourceSummary `json:"right" yaml:"right"`
	Missing      []string      `json:"missing" yaml:"missing"`
	TotalMissing int           `json:"total_missing" yaml:"total_missing"`
}

// SourceSummary describes one source in a Summary.
type SourceSummary struct {
	Label            string `json:"label" yaml:"label"`
	Source           string `json:"source" yaml:"source"`
	Rows             int    `json:"rows" yaml:"rows"`
	Filtered         int    `json:"filtered" yaml:"filtered"`
	Malformed        int    `json:"malformed" yaml:"malformed"`
	EmptyIdentifiers int    `json:"empty_identifiers" yaml:"empty_identifiers"`
	Duplicates       int    `json:"duplicates" yaml:"duplicates"`
	Identifiers      int    `json:"identifiers" yaml:"identifiers"`
}

// NewSummary builds the Summary of result.
func NewSummary(result *reconcile.Result) Summary {
	missing := result.Missing
	if missing == nil {
		missing = []string{}
	}

	return Summary{
		Field:        result.Field,
		Left:         newSourceSummary(result.Left),
		Right:        newSourceSummary(result.Right),
		Missing:      missing,
		TotalMissing: len(missing),
	}
}

func newSourceSummary(stats reconcile.SourceStats) SourceSummary {
	return SourceSummary{
		Label:            label(stats),
		Source:           stats.Source,
		Rows:             stats.Rows,
		Filtered:         stats.Filtered,
		Malformed:        stats.Malformed,
		EmptyIdentifiers: stats.EmptyIdentifiers,
		Duplicates:       stats.Duplicates(),
		Identifiers:      stats.Identifiers,
	}
}
