// =============================================================================
// Charge Reconciler - Error Taxonomy
// =============================================================================
//
// Package errors defines the failure kinds a reconciliation run can end with.
// Every fatal failure carries the source it happened in so the diagnostic
// printed to the user names both the source and the failure.
//
// KINDS:
//   - ErrSourceNotFound  : a source cannot be opened
//   - ErrMissingColumn   : the identifier column is absent from the header
//   - ErrMalformedRecord : a row does not have the shape of the header
//
// =============================================================================

package errors

import (
	"errors"
	"fmt"
)

// New, Is and As are re-exported so callers need a single errors import.
var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrSourceNotFound indicates that a tabular source could not be opened.
	ErrSourceNotFound = errors.New("source not found")

	// ErrMissingColumn indicates that the identifier column is not in the header.
	ErrMissingColumn = errors.New("missing column")

	// ErrMalformedRecord indicates that a row could not be read as a record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidConfig indicates a configuration value that cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// =============================================================================
// SOURCE ERROR
// =============================================================================

// SourceError is a failure tied to one tabular source.
type SourceError struct {
	// Kind is one of the sentinel errors above.
	Kind error

	// Source is the locator (path or URI) of the source.
	Source string

	// Column is set for missing column failures.
	Column string

	// Line is the 1-based line or row number, 0 when not row specific.
	Line int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	var msg string
	switch e.Kind {
	case ErrMissingColumn:
		msg = fmt.Sprintf("%s: column %q not found in header", e.Source, e.Column)
	case ErrMalformedRecord:
		msg = fmt.Sprintf("%s: malformed record at line %d", e.Source, e.Line)
	case ErrSourceNotFound:
		msg = fmt.Sprintf("%s: cannot open source", e.Source)
	default:
		msg = fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *SourceError) Is(target error) bool {
	return target == e.Kind
}

// NewSourceNotFound wraps an open failure for source.
func NewSourceNotFound(source string, err error) *SourceError {
	return &SourceError{Kind: ErrSourceNotFound, Source: source, Err: err}
}

// NewMissingColumn reports that column is absent from the header of source.
func NewMissingColumn(source, column string) *SourceError {
	return &SourceError{Kind: ErrMissingColumn, Source: source, Column: column}
}

// NewMalformedRecord reports a row of source that could not be read.
func NewMalformedRecord(source string, line int, err error) *SourceError {
	return &SourceError{Kind: ErrMalformedRecord, Source: source, Line: line, Err: err}
}

// IsSourceNotFound checks if an error is a source-not-found error.
func IsSourceNotFound(err error) bool {
	return errors.Is(err, ErrSourceNotFound)
}

// IsMissingColumn checks if an error is a missing-column error.
func IsMissingColumn(err error) bool {
	return errors.Is(err, ErrMissingColumn)
}

// IsMalformedRecord checks if an error is a malformed-record error.
func IsMalformedRecord(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}

// =============================================================================
// CONFIG ERROR
// =============================================================================

// ConfigError represents a configuration value that cannot be used.
type ConfigError struct {
	Key     string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("configuration error in %s: %s", e.Key, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(key, message string, err error) *ConfigError {
	return &ConfigError{Key: key, Message: message, Err: err}
}
