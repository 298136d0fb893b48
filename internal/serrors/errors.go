// Package serrors defines the error taxonomy used across the indexing
// pipeline: configuration, store-availability, extraction, write-rejection,
// and query errors, each carrying enough context to log or retry on.
package serrors

import (
	"fmt"
	"time"
)

// ErrorType classifies an error for logging and retry decisions.
type ErrorType string

const (
	ErrorTypeConfig          ErrorType = "config"
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	ErrorTypeExtractor       ErrorType = "extractor"
	ErrorTypeWriteRejection  ErrorType = "write_rejection"
	ErrorTypeQuery           ErrorType = "query"
	ErrorTypeIO              ErrorType = "io_skipped"
)

// ConfigError represents an invalid or missing configuration option.
// Fatal: the process aborts at start-up.
type ConfigError struct {
	Field      string
	Underlying error
	Timestamp  time.Time
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Underlying: err, Timestamp: time.Now()}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s: %v", e.Field, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }

// StoreUnavailableError means the graph or metrics store could not be
// opened or reached. Fatal to the orchestrator; triggers graceful shutdown.
type StoreUnavailableError struct {
	Store      string // "graph" or "metrics"
	Underlying error
	Timestamp  time.Time
}

func NewStoreUnavailableError(store string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Store: store, Underlying: err, Timestamp: time.Now()}
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s store unavailable: %v", e.Store, e.Underlying)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Underlying }

// ExtractorError means the parser could not complete on a file. Logged at
// warn; the file is left in its previously-indexed state and retried on the
// next watcher tick.
type ExtractorError struct {
	File       string
	Underlying error
	Timestamp  time.Time
}

func NewExtractorError(file string, err error) *ExtractorError {
	return &ExtractorError{File: file, Underlying: err, Timestamp: time.Now()}
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.File, e.Underlying)
}

func (e *ExtractorError) Unwrap() error { return e.Underlying }

// WriteRejectionError is a single row failing inside an otherwise-successful
// batch (e.g. a missing relationship endpoint). Logged at debug; the batch
// continues.
type WriteRejectionError struct {
	Reason     string
	Underlying error
}

func NewWriteRejectionError(reason string, err error) *WriteRejectionError {
	return &WriteRejectionError{Reason: reason, Underlying: err}
}

func (e *WriteRejectionError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("row rejected: %s: %v", e.Reason, e.Underlying)
	}
	return fmt.Sprintf("row rejected: %s", e.Reason)
}

func (e *WriteRejectionError) Unwrap() error { return e.Underlying }

// QueryError means a user-supplied query was malformed. Surfaced with the
// store's own error text; does not alter state.
type QueryError struct {
	Query      string
	Underlying error
}

func NewQueryError(query string, err error) *QueryError {
	return &QueryError{Query: query, Underlying: err}
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v (query: %s)", e.Underlying, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Underlying }

// MultiError aggregates independent failures from a batch operation where
// individual row failures are collected rather than aborting the batch.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error { return e.Errors }
