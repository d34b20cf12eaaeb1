// Package errors provides the pipeline's error taxonomy. Source failures and
// parse failures are non-fatal per work item; invalid caller input propagates;
// data-quality gaps are represented as nulls in the output, never as errors.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable marks a network or source-database fetch failure.
	// The affected work item is skipped and the pipeline continues.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrCurveUnavailable marks a rate-curve payload that could not be
	// fetched or parsed for a year.
	ErrCurveUnavailable = errors.New("rate curve unavailable")

	// ErrDividendSource marks a dividend fetch/parse failure. Callers treat
	// it as non-fatal and default the dividend to 0.
	ErrDividendSource = errors.New("dividend source error")

	// ErrInvalidInput marks a violated caller precondition, such as an as-of
	// date after the expiry date.
	ErrInvalidInput = errors.New("invalid input")

	// ErrParse marks malformed source content: a table name outside the
	// naming convention or an unreadable curve payload.
	ErrParse = errors.New("parse error")
)

// TableNameError reports a table name that does not match the expected
// naming convention.
type TableNameError struct {
	Database string
	Table    string
	Reason   string
}

func (e *TableNameError) Error() string {
	return fmt.Sprintf("table name %q in %q: %s", e.Table, e.Database, e.Reason)
}

func (e *TableNameError) Unwrap() error { return ErrParse }

// CurveError reports a failed year-curve fetch or parse.
type CurveError struct {
	Year int
	Err  error
}

func (e *CurveError) Error() string {
	return fmt.Sprintf("rate curve for %d: %v", e.Year, e.Err)
}

func (e *CurveError) Unwrap() error { return ErrCurveUnavailable }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
