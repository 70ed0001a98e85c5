package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Process exit codes for each error class.
const (
	ExitOK                = 0
	ExitUnexpected        = 1
	ExitInvalidFilter     = 2
	ExitStatementRejected = 3
	ExitMissingColumns    = 4
	ExitDatabase          = 5
	ExitMapping           = 6
	ExitIO                = 7
)

// StatementRejectedError is returned when raw SQL fails the read-only guard.
// The statement is never sent to the database.
type StatementRejectedError struct {
	Reason string
}

func (e *StatementRejectedError) Error() string {
	return "statement rejected: " + e.Reason
}

// MissingColumnsError lists every required column absent from a result set,
// in canonical order.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// FormatError reports a malformed packed timestamp value.
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid packed timestamp %q: %s", e.Value, e.Reason)
}

// MappingError reports a field conversion failure for a single row.
// RowID is the raw ID column value, or "?" when the ID itself is unreadable.
type MappingError struct {
	RowID  string
	Column string
	Err    error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("row ID=%s: column %s: %v", e.RowID, e.Column, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// DatabaseError wraps a failure of the query executor.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// IOError wraps a failure of the output sink.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("output %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// InvalidFilterError reports a filter parameter outside its documented bound.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %s: %s", e.Field, e.Reason)
}

// ExitCode maps an error to the process exit code of its class.
// Unknown errors map to ExitUnexpected and nil to ExitOK.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		rejected *StatementRejectedError
		missing  *MissingColumnsError
		mapping  *MappingError
		format   *FormatError
		dbErr    *DatabaseError
		ioErr    *IOError
		filter   *InvalidFilterError
	)

	switch {
	case errors.As(err, &filter):
		return ExitInvalidFilter
	case errors.As(err, &rejected):
		return ExitStatementRejected
	case errors.As(err, &missing):
		return ExitMissingColumns
	case errors.As(err, &dbErr):
		return ExitDatabase
	case errors.As(err, &mapping), errors.As(err, &format):
		return ExitMapping
	case errors.As(err, &ioErr):
		return ExitIO
	default:
		return ExitUnexpected
	}
}
