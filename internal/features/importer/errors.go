package importer

import (
	"errors"
	"fmt"

	"go-deskmigrate/internal/features/source"
)

// SchemaError means the source structure does not match the mapping:
// missing table, missing column, incompatible type. Fatal to the
// mapping that hit it; with continue_on_error the run moves on to the
// next mapping.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch on %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ValidationError means one source row failed a validation rule. Always
// recoverable: the row is recorded as failed and the run continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// TransformationError means a transformation rule failed for one row.
// Recoverable, same as a validation failure.
type TransformationError struct {
	Field string
	Err   error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation failed on %s: %v", e.Field, e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// errorKind classifies an error for the job's error log
func errorKind(err error) string {
	var ve *ValidationError
	var te *TransformationError
	var se *SchemaError
	switch {
	case source.IsConnectionError(err):
		return "connection"
	case errors.As(err, &se):
		return "schema"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &te):
		return "transformation"
	default:
		return "unknown"
	}
}

// isRecoverable reports whether processing may continue past this error.
// Connection loss is always fatal; schema mismatch is fatal to its
// mapping; everything else costs only the row that hit it.
func isRecoverable(err error) bool {
	var se *SchemaError
	if source.IsConnectionError(err) || errors.As(err, &se) {
		return false
	}
	return true
}

// mappingSkippable reports whether a failed mapping may be skipped and
// the run moved on to the next one. Only a schema mismatch qualifies,
// and only when the profile allows continuing past errors. Connection
// loss and cancellation always stop the run.
func mappingSkippable(err error, continueOnError bool) bool {
	if !continueOnError || err == errCancelled || source.IsConnectionError(err) {
		return false
	}
	var se *SchemaError
	return errors.As(err, &se)
}
