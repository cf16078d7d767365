package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validation error codes. All error objects carry a field and a code so a
// client can tell what the problem is.
const (
	// CodeMissing means a required resource does not exist.
	CodeMissing = "missing"
	// CodeMissingField means a required field has not been set.
	CodeMissingField = "missing_field"
	// CodeInvalid means the formatting of a field is invalid.
	CodeInvalid = "invalid"
	// CodeAlreadyExists means another resource has the same value for a
	// unique field.
	CodeAlreadyExists = "already_exists"
	// CodeUncategorized is for uncommon errors.
	CodeUncategorized = "uncategorized"
	// CodeReadOnly is reported when a read-only row is changed or saved.
	CodeReadOnly = "read_only"
	// CodeUnknown is for failures we could not classify.
	CodeUnknown = "unknown"
)

// StatusUnprocessable is the HTTP-style status carried by a failed
// validation.
const StatusUnprocessable = 422

// Validation sentinels. A ValidationError matches the sentinel of its code
// with errors.Is.
var (
	ErrMissing       = errors.New("resource is missing")
	ErrMissingField  = errors.New("field is mandatory")
	ErrInvalidFormat = errors.New("invalid format")
	ErrAlreadyExists = errors.New("already exists")
	ErrUncategorized = errors.New("uncategorized error")
	ErrReadOnly      = errors.New("record cannot be changed")
	ErrUnknown       = errors.New("unknown error")
)

// Persistence errors.
var (
	ErrValidationFailed            = errors.New("row contains errors")
	ErrUnsupportedParameterBinding = errors.New("store supports neither positional nor named parameters")
	ErrStoreExecution              = errors.New("store execution failed")
	ErrMissingResourceName         = errors.New("row type has no resource name")
	ErrUnknownColumn               = errors.New("column is not in the row")
	ErrTableNotFound               = errors.New("table not found")
	ErrNotFound                    = errors.New("row not found")
	ErrBatchColumnMismatch         = errors.New("batch rows do not share the same columns")
	ErrSequenceUnsupported         = errors.New("store does not support sequences")
	ErrNoPrimaryKey                = errors.New("table has no primary key")
)

var codeSentinels = map[string]error{
	CodeMissing:       ErrMissing,
	CodeMissingField:  ErrMissingField,
	CodeInvalid:       ErrInvalidFormat,
	CodeAlreadyExists: ErrAlreadyExists,
	CodeUncategorized: ErrUncategorized,
	CodeReadOnly:      ErrReadOnly,
	CodeUnknown:       ErrUnknown,
}

// ValidationError is one reported problem with a row. An empty Field means
// the error concerns the resource as a whole.
type ValidationError struct {
	Code     string
	Field    string
	Message  string
	Resource string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", e.Resource, e.Code, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s: %s", e.Resource, e.Field, e.Code, e.Message)
}

// Unwrap returns the sentinel for the error's code.
func (e ValidationError) Unwrap() error {
	if s, ok := codeSentinels[e.Code]; ok {
		return s
	}
	return ErrUnknown
}

// MarshalJSON writes the wire shape used for field-level feedback; a
// resource-level error has "field": null.
func (e ValidationError) MarshalJSON() ([]byte, error) {
	var field *string
	if e.Field != "" {
		field = &e.Field
	}
	return json.Marshal(struct {
		Code     string  `json:"code"`
		Field    *string `json:"field"`
		Message  string  `json:"message"`
		Resource string  `json:"resource"`
	}{e.Code, field, e.Message, e.Resource})
}

// ValidationFailedError aggregates the errors of one save cycle. It is
// returned by Row.Save before any statement is executed.
type ValidationFailedError struct {
	Resource string
	Errors   []ValidationError
}

func (e *ValidationFailedError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		parts[i] = ve.Error()
	}
	return fmt.Sprintf("%s: %s (%s)", e.Resource, ErrValidationFailed, strings.Join(parts, "; "))
}

// StatusCode returns 422.
func (e *ValidationFailedError) StatusCode() int { return StatusUnprocessable }

// Is matches ErrValidationFailed.
func (e *ValidationFailedError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Unwrap exposes the individual errors so errors.Is(err, ErrMissingField)
// holds when any of them is a missing field.
func (e *ValidationFailedError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		out[i] = ve
	}
	return out
}

// StoreError wraps a failure reported by the store driver. Both
// ErrStoreExecution and the driver's own error match with errors.Is.
type StoreError struct {
	Op    string // "insert", "update", "bulk insert", ...
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches ErrStoreExecution.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreExecution
}
