package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store lookups when no row matches.
var ErrNotFound = errors.New("not found")

// InputError reports malformed invoice or purchase order data.
// It is returned before any audit stage runs.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// CollaboratorError wraps a failure of an external collaborator such as the
// invoice history store. The pipeline recovers from it locally.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// LogicError is an invariant violation inside a stage. It aborts the audit.
type LogicError struct {
	Stage  string
	Detail string
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("audit stage %s: invariant violated: %s", e.Stage, e.Detail)
}

// IsInputError reports whether err is, or wraps, an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
