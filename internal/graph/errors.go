package graph

import (
	"errors"
	"fmt"
)

// ValidationReason identifies which structural rule a write violated.
type ValidationReason string

const (
	ReasonHierarchyMismatch    ValidationReason = "hierarchy_mismatch"
	ReasonRootMustHaveNoParent ValidationReason = "root_must_have_no_parent"
	ReasonSelfLoop             ValidationReason = "self_loop"
	ReasonDuplicateEdge        ValidationReason = "duplicate_edge"
	ReasonCircularPrerequisite ValidationReason = "circular_prerequisite"
	ReasonInvalidEnumValue     ValidationReason = "invalid_enum_value"
	ReasonOutOfRangeValue      ValidationReason = "out_of_range_value"
	ReasonMissingRequiredField ValidationReason = "missing_required_field"
	ReasonImmutableField       ValidationReason = "immutable_field"
)

// ValidationError reports structurally invalid caller input. Every validation
// failure is surfaced synchronously at the offending call; nothing is silently
// corrected.
type ValidationError struct {
	Reason ValidationReason
	Msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Msg)
}

func validationf(reason ValidationReason, format string, args ...interface{}) error {
	return &ValidationError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError with the given reason.
func IsValidation(err error, reason ValidationReason) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Reason == reason
}

// ErrNotFound is returned when a referenced node or edge id does not exist,
// on reads, updates, deletes, and as an edge endpoint on create.
var ErrNotFound = errors.New("not found")

// StorageError wraps a backend failure the engine does not interpret.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
