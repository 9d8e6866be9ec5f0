package orgs

import (
	"errors"
	"fmt"
	"strings"
)

// BadRequestError represents a business-rule violation. Its message is
// surfaced to the caller as-is.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// NewBadRequestError creates a BadRequestError with a formatted message
func NewBadRequestError(format string, args ...interface{}) *BadRequestError {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// IsBadRequest checks if an error is (or wraps) a BadRequestError
func IsBadRequest(err error) bool {
	var target *BadRequestError
	return errors.As(err, &target)
}

// NotFoundError indicates the referenced entity does not exist or the caller
// lacks visibility. Returned uniformly to avoid leaking existence.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return e.Resource + " not found"
}

// IsNotFound checks if an error is (or wraps) a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// PlanLimitError indicates a seat adjustment was rejected by the plan's
// limits rather than by gateway failure
type PlanLimitError struct {
	Message string
}

func (e *PlanLimitError) Error() string {
	return e.Message
}

// IsPlanLimit checks if an error is (or wraps) a PlanLimitError
func IsPlanLimit(err error) bool {
	var target *PlanLimitError
	return errors.As(err, &target)
}

// AutoscaleDisabledError indicates seat autoscaling is not available for
// this deployment or organization
type AutoscaleDisabledError struct {
	Reason string
}

func (e *AutoscaleDisabledError) Error() string {
	return e.Reason
}

// InsufficientPermissionError indicates the acting principal lacks the
// permission required for the operation
type InsufficientPermissionError struct {
	Message string
}

func (e *InsufficientPermissionError) Error() string {
	return e.Message
}

// AggregateError collects the per-email failures of an invite batch. It is
// raised after the batch's compensating rollback has run.
type AggregateError struct {
	Message string
	Errs    []error
}

func (e *AggregateError) Error() string {
	if len(e.Errs) == 0 {
		return e.Message
	}
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return e.Message + ": " + strings.Join(msgs, "; ")
}

func (e *AggregateError) Unwrap() []error {
	return e.Errs
}
