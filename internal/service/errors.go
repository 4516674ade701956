package service

import (
	"errors"
	"fmt"

	"asset-service/internal/store"
)

// Invoice engine steps, reported by InvoiceStepError
const (
	StepValidating    = "validating"
	StepNumbering     = "numbering"
	StepPersisting    = "persisting"
	StepStockApplying = "stock_applying"
)

// ValidationError is malformed, out-of-range or missing input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError is a referenced entity that does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError is a duplicate asset or a concurrent duplicate request
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// DependencyError is a backing store, cache or renderer failure. Safe to retry.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// PartialApplicationError means the invoice may have been written without
// a confirmed outcome for its stock effects. The reconciler settles it.
type PartialApplicationError struct {
	InvoiceNumber string
	Err           error
}

func (e *PartialApplicationError) Error() string {
	return fmt.Sprintf("invoice %s partially applied: %v", e.InvoiceNumber, e.Err)
}

func (e *PartialApplicationError) Unwrap() error { return e.Err }

// InvoiceStepError reports which step of invoice creation failed
type InvoiceStepError struct {
	Step string
	Err  error
}

func (e *InvoiceStepError) Error() string {
	return fmt.Sprintf("invoice %s failed: %v", e.Step, e.Err)
}

func (e *InvoiceStepError) Unwrap() error { return e.Err }

// isTyped reports whether err already carries a service error type
func isTyped(err error) bool {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		de *DependencyError
		pe *PartialApplicationError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) ||
		errors.As(err, &de) || errors.As(err, &pe)
}

// translate maps store sentinels onto service errors
func translate(op, entity, id string, err error) error {
	if err == nil || isTyped(err) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, store.ErrDuplicate):
		return &ConflictError{Message: fmt.Sprintf("%s already exists", entity)}
	case errors.Is(err, store.ErrInsufficientStock):
		return &ValidationError{Field: "quantity", Message: "insufficient stock"}
	default:
		return &DependencyError{Op: op, Err: err}
	}
}
