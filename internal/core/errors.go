package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crmsync/internal/csvcodec"
)

var (
	// ErrNotFound is returned when a record does not exist in the tenant.
	ErrNotFound = errors.New("record not found")

	// ErrEmptyInput is returned when an import has no data rows.
	ErrEmptyInput = csvcodec.ErrEmptyInput

	// ErrNothingToReconcile is returned by Reconcile when the lead is already
	// converted or no contact shares its email.
	ErrNothingToReconcile = errors.New("nothing to reconcile")

	// ErrLeadConverted is returned when a converted lead is edited.
	ErrLeadConverted = errors.New("lead already converted")
)

// ConflictError reports that a write would duplicate an existing record.
type ConflictError struct {
	Kind       Kind      // Kind of the existing record
	Field      Field     // Field that collided (name or email)
	Identity   string    // Human-readable label of the existing record
	ExistingID uuid.UUID // Zero when the store could not identify it

	// AlreadyContact is set when a lead's email already belongs to a contact.
	AlreadyContact bool
}

func (e *ConflictError) Error() string {
	if e.AlreadyContact {
		return fmt.Sprintf("duplicate: email already belongs to contact %s", e.Identity)
	}
	if e.Identity == "" {
		return fmt.Sprintf("duplicate: %s with this %s already exists", e.Kind.Singular(), e.Field)
	}
	return fmt.Sprintf("duplicate: %s %s already exists", e.Kind.Singular(), e.Identity)
}

// StoreError wraps an I/O failure from a RecordStore.
type StoreError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *StoreError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsConflict reports whether err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// IsStoreError reports whether err is or wraps a *StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
