package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness violation such as a reused stock code.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates rejected input before any write occurred.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ConflictError blocks a delete because other records still reference the
// target. Both counts are carried so the caller can show the user what is in
// the way.
type ConflictError struct {
	Invoices      int
	DispatchNotes int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record has movements: %d invoices, %d dispatch notes", e.Invoices, e.DispatchNotes)
}

// Total returns the number of blocking records.
func (e *ConflictError) Total() int {
	return e.Invoices + e.DispatchNotes
}
