package contracts

import "errors"

var (
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance means the buyer cannot cover the requested
	// amount. The conditional debit guarantees no partial deduction happened.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrContractExists means a non-rejected contract already covers the job.
	ErrContractExists = errors.New("a contract already exists for this job")

	// ErrConflict means a state transition was attempted from a state that
	// does not permit it (already-paid milestone, already-handled offer).
	ErrConflict = errors.New("conflicting state transition")

	// ErrValidation means the input failed shape or range checks before any
	// store call was made.
	ErrValidation = errors.New("validation failed")
)
