package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the account balance
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateRequest is returned when an idempotency key was already used
	// for a successful debit within the dedupe horizon
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrAccountNotFound is returned when the account row doesn't exist
	ErrAccountNotFound = errors.New("account not found")
)

// InsufficientFundsError carries the amounts so callers can surface how much
// the operation required versus what the account holds.
type InsufficientFundsError struct {
	Required int64
	Balance  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, balance %d", e.Required, e.Balance)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}
