package cooldown

import (
	"errors"
	"fmt"
)

// ErrCooldownActive is returned when the required wait has not elapsed
var ErrCooldownActive = errors.New("cooldown active")

// CooldownActiveError carries the remaining wait for client backoff.
type CooldownActiveError struct {
	RemainingSeconds int64
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active: retry in %ds", e.RemainingSeconds)
}

func (e *CooldownActiveError) Unwrap() error {
	return ErrCooldownActive
}
