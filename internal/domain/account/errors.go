package account

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateName   = errors.New("username already taken")
)
