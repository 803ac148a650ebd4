package effect

import "errors"

var (
	ErrEffectNotFound   = errors.New("effect not found")
	ErrInvalidMagnitude = errors.New("invalid effect magnitude")
)
