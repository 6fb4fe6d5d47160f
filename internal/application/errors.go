package application

import "errors"

// Error kinds returned by the services. Detail is attached by wrapping with
// fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStorage      = errors.New("storage error")
)
