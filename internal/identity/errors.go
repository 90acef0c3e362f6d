package identity

import "errors"

var (
	ErrNotFound     = errors.New("identity: not found")
	ErrUnauthorized = errors.New("identity: unauthorized")
	ErrInvalidInput = errors.New("identity: invalid input")
	ErrUnavailable  = errors.New("identity: upstream unavailable")
)
