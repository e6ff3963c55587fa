package session

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
)

// Handler-related errors
var (
	ErrMissingName = errors.New("missing required query parameter: name")
	ErrNameTooLong = errors.New("name must be 1-200 characters")
)
