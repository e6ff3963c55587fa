package broker

import "errors"

var (
	ErrAlreadyRunning = errors.New("broker is already running")
	ErrNotRunning     = errors.New("broker is not running")
	ErrUnknownSession = errors.New("session is not connected")
)
