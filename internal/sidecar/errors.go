package sidecar

import "errors"

var (
	ErrAlreadyRunning = errors.New("sidecar is already running")
	ErrNotRunning     = errors.New("sidecar is not running")
	ErrQueueFull      = errors.New("command queue is full")
)
