package service

import "errors"

// Error taxonomy. Call sites wrap these with context; callers test with errors.Is.
var (
	ErrConfig      = errors.New("configuration error")
	ErrHardware    = errors.New("hardware error")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrConcurrency = errors.New("concurrency limit")
	ErrValidation  = errors.New("invalid input")

	// ErrNotRunning is returned by StopProgram when the system is idle.
	ErrNotRunning = errors.New("no program running")
)
