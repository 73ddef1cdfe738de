package apperrors

import "errors"

// Standardized Service Errors
var (
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("config store unavailable")
	ErrBreakerOpen      = errors.New("circuit breaker open")
	ErrQueueFull        = errors.New("publish queue full")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrNotConnected     = errors.New("not connected")
	ErrUnknownEvent     = errors.New("unknown event type")
	ErrDecode           = errors.New("message decode failed")
	ErrShuttingDown     = errors.New("service shutting down")
)
