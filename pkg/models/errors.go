package models

import "errors"

var (
	// ErrInvalidInput is returned for submissions that fail validation.
	// No request is created when it is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for unknown request tokens.
	ErrNotFound = errors.New("request not found")

	// ErrInvalidTransition is returned when a chunk is asked to skip or repeat a state.
	ErrInvalidTransition = errors.New("invalid chunk transition")
)
