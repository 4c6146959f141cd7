package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrInvalidSince    = errors.New("invalid since; must be RFC3339")
	ErrInvalidBackfill = errors.New("invalid backfill; must be a boolean")
)
