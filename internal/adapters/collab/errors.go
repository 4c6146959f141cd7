package collab

import "errors"

// Sentinel kinds for collaborator errors.
var (
	ErrNotConfigured   = errors.New("collaborator base url not configured")
	ErrUnavailable     = errors.New("collaborator unavailable")
	ErrInvalidResponse = errors.New("invalid collaborator response")
)
