package service

import "errors"

var (
	// ErrMissingDependency is returned by Start when the store, meeting
	// source or project registry is nil.
	ErrMissingDependency = errors.New("service dependency missing")

	// ErrNotStarted is returned by operations that need the running components.
	ErrNotStarted = errors.New("service not started")

	// ErrInvalidMeetingID is returned for an empty meeting id.
	ErrInvalidMeetingID = errors.New("invalid meeting id")
)
