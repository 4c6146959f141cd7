package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel kinds for pipeline errors.
var (
	// ErrPermanent marks failures that retrying cannot fix (4xx responses,
	// malformed payloads).
	ErrPermanent = errors.New("permanent failure")
	// ErrNoTranscript reports that the meeting has no transcript.
	ErrNoTranscript = errors.New("transcript not available")
	// ErrRetriesExhausted wraps the last error once every attempt failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}
