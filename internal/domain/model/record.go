package model

import "time"

// Status is the lifecycle state of a ProcessingRecord.
type Status string

// Processing statuses. Only pending is non-terminal.
const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether no further automatic transition is expected.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// ProcessingRecord is the idempotency marker for one external meeting id.
type ProcessingRecord struct {
	MeetingID    string     `json:"meetingId"`
	Status       Status     `json:"status"`
	Source       Source     `json:"source"`
	AttemptCount int        `json:"attemptCount"`
	LastError    string     `json:"lastError,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Reclaims     int        `json:"reclaims"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Outcome is the result of handing a meeting id to the gateway or worker.
type Outcome string

// Outcomes returned by value instead of signalling through errors.
const (
	OutcomeEnqueued         Outcome = "enqueued"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeRejected         Outcome = "rejected"
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeFailed           Outcome = "failed"
	OutcomeSkipped          Outcome = "skipped"
)

// OutcomeFor maps a terminal status to its outcome.
func OutcomeFor(s Status) Outcome {
	switch s {
	case StatusSucceeded:
		return OutcomeSucceeded
	case StatusSkipped:
		return OutcomeSkipped
	case StatusFailed:
		return OutcomeFailed
	default:
		return OutcomeAlreadyProcessed
	}
}
