package sendwebhook

import "time"

// Defaults used by the CLI.
const (
	DefaultBaseURL    = "http://localhost:9080"
	DefaultMeetings   = 1000
	DefaultRepeat     = 2
	DefaultEvent      = "transcript.completed"
	DefaultTimeout    = 30 * time.Second
	DefaultVerifyWait = 5 * time.Second

	// IgnoredEvent is an event type the service does not subscribe to.
	IgnoredEvent = "meeting.started"
)

// Answer classifications of a single delivery.
const (
	answerEnqueued         = "enqueued"
	answerAlreadyProcessed = "already_processed"
	answerIgnored          = "ignored"
	answerRejected         = "rejected"
	answerFailed           = "failed"
)

const (
	workerChannelMultiplier = 2
	percentageMultiplier    = 100
	randomFloatDivisor      = 1_000_000
	directoryPermission     = 0o750
)
