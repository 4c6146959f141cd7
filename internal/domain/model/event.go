// Package model contains domain models passed between layers.
package model

import "time"

// MeetingEvent is a completed meeting as reported by the meeting source.
type MeetingEvent struct {
	ExternalID string
	Title      string
	OccurredAt time.Time
	Duration   time.Duration
}

// ProjectCandidate is a tracked project that meetings may be attributed to.
type ProjectCandidate struct {
	Key      string   // unique short code, e.g. "SUBS"
	Name     string   // human name, e.g. "Snuggle Bugz"
	Keywords []string // admin-curated keywords for the fallback matcher
}

// ScoredCandidate is the resolver's verdict for one candidate.
type ScoredCandidate struct {
	ProjectKey      string
	ProjectName     string
	Score           float64
	Confidence      float64
	MatchingFactors []string
}

// Attribution is a persisted meeting-to-project link.
type Attribution struct {
	ID              string    `json:"id"`
	MeetingID       string    `json:"meetingId"`
	MeetingTitle    string    `json:"meetingTitle"`
	MeetingDate     time.Time `json:"meetingDate"`
	ProjectKey      string    `json:"projectKey"`
	ProjectName     string    `json:"projectName"`
	Score           float64   `json:"score"`
	Confidence      float64   `json:"confidence"`
	MatchingFactors []string  `json:"matchingFactors"`
	CreatedAt       time.Time `json:"createdAt"`
	Verified        bool      `json:"verified"`
}

// Task is the unit of work handed from the gateway or the reconciliation
// job to the worker pool.
type Task struct {
	MeetingID  string
	Source     Source
	EnqueuedAt time.Time
}

// Source identifies which path discovered a meeting.
type Source string

// Task sources.
const (
	SourceWebhook   Source = "webhook"
	SourceReconcile Source = "reconcile"
	SourceBackfill  Source = "backfill"
)
