// Package sendwebhook drives a running meetlink service with signed webhook
// deliveries, including concurrent duplicates, and reports how the service
// answered.
package sendwebhook

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Secret      string        // Shared webhook secret
	Meetings    int           // Number of distinct meeting ids to generate
	Repeat      int           // Deliveries per meeting; >1 sends duplicates
	Event       string        // Event type of every delivery
	IgnoredRate float64       // Fraction of meetings sent with an unsubscribed event type
	Workers     int           // Number of concurrent senders
	Timeout     time.Duration // HTTP request timeout
	Verify      bool          // Fetch processing records after sending
	VerifyWait  time.Duration // Pause before verification
	OutputFile  string        // Optional file receiving the generated deliveries
	Verbose     bool          // Log every non-enqueued answer
}

// Delivery is one webhook request.
type Delivery struct {
	MeetingID string `json:"meetingId"`
	Event     string `json:"event"`
}

// Stats holds run statistics.
type Stats struct {
	Meetings         int            `json:"meetings"`
	Deliveries       int            `json:"deliveries"`
	Enqueued         int            `json:"enqueued"`
	AlreadyProcessed int            `json:"alreadyProcessed"`
	Ignored          int            `json:"ignored"`
	Rejected         int            `json:"rejected"`
	Failed           int            `json:"failed"`
	Records          map[string]int `json:"records,omitempty"`
	StartTime        time.Time      `json:"startTime"`
	EndTime          time.Time      `json:"endTime"`
	Duration         time.Duration  `json:"duration"`
}
