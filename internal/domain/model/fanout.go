package model

// ActionKind names a downstream action.
type ActionKind string

// Action kinds.
const (
	ActionTicket       ActionKind = "ticket"
	ActionTask         ActionKind = "task"
	ActionNotification ActionKind = "notification"
)

// ActionResult is the outcome of one remote call made by a fanout action.
type ActionResult struct {
	Kind     ActionKind `json:"kind"`
	TargetID string     `json:"targetId,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Succeeded reports whether the call produced its target.
func (r ActionResult) Succeeded() bool { return r.Error == "" }

// Overall summarizes a fanout.
type Overall string

// Overall fanout outcomes.
const (
	OverallSuccess Overall = "success"
	OverallPartial Overall = "partial"
	OverallFailure Overall = "failure"
)

// FanoutReport aggregates per-action results.
type FanoutReport struct {
	PerAction []ActionResult `json:"perAction"`
	Overall   Overall        `json:"overall"`
}
