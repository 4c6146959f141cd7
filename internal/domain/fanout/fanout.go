// Package fanout turns a resolved meeting into downstream actions: tracker
// tickets, tasks and a chat notification. Actions are independent; one
// failing never prevents the others from running.
package fanout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/pkg/logger"
	"github.com/okian/meetlink/pkg/metrics"
)

// DefaultBatchDelay separates consecutive remote calls of one action.
const DefaultBatchDelay = 250 * time.Millisecond

// Ticket is an issue filed in the project tracker.
type Ticket struct {
	ProjectKey  string     `json:"projectKey"`
	MeetingID   string     `json:"meetingId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
}

// TaskItem is a personal task created in the task system.
type TaskItem struct {
	MeetingID   string     `json:"meetingId"`
	ProjectKey  string     `json:"projectKey,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
}

// Message is a chat notification.
type Message struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Tracker files tickets and returns the created ticket id.
type Tracker interface {
	CreateTicket(ctx context.Context, t Ticket) (string, error)
}

// TaskCreator creates tasks and returns the created task id.
type TaskCreator interface {
	CreateTask(ctx context.Context, t TaskItem) (string, error)
}

// Notifier posts chat messages and returns the message id.
type Notifier interface {
	Notify(ctx context.Context, m Message) (string, error)
}

// Executor runs every eligible action for a meeting.
type Executor struct {
	tracker  Tracker
	tasks    TaskCreator
	notifier Notifier
	channel  string
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logger   logger.Logger
}

// New creates an Executor. Actions without a configured collaborator are
// never eligible.
func New(opts ...Option) *Executor {
	e := &Executor{
		delay:  DefaultBatchDelay,
		sleep:  sleepContext,
		logger: logger.Get().Named("fanout"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the eligible actions for meeting and aggregates their results.
// It never returns an error; failures are reported per action.
func (e *Executor) Execute(ctx context.Context, meeting model.MeetingEvent, attributions []model.Attribution, analysis model.Analysis) model.FanoutReport {
	var results []model.ActionResult

	items := model.ActionItemsOf(analysis)
	if len(attributions) > 0 && len(items) > 0 {
		top := attributions[0]
		if e.tracker != nil {
			results = append(results, e.batch(ctx, model.ActionTicket, items, func(ctx context.Context, it model.ActionItem) (string, error) {
				return e.tracker.CreateTicket(ctx, Ticket{
					ProjectKey:  top.ProjectKey,
					MeetingID:   meeting.ExternalID,
					Title:       it.Title,
					Description: it.Description,
					Assignee:    it.Assignee,
					Priority:    it.Priority,
					Due:         it.Due,
				})
			})...)
		}
		if e.tasks != nil {
			results = append(results, e.batch(ctx, model.ActionTask, items, func(ctx context.Context, it model.ActionItem) (string, error) {
				return e.tasks.CreateTask(ctx, TaskItem{
					MeetingID:   meeting.ExternalID,
					ProjectKey:  top.ProjectKey,
					Title:       it.Title,
					Description: it.Description,
					Assignee:    it.Assignee,
					Due:         it.Due,
				})
			})...)
		}
	}

	if e.notifier != nil && e.channel != "" {
		msg := Message{Channel: e.channel, Text: NotificationText(meeting, attributions, analysis)}
		results = append(results, e.call(ctx, model.ActionNotification, func(ctx context.Context) (string, error) {
			return e.notifier.Notify(ctx, msg)
		}))
	}

	report := model.FanoutReport{PerAction: results, Overall: Aggregate(results)}
	metrics.RecordFanoutReport(string(report.Overall))
	return report
}

// batch issues one call per action item, pausing between calls. Items left
// when ctx ends are reported as failed.
func (e *Executor) batch(ctx context.Context, kind model.ActionKind, items []model.ActionItem,
	fn func(context.Context, model.ActionItem) (string, error),
) []model.ActionResult {
	out := make([]model.ActionResult, 0, len(items))
	for i, it := range items {
		if i > 0 && e.delay > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				for range items[i:] {
					out = append(out, e.record(kind, "", err))
				}
				return out
			}
		}
		out = append(out, e.call(ctx, kind, func(ctx context.Context) (string, error) { return fn(ctx, it) }))
	}
	return out
}

// call runs fn, converting errors and panics into a failed result.
func (e *Executor) call(ctx context.Context, kind model.ActionKind, fn func(context.Context) (string, error)) (res model.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "fanout action panicked", logger.String("kind", string(kind)), logger.Any("panic", r))
			res = e.record(kind, "", fmt.Errorf("panic: %v", r))
		}
	}()
	id, err := fn(ctx)
	if err != nil {
		e.logger.Warn(ctx, "fanout action failed", logger.String("kind", string(kind)), logger.Error(err))
	}
	return e.record(kind, id, err)
}

func (e *Executor) record(kind model.ActionKind, id string, err error) model.ActionResult {
	res := model.ActionResult{Kind: kind, TargetID: id}
	result := "ok"
	if err != nil {
		res.TargetID = ""
		res.Error = err.Error()
		result = "error"
	}
	metrics.RecordFanoutAction(string(kind), result)
	return res
}

// Aggregate derives the overall outcome: success when every action
// succeeded, partial when results are mixed, failure otherwise (including
// when nothing was eligible).
func Aggregate(results []model.ActionResult) model.Overall {
	if len(results) == 0 {
		return model.OverallFailure
	}
	ok := 0
	for _, r := range results {
		if r.Succeeded() {
			ok++
		}
	}
	switch ok {
	case len(results):
		return model.OverallSuccess
	case 0:
		return model.OverallFailure
	default:
		return model.OverallPartial
	}
}

// NotificationText summarizes a meeting and its attributed projects.
func NotificationText(meeting model.MeetingEvent, attributions []model.Attribution, analysis model.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting %q", meeting.Title)
	if len(attributions) == 0 {
		b.WriteString(" was not attributed to any project.")
	} else {
		parts := make([]string, 0, len(attributions))
		for _, a := range attributions {
			parts = append(parts, fmt.Sprintf("%s (%.0f%%)", a.ProjectKey, a.Confidence*100))
		}
		fmt.Fprintf(&b, " attributed to %s.", strings.Join(parts, ", "))
	}
	if full, ok := analysis.(model.FullAnalysis); ok {
		if full.Summary != "" {
			b.WriteString("\n")
			b.WriteString(full.Summary)
		}
		if n := len(full.ActionItems); n > 0 {
			fmt.Fprintf(&b, "\n%d action item(s).", n)
		}
	}
	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
