package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/meetlink/internal/domain/fanout"
	"github.com/okian/meetlink/internal/domain/model"
)

// TrackerClient files tickets in the project tracker.
type TrackerClient struct {
	c client
}

// NewTrackerClient creates a tracker client rooted at baseURL.
func NewTrackerClient(baseURL string, opts ...Option) *TrackerClient {
	return &TrackerClient{c: newClient(baseURL, opts...)}
}

// CreateTicket files t and returns the ticket id.
func (t *TrackerClient) CreateTicket(ctx context.Context, ticket fanout.Ticket) (string, error) {
	return t.c.create(ctx, "/tickets", ticket)
}

// TaskClient creates tasks in the task system.
type TaskClient struct {
	c client
}

// NewTaskClient creates a task client rooted at baseURL.
func NewTaskClient(baseURL string, opts ...Option) *TaskClient {
	return &TaskClient{c: newClient(baseURL, opts...)}
}

// CreateTask creates item and returns the task id.
func (t *TaskClient) CreateTask(ctx context.Context, item fanout.TaskItem) (string, error) {
	return t.c.create(ctx, "/tasks", item)
}

// ChatClient posts chat messages.
type ChatClient struct {
	c client
}

// NewChatClient creates a chat client rooted at baseURL.
func NewChatClient(baseURL string, opts ...Option) *ChatClient {
	return &ChatClient{c: newClient(baseURL, opts...)}
}

// Notify posts m and returns the message id.
func (ch *ChatClient) Notify(ctx context.Context, m fanout.Message) (string, error) {
	return ch.c.create(ctx, "/messages", m)
}

// OperatorAlerter tells operators about meetings that failed for good.
type OperatorAlerter struct {
	notifier fanout.Notifier
	channel  string
}

// NewOperatorAlerter posts alerts to channel through notifier.
func NewOperatorAlerter(notifier fanout.Notifier, channel string) *OperatorAlerter {
	return &OperatorAlerter{notifier: notifier, channel: channel}
}

// Alert posts a short failure notice for rec.
func (o *OperatorAlerter) Alert(ctx context.Context, rec model.ProcessingRecord) error {
	text := fmt.Sprintf("Meeting %s failed after %d attempt(s) (source %s): %s",
		rec.MeetingID, rec.AttemptCount, rec.Source, rec.LastError)
	if rec.CompletedAt != nil {
		text += " at " + rec.CompletedAt.UTC().Format(time.RFC3339)
	}
	_, err := o.notifier.Notify(ctx, fanout.Message{Channel: o.channel, Text: text})
	return err
}
