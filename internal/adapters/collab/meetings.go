package collab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/internal/domain/pipeline"
)

// MeetingClient talks to the meeting source.
type MeetingClient struct {
	c client
}

// NewMeetingClient creates a meeting source client rooted at baseURL.
func NewMeetingClient(baseURL string, opts ...Option) *MeetingClient {
	return &MeetingClient{c: newClient(baseURL, opts...)}
}

type meetingDTO struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	StartedAt       time.Time `json:"startedAt"`
	DurationSeconds int64     `json:"durationSeconds"`
}

func (d meetingDTO) toModel() model.MeetingEvent {
	return model.MeetingEvent{
		ExternalID: d.ID,
		Title:      d.Title,
		OccurredAt: d.StartedAt.UTC(),
		Duration:   time.Duration(d.DurationSeconds) * time.Second,
	}
}

// Meeting returns the metadata of one meeting.
func (m *MeetingClient) Meeting(ctx context.Context, meetingID string) (model.MeetingEvent, error) {
	var out meetingDTO
	if err := m.c.do(ctx, http.MethodGet, "/meetings/"+url.PathEscape(meetingID), nil, &out); err != nil {
		return model.MeetingEvent{}, err
	}
	ev := out.toModel()
	if ev.ExternalID == "" {
		ev.ExternalID = meetingID
	}
	return ev, nil
}

// Transcript returns the transcript text, or pipeline.ErrNoTranscript when
// the source has none.
func (m *MeetingClient) Transcript(ctx context.Context, meetingID string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	err := m.c.do(ctx, http.MethodGet, "/meetings/"+url.PathEscape(meetingID)+"/transcript", nil, &out)
	var serr *StatusError
	if errors.As(err, &serr) && serr.Status == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", pipeline.ErrNoTranscript, meetingID)
	}
	if err != nil {
		return "", err
	}
	if out.Text == "" {
		return "", fmt.Errorf("%w: %s", pipeline.ErrNoTranscript, meetingID)
	}
	return out.Text, nil
}

// Completed lists meetings that completed at or after since.
func (m *MeetingClient) Completed(ctx context.Context, since time.Time) ([]model.MeetingEvent, error) {
	var out struct {
		Meetings []meetingDTO `json:"meetings"`
	}
	q := url.Values{"since": []string{since.UTC().Format(time.RFC3339)}}
	if err := m.c.do(ctx, http.MethodGet, "/meetings?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	events := make([]model.MeetingEvent, 0, len(out.Meetings))
	for _, d := range out.Meetings {
		if d.ID == "" {
			continue
		}
		events = append(events, d.toModel())
	}
	return events, nil
}
