package service_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/internal/domain/pipeline"
)

var longTranscript = strings.Repeat("We reviewed the subscription billing rollout and agreed on next steps. ", 3)

// fakeSource serves meetings from memory and counts transcript fetches.
type fakeSource struct {
	mu          sync.Mutex
	meetings    map[string]model.MeetingEvent
	transcripts map[string]string
	fetches     map[string]int
}

func newFakeSource(meetings ...model.MeetingEvent) *fakeSource {
	f := &fakeSource{
		meetings:    make(map[string]model.MeetingEvent),
		transcripts: make(map[string]string),
		fetches:     make(map[string]int),
	}
	for _, m := range meetings {
		f.meetings[m.ExternalID] = m
		f.transcripts[m.ExternalID] = longTranscript
	}
	return f
}

func (f *fakeSource) Meeting(_ context.Context, id string) (model.MeetingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return model.MeetingEvent{}, pipeline.Permanent(model.ErrRecordNotFound)
	}
	return m, nil
}

func (f *fakeSource) Transcript(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[id]++
	t, ok := f.transcripts[id]
	if !ok {
		return "", pipeline.ErrNoTranscript
	}
	return t, nil
}

func (f *fakeSource) Completed(_ context.Context, since time.Time) ([]model.MeetingEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.MeetingEvent, 0, len(f.meetings))
	for _, m := range f.meetings {
		if !m.OccurredAt.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSource) fetchCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[id]
}

var testProjects = []model.ProjectCandidate{
	{Key: "SUBS", Name: "Snuggle Bugz", Keywords: []string{"subscriptions"}},
	{Key: "OPS", Name: "Platform Operations"},
}
