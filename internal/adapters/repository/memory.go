package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/meetlink/internal/domain/model"
)

// MemoryStore keeps everything in process memory. It is the default backend
// for development and tests; state is lost on restart.
type MemoryStore struct {
	mu           sync.RWMutex
	records      map[string]model.ProcessingRecord
	attributions map[string][]model.Attribution
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:      make(map[string]model.ProcessingRecord),
		attributions: make(map[string][]model.Attribution),
	}
}

func (s *MemoryStore) Get(_ context.Context, meetingID string) (model.ProcessingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[meetingID]
	if !ok {
		return model.ProcessingRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Claim(_ context.Context, meetingID string, source model.Source, now time.Time, staleAfter time.Duration) (model.ProcessingRecord, error) {
	if strings.TrimSpace(meetingID) == "" {
		return model.ProcessingRecord{}, ErrInvalidInput
	}
	now = now.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[meetingID]
	if !ok {
		rec := model.ProcessingRecord{
			MeetingID: meetingID,
			Status:    model.StatusPending,
			Source:    source,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.records[meetingID] = rec
		return rec, nil
	}
	if reclaimable(existing, now, staleAfter) {
		existing.Reclaims++
		existing.Source = source
		existing.UpdatedAt = now
		s.records[meetingID] = existing
		return existing, nil
	}
	return existing, ErrAlreadyClaimed
}

func (s *MemoryStore) Update(_ context.Context, rec model.ProcessingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[rec.MeetingID]
	if !ok {
		return ErrNotFound
	}
	if existing.Reclaims != rec.Reclaims {
		return ErrAlreadyClaimed
	}
	rec.CreatedAt = existing.CreatedAt
	s.records[rec.MeetingID] = rec
	return nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (map[model.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Status]int)
	for _, rec := range s.records {
		out[rec.Status]++
	}
	return out, nil
}

func (s *MemoryStore) Replace(_ context.Context, meeting model.MeetingEvent, scored []model.ScoredCandidate, now time.Time) ([]model.Attribution, error) {
	if strings.TrimSpace(meeting.ExternalID) == "" {
		return nil, ErrInvalidInput
	}
	rows := NewAttributions(meeting, scored, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rows) == 0 {
		delete(s.attributions, meeting.ExternalID)
		return rows, nil
	}
	stored := make([]model.Attribution, len(rows))
	copy(stored, rows)
	s.attributions[meeting.ExternalID] = stored
	return rows, nil
}

func (s *MemoryStore) Read(_ context.Context, projectKeys []string, since time.Time) ([]model.Attribution, error) {
	keys := keySet(projectKeys)

	s.mu.RLock()
	out := make([]model.Attribution, 0)
	for _, rows := range s.attributions {
		for _, a := range rows {
			if a.MeetingDate.Before(since) {
				continue
			}
			if len(keys) > 0 {
				if _, ok := keys[a.ProjectKey]; !ok {
					continue
				}
			}
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	SortAttributions(out)
	return out, nil
}

func (s *MemoryStore) ForMeeting(_ context.Context, meetingID string) ([]model.Attribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.attributions[meetingID]
	out := make([]model.Attribution, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func reclaimable(rec model.ProcessingRecord, now time.Time, staleAfter time.Duration) bool {
	return staleAfter > 0 &&
		rec.Status == model.StatusPending &&
		rec.Reclaims == 0 &&
		rec.UpdatedAt.Before(now.Add(-staleAfter))
}

func keySet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}
