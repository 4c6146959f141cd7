// Package repository persists processing records and meeting attributions.
package repository

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/internal/domain/resolver"
)

// ProcessingStore is the idempotency store. The claim is the single
// mutual-exclusion primitive shared by the webhook and reconciliation paths.
type ProcessingStore interface {
	// Get returns the record for meetingID or ErrNotFound.
	Get(ctx context.Context, meetingID string) (model.ProcessingRecord, error)

	// Claim atomically inserts a pending record. If a record already exists
	// it returns that record and ErrAlreadyClaimed, unless the record is
	// pending, last touched before now-staleAfter and never reclaimed: then
	// it is reclaimed once and returned with a nil error. staleAfter <= 0
	// disables reclaiming.
	Claim(ctx context.Context, meetingID string, source model.Source, now time.Time, staleAfter time.Duration) (model.ProcessingRecord, error)

	// Update overwrites the mutable fields of an existing record. The write
	// only lands while the stored reclaim count equals rec.Reclaims; a holder
	// superseded by a reclaim gets ErrAlreadyClaimed. Reclaims itself is
	// only ever changed by Claim.
	Update(ctx context.Context, rec model.ProcessingRecord) error

	// CountByStatus returns the number of records per status.
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
}

// AttributionStore holds the current attribution set of every meeting.
type AttributionStore interface {
	// Replace deletes every attribution of meeting and inserts one row per
	// candidate scoring above the resolver threshold, in one transaction.
	Replace(ctx context.Context, meeting model.MeetingEvent, scored []model.ScoredCandidate, now time.Time) ([]model.Attribution, error)

	// Read returns attributions of the given projects (all when empty) for
	// meetings on or after since, newest meeting first then highest score.
	Read(ctx context.Context, projectKeys []string, since time.Time) ([]model.Attribution, error)

	// ForMeeting returns the attributions of one meeting, highest score first.
	ForMeeting(ctx context.Context, meetingID string) ([]model.Attribution, error)
}

// Store is a complete persistence backend.
type Store interface {
	ProcessingStore
	AttributionStore
	Close() error
}

// NewAttributions builds the rows Replace persists: candidates above the
// threshold, with fresh ids and two-decimal score and confidence.
func NewAttributions(meeting model.MeetingEvent, scored []model.ScoredCandidate, now time.Time) []model.Attribution {
	out := make([]model.Attribution, 0, len(scored))
	for _, s := range resolver.AboveThreshold(scored) {
		factors := make([]string, len(s.MatchingFactors))
		copy(factors, s.MatchingFactors)
		out = append(out, model.Attribution{
			ID:              uuid.NewString(),
			MeetingID:       meeting.ExternalID,
			MeetingTitle:    meeting.Title,
			MeetingDate:     meeting.OccurredAt.UTC(),
			ProjectKey:      s.ProjectKey,
			ProjectName:     s.ProjectName,
			Score:           round2(s.Score),
			Confidence:      round2(s.Confidence),
			MatchingFactors: factors,
			CreatedAt:       now.UTC(),
		})
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortAttributions orders rows the way Read returns them: newest meeting
// first, then highest score, then project key.
func SortAttributions(rows []model.Attribution) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].MeetingDate.Equal(rows[j].MeetingDate) {
			return rows[i].MeetingDate.After(rows[j].MeetingDate)
		}
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].ProjectKey < rows[j].ProjectKey
	})
}
