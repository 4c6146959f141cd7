package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/meetlink/internal/adapters/registry"
	"github.com/okian/meetlink/internal/adapters/repository"
	service "github.com/okian/meetlink/internal/app"
	"github.com/okian/meetlink/internal/domain/gateway"
	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/internal/domain/reconcile"
)

const testSecret = "integration-secret"

func delivery(id, event string) ([]byte, string) {
	body, _ := json.Marshal(map[string]string{"meetingId": id, "event": event})
	return body, gateway.SignatureHeader([]byte(testSecret), body)
}

// lockedStore fails the first claims as a busy database would.
type lockedStore struct {
	*repository.MemoryStore
	failures atomic.Int32
}

func (l *lockedStore) Claim(ctx context.Context, meetingID string, source model.Source, now time.Time, staleAfter time.Duration) (model.ProcessingRecord, error) {
	if l.failures.Add(-1) >= 0 {
		return model.ProcessingRecord{}, errors.New("database is locked")
	}
	return l.MemoryStore.Claim(ctx, meetingID, source, now, staleAfter)
}

func waitForStatus(ctx context.Context, svc *service.Service, id string) model.ProcessingRecord {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := svc.Record(ctx, id)
		if err == nil && rec.Status.Terminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec, _ := svc.Record(ctx, id)
	return rec
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a running service", t, func() {
		now := time.Now().UTC()
		meeting := model.MeetingEvent{ExternalID: "m-100", Title: "SUBS Weekly Sync", OccurredAt: now.Add(-time.Hour), Duration: 30 * time.Minute}
		missed := model.MeetingEvent{ExternalID: "m-200", Title: "Snuggle Bugz planning", OccurredAt: now.Add(-2 * time.Hour)}
		source := newFakeSource(meeting, missed)
		store := repository.NewMemoryStore()

		svc := service.New(store, source, registry.NewStatic(testProjects),
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithWebhookSecret(testSecret),
			service.WithReconcile(0, reconcile.WithLookback(24*time.Hour)),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a signed delivery arrives", func() {
			body, sig := delivery("m-100", "transcript.completed")
			res := svc.Accept(ctx, body, sig)
			So(res.Outcome, ShouldEqual, model.OutcomeEnqueued)

			rec := waitForStatus(ctx, svc, "m-100")

			Convey("Then the meeting is processed and attributed", func() {
				So(rec.Status, ShouldEqual, model.StatusSucceeded)
				So(rec.Source, ShouldEqual, model.SourceWebhook)
				So(rec.AttemptCount, ShouldEqual, 1)

				rows, err := svc.Attributions(ctx, []string{"SUBS"}, now.Add(-24*time.Hour), false)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Score, ShouldEqual, 58)
				So(rows[0].Confidence, ShouldEqual, 1)
			})

			Convey("And a redelivery is already processed", func() {
				res := svc.Accept(ctx, body, sig)
				So(res.Outcome, ShouldEqual, model.OutcomeAlreadyProcessed)
				So(res.HTTPCode, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the same delivery arrives twice concurrently", func() {
			body, sig := delivery("m-100", "meeting.completed")
			results := make([]gateway.Result, 2)
			var wg sync.WaitGroup
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i] = svc.Accept(ctx, body, sig)
				}(i)
			}
			wg.Wait()
			rec := waitForStatus(ctx, svc, "m-100")

			Convey("Then exactly one is enqueued and one attribution set exists", func() {
				outcomes := []model.Outcome{results[0].Outcome, results[1].Outcome}
				So(outcomes, ShouldContain, model.OutcomeEnqueued)
				So(outcomes, ShouldContain, model.OutcomeAlreadyProcessed)
				So(rec.Status, ShouldEqual, model.StatusSucceeded)
				So(source.fetchCount("m-100"), ShouldEqual, 1)

				rows, err := store.ForMeeting(ctx, "m-100")
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)

				counts, err := store.CountByStatus(ctx)
				So(err, ShouldBeNil)
				So(counts[model.StatusSucceeded], ShouldEqual, 1)
			})
		})

		Convey("When an unsigned delivery arrives", func() {
			body, _ := delivery("m-100", "transcript.completed")
			res := svc.Accept(ctx, body, "sha256=deadbeef")

			Convey("Then it is rejected without side effects", func() {
				So(res.HTTPCode, ShouldEqual, http.StatusUnauthorized)
				_, err := svc.Record(ctx, "m-100")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When reconciliation runs after a webhook", func() {
			body, sig := delivery("m-100", "transcript.completed")
			So(svc.Accept(ctx, body, sig).Outcome, ShouldEqual, model.OutcomeEnqueued)
			waitForStatus(ctx, svc, "m-100")

			report, err := svc.Reconcile(ctx)

			Convey("Then only the missed meeting is processed", func() {
				So(err, ShouldBeNil)
				So(report.Listed, ShouldEqual, 2)
				So(report.AlreadyKnown, ShouldEqual, 1)
				So(report.Processed, ShouldEqual, 1)

				rec, err := svc.Record(ctx, "m-200")
				So(err, ShouldBeNil)
				So(rec.Source, ShouldEqual, model.SourceReconcile)
				So(rec.Status, ShouldEqual, model.StatusSucceeded)
				So(source.fetchCount("m-100"), ShouldEqual, 1)
			})
		})
	})
}

func TestServiceClaimFailure(t *testing.T) {
	Convey("Given a service whose store fails the first claim", t, func() {
		meeting := model.MeetingEvent{ExternalID: "m-300", Title: "SUBS Weekly Sync", OccurredAt: time.Now().UTC().Add(-time.Hour)}
		store := &lockedStore{MemoryStore: repository.NewMemoryStore()}
		store.failures.Store(1)

		svc := service.New(store, newFakeSource(meeting), registry.NewStatic(testProjects),
			service.WithWorkerCount(1),
			service.WithWebhookSecret(testSecret),
			service.WithReconcile(0),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		body, sig := delivery("m-300", "transcript.completed")
		So(svc.Accept(ctx, body, sig).Outcome, ShouldEqual, model.OutcomeEnqueued)

		Convey("When the meeting is redelivered after the failed claim", func() {
			var res gateway.Result
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				res = svc.Accept(ctx, body, sig)
				if res.Outcome != model.OutcomeAlreadyProcessed {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}

			Convey("Then it is enqueued again and processed", func() {
				So(res.Outcome, ShouldEqual, model.OutcomeEnqueued)
				So(store.failures.Load(), ShouldBeLessThanOrEqualTo, 0)

				rec := waitForStatus(ctx, svc, "m-300")
				So(rec.Status, ShouldEqual, model.StatusSucceeded)
			})
		})
	})
}
