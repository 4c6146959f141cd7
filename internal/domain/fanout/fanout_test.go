package fanout_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/meetlink/internal/domain/fanout"
	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeTracker struct {
	mu      sync.Mutex
	tickets []fanout.Ticket
	failOn  string
}

func (f *fakeTracker) CreateTicket(_ context.Context, t fanout.Ticket) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.Title == f.failOn {
		return "", errors.New("tracker unavailable")
	}
	f.tickets = append(f.tickets, t)
	return fmt.Sprintf("T-%d", len(f.tickets)), nil
}

type fakeTasks struct {
	items []fanout.TaskItem
	panic bool
}

func (f *fakeTasks) CreateTask(_ context.Context, t fanout.TaskItem) (string, error) {
	if f.panic {
		panic("nil map write")
	}
	f.items = append(f.items, t)
	return "task-" + t.Title, nil
}

type fakeNotifier struct {
	messages []fanout.Message
	err      error
}

func (f *fakeNotifier) Notify(_ context.Context, m fanout.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, m)
	return "msg-1", nil
}

type recordedSleep struct {
	delays []time.Duration
	err    error
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return r.err
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	meeting := model.MeetingEvent{ExternalID: "abc123", Title: "SUBS Weekly Sync"}
	attributions := []model.Attribution{
		{MeetingID: "abc123", ProjectKey: "SUBS", ProjectName: "Snuggle Bugz", Score: 58, Confidence: 1},
	}
	analysis := model.FullAnalysis{
		Summary: "Shipping the renewal flow.",
		ActionItems: []model.ActionItem{
			{Title: "Fix renewal emails", Assignee: "dana"},
			{Title: "Write rollout plan"},
		},
	}

	Convey("Given an executor with every collaborator", t, func() {
		tracker := &fakeTracker{}
		tasks := &fakeTasks{}
		notifier := &fakeNotifier{}
		sleeps := &recordedSleep{}
		exec := fanout.New(
			fanout.WithTracker(tracker),
			fanout.WithTaskCreator(tasks),
			fanout.WithNotifier(notifier, "#meetings"),
			fanout.WithSleep(sleeps.sleep),
		)

		Convey("When all calls succeed", func() {
			report := exec.Execute(ctx, meeting, attributions, analysis)

			Convey("Then one ticket and one task per item plus a notification are created", func() {
				So(report.Overall, ShouldEqual, model.OverallSuccess)
				So(report.PerAction, ShouldHaveLength, 5)
				So(tracker.tickets, ShouldHaveLength, 2)
				So(tracker.tickets[0].ProjectKey, ShouldEqual, "SUBS")
				So(tracker.tickets[0].Assignee, ShouldEqual, "dana")
				So(tasks.items, ShouldHaveLength, 2)
				So(notifier.messages, ShouldHaveLength, 1)
				So(notifier.messages[0].Channel, ShouldEqual, "#meetings")
				So(notifier.messages[0].Text, ShouldContainSubstring, "SUBS (100%)")
				So(report.PerAction[0].TargetID, ShouldEqual, "T-1")
			})

			Convey("Then batched calls are separated by the configured delay", func() {
				So(sleeps.delays, ShouldResemble, []time.Duration{fanout.DefaultBatchDelay, fanout.DefaultBatchDelay})
			})
		})

		Convey("When one ticket fails and the task creator panics", func() {
			tracker.failOn = "Write rollout plan"
			tasks.panic = true
			report := exec.Execute(ctx, meeting, attributions, analysis)

			Convey("Then every action still runs and the report is partial", func() {
				So(report.Overall, ShouldEqual, model.OverallPartial)
				So(report.PerAction, ShouldHaveLength, 5)
				So(report.PerAction[0].Succeeded(), ShouldBeTrue)
				So(report.PerAction[1].Error, ShouldEqual, "tracker unavailable")
				So(report.PerAction[2].Kind, ShouldEqual, model.ActionTask)
				So(report.PerAction[2].Error, ShouldContainSubstring, "panic")
				So(report.PerAction[4].Kind, ShouldEqual, model.ActionNotification)
				So(report.PerAction[4].Succeeded(), ShouldBeTrue)
			})
		})

		Convey("When the context ends during a batch", func() {
			sleeps.err = context.Canceled
			report := exec.Execute(ctx, meeting, attributions, analysis)

			Convey("Then remaining items are reported as failed", func() {
				So(tracker.tickets, ShouldHaveLength, 1)
				So(report.PerAction[1].Kind, ShouldEqual, model.ActionTicket)
				So(report.PerAction[1].Error, ShouldEqual, context.Canceled.Error())
				So(report.Overall, ShouldEqual, model.OverallPartial)
			})
		})

		Convey("When the analysis has no action items", func() {
			report := exec.Execute(ctx, meeting, attributions, model.TitleOnlyAnalysis{Title: meeting.Title})

			Convey("Then only the notification is eligible", func() {
				So(report.PerAction, ShouldHaveLength, 1)
				So(report.PerAction[0].Kind, ShouldEqual, model.ActionNotification)
				So(report.Overall, ShouldEqual, model.OverallSuccess)
				So(tracker.tickets, ShouldBeEmpty)
			})
		})

		Convey("When the meeting has no attributions", func() {
			report := exec.Execute(ctx, meeting, nil, analysis)

			Convey("Then tickets and tasks are skipped", func() {
				So(report.PerAction, ShouldHaveLength, 1)
				So(notifier.messages[0].Text, ShouldContainSubstring, "not attributed")
			})
		})
	})

	Convey("Given an executor without a notification channel", t, func() {
		exec := fanout.New(fanout.WithNotifier(&fakeNotifier{}, ""), fanout.WithBatchDelay(0))

		Convey("When nothing is eligible", func() {
			report := exec.Execute(ctx, meeting, attributions, analysis)

			Convey("Then the overall outcome is failure with no results", func() {
				So(report.PerAction, ShouldBeEmpty)
				So(report.Overall, ShouldEqual, model.OverallFailure)
			})
		})
	})

	Convey("Given a notifier that always fails", t, func() {
		exec := fanout.New(fanout.WithNotifier(&fakeNotifier{err: errors.New("chat down")}, "#ops"))

		Convey("Then the overall outcome is failure", func() {
			report := exec.Execute(ctx, meeting, nil, nil)
			So(report.PerAction, ShouldHaveLength, 1)
			So(report.Overall, ShouldEqual, model.OverallFailure)
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Aggregate summarizes per-action results", t, func() {
		ok := model.ActionResult{Kind: model.ActionTask, TargetID: "x"}
		bad := model.ActionResult{Kind: model.ActionTask, Error: "boom"}

		So(fanout.Aggregate(nil), ShouldEqual, model.OverallFailure)
		So(fanout.Aggregate([]model.ActionResult{ok, ok}), ShouldEqual, model.OverallSuccess)
		So(fanout.Aggregate([]model.ActionResult{ok, bad}), ShouldEqual, model.OverallPartial)
		So(fanout.Aggregate([]model.ActionResult{bad}), ShouldEqual, model.OverallFailure)
	})
}
