package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeSource struct {
	mu       sync.Mutex
	calls    atomic.Int32
	projects []model.ProjectCandidate
	err      error
}

func (f *fakeSource) Projects(context.Context) ([]model.ProjectCandidate, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.projects, nil
}

func (f *fakeSource) set(projects []model.ProjectCandidate, err error) {
	f.mu.Lock()
	f.projects, f.err = projects, err
	f.mu.Unlock()
}

func TestStatic(t *testing.T) {
	Convey("Given a static registry", t, func() {
		in := []model.ProjectCandidate{{Key: "SUBS", Name: "Snuggle Bugz", Keywords: []string{"subscriptions"}}}
		s := NewStatic(in)

		Convey("Then it returns the configured projects", func() {
			got, err := s.Projects(context.Background())
			So(err, ShouldBeNil)
			So(got, ShouldResemble, in)
		})

		Convey("Then callers cannot mutate its list", func() {
			got, _ := s.Projects(context.Background())
			got[0].Keywords[0] = "changed"
			again, _ := s.Projects(context.Background())
			So(again[0].Keywords[0], ShouldEqual, "subscriptions")
		})
	})
}

func TestCached(t *testing.T) {
	Convey("Given a cached registry over a remote source", t, func() {
		now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		src := &fakeSource{projects: []model.ProjectCandidate{{Key: "SUBS", Name: "Snuggle Bugz"}}}
		c := NewCached(src, WithTTL(time.Minute), WithClock(clock))
		ctx := context.Background()

		Convey("When read twice within the TTL", func() {
			_, err := c.Projects(ctx)
			So(err, ShouldBeNil)
			got, err := c.Projects(ctx)

			Convey("Then the source is hit once", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(src.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the TTL elapses", func() {
			_, _ = c.Projects(ctx)
			src.set([]model.ProjectCandidate{{Key: "SUBS"}, {Key: "OPS"}}, nil)
			now = now.Add(2 * time.Minute)
			got, err := c.Projects(ctx)

			Convey("Then the list is refreshed", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(src.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When a refresh fails after a good fetch", func() {
			_, _ = c.Projects(ctx)
			src.set(nil, errors.New("registry down"))
			now = now.Add(2 * time.Minute)
			got, err := c.Projects(ctx)

			Convey("Then the stale list is served", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].Key, ShouldEqual, "SUBS")
			})

			Convey("Then the source is not asked again until the retry-after passes", func() {
				_, _ = c.Projects(ctx)
				now = now.Add(DefaultRetryAfter - time.Second)
				_, _ = c.Projects(ctx)
				So(src.calls.Load(), ShouldEqual, 2)

				now = now.Add(2 * time.Second)
				got, err := c.Projects(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(src.calls.Load(), ShouldEqual, 3)
			})

			Convey("Then an invalidation retries the source at once", func() {
				src.set([]model.ProjectCandidate{{Key: "OPS", Name: "Platform Operations"}}, nil)
				c.Invalidate("ops")
				got, err := c.Projects(ctx)
				So(err, ShouldBeNil)
				So(got[0].Key, ShouldEqual, "OPS")
				So(src.calls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When the first fetch fails", func() {
			src.set(nil, errors.New("registry down"))
			_, err := c.Projects(ctx)

			Convey("Then an error is returned", func() {
				So(errors.Is(err, ErrNoProjects), ShouldBeTrue)
			})
		})

		Convey("When a project is invalidated", func() {
			_, _ = c.Projects(ctx)
			c.Invalidate("unknown-key")
			_, _ = c.Projects(ctx)

			Convey("Then the next read refreshes the whole list", func() {
				So(src.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When everything is invalidated", func() {
			_, _ = c.Projects(ctx)
			c.InvalidateAll()
			_, _ = c.Projects(ctx)
			_, _ = c.Projects(ctx)

			Convey("Then exactly one refresh happens", func() {
				So(src.calls.Load(), ShouldEqual, 2)
			})
		})
	})
}
