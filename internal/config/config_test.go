package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/meetlink/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.RetryMaxAttempts, convey.ShouldEqual, 3)
			convey.So(cfg.RetryBaseDelayMS, convey.ShouldEqual, 60_000)
			convey.So(cfg.DatabaseDSN, convey.ShouldEqual, "memory://")
			convey.So(cfg.WebhookEvents, convey.ShouldResemble, []string{"transcript.completed", "meeting.completed"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs violating invariants", t, func() {
		convey.Convey("When retry attempts is zero", func() {
			cfg := config.New()
			cfg.RetryMaxAttempts = 0
			err := cfg.Validate()

			convey.Convey("Then validation fails with ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the retry base delay is not positive", func() {
			for _, ms := range []int{0, -1} {
				cfg := config.New()
				cfg.RetryBaseDelayMS = ms
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})

		convey.Convey("When two projects share a key ignoring case", func() {
			cfg := config.New()
			cfg.Projects = []config.Project{{Key: "SUBS", Name: "Snuggle Bugz"}, {Key: "subs", Name: "Other"}}
			err := cfg.Validate()

			convey.Convey("Then validation reports the duplicate", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "duplicate project key")
			})
		})

		convey.Convey("When a project has no key", func() {
			cfg := config.New()
			cfg.Projects = []config.Project{{Name: "Nameless"}}

			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
