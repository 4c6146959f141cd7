package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/meetlink/internal/adapters/http/api"
	service "github.com/okian/meetlink/internal/app"
	"github.com/okian/meetlink/internal/domain/gateway"
	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// Mock implementations for testing
type mockDependencies struct {
	result gateway.Result

	gotBody      []byte
	gotSignature string

	rows     []model.Attribution
	rowsErr  error
	gotKeys  []string
	gotSince time.Time
	gotFill  bool

	record    model.ProcessingRecord
	recordErr error
}

func (m *mockDependencies) Accept(_ context.Context, body []byte, signature string) gateway.Result {
	m.gotBody, m.gotSignature = body, signature
	return m.result
}

func (m *mockDependencies) Attributions(_ context.Context, keys []string, since time.Time, backfill bool) ([]model.Attribution, error) {
	m.gotKeys, m.gotSince, m.gotFill = keys, since, backfill
	return m.rows, m.rowsErr
}

func (m *mockDependencies) Record(_ context.Context, id string) (model.ProcessingRecord, error) {
	if m.recordErr != nil {
		return model.ProcessingRecord{}, m.recordErr
	}
	rec := m.record
	rec.MeetingID = id
	return rec, nil
}

type mockStatsProvider struct {
	stats service.Stats
	err   error
}

func (m *mockStatsProvider) Stats(context.Context) (service.Stats, error) {
	return m.stats, m.err
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockDependencies{}
		stats := &mockStatsProvider{stats: service.Stats{Started: true, Workers: 4, QueueCapacity: 100}}
		router := api.NewServer(deps, stats, api.WithMaxBodyBytes(64)).Router(context.Background())

		serve := func(method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, target, strings.NewReader(body))
			for k, v := range header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			return w
		}

		Convey("When a webhook is enqueued", func() {
			deps.result = gateway.Result{Outcome: model.OutcomeEnqueued, HTTPCode: http.StatusOK, MeetingID: "m-1"}
			w := serve(http.MethodPost, "/webhook", `{"meetingId":"m-1"}`, map[string]string{api.SignatureHeader: "sha256=abc"})

			Convey("Then the raw body and signature reach the gateway", func() {
				So(string(deps.gotBody), ShouldEqual, `{"meetingId":"m-1"}`)
				So(deps.gotSignature, ShouldEqual, "sha256=abc")
			})

			Convey("Then the outcome is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "enqueued")
				So(body["meetingId"], ShouldEqual, "m-1")
			})
		})

		Convey("When the gateway rejects a delivery", func() {
			cases := []struct {
				code int
				want string
			}{
				{http.StatusUnauthorized, "unauthorized"},
				{http.StatusBadRequest, "bad_request"},
				{http.StatusTooManyRequests, "backpressure"},
				{http.StatusServiceUnavailable, "unavailable"},
			}
			for _, tc := range cases {
				deps.result = gateway.Result{Outcome: model.OutcomeRejected, HTTPCode: tc.code, Reason: "nope"}
				w := serve(http.MethodPost, "/webhook", `{}`, nil)
				So(w.Code, ShouldEqual, tc.code)
				So(decodeError(w)["code"], ShouldEqual, tc.want)
			}
		})

		Convey("When the gateway is misconfigured", func() {
			deps.result = gateway.Result{Outcome: model.OutcomeRejected, HTTPCode: http.StatusInternalServerError, Reason: "webhook secret not configured"}
			w := serve(http.MethodPost, "/webhook", `{}`, nil)

			Convey("Then a generic 500 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(decodeError(w)["message"], ShouldNotContainSubstring, "secret")
			})
		})

		Convey("When the webhook body is too large", func() {
			w := serve(http.MethodPost, "/webhook", strings.Repeat("x", 65), nil)

			Convey("Then it is rejected before the gateway", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "payload_too_large")
				So(deps.gotBody, ShouldBeNil)
			})
		})

		Convey("When listing attributions with filters", func() {
			deps.rows = []model.Attribution{{ID: "a-1", MeetingID: "m-1", ProjectKey: "SUBS", Score: 58}}
			w := serve(http.MethodGet, "/attributions?project=SUBS,OPS&project=SUBS&since=2026-03-01T00:00:00Z&backfill=true", "", nil)

			Convey("Then the parsed filters reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotKeys, ShouldResemble, []string{"SUBS", "OPS"})
				So(deps.gotSince.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(deps.gotFill, ShouldBeTrue)

				var rows []model.Attribution
				So(json.Unmarshal(w.Body.Bytes(), &rows), ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].ProjectKey, ShouldEqual, "SUBS")
			})
		})

		Convey("When no attributions exist", func() {
			w := serve(http.MethodGet, "/attributions", "", nil)

			Convey("Then an empty JSON list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
				So(deps.gotKeys, ShouldBeEmpty)
				So(deps.gotSince.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When attribution filters are malformed", func() {
			So(serve(http.MethodGet, "/attributions?since=yesterday", "", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(http.MethodGet, "/attributions?backfill=maybe", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading attributions fails", func() {
			deps.rowsErr = errors.New("pq: connection refused")
			w := serve(http.MethodGet, "/attributions", "", nil)

			Convey("Then the internal error is not echoed", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldNotContainSubstring, "pq")
			})
		})

		Convey("When fetching a record", func() {
			deps.record = model.ProcessingRecord{Status: model.StatusSucceeded, AttemptCount: 1}
			w := serve(http.MethodGet, "/records/m-9", "", nil)

			Convey("Then it is returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var rec model.ProcessingRecord
				So(json.Unmarshal(w.Body.Bytes(), &rec), ShouldBeNil)
				So(rec.MeetingID, ShouldEqual, "m-9")
				So(rec.Status, ShouldEqual, model.StatusSucceeded)
			})
		})

		Convey("When fetching an unknown record", func() {
			deps.recordErr = model.ErrRecordNotFound
			So(serve(http.MethodGet, "/records/m-404", "", nil).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When fetching a record with an invalid id", func() {
			deps.recordErr = service.ErrInvalidMeetingID
			So(serve(http.MethodGet, "/records/%20", "", nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When scraping health", func() {
			w := serve(http.MethodGet, "/healthz", "", nil)

			Convey("Then Prometheus metrics are served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "meetlink_")
			})
		})

		Convey("When reading stats", func() {
			w := serve(http.MethodGet, "/stats", "", nil)

			Convey("Then the service stats are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var got service.Stats
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Workers, ShouldEqual, 4)
				So(got.Started, ShouldBeTrue)
			})
		})

		Convey("When stats fail", func() {
			stats.err = errors.New("boom")
			So(serve(http.MethodGet, "/stats", "", nil).Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When an unknown route or method is used", func() {
			So(serve(http.MethodGet, "/unknown", "", nil).Code, ShouldEqual, http.StatusNotFound)
			So(serve(http.MethodGet, "/webhook", "", nil).Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
