package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/http/api"
	repository "github.com/phucmetlamroi/agency-manager/internal/adapters/repository"
	"github.com/phucmetlamroi/agency-manager/internal/domain/runguard"
	"github.com/phucmetlamroi/agency-manager/internal/domain/types"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// Mock implementations for testing
type mockTrigger struct {
	report types.RunReport
	err    error
	calls  int
}

func (m *mockTrigger) Trigger(ctx context.Context) (types.RunReport, error) {
	m.calls++
	return m.report, m.err
}

type mockStats struct {
	stats map[string]interface{}
}

func (m *mockStats) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux(trigger api.RunTrigger, opts ...api.Option) *http.ServeMux {
	stats := &mockStats{stats: map[string]interface{}{"state": "completed", "runsTotal": 2}}
	mux := http.NewServeMux()
	api.NewServer(trigger, stats, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestScoringTrigger(t *testing.T) {
	Convey("Given a server without a configured secret", t, func() {
		trigger := &mockTrigger{report: types.RunReport{Status: types.StatusSuccess, RunID: "r-1", State: "completed", Updated: 3}}
		mux := newTestMux(trigger)

		Convey("When the trigger is posted without credentials", func() {
			w := do(mux, http.MethodPost, "/api/scoring", "")

			Convey("Then the run executes and the count is reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				body := decode(w)
				So(body["status"], ShouldEqual, "success")
				So(body["updated"], ShouldEqual, float64(3))
				So(trigger.calls, ShouldEqual, 1)
			})
		})

		Convey("When the trigger is requested with GET", func() {
			w := do(mux, http.MethodGet, "/api/scoring", "")

			Convey("Then it is refused without running", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)
				So(trigger.calls, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a server with a cron secret", t, func() {
		trigger := &mockTrigger{report: types.RunReport{Status: types.StatusSuccess, Updated: 1}}
		mux := newTestMux(trigger, api.WithCronSecret("s3cret"))

		cases := []struct {
			name string
			auth string
		}{
			{"missing header", ""},
			{"wrong secret", "Bearer nope"},
			{"secret without scheme", "s3cret"},
			{"wrong scheme", "Basic s3cret"},
			{"secret with trailing data", "Bearer s3cret2"},
		}
		for _, tc := range cases {
			auth := tc.auth
			Convey("When the credential is a "+tc.name, func() {
				w := do(mux, http.MethodPost, "/api/scoring", auth)

				Convey("Then it is rejected before the run starts", func() {
					So(w.Code, ShouldEqual, http.StatusUnauthorized)
					So(decode(w)["code"], ShouldEqual, "unauthorized")
					So(trigger.calls, ShouldEqual, 0)
				})
			})
		}

		Convey("When the correct bearer secret is sent", func() {
			w := do(mux, http.MethodPost, "/api/scoring", "Bearer s3cret")

			Convey("Then the run executes", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(trigger.calls, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a run already in progress", t, func() {
		trigger := &mockTrigger{err: runguard.ErrRunInProgress}
		mux := newTestMux(trigger)

		w := do(mux, http.MethodPost, "/api/scoring", "")

		Convey("Then the trigger answers with a conflict", func() {
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decode(w)["code"], ShouldEqual, "run_in_progress")
		})
	})

	Convey("Given a run that fails", t, func() {
		trigger := &mockTrigger{
			report: types.RunReport{Status: types.StatusFailed, RunID: "r-9"},
			err:    errors.Join(repository.ErrDataSource, errors.New("connection refused")),
		}
		mux := newTestMux(trigger)

		w := do(mux, http.MethodPost, "/api/scoring", "")

		Convey("Then the failure is described", func() {
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			body := decode(w)
			So(body["code"], ShouldEqual, "run_failed")
			So(body["run_id"], ShouldEqual, "r-9")
			So(body["message"], ShouldContainSubstring, "connection refused")
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a registered server", t, func() {
		mux := newTestMux(&mockTrigger{})

		Convey("When checking health", func() {
			w := do(mux, http.MethodGet, "/healthz", "")

			Convey("Then it reports ok as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["status"], ShouldEqual, "ok")
			})
		})

		Convey("When reading stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")

			Convey("Then the provider's map is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["state"], ShouldEqual, "completed")
				So(body["runsTotal"], ShouldEqual, float64(2))
				So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
			})
		})

		Convey("When posting to stats", func() {
			w := do(mux, http.MethodPost, "/stats", "")

			Convey("Then the method is not allowed", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, "GET, HEAD")
				So(decode(w)["code"], ShouldEqual, "method_not_allowed")
			})
		})

		Convey("When scraping metrics after a request", func() {
			_ = do(mux, http.MethodGet, "/healthz", "")
			w := do(mux, http.MethodGet, "/metrics", "")

			Convey("Then the HTTP counters are exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "agency_client_scoring_http_requests_total")
				So(strings.Contains(w.Body.String(), `endpoint="healthz"`), ShouldBeTrue)
			})
		})
	})
}

func TestKindError(t *testing.T) {
	Convey("Given a wrapped API error", t, func() {
		cause := errors.New("credential mismatch")
		err := api.WrapKind("api.trigger_scoring", api.ErrUnauthorized, cause)

		Convey("Then both kind and cause are matchable", func() {
			So(errors.Is(err, api.ErrUnauthorized), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.trigger_scoring: unauthorized: credential mismatch")

			var kerr *api.KindError
			So(errors.As(err, &kerr), ShouldBeTrue)
			So(kerr.Op, ShouldEqual, "api.trigger_scoring")
		})
	})

	Convey("Given a kind without a cause", t, func() {
		err := api.WrapKind("op", api.ErrRunFailed, nil)

		Convey("Then it reads as the kind alone", func() {
			So(err.Error(), ShouldEqual, "op: scoring run failed")
			So(errors.Is(err, api.ErrRunFailed), ShouldBeTrue)
		})
	})
}
