package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/repository"
	"github.com/phucmetlamroi/agency-manager/internal/config"
	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
	"github.com/phucmetlamroi/agency-manager/internal/domain/types"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type stubTrigger struct {
	report types.RunReport
	err    error
}

func (s stubTrigger) Trigger(context.Context) (types.RunReport, error) { return s.report, s.err }

func testClients() []model.ClientMetrics {
	return []model.ClientMetrics{
		{ClientID: "1", Revenue: 60_000_000, FrictionEvents: 1, TotalTasks: 10, InputQuality: 5, PaymentRating: 5},
		{ClientID: "2", InputQuality: 3, PaymentRating: 1},
	}
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then every subcommand is registered", func() {
			names := make([]string, 0, len(root.Commands()))
			for _, c := range root.Commands() {
				names = append(names, c.Name())
			}
			convey.So(names, convey.ShouldContain, "serve")
			convey.So(names, convey.ShouldContain, "run")
			convey.So(names, convey.ShouldContain, "trigger")
			convey.So(names, convey.ShouldContain, "status")
		})

		convey.Convey("Then the shared flags are persistent", func() {
			convey.So(root.PersistentFlags().Lookup("config"), convey.ShouldNotBeNil)
			convey.So(root.PersistentFlags().Lookup("log-format"), convey.ShouldNotBeNil)
		})
	})
}

func TestRunOnce(t *testing.T) {
	convey.Convey("Given a trigger that succeeds", t, func() {
		var out bytes.Buffer
		trigger := stubTrigger{report: types.RunReport{Status: types.StatusSuccess, RunID: "r-1", Updated: 2}}

		err := runOnce(context.Background(), trigger, &out)

		convey.Convey("Then the report is printed and no error returned", func() {
			convey.So(err, convey.ShouldBeNil)
			var got types.RunReport
			convey.So(json.Unmarshal(out.Bytes(), &got), convey.ShouldBeNil)
			convey.So(got.RunID, convey.ShouldEqual, "r-1")
			convey.So(got.Updated, convey.ShouldEqual, 2)
		})
	})

	convey.Convey("Given a trigger that fails", t, func() {
		var out bytes.Buffer
		trigger := stubTrigger{
			report: types.RunReport{Status: types.StatusFailed, Error: "boom"},
			err:    errors.New("boom"),
		}

		err := runOnce(context.Background(), trigger, &out)

		convey.Convey("Then the report is still printed and the exit code is 1", func() {
			var ee *exitErr
			convey.So(errors.As(err, &ee), convey.ShouldBeTrue)
			convey.So(ee.code, convey.ShouldEqual, 1)
			convey.So(out.String(), convey.ShouldContainSubstring, `"status": "failed"`)
		})
	})
}

func TestServeMux(t *testing.T) {
	convey.Convey("Given the service mux over an in-memory source", t, func() {
		convey.So(logger.Init(), convey.ShouldBeNil)
		ctx := context.Background()

		cfg := config.New(ctx)
		cfg.CronSecret = "tok"
		src := repository.NewMemorySource(testClients()...)
		svc := newService(cfg, src, false)
		srv := httptest.NewServer(newMux(ctx, cfg, svc))
		defer srv.Close()

		convey.Convey("When the docs and health routes are requested", func() {
			for _, path := range []string{"/healthz", "/stats", "/openapi.yaml", "/api-docs", "/metrics"} {
				resp, err := http.Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				_ = resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
			}
		})

		convey.Convey("When the trigger command calls the server with the secret", func() {
			var out bytes.Buffer
			root := newRootCmd()
			root.SetOut(&out)
			root.SetArgs([]string{"trigger", "--url", srv.URL, "--secret", "tok"})

			err := root.ExecuteContext(ctx)

			convey.Convey("Then every client is scored and written", func() {
				convey.So(err, convey.ShouldBeNil)
				var got types.RunReport
				convey.So(json.Unmarshal(out.Bytes(), &got), convey.ShouldBeNil)
				convey.So(got.Succeeded(), convey.ShouldBeTrue)
				convey.So(got.Updated, convey.ShouldEqual, 2)
				convey.So(src.Scores()["2"].Tier, convey.ShouldEqual, model.TierWarning)
			})
		})

		convey.Convey("When the status command follows a run", func() {
			_, err := svc.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			var out bytes.Buffer
			root := newRootCmd()
			root.SetOut(&out)
			root.SetArgs([]string{"status", "--url", srv.URL})

			err = root.ExecuteContext(ctx)

			convey.Convey("Then stats and scoring metrics are printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var got statusReport
				convey.So(json.Unmarshal(out.Bytes(), &got), convey.ShouldBeNil)
				convey.So(got.Stats["state"], convey.ShouldEqual, "completed")
				convey.So(got.Metrics, convey.ShouldContainKey, "clients_updated_total")
			})
		})

		convey.Convey("When the trigger command has the wrong secret", func() {
			var out bytes.Buffer
			root := newRootCmd()
			root.SetOut(&out)
			root.SetArgs([]string{"trigger", "--url", srv.URL, "--secret", "nope"})

			err := root.ExecuteContext(ctx)

			convey.Convey("Then it exits 1 and nothing is written", func() {
				var ee *exitErr
				convey.So(errors.As(err, &ee), convey.ShouldBeTrue)
				convey.So(strings.Contains(ee.msg, "unauthorized"), convey.ShouldBeTrue)
				convey.So(src.Writes(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		convey.Convey("Then a single refresh does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("And the updater stops with its context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()
			cancel()
			<-done
			convey.So(true, convey.ShouldBeTrue)
		})
	})
}
