package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/http/api"
	"github.com/phucmetlamroi/agency-manager/internal/adapters/http/client"
	"github.com/phucmetlamroi/agency-manager/internal/domain/runguard"
	"github.com/phucmetlamroi/agency-manager/internal/domain/types"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type stubTrigger struct {
	report types.RunReport
	err    error
}

func (s stubTrigger) Trigger(ctx context.Context) (types.RunReport, error) { return s.report, s.err }

type stubStats struct{}

func (stubStats) GetStats() map[string]interface{} { return map[string]interface{}{"state": "idle"} }

func newServer(trigger api.RunTrigger, secret string) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(trigger, stubStats{}, api.WithCronSecret(secret)).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func TestClient(t *testing.T) {
	Convey("Given a scoring server that requires a secret", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		srv := newServer(stubTrigger{report: types.RunReport{Status: types.StatusSuccess, RunID: "r-1", Updated: 4}}, "s3cret")
		defer srv.Close()

		Convey("When triggering with the right secret", func() {
			report, err := client.New(srv.URL+"/", client.WithSecret("s3cret")).Trigger(ctx)

			Convey("Then the report is decoded", func() {
				So(err, ShouldBeNil)
				So(report.Succeeded(), ShouldBeTrue)
				So(report.Updated, ShouldEqual, 4)
				So(report.RunID, ShouldEqual, "r-1")
			})
		})

		Convey("When triggering without the secret", func() {
			_, err := client.New(srv.URL).Trigger(ctx)

			Convey("Then it is unauthorized", func() {
				So(errors.Is(err, client.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When fetching stats", func() {
			stats, err := client.New(srv.URL).Stats(ctx)

			Convey("Then the map is returned", func() {
				So(err, ShouldBeNil)
				So(stats["state"], ShouldEqual, "idle")
			})
		})
	})

	Convey("Given a server whose run is busy or failing", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()

		Convey("When a run is in progress", func() {
			srv := newServer(stubTrigger{err: runguard.ErrRunInProgress}, "")
			defer srv.Close()
			_, err := client.New(srv.URL).Trigger(ctx)

			Convey("Then the conflict maps back to ErrRunInProgress", func() {
				So(errors.Is(err, runguard.ErrRunInProgress), ShouldBeTrue)
			})
		})

		Convey("When the run fails", func() {
			srv := newServer(stubTrigger{report: types.RunReport{RunID: "r-2"}, err: errors.New("connection refused")}, "")
			defer srv.Close()
			report, err := client.New(srv.URL).Trigger(ctx)

			Convey("Then the failure carries the server's message", func() {
				So(errors.Is(err, client.ErrRunFailed), ShouldBeTrue)
				So(report.Succeeded(), ShouldBeFalse)
				So(report.RunID, ShouldEqual, "r-2")
				So(report.Error, ShouldContainSubstring, "connection refused")
			})
		})
	})
}
