package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
)

var metricsColumns = []string{"id", "revenue", "friction_events", "total_tasks", "input_quality", "payment_rating"}

func newMockSession(opts ...Option) (pgxmock.PgxConnIface, *PostgresSession, *int) {
	mock, err := pgxmock.NewConn(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	So(err, ShouldBeNil)
	released := 0
	sess := NewPostgresSession(mock, func() { released++ }, opts...)
	return mock, sess, &released
}

func TestPostgresSession_ReadMetrics(t *testing.T) {
	Convey("Given a postgres session over a mock connection", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		mock, sess, _ := newMockSession()
		defer mock.Close(ctx)

		Convey("When the query returns two clients", func() {
			mock.ExpectQuery(MetricsQuery(FrictionProjectFeedback)).
				WithArgs(DefaultCompletedStatus).
				WillReturnRows(pgxmock.NewRows(metricsColumns).
					AddRow("1", 60_000_000.0, int64(1), int64(10), int64(5), int64(5)).
					AddRow("2", 0.0, int64(0), int64(0), int64(3), int64(3)))

			got, err := sess.ReadMetrics(ctx)

			Convey("Then each row becomes a metrics record", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0], ShouldResemble, model.ClientMetrics{
					ClientID:       "1",
					Revenue:        60_000_000,
					FrictionEvents: 1,
					TotalTasks:     10,
					InputQuality:   5,
					PaymentRating:  5,
				})
				So(got[1].ClientID, ShouldEqual, "2")
				So(got[1].TotalTasks, ShouldEqual, 0)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the query fails", func() {
			mock.ExpectQuery(MetricsQuery(FrictionProjectFeedback)).
				WithArgs(DefaultCompletedStatus).
				WillReturnError(errors.New("connection refused"))

			_, err := sess.ReadMetrics(ctx)

			Convey("Then it is a data source error", func() {
				So(errors.Is(err, ErrDataSource), ShouldBeTrue)
				So(IsDataSource(err), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "connection refused")
			})
		})

		Convey("When iteration fails midway", func() {
			mock.ExpectQuery(MetricsQuery(FrictionProjectFeedback)).
				WithArgs(DefaultCompletedStatus).
				WillReturnRows(pgxmock.NewRows(metricsColumns).
					AddRow("1", 0.0, int64(0), int64(0), int64(3), int64(3)).
					AddRow("2", 0.0, int64(0), int64(0), int64(3), int64(3)).
					RowError(1, errors.New("stream reset")))

			_, err := sess.ReadMetrics(ctx)

			Convey("Then the partial read is discarded", func() {
				So(errors.Is(err, ErrDataSource), ShouldBeTrue)
			})
		})
	})

	Convey("Given a session configured for task feedback and a custom status", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		mock, sess, _ := newMockSession(WithFrictionSource(FrictionTaskFeedback), WithCompletedStatus("Done"))
		defer mock.Close(ctx)

		mock.ExpectQuery(MetricsQuery(FrictionTaskFeedback)).
			WithArgs("Done").
			WillReturnRows(pgxmock.NewRows(metricsColumns))

		got, err := sess.ReadMetrics(ctx)

		Convey("Then the task join query runs with the configured status", func() {
			So(err, ShouldBeNil)
			So(got, ShouldBeEmpty)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}

func TestPostgresSession_WriteScore(t *testing.T) {
	Convey("Given a postgres session over a mock connection", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		mock, sess, released := newMockSession()
		defer mock.Close(ctx)

		res := model.ScoreResult{ClientID: "7", Score: 63.5, FrictionIndex: 0.1, Tier: model.TierGold}

		Convey("When the update touches one row", func() {
			mock.ExpectExec(updateScoreSQL).
				WithArgs(63.5, 0.1, "GOLD", "7").
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))

			err := sess.WriteScore(ctx, res)

			Convey("Then the write succeeds", func() {
				So(err, ShouldBeNil)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the client row is gone", func() {
			mock.ExpectExec(updateScoreSQL).
				WithArgs(63.5, 0.1, "GOLD", "7").
				WillReturnResult(pgxmock.NewResult("UPDATE", 0))

			err := sess.WriteScore(ctx, res)

			Convey("Then it is a persistence error for that client", func() {
				So(errors.Is(err, ErrPersistence), ShouldBeTrue)
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "7")
			})
		})

		Convey("When the statement fails", func() {
			mock.ExpectExec(updateScoreSQL).
				WithArgs(63.5, 0.1, "GOLD", "7").
				WillReturnError(errors.New("deadlock detected"))

			err := sess.WriteScore(ctx, res)

			Convey("Then it is a persistence error", func() {
				So(IsPersistence(err), ShouldBeTrue)
				So(IsDataSource(err), ShouldBeFalse)
			})
		})

		Convey("When the tier is not one of the known values", func() {
			res.Tier = model.Tier("PLATINUM")
			err := sess.WriteScore(ctx, res)

			Convey("Then nothing is sent to the database", func() {
				So(errors.Is(err, ErrPersistence), ShouldBeTrue)
				So(mock.ExpectationsWereMet(), ShouldBeNil)
			})
		})

		Convey("When the session is released twice", func() {
			sess.Release()
			sess.Release()

			Convey("Then the connection is returned once", func() {
				So(*released, ShouldEqual, 1)
			})
		})
	})
}

func TestConnect(t *testing.T) {
	Convey("Given no database url", t, func() {
		_, err := Connect(context.Background(), "", 4)

		Convey("Then connecting fails as a data source error", func() {
			So(errors.Is(err, ErrDataSource), ShouldBeTrue)
		})
	})

	Convey("Given a malformed database url", t, func() {
		_, err := Connect(context.Background(), "postgres://%zz", 4)

		Convey("Then parsing fails as a data source error", func() {
			So(errors.Is(err, ErrDataSource), ShouldBeTrue)
		})
	})
}

func TestParseFrictionSource(t *testing.T) {
	Convey("Given friction source names", t, func() {
		Convey("Empty defaults to project feedback", func() {
			src, err := ParseFrictionSource("")
			So(err, ShouldBeNil)
			So(src, ShouldEqual, FrictionProjectFeedback)
		})

		Convey("Names are case-insensitive", func() {
			src, err := ParseFrictionSource(" Task_Feedback ")
			So(err, ShouldBeNil)
			So(src, ShouldEqual, FrictionTaskFeedback)
		})

		Convey("Unknown names are rejected", func() {
			_, err := ParseFrictionSource("revisions")
			So(err, ShouldNotBeNil)
		})
	})
}
