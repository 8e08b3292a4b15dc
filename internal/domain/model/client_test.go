package model_test

import (
	"testing"

	"github.com/phucmetlamroi/agency-manager/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClientMetrics_WithDefaults(t *testing.T) {
	Convey("Given metrics with unset ratings", t, func() {
		m := model.ClientMetrics{ClientID: "c-1"}

		Convey("When defaults are applied", func() {
			d := m.WithDefaults()

			Convey("Then both ratings become 3", func() {
				So(d.InputQuality, ShouldEqual, model.DefaultRating)
				So(d.PaymentRating, ShouldEqual, model.DefaultRating)
			})

			Convey("And the original is left untouched", func() {
				So(m.InputQuality, ShouldEqual, 0)
				So(m.PaymentRating, ShouldEqual, 0)
			})
		})
	})

	Convey("Given metrics with explicit ratings", t, func() {
		m := model.ClientMetrics{InputQuality: 5, PaymentRating: 1}.WithDefaults()

		Convey("Then they are kept", func() {
			So(m.InputQuality, ShouldEqual, 5)
			So(m.PaymentRating, ShouldEqual, 1)
		})
	})
}

func TestTier(t *testing.T) {
	Convey("Given the tier enumeration", t, func() {
		Convey("Then every listed tier is valid", func() {
			So(model.Tiers(), ShouldHaveLength, 5)
			for _, tier := range model.Tiers() {
				So(tier.Valid(), ShouldBeTrue)
			}
		})

		Convey("When parsing known names in mixed case", func() {
			tier, err := model.ParseTier(" gold ")

			Convey("Then the canonical tier is returned", func() {
				So(err, ShouldBeNil)
				So(tier, ShouldEqual, model.TierGold)
				So(tier.String(), ShouldEqual, "GOLD")
			})
		})

		Convey("When parsing the legacy lowercase standard tier", func() {
			tier, err := model.ParseTier("standard")
			So(err, ShouldBeNil)
			So(tier, ShouldEqual, model.TierStandard)
		})

		Convey("When parsing an unknown name", func() {
			_, err := model.ParseTier("PLATINUM")

			Convey("Then it fails", func() {
				So(err, ShouldNotBeNil)
				So(model.Tier("PLATINUM").Valid(), ShouldBeFalse)
			})
		})
	})
}
