package batch

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestEstimateETASeconds(t *testing.T) {
	convey.Convey("Given ten files, four workers and 60s per item", t, func() {
		convey.Convey("Nothing done yet takes three waves", func() {
			convey.So(EstimateETASeconds(10, 0, 4, 60), convey.ShouldEqual, 180)
		})

		convey.Convey("Two left takes one wave", func() {
			convey.So(EstimateETASeconds(10, 8, 4, 60), convey.ShouldEqual, 60)
		})

		convey.Convey("All done takes nothing", func() {
			convey.So(EstimateETASeconds(10, 10, 4, 60), convey.ShouldEqual, 0)
			convey.So(EstimateETASeconds(10, 12, 4, 60), convey.ShouldEqual, 0)
		})

		convey.Convey("The estimate never grows as work completes", func() {
			prev := EstimateETASeconds(10, 0, 4, 60)
			for done := 1; done <= 10; done++ {
				eta := EstimateETASeconds(10, done, 4, 60)
				convey.So(eta, convey.ShouldBeLessThanOrEqualTo, prev)
				prev = eta
			}
		})
	})

	convey.Convey("Given a non-positive parallelism", t, func() {
		convey.So(EstimateETASeconds(3, 0, 0, 60), convey.ShouldEqual, 180)
		convey.So(EstimateETASeconds(3, 0, -2, 10), convey.ShouldEqual, 30)
	})
}
