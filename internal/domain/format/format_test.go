package format_test

import (
	"strings"
	"testing"

	"github.com/okian/zonecorr/internal/domain/format"
	"github.com/okian/zonecorr/internal/domain/parser"
	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/thermal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestQuantizeLabel(t *testing.T) {
	Convey("Given raw corrections", t, func() {
		Convey("When a correction is under a quarter degree", func() {
			So(format.QuantizeLabel(0.1), ShouldEqual, format.NoCorrection)
			So(format.QuantizeLabel(-0.24), ShouldEqual, format.NoCorrection)
			So(format.QuantizeLabel(0), ShouldEqual, format.NoCorrection)
		})

		Convey("When the half step is closer", func() {
			So(format.QuantizeLabel(0.3), ShouldEqual, "0.5")
			So(format.QuantizeLabel(-13.4), ShouldEqual, "-13.5")
		})

		Convey("When the whole degree is closer", func() {
			So(format.QuantizeLabel(-1.1), ShouldEqual, "-1")
			So(format.QuantizeLabel(5.8932), ShouldEqual, "6")
		})

		Convey("When both roundings agree", func() {
			So(format.QuantizeLabel(1.25), ShouldEqual, "1")
			So(format.QuantizeLabel(-0.25), ShouldEqual, "0")
		})
	})
}

func TestSignedLabel(t *testing.T) {
	Convey("Given corrections of both signs", t, func() {
		So(format.SignedLabel(6), ShouldEqual, "+6")
		So(format.SignedLabel(0.3), ShouldEqual, "+0.5")
		So(format.SignedLabel(-13.5), ShouldEqual, "-13.5")
		So(format.SignedLabel(0.1), ShouldEqual, format.NoCorrection)
		So(format.Labels(thermal.Triple{6, -13.5, 0}), ShouldResemble, [3]string{"+6", "-13.5", format.NoCorrection})
	})
}

func TestRender(t *testing.T) {
	Convey("Given a computed correction", t, func() {
		im, err := thermal.NewInfluenceMatrix(5, 10)
		So(err, ShouldBeNil)
		current := thermal.Triple{1008.5, 1003.7, 1001.2}
		corr := thermal.Triple{6, -13.5, 0}
		view := format.View{
			ReactorID:   "R7",
			Mode:        thermal.ModePrimary,
			Current:     current,
			Targets:     parser.UniformTargets(1000),
			Corrections: corr,
			Final:       format.FinalTemperatures(im, current, corr),
		}

		Convey("When the target is uniform", func() {
			msg := format.Render(view)

			Convey("Then the message shows one target and per-zone labels", func() {
				So(msg, ShouldStartWith, "Reactor: R7 (pc)\n")
				So(msg, ShouldContainSubstring, "Current temperatures (B C D): 1008.5 1003.7 1001.2")
				So(msg, ShouldContainSubstring, "Target temperature: 1000.0")
				So(msg, ShouldContainSubstring, "B: +6°C\n")
				So(msg, ShouldContainSubstring, "C: -13.5°C\n")
				So(msg, ShouldContainSubstring, "D: "+format.NoCorrection+"\n")
				So(msg, ShouldNotContainSubstring, "Working ranges")
			})

			Convey("Then predicted finals carry one decimal", func() {
				last := msg[strings.LastIndex(msg, "\n")+1:]
				So(last, ShouldStartWith, "Predicted temperatures after corrections: ")
				So(strings.Count(last, "°C"), ShouldEqual, 3)
			})
		})

		Convey("When targets are per zone and ranges are in effect", func() {
			r := ranges.Ranges{{Min: 0, Max: 2}, {Min: -1, Max: 1}, {Min: -1, Max: 0}}
			view.Targets = parser.PerZoneTargets(thermal.Triple{1045, 1040, 1040})
			view.Ranges = &r
			msg := format.Render(view)
			So(msg, ShouldContainSubstring, "Target temperatures (B C D): 1045.0 1040.0 1040.0")
			So(msg, ShouldContainSubstring, "Working ranges: +2 0 +1 -1 0 -1")
		})
	})
}
