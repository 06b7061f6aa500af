package solver_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/solver"
	"github.com/okian/zonecorr/internal/domain/thermal"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

var (
	current  = thermal.Triple{1008.5, 1003.7, 1001.2}
	target   = thermal.Uniform(1000)
	narrow   = ranges.Ranges{{Min: 0, Max: 2}, {Min: -1, Max: 1}, {Min: -1, Max: 0}}
	halfStep = 0.5
)

func influence(distance, length float64) *thermal.InfluenceMatrix {
	im, err := thermal.NewInfluenceMatrix(distance, length)
	So(err, ShouldBeNil)
	return im
}

func exactSolve(im *thermal.InfluenceMatrix, rhs thermal.Triple) thermal.Triple {
	var x mat.VecDense
	So(x.SolveVec(im.Dense(), mat.NewVecDense(3, rhs.Slice())), ShouldBeNil)
	return thermal.Triple{x.AtVec(0), x.AtVec(1), x.AtVec(2)}
}

func TestOptimizeStrategy(t *testing.T) {
	Convey("Given a solver without ranges", t, func() {
		ctx := context.Background()
		s := solver.New()
		im := influence(5, 10)

		Convey("When the targets are reachable", func() {
			res, err := s.Solve(ctx, solver.Request{
				Current:      current,
				Targets:      target,
				Influence:    im,
				MaxDeviation: 1,
			})

			Convey("Then the optimizer lands on the exact solution", func() {
				So(err, ShouldBeNil)
				So(res.Strategy, ShouldEqual, solver.StrategyOptimize)
				So(res.Desired, ShouldBeNil)
				want := exactSolve(im, target.Sub(current))
				for i := range want {
					So(res.Corrections[i], ShouldAlmostEqual, want[i], 1e-3)
				}
				So(res.Corrections[thermal.ZoneB], ShouldAlmostEqual, 4.8038, 1e-3)
				So(res.Corrections[thermal.ZoneC], ShouldAlmostEqual, -14.3509, 1e-3)
				So(res.Corrections[thermal.ZoneD], ShouldAlmostEqual, 12.7566, 1e-3)
			})

			Convey("Then the finals reproduce current + M·x", func() {
				So(err, ShouldBeNil)
				So(res.Final, ShouldResemble, im.Apply(current, res.Corrections))
				var sq float64
				for i := range res.Final {
					d := res.Final[i] - target[i]
					sq += d * d
				}
				So(sq, ShouldBeLessThan, 1e-6)
				So(res.Iterations, ShouldBeGreaterThan, 0)
				So(res.Evaluations, ShouldBeGreaterThan, res.Iterations)
			})

			Convey("Then corrections are not quantized", func() {
				So(res.Raw, ShouldResemble, res.Corrections)
			})
		})

		Convey("When the readings already sit on target", func() {
			res, err := s.Solve(ctx, solver.Request{
				Current:      target,
				Targets:      target,
				Influence:    im,
				MaxDeviation: 1,
			})
			So(err, ShouldBeNil)
			for _, v := range res.Corrections {
				So(math.Abs(v), ShouldBeLessThan, 1e-3)
			}
		})

		Convey("When the iteration budget is too small", func() {
			_, err := solver.New(solver.WithMaxIterations(3)).Solve(ctx, solver.Request{
				Current:      current,
				Targets:      target,
				Influence:    im,
				MaxDeviation: 1,
			})
			So(errors.Is(err, thermal.ErrOptimizationConvergence), ShouldBeTrue)
		})

		Convey("When offsets are configured", func() {
			off := &solver.Offsets{B: 1, CPos: 0.5, CNeg: -0.5, D: -1}
			res, err := s.Solve(ctx, solver.Request{
				Current:      current,
				Targets:      target,
				Influence:    im,
				MaxDeviation: 1,
				Offsets:      off,
			})

			Convey("Then the edges settle on their shifted targets", func() {
				So(err, ShouldBeNil)
				So(res.Final[thermal.ZoneB], ShouldAlmostEqual, 1001, 1e-2)
				So(res.Final[thermal.ZoneD], ShouldAlmostEqual, 999, 1e-2)
				c := res.Final[thermal.ZoneC]
				onVariant := math.Abs(c-1000.5) < 1e-2 || math.Abs(c-1000) < 1e-2 || math.Abs(c-999.5) < 1e-2
				So(onVariant, ShouldBeTrue)
			})
		})
	})
}

func squaredDeviation(final, target thermal.Triple) float64 {
	var sq float64
	for i := range final {
		d := final[i] - target[i]
		sq += d * d
	}
	return sq
}

func TestOptimizeMatchesLinearSolve(t *testing.T) {
	Convey("Given seeded random readings within 15 degrees of a uniform target", t, func() {
		ctx := context.Background()
		s := solver.New()
		rng := rand.New(rand.NewPCG(7, 11))
		reading := func(spread float64) thermal.Triple {
			var c thermal.Triple
			for i := range c {
				c[i] = 1000 + (rng.Float64()*2-1)*spread
			}
			return c
		}

		for _, physics := range []struct {
			length, maxDev float64
		}{{10, 1}, {8, 1.5}, {10, 0}} {
			im := influence(5, physics.length)
			for i := 0; i < 100; i++ {
				cur := reading(15)
				res, err := s.Solve(ctx, solver.Request{Current: cur, Targets: target, Influence: im, MaxDeviation: physics.maxDev})
				So(err, ShouldBeNil)
				So(squaredDeviation(res.Final, target), ShouldBeLessThan, 1e-6)
				want := exactSolve(im, target.Sub(cur))
				for z := range want {
					So(res.Corrections[z], ShouldAlmostEqual, want[z], 1e-3)
				}
			}
		}

		Convey("Then offsets still reach one of the shifted targets", func() {
			off := &solver.Offsets{B: 2, CPos: 1, CNeg: -1, D: -1}
			im := influence(5, 10)
			for i := 0; i < 50; i++ {
				res, err := s.Solve(ctx, solver.Request{Current: reading(15), Targets: target, Influence: im, MaxDeviation: 1, Offsets: off})
				So(err, ShouldBeNil)
				So(res.Final[thermal.ZoneB], ShouldAlmostEqual, 1002, 1e-3)
				So(res.Final[thermal.ZoneD], ShouldAlmostEqual, 999, 1e-3)
				c := res.Final[thermal.ZoneC]
				So(math.Abs(c-1001) < 1e-3 || math.Abs(c-1000) < 1e-3 || math.Abs(c-999) < 1e-3, ShouldBeTrue)
			}
		})
	})

	Convey("Given a reading whose first simplex stalls on the penalty kinks", t, func() {
		ctx := context.Background()
		im := influence(5, 10)
		stalling := thermal.Triple{987.6, 1003.8, 1007.5}
		req := solver.Request{Current: stalling, Targets: target, Influence: im, MaxDeviation: 1}

		Convey("When restarts are allowed", func() {
			res, err := solver.New().Solve(ctx, req)

			Convey("Then every zone reaches the target", func() {
				So(err, ShouldBeNil)
				for _, f := range res.Final {
					So(f, ShouldAlmostEqual, 1000, 1e-3)
				}
			})
		})

		Convey("When the search runs only once", func() {
			_, err := solver.New(solver.WithMaxRestarts(0)).Solve(ctx, req)

			Convey("Then the stalled answer is rejected against the linear solve", func() {
				So(errors.Is(err, thermal.ErrOptimizationConvergence), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "linear solve")
			})
		})
	})
}

func TestRangeStrategy(t *testing.T) {
	Convey("Given a solver with working ranges", t, func() {
		ctx := context.Background()
		s := solver.New()

		Convey("When the edges run hot at distance 5, length 10", func() {
			im := influence(5, 10)
			res, err := s.Solve(ctx, solver.Request{
				Current:   current,
				Targets:   target,
				Influence: im,
				Ranges:    &narrow,
			})

			Convey("Then set-points snap onto the bands", func() {
				So(err, ShouldBeNil)
				So(res.Strategy, ShouldEqual, solver.StrategyRange)
				So(*res.Desired, ShouldResemble, thermal.Triple{1002, 1001, 1000})
			})

			Convey("Then raw corrections solve the linear system", func() {
				So(res.Raw[thermal.ZoneB], ShouldAlmostEqual, 5.8932, 1e-3)
				So(res.Raw[thermal.ZoneC], ShouldAlmostEqual, -13.3509, 1e-3)
				So(res.Raw[thermal.ZoneD], ShouldAlmostEqual, 11.6672, 1e-3)
			})

			Convey("Then corrections are on the half-degree grid", func() {
				So(res.Corrections, ShouldResemble, thermal.Triple{6, -13.5, 11.5})
				for _, v := range res.Corrections {
					So(math.Mod(v, halfStep), ShouldEqual, 0)
				}
			})

			Convey("Then finals stay within the bands up to rounding slack", func() {
				So(res.Final, ShouldResemble, im.Apply(current, res.Corrections))
				for _, z := range thermal.Zones {
					So(narrow.Zone(z).Contains(target[z], res.Final[z], 0.25), ShouldBeTrue)
				}
			})
		})

		Convey("When a solution is fed back at distance 5, length 10", func() {
			im := influence(5, 10)
			first, err := s.Solve(ctx, solver.Request{Current: current, Targets: target, Influence: im, Ranges: &narrow})
			So(err, ShouldBeNil)

			again, err := s.Solve(ctx, solver.Request{Current: first.Final, Targets: target, Influence: im, Ranges: &narrow})

			Convey("Then no further correction is suggested", func() {
				So(err, ShouldBeNil)
				So(again.Corrections, ShouldResemble, thermal.Triple{})
				So(again.Final, ShouldResemble, first.Final)
			})
		})

		Convey("When nearest rounding would push an edge past its band", func() {
			im := influence(5, 10)
			wide := ranges.Ranges{{Min: -0.5, Max: 2}, {Min: -1, Max: 0}, {Min: 1, Max: 1.5}}
			res, err := s.Solve(ctx, solver.Request{
				Current:   thermal.Triple{1002.56, 999.97, 991.80},
				Targets:   target,
				Influence: im,
				Ranges:    &wide,
			})
			So(err, ShouldBeNil)
			So(res.Raw[thermal.ZoneB], ShouldAlmostEqual, -38.0704, 1e-3)

			Convey("Then a neighbouring grid point keeps every zone in band", func() {
				So(res.Corrections, ShouldResemble, thermal.Triple{-38.5, 40, -27.5})
				for _, z := range thermal.Zones {
					So(wide.Zone(z).Contains(target[z], res.Final[z], solver.QuantizationSlack), ShouldBeTrue)
				}
			})
		})

		Convey("When readings already sit on a grid point inside the bands", func() {
			im := influence(5, 10)
			res, err := s.Solve(ctx, solver.Request{
				Current:   thermal.Triple{1001, 1000, 999.5},
				Targets:   target,
				Influence: im,
				Ranges:    &narrow,
			})
			So(err, ShouldBeNil)
			So(res.Corrections, ShouldResemble, thermal.Triple{})
			So(*res.Desired, ShouldResemble, thermal.Triple{1001, 1000, 999.5})
		})

		Convey("When a range is inverted", func() {
			bad := ranges.Ranges{{Min: 2, Max: 0}, {}, {}}
			_, err := s.Solve(ctx, solver.Request{Current: current, Targets: target, Influence: influence(5, 10), Ranges: &bad})
			So(errors.Is(err, thermal.ErrRangeInvalid), ShouldBeTrue)
		})

		Convey("When the influence matrix is singular", func() {
			im := influence(6.5625597923697585, 10)
			_, err := s.Solve(ctx, solver.Request{Current: current, Targets: target, Influence: im, Ranges: &narrow})
			So(errors.Is(err, thermal.ErrSingularSystem), ShouldBeTrue)
		})

		Convey("When the condition limit is tighter than the matrix", func() {
			strict := solver.New(solver.WithMaxCondition(10))
			_, err := strict.Solve(ctx, solver.Request{Current: current, Targets: target, Influence: influence(5, 10), Ranges: &narrow})
			So(errors.Is(err, thermal.ErrSingularSystem), ShouldBeTrue)
		})
	})
}

func TestRangeStrategyProperties(t *testing.T) {
	Convey("Given seeded random bands and readings", t, func() {
		ctx := context.Background()
		s := solver.New()
		rng := rand.New(rand.NewPCG(3, 5))
		half := func(lo, hi float64) float64 { return math.Round((lo+rng.Float64()*(hi-lo))*2) / 2 }

		for _, length := range []float64{10, 8, 20} {
			im := influence(5, length)
			for i := 0; i < 300; i++ {
				var r ranges.Ranges
				for z := range r {
					r[z].Min = half(-3, 2)
					r[z].Max = r[z].Min + half(0, 3)
				}
				var cur thermal.Triple
				for z := range cur {
					cur[z] = 1000 + (rng.Float64()*2-1)*40
				}

				first, err := s.Solve(ctx, solver.Request{Current: cur, Targets: target, Influence: im, Ranges: &r})
				So(err, ShouldBeNil)
				for _, z := range thermal.Zones {
					So(r.Zone(z).Contains(target[z], first.Final[z], solver.QuantizationSlack), ShouldBeTrue)
					So(math.Mod(first.Corrections[z], halfStep), ShouldEqual, 0)
				}

				again, err := s.Solve(ctx, solver.Request{Current: first.Final, Targets: target, Influence: im, Ranges: &r})
				So(err, ShouldBeNil)
				So(again.Corrections, ShouldResemble, thermal.Triple{})
			}
		}
	})
}

func TestSolveValidation(t *testing.T) {
	Convey("Given malformed requests", t, func() {
		s := solver.New()
		im := influence(5, 10)

		Convey("When a reading is not finite", func() {
			_, err := s.Solve(context.Background(), solver.Request{
				Current: thermal.Triple{math.NaN(), 1, 1}, Targets: target, Influence: im,
			})
			So(errors.Is(err, thermal.ErrInputFormat), ShouldBeTrue)
		})

		Convey("When the influence matrix is missing", func() {
			_, err := s.Solve(context.Background(), solver.Request{Current: current, Targets: target})
			So(err, ShouldNotBeNil)
			So(thermal.KindOf(err), ShouldBeNil)
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := s.Solve(ctx, solver.Request{Current: current, Targets: target, Influence: im})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestQuantize(t *testing.T) {
	Convey("Given raw corrections", t, func() {
		cases := map[float64]float64{
			5.8932:   6,
			-13.3509: -13.5,
			11.6672:  11.5,
			0.25:     0,
			0.75:     1,
			-0.2:     0,
			1.25:     1,
		}
		for in, want := range cases {
			So(solver.Quantize(in), ShouldEqual, want)
		}
		So(math.Signbit(solver.Quantize(-0.1)), ShouldBeFalse)
	})
}

func TestDesiredTarget(t *testing.T) {
	Convey("Given a band of [-1, +1] around 1000", t, func() {
		w := ranges.WorkingRange{Min: -1, Max: 1}
		So(solver.DesiredTarget(1003.7, 1000, w), ShouldEqual, 1001)
		So(solver.DesiredTarget(995, 1000, w), ShouldEqual, 999)
		So(solver.DesiredTarget(1000.1, 1000, w), ShouldEqual, 1000)
		So(solver.DesiredTarget(1000.3, 1000, w), ShouldEqual, 1000.5)
		So(solver.DesiredTarget(1000.25, 1000, w), ShouldEqual, 1000)

		Convey("A band narrower than the grid keeps the lower edge", func() {
			thin := ranges.WorkingRange{Min: 0, Max: 0.3}
			So(solver.DesiredTarget(1000.29, 1000, thin), ShouldEqual, 1000)
			So(solver.DesiredTarget(1000.4, 1000, thin), ShouldEqual, 1000.3)
		})
	})
}
