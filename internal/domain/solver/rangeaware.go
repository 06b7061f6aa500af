package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// Grid constants for set-point selection and quantization.
const (
	GridStep    = 0.5
	gridEpsilon = 1e-9

	// QuantizationSlack is how far outside its band a final temperature may
	// land once corrections sit on the grid.
	QuantizationSlack = GridStep / 2

	// gridReach is how many grid points on each side of a raw correction are
	// candidates when rounding.
	gridReach = 2
)

// Quantize rounds v to the nearest multiple of GridStep, ties to even.
func Quantize(v float64) float64 {
	q := math.RoundToEven(v/GridStep) * GridStep
	if q == 0 {
		return 0
	}
	return q
}

// DesiredTarget picks the set-point for one zone inside its band around target.
// A reading above the band maps to the upper edge and one below it to the lower
// edge. A reading inside the band maps to the closest half-degree grid point
// counted from the lower edge, ties going to the lower point.
func DesiredTarget(current, target float64, w ranges.WorkingRange) float64 {
	lower, upper := w.Bounds(target)
	switch {
	case current > upper:
		return upper
	case current < lower:
		return lower
	}
	steps := math.Floor((upper-lower)/GridStep + gridEpsilon)
	k := math.Ceil((current-lower)/GridStep - 0.5)
	k = math.Min(math.Max(k, 0), steps)
	return lower + k*GridStep
}

func (s *Solver) solveRange(req Request) (Result, error) {
	const op = "solver.range"
	if err := req.Ranges.Validate(); err != nil {
		return Result{}, thermal.Wrap(op, err)
	}

	var desired thermal.Triple
	for _, z := range thermal.Zones {
		desired[z] = DesiredTarget(req.Current[z], req.Targets[z], req.Ranges.Zone(z))
	}

	// Readings already inside every band need no correction.
	if inBand(req, req.Current) == thermal.ZoneCount {
		return Result{
			Strategy: StrategyRange,
			Final:    req.Current,
			Desired:  &desired,
		}, nil
	}

	raw, err := s.linearSolve(req.Influence, desired.Sub(req.Current))
	if err != nil {
		return Result{}, thermal.Wrap(op, err)
	}
	corr := quantizeInBand(req, raw)

	return Result{
		Strategy:    StrategyRange,
		Raw:         raw,
		Corrections: corr,
		Final:       req.Influence.Apply(req.Current, corr),
		Desired:     &desired,
	}, nil
}

// quantizeInBand rounds raw onto the grid. Nearest rounding wins unless
// another nearby grid point per zone keeps more zones in band, ties going to
// the point closest to raw.
func quantizeInBand(req Request, raw thermal.Triple) thermal.Triple {
	var best thermal.Triple
	for i, v := range raw {
		best[i] = Quantize(v)
	}
	bestIn, bestDist := inBand(req, req.Influence.Apply(req.Current, best)), gridDistance(best, raw)
	if bestIn == thermal.ZoneCount {
		return best
	}

	var candidates [thermal.ZoneCount][]float64
	for i, v := range raw {
		base := math.Floor(v / GridStep)
		for k := 1 - gridReach; k <= gridReach; k++ {
			c := (base + float64(k)) * GridStep
			if c == 0 {
				c = 0
			}
			candidates[i] = append(candidates[i], c)
		}
	}
	for _, b := range candidates[thermal.ZoneB] {
		for _, c := range candidates[thermal.ZoneC] {
			for _, d := range candidates[thermal.ZoneD] {
				x := thermal.Triple{b, c, d}
				in, dist := inBand(req, req.Influence.Apply(req.Current, x)), gridDistance(x, raw)
				if in > bestIn || (in == bestIn && dist < bestDist) {
					best, bestIn, bestDist = x, in, dist
				}
			}
		}
	}
	return best
}

// inBand counts zones whose temperature lies in its band widened by QuantizationSlack.
func inBand(req Request, temps thermal.Triple) int {
	n := 0
	for _, z := range thermal.Zones {
		if req.Ranges.Zone(z).Contains(req.Targets[z], temps[z], QuantizationSlack) {
			n++
		}
	}
	return n
}

func gridDistance(x, raw thermal.Triple) float64 {
	var d float64
	for i := range x {
		d += math.Abs(x[i] - raw[i])
	}
	return d
}

// linearSolve returns x with M·x = rhs. An ill-conditioned M fails with
// ErrSingularSystem.
func (s *Solver) linearSolve(im *thermal.InfluenceMatrix, rhs thermal.Triple) (thermal.Triple, error) {
	const op = "solver.linear_solve"
	var lu mat.LU
	lu.Factorize(im.Dense())
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > s.maxCondition {
		return thermal.Triple{}, thermal.WrapKind(op, thermal.ErrSingularSystem,
			fmt.Errorf("condition number %.3g exceeds %.3g (coefficient %.6f)", cond, s.maxCondition, im.Coefficient()))
	}

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, mat.NewVecDense(thermal.ZoneCount, rhs.Slice())); err != nil {
		return thermal.Triple{}, thermal.WrapKind(op, thermal.ErrSingularSystem, err)
	}
	out, ok := thermal.TripleFrom(x.RawVector().Data)
	if !ok || !out.IsFinite() {
		return thermal.Triple{}, thermal.NewKind(op, thermal.ErrSingularSystem)
	}
	return out, nil
}
