package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/okian/zonecorr/internal/domain/thermal"
)

// objective is f(x) = Σ(final_i − target_i)^2 + w·Σ max(|final_i − target_i| − maxDev, 0).
type objective struct {
	current   thermal.Triple
	targets   thermal.Triple
	influence *thermal.InfluenceMatrix
	maxDev    float64
	weight    float64
	offsets   *Offsets
}

func (o *objective) value(x []float64) float64 {
	final := o.influence.Apply(o.current, thermal.Triple{x[0], x[1], x[2]})
	eff := o.effectiveTargets(final)
	var sq, penalty float64
	for i := range final {
		d := final[i] - eff[i]
		sq += d * d
		penalty += math.Max(math.Abs(d)-o.maxDev, 0)
	}
	return sq + o.weight*penalty
}

// squaredDeviation is Σ(final_i − effective target_i)^2.
func (o *objective) squaredDeviation(final thermal.Triple) float64 {
	eff := o.effectiveTargets(final)
	var sq float64
	for i := range final {
		d := final[i] - eff[i]
		sq += d * d
	}
	return sq
}

// effectiveTargets applies the offset table. The center takes whichever of its
// variants is closest to where it would end up.
func (o *objective) effectiveTargets(final thermal.Triple) thermal.Triple {
	if o.offsets == nil {
		return o.targets
	}
	variants := o.variants()
	best := variants[0]
	for _, v := range variants[1:] {
		if math.Abs(final[thermal.ZoneC]-v[thermal.ZoneC]) < math.Abs(final[thermal.ZoneC]-best[thermal.ZoneC]) {
			best = v
		}
	}
	return best
}

// variants lists every target vector the objective can settle on, the
// unshifted center first.
func (o *objective) variants() []thermal.Triple {
	if o.offsets == nil {
		return []thermal.Triple{o.targets}
	}
	base := o.targets
	base[thermal.ZoneB] += o.offsets.B
	base[thermal.ZoneD] += o.offsets.D
	out := make([]thermal.Triple, 0, 3)
	for _, shift := range []float64{0, o.offsets.CPos, o.offsets.CNeg} {
		v := base
		v[thermal.ZoneC] += shift
		out = append(out, v)
	}
	return out
}

func (s *Solver) solveOptimize(req Request) (Result, error) {
	const op = "solver.optimize"
	obj := &objective{
		current:   req.Current,
		targets:   req.Targets,
		influence: req.Influence,
		maxDev:    req.MaxDeviation,
		weight:    s.penaltyWeight,
		offsets:   req.Offsets,
	}
	problem := optimize.Problem{Func: obj.value}

	// A collapsed simplex stalls on the penalty kinks, so the search restarts
	// from the best vertex until a run no longer improves the objective.
	x := make([]float64, thermal.ZoneCount)
	best := math.Inf(1)
	var (
		status      optimize.Status
		iterations  int
		evaluations int
	)
	for run := 0; run <= s.maxRestarts; run++ {
		res, err := optimize.Minimize(problem, x, s.settings(), &optimize.NelderMead{SimplexSize: s.simplexSize})
		if err != nil {
			return Result{}, thermal.WrapKind(op, thermal.ErrOptimizationConvergence, err)
		}
		iterations += res.Stats.MajorIterations
		evaluations += res.Stats.FuncEvaluations
		status = res.Status
		improved := best-res.F > s.functionTolerance
		if res.F < best {
			best = res.F
			x = append(x[:0], res.X...)
		}
		if !improved {
			break
		}
	}
	if !converged(status) {
		return Result{}, thermal.WrapKind(op, thermal.ErrOptimizationConvergence,
			fmt.Errorf("stopped with status %v after %d iterations", status, iterations))
	}
	corr, ok := thermal.TripleFrom(x)
	if !ok || !corr.IsFinite() || math.IsNaN(best) || math.IsInf(best, 0) {
		return Result{}, thermal.WrapKind(op, thermal.ErrOptimizationConvergence, fmt.Errorf("non-finite solution %v", x))
	}

	final := req.Influence.Apply(req.Current, corr)
	ref, err := s.referenceDeviation(obj)
	if err != nil {
		return Result{}, thermal.Wrap(op, err)
	}
	if got := obj.squaredDeviation(final); got-ref > referenceTolerance {
		return Result{}, thermal.WrapKind(op, thermal.ErrOptimizationConvergence,
			fmt.Errorf("squared deviation %.6g exceeds the linear solve's %.6g after %d iterations", got, ref, iterations))
	}

	return Result{
		Strategy:    StrategyOptimize,
		Raw:         corr,
		Corrections: corr,
		Final:       final,
		Objective:   best,
		Iterations:  iterations,
		Evaluations: evaluations,
	}, nil
}

func (s *Solver) settings() *optimize.Settings {
	return &optimize.Settings{
		MajorIterations: s.maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.functionTolerance,
			Iterations: s.convergenceWindow,
		},
	}
}

// referenceDeviation is the smallest squared deviation reachable by solving
// M·x = target − current exactly for each target variant.
func (s *Solver) referenceDeviation(obj *objective) (float64, error) {
	ref := math.Inf(1)
	for _, t := range obj.variants() {
		x, err := s.linearSolve(obj.influence, t.Sub(obj.current))
		if err != nil {
			return 0, err
		}
		ref = math.Min(ref, obj.squaredDeviation(obj.influence.Apply(obj.current, x)))
	}
	return ref, nil
}

// converged accepts only statuses that mean the optimizer stopped on its own
// criteria rather than on a budget.
func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionConvergence,
		optimize.FunctionThreshold,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	default:
		return false
	}
}
