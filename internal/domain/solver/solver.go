// Package solver computes per-zone corrections that drive a coupled three-zone
// assembly toward its targets.
//
// Two strategies exist and are mutually exclusive:
//   - optimize: unconstrained Nelder–Mead minimisation of squared deviation plus a
//     soft penalty above the mode's maximum deviation, checked against the exact
//     linear solve;
//   - range: deterministic solve toward per-zone set-points picked inside the
//     working ranges, quantized to half a degree.
//
// A Solver holds only tuning knobs and is safe for concurrent use.
package solver

import (
	"context"
	"errors"

	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// Default tuning constants.
const (
	defaultMaxIterations     = 1000
	defaultFunctionTolerance = 1e-8
	defaultConvergenceWindow = 100
	defaultPenaltyWeight     = 1000
	defaultSimplexSize       = 0.05
	defaultMaxCondition      = 1e12
	defaultMaxRestarts       = 20

	// referenceTolerance bounds how far the optimizer's squared deviation may
	// exceed that of the exact linear solve.
	referenceTolerance = 1e-6
)

// Strategy names the algorithm that produced a result.
type Strategy string

// Strategies.
const (
	StrategyOptimize Strategy = "optimize"
	StrategyRange    Strategy = "range"
)

// Offsets shifts the optimisation targets when no working range is in effect.
// The center may settle on any of target+CPos, target, target+CNeg.
type Offsets struct {
	B    float64 `json:"b"`
	CPos float64 `json:"c_pos"`
	CNeg float64 `json:"c_neg"`
	D    float64 `json:"d"`
}

// Request is one correction problem.
type Request struct {
	Current      thermal.Triple
	Targets      thermal.Triple
	Influence    *thermal.InfluenceMatrix
	MaxDeviation float64

	// Ranges selects the range-aware strategy when set.
	Ranges *ranges.Ranges
	// Offsets applies only to the optimize strategy.
	Offsets *Offsets
}

// Result is a fully computed correction. It is never returned partially.
type Result struct {
	Strategy Strategy `json:"strategy"`
	// Raw is the solver output before quantization.
	Raw thermal.Triple `json:"raw"`
	// Corrections is what the operator applies.
	Corrections thermal.Triple `json:"corrections"`
	// Final is current + M·Corrections.
	Final thermal.Triple `json:"final"`
	// Desired holds the per-zone set-points chosen by the range strategy.
	Desired *thermal.Triple `json:"desired,omitempty"`
	// Objective is the optimizer's final objective value.
	Objective   float64 `json:"objective"`
	Iterations  int     `json:"iterations"`
	Evaluations int     `json:"evaluations"`
}

// Option applies a configuration option to the Solver.
type Option func(*Solver)

// WithMaxIterations caps the optimizer's major iterations per run.
func WithMaxIterations(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithFunctionTolerance sets the absolute objective improvement below which
// the optimizer counts an iteration as stalled.
func WithFunctionTolerance(tol float64) Option {
	return func(s *Solver) {
		if tol > 0 {
			s.functionTolerance = tol
		}
	}
}

// WithConvergenceWindow sets how many consecutive stalled iterations end the search.
func WithConvergenceWindow(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.convergenceWindow = n
		}
	}
}

// WithPenaltyWeight sets the weight of the max-deviation penalty.
func WithPenaltyWeight(w float64) Option {
	return func(s *Solver) {
		if w >= 0 {
			s.penaltyWeight = w
		}
	}
}

// WithSimplexSize sets the edge length of the initial Nelder–Mead simplex.
func WithSimplexSize(size float64) Option {
	return func(s *Solver) {
		if size > 0 {
			s.simplexSize = size
		}
	}
}

// WithMaxRestarts caps how often Nelder–Mead restarts from its best vertex
// with a fresh simplex. Zero runs the search once.
func WithMaxRestarts(n int) Option {
	return func(s *Solver) {
		if n >= 0 {
			s.maxRestarts = n
		}
	}
}

// WithMaxCondition sets the condition number above which the influence
// system is treated as singular.
func WithMaxCondition(c float64) Option {
	return func(s *Solver) {
		if c > 0 {
			s.maxCondition = c
		}
	}
}

// Solver computes corrections.
type Solver struct {
	maxIterations     int
	functionTolerance float64
	convergenceWindow int
	penaltyWeight     float64
	simplexSize       float64
	maxCondition      float64
	maxRestarts       int
}

// New creates a Solver with configuration options.
func New(opts ...Option) *Solver {
	s := &Solver{
		maxIterations:     defaultMaxIterations,
		functionTolerance: defaultFunctionTolerance,
		convergenceWindow: defaultConvergenceWindow,
		penaltyWeight:     defaultPenaltyWeight,
		simplexSize:       defaultSimplexSize,
		maxCondition:      defaultMaxCondition,
		maxRestarts:       defaultMaxRestarts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve picks the strategy from req and runs it.
func (s *Solver) Solve(ctx context.Context, req Request) (Result, error) {
	const op = "solver.solve"
	if err := ctx.Err(); err != nil {
		return Result{}, thermal.Wrap(op, err)
	}
	if req.Influence == nil {
		return Result{}, thermal.Wrap(op, errors.New("influence matrix is required"))
	}
	if !req.Current.IsFinite() || !req.Targets.IsFinite() {
		return Result{}, thermal.NewKind(op, thermal.ErrInputFormat)
	}
	if req.Ranges != nil {
		return s.solveRange(req)
	}
	return s.solveOptimize(req)
}
