package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/zonecorr/internal/adapters/session"
	"github.com/okian/zonecorr/internal/domain/format"
	"github.com/okian/zonecorr/internal/domain/parser"
	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/solver"
	"github.com/okian/zonecorr/internal/domain/thermal"
	"github.com/okian/zonecorr/pkg/logger"
	"github.com/okian/zonecorr/pkg/metrics"
)

// ComputeRequest is a free-text reading for one reactor. An empty Mode reuses
// the session's mode, falling back to the primary channel.
type ComputeRequest struct {
	UserID    string
	ReactorID string
	Mode      string
	Input     string
}

// ValuesRequest is the structured form of ComputeRequest. A nil Targets reuses
// the session's targets.
type ValuesRequest struct {
	UserID    string
	ReactorID string
	Mode      string
	Current   thermal.Triple
	Targets   *parser.Targets
}

// Outcome is a committed computation.
type Outcome struct {
	ID          string                    `json:"id"`
	SessionID   string                    `json:"session_id"`
	UserID      string                    `json:"user_id"`
	ReactorID   string                    `json:"reactor_id"`
	Mode        thermal.Mode              `json:"mode"`
	Strategy    solver.Strategy           `json:"strategy"`
	Current     thermal.Triple            `json:"current"`
	Targets     parser.Targets            `json:"targets"`
	Raw         thermal.Triple            `json:"raw"`
	Corrections thermal.Triple            `json:"corrections"`
	Labels      [thermal.ZoneCount]string `json:"labels"`
	Final       thermal.Triple            `json:"final"`
	Desired     *thermal.Triple           `json:"desired,omitempty"`
	Ranges      *ranges.Ranges            `json:"ranges,omitempty"`
	RangeOrigin ranges.Origin             `json:"range_origin,omitempty"`
	Iterations  int                       `json:"iterations,omitempty"`
	Message     string                    `json:"message"`
	ComputedAt  time.Time                 `json:"computed_at"`
}

// Compute parses a free-text reading and runs the correction pipeline.
func (s *Service) Compute(ctx context.Context, req ComputeRequest) (Outcome, error) {
	const op = "compute"
	in, err := parser.Parse(req.Input)
	if err != nil {
		s.fail(ctx, op, err, logger.String("reactor", req.ReactorID))
		return Outcome{}, err
	}
	return s.ComputeValues(ctx, ValuesRequest{
		UserID:    req.UserID,
		ReactorID: req.ReactorID,
		Mode:      req.Mode,
		Current:   in.Current,
		Targets:   in.Targets,
	})
}

// ComputeValues runs the correction pipeline on structured input. The session
// is written only after the whole computation succeeded.
func (s *Service) ComputeValues(ctx context.Context, req ValuesRequest) (Outcome, error) {
	const op = "compute"
	key := session.Key{UserID: req.UserID, ReactorID: req.ReactorID}
	log := s.logger.With(logger.String("user", req.UserID), logger.String("reactor", req.ReactorID))

	out, err := s.compute(ctx, key, req)
	if err != nil {
		s.fail(ctx, op, err, logger.String("user", req.UserID), logger.String("reactor", req.ReactorID))
		return Outcome{}, err
	}

	entry, err := s.sessions.Put(ctx, session.Entry{
		Key:         key,
		Mode:        out.Mode,
		Current:     out.Current,
		Targets:     out.Targets,
		Strategy:    out.Strategy,
		Corrections: out.Corrections,
		Final:       out.Final,
		Ranges:      out.Ranges,
		RangeOrigin: string(out.RangeOrigin),
		Message:     out.Message,
	})
	if err != nil {
		s.fail(ctx, op, err, logger.String("user", req.UserID), logger.String("reactor", req.ReactorID))
		return Outcome{}, err
	}
	out.SessionID = entry.ID
	out.ComputedAt = entry.UpdatedAt

	metrics.RecordComputation(out.Mode.String(), string(out.Strategy))
	log.Info(ctx, "correction computed",
		logger.String("id", out.ID),
		logger.String("mode", out.Mode.String()),
		logger.String("strategy", string(out.Strategy)),
		logger.String("rangeOrigin", string(out.RangeOrigin)),
		logger.Any("corrections", out.Labels),
	)
	return out, nil
}

func (s *Service) compute(ctx context.Context, key session.Key, req ValuesRequest) (Outcome, error) {
	const op = "service.compute"
	if key.UserID == "" || key.ReactorID == "" {
		return Outcome{}, fmt.Errorf("%w: user and reactor are required", session.ErrInvalidKey)
	}

	prev, err := s.sessions.Get(ctx, key)
	hasPrev := err == nil
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return Outcome{}, err
	}

	mode, err := s.resolveMode(req.Mode, prev, hasPrev)
	if err != nil {
		return Outcome{}, err
	}

	targets := req.Targets
	if targets == nil {
		if !hasPrev {
			return Outcome{}, thermal.WrapKind(op, thermal.ErrInputFormat,
				fmt.Errorf("no previous targets for reactor %s; %s", key.ReactorID, parser.Usage))
		}
		t := prev.Targets
		targets = &t
	}
	if !req.Current.IsFinite() || !targets.Values.IsFinite() {
		return Outcome{}, thermal.NewKind(op, thermal.ErrInputFormat)
	}

	influence, err := s.physics.Influence(mode)
	if err != nil {
		return Outcome{}, err
	}
	constants, err := s.physics.Constants(mode)
	if err != nil {
		return Outcome{}, err
	}

	res, err := s.resolver.Resolve(ctx, key.UserID, key.ReactorID)
	if err != nil {
		return Outcome{}, err
	}
	metrics.RecordRangeResolution(string(res.Origin))

	solveReq := solver.Request{
		Current:      req.Current,
		Targets:      targets.Values,
		Influence:    influence,
		MaxDeviation: constants.MaxDeviation,
	}
	var origin ranges.Origin
	if res.Origin != ranges.OriginDefault || s.enforceDefaults {
		r := res.Ranges
		solveReq.Ranges = &r
		origin = res.Origin
	} else {
		solveReq.Offsets = s.offsets
	}

	start := time.Now()
	result, err := s.solver.Solve(ctx, solveReq)
	if err != nil {
		return Outcome{}, err
	}
	metrics.RecordSolveLatency(string(result.Strategy), float64(time.Since(start).Microseconds())/1000)
	if result.Strategy == solver.StrategyOptimize {
		metrics.RecordOptimizerIterations(result.Iterations)
	}

	message := format.Render(format.View{
		ReactorID:   key.ReactorID,
		Mode:        mode,
		Current:     req.Current,
		Targets:     *targets,
		Corrections: result.Corrections,
		Final:       result.Final,
		Ranges:      solveReq.Ranges,
	})

	return Outcome{
		ID:          uuid.NewString(),
		UserID:      key.UserID,
		ReactorID:   key.ReactorID,
		Mode:        mode,
		Strategy:    result.Strategy,
		Current:     req.Current,
		Targets:     *targets,
		Raw:         result.Raw,
		Corrections: result.Corrections,
		Labels:      format.Labels(result.Corrections),
		Final:       result.Final,
		Desired:     result.Desired,
		Ranges:      solveReq.Ranges,
		RangeOrigin: origin,
		Iterations:  result.Iterations,
		Message:     message,
	}, nil
}

func (s *Service) resolveMode(name string, prev session.Entry, hasPrev bool) (thermal.Mode, error) {
	if name != "" {
		return thermal.ParseMode(name)
	}
	if hasPrev && prev.Mode.Valid() {
		return prev.Mode, nil
	}
	return thermal.ModePrimary, nil
}

// Session returns the active output for a reactor.
func (s *Service) Session(ctx context.Context, userID, reactorID string) (session.Entry, error) {
	e, err := s.sessions.Get(ctx, session.Key{UserID: userID, ReactorID: reactorID})
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		s.fail(ctx, "session", err, logger.String("user", userID), logger.String("reactor", reactorID))
	}
	return e, err
}

// Finish discards the active output for a reactor.
func (s *Service) Finish(ctx context.Context, userID, reactorID string) error {
	if err := s.sessions.Delete(ctx, session.Key{UserID: userID, ReactorID: reactorID}); err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.fail(ctx, "finish", err, logger.String("user", userID), logger.String("reactor", reactorID))
		}
		return err
	}
	metrics.UpdateActiveSessions(s.sessions.Count())
	s.logger.Info(ctx, "session finished", logger.String("user", userID), logger.String("reactor", reactorID))
	return nil
}

// ListSessions returns the user's active outputs ordered by reactor.
func (s *Service) ListSessions(ctx context.Context, userID string) []session.Entry {
	return s.sessions.ListByUser(ctx, userID)
}

// SaveRanges parses and stores a range override. An empty reactorID saves the
// user-global override.
func (s *Service) SaveRanges(ctx context.Context, userID, reactorID, text string) (ranges.Ranges, error) {
	r, err := ranges.Parse(text)
	if err != nil {
		s.fail(ctx, "save_ranges", err, logger.String("user", userID))
		return ranges.Ranges{}, err
	}
	if err := s.StoreRanges(ctx, userID, reactorID, r); err != nil {
		return ranges.Ranges{}, err
	}
	return r, nil
}

// StoreRanges stores an already structured range override.
func (s *Service) StoreRanges(ctx context.Context, userID, reactorID string, r ranges.Ranges) error {
	var err error
	scope := "user"
	if reactorID == "" {
		err = s.sessions.SetUserRanges(ctx, userID, r)
	} else {
		scope = "reactor"
		err = s.sessions.SetReactorRanges(ctx, session.Key{UserID: userID, ReactorID: reactorID}, r)
	}
	if err != nil {
		s.fail(ctx, "save_ranges", err, logger.String("user", userID), logger.String("reactor", reactorID))
		return err
	}
	s.publishGauges()
	s.logger.Info(ctx, "working ranges saved",
		logger.String("user", userID),
		logger.String("reactor", reactorID),
		logger.String("scope", scope),
		logger.String("ranges", ranges.Format(r)),
	)
	return nil
}

// ClearRanges removes an override and reports whether one existed.
func (s *Service) ClearRanges(ctx context.Context, userID, reactorID string) bool {
	var removed bool
	if reactorID == "" {
		removed = s.sessions.DeleteUserRanges(ctx, userID)
	} else {
		removed = s.sessions.DeleteReactorRanges(ctx, session.Key{UserID: userID, ReactorID: reactorID})
	}
	if removed {
		s.publishGauges()
		s.logger.Info(ctx, "working ranges cleared", logger.String("user", userID), logger.String("reactor", reactorID))
	}
	return removed
}

// EffectiveRanges reports the ranges a computation for the reactor would see,
// and whether they switch the solver to the range strategy.
func (s *Service) EffectiveRanges(ctx context.Context, userID, reactorID string) (ranges.Resolution, bool, error) {
	res, err := s.resolver.Resolve(ctx, userID, reactorID)
	if err != nil {
		s.fail(ctx, "effective_ranges", err, logger.String("user", userID), logger.String("reactor", reactorID))
		return ranges.Resolution{}, false, err
	}
	return res, res.Origin != ranges.OriginDefault || s.enforceDefaults, nil
}

func (s *Service) fail(ctx context.Context, op string, err error, fields ...logger.Field) {
	kind := ErrorKind(err)
	metrics.RecordError(op, kind)
	fields = append(fields, logger.String("op", op), logger.String("kind", kind), logger.Error(err))
	s.logger.Warn(ctx, "operation failed", fields...)
}

// ErrorKind names the category of err for metrics and API responses.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	case errors.Is(err, session.ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, session.ErrCapacity):
		return "capacity"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return thermal.KindName(err)
	}
}
