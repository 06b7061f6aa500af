// Package service wires parsing, range resolution, solving, formatting and
// session state into the operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/zonecorr/internal/adapters/session"
	"github.com/okian/zonecorr/internal/config"
	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/solver"
	"github.com/okian/zonecorr/internal/domain/thermal"
	"github.com/okian/zonecorr/pkg/logger"
	"github.com/okian/zonecorr/pkg/metrics"
)

const defaultRefreshInterval = 5 * time.Second

// Service implements the correction workflow for operators.
type Service struct {
	mu sync.RWMutex

	// Core components
	physics  *thermal.Physics
	solver   *solver.Solver
	resolver *ranges.Resolver
	sessions *session.Store

	// Configuration
	cfg             *config.Config
	offsets         *solver.Offsets
	enforceDefaults bool
	refreshInterval time.Duration

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// New constructs a Service. Configuration defaults apply unless WithConfig is given.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		cfg:             config.New(),
		refreshInterval: defaultRefreshInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	physics, err := s.cfg.Physics()
	if err != nil {
		return nil, err
	}
	defaults, err := s.cfg.DefaultRanges()
	if err != nil {
		return nil, err
	}
	if s.sessions == nil {
		s.sessions = session.New(session.WithMaxSessions(s.cfg.MaxSessions))
	}
	resolver, err := ranges.NewResolver(s.sessions, defaults)
	if err != nil {
		return nil, err
	}

	s.physics = physics
	s.resolver = resolver
	s.solver = solver.New(s.cfg.SolverOptions()...)
	s.offsets = s.cfg.Offsets()
	s.enforceDefaults = s.cfg.EnforceDefaultRanges
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.Named("service")
	return s, nil
}

// Start launches the background gauge refresher.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting correction service...")

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.refreshGauges(s.stopCh)

	s.started = true
	s.logger.Info(ctx, "correction service started",
		logger.Float64("distance", s.physics.Distance()),
		logger.Bool("enforceDefaultRanges", s.enforceDefaults),
		logger.Bool("offsets", s.offsets != nil),
		logger.Duration("refreshInterval", s.refreshInterval),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.logger.Info(context.Background(), "stopping correction service...")
	close(s.stopCh)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info(context.Background(), "correction service stopped")
}

func (s *Service) refreshGauges(stop <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	s.publishGauges()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.publishGauges()
		}
	}
}

func (s *Service) publishGauges() {
	metrics.UpdateActiveSessions(s.sessions.Count())
	users, reactors := s.sessions.RangeSets()
	metrics.UpdateSavedRangeSets("user", users)
	metrics.UpdateSavedRangeSets("reactor", reactors)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	users, reactors := s.sessions.RangeSets()
	stats := map[string]interface{}{
		"started":              started,
		"activeSessions":       s.sessions.Count(),
		"userRangeSets":        users,
		"reactorRangeSets":     reactors,
		"distance":             s.physics.Distance(),
		"enforceDefaultRanges": s.enforceDefaults,
		"offsetsEnabled":       s.offsets != nil,
	}
	for _, m := range thermal.Modes {
		if im, err := s.physics.Influence(m); err == nil {
			stats[fmt.Sprintf("%sCoefficient", m)] = im.Coefficient()
		}
	}

	s.publishGauges()
	return stats
}
