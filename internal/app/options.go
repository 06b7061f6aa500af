package service

import (
	"time"

	"github.com/okian/zonecorr/internal/adapters/session"
	"github.com/okian/zonecorr/internal/config"
	"github.com/okian/zonecorr/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig supplies physical constants, default ranges, offsets and solver tuning.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionStore shares an existing session store.
func WithSessionStore(store *session.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithRefreshInterval sets how often session gauges are republished.
func WithRefreshInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.refreshInterval = interval
		}
	}
}
