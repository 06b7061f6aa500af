package session

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMaxSessions bounds the number of active outputs.
// If max <= 0 the store is unbounded.
func WithMaxSessions(max int) Option {
	return func(s *Store) {
		s.maxSessions = max
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
