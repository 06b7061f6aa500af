// Package session keeps per-operator state between computations: the active
// output for each (user, reactor) pair and the working ranges operators saved.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/zonecorr/internal/domain/parser"
	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/solver"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// Key identifies one operator's view of one reactor.
type Key struct {
	UserID    string `json:"user_id"`
	ReactorID string `json:"reactor_id"`
}

func (k Key) valid() bool { return k.UserID != "" && k.ReactorID != "" }

func (k Key) String() string { return k.UserID + "/" + k.ReactorID }

// Entry is the last successful computation for a key.
type Entry struct {
	ID          string          `json:"id"`
	Key         Key             `json:"key"`
	Mode        thermal.Mode    `json:"mode"`
	Current     thermal.Triple  `json:"current"`
	Targets     parser.Targets  `json:"targets"`
	Strategy    solver.Strategy `json:"strategy"`
	Corrections thermal.Triple  `json:"corrections"`
	Final       thermal.Triple  `json:"final"`
	Ranges      *ranges.Ranges  `json:"ranges,omitempty"`
	RangeOrigin string          `json:"range_origin,omitempty"`
	Message     string          `json:"message"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (e Entry) clone() Entry {
	if e.Ranges != nil {
		r := *e.Ranges
		e.Ranges = &r
	}
	return e
}

// Store is an in-memory, concurrency-safe session store. Values are copied in
// and out so callers never share memory with it.
type Store struct {
	mu          sync.RWMutex
	active      map[Key]Entry
	userRanges  map[string]ranges.Ranges
	reactorRngs map[Key]ranges.Ranges
	maxSessions int
	now         func() time.Time
}

var _ ranges.Source = (*Store)(nil)

// New creates an empty Store with configuration options.
func New(opts ...Option) *Store {
	s := &Store{
		active:      make(map[Key]Entry),
		userRanges:  make(map[string]ranges.Ranges),
		reactorRngs: make(map[Key]ranges.Ranges),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the active output for k.
func (s *Store) Get(_ context.Context, k Key) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.active[k]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	return e.clone(), nil
}

// Put creates the active output for e.Key on first use and replaces it on
// later edits. The entry keeps its ID and creation time across edits.
func (s *Store) Put(_ context.Context, e Entry) (Entry, error) {
	if !e.Key.valid() {
		return Entry{}, ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if prev, ok := s.active[e.Key]; ok {
		e.ID = prev.ID
		e.CreatedAt = prev.CreatedAt
	} else {
		if s.maxSessions > 0 && len(s.active) >= s.maxSessions {
			return Entry{}, fmt.Errorf("%w: limit %d", ErrCapacity, s.maxSessions)
		}
		e.ID = uuid.NewString()
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	e = e.clone()
	s.active[e.Key] = e
	return e.clone(), nil
}

// Delete finishes the active output for k.
func (s *Store) Delete(_ context.Context, k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[k]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	delete(s.active, k)
	return nil
}

// ListByUser returns the user's active outputs ordered by reactor.
func (s *Store) ListByUser(_ context.Context, userID string) []Entry {
	s.mu.RLock()
	out := make([]Entry, 0)
	for k, e := range s.active {
		if k.UserID == userID {
			out = append(out, e.clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ReactorID < out[j].Key.ReactorID })
	return out
}

// Count returns the number of active outputs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// SetUserRanges saves ranges that apply to every reactor of userID.
func (s *Store) SetUserRanges(_ context.Context, userID string, r ranges.Ranges) error {
	if userID == "" {
		return ErrInvalidKey
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userRanges[userID] = r
	return nil
}

// UserRanges implements ranges.Source.
func (s *Store) UserRanges(_ context.Context, userID string) (ranges.Ranges, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.userRanges[userID]
	return r, ok
}

// DeleteUserRanges removes the user-global override. It reports whether one existed.
func (s *Store) DeleteUserRanges(_ context.Context, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.userRanges[userID]
	delete(s.userRanges, userID)
	return ok
}

// SetReactorRanges saves ranges for one reactor of one user.
func (s *Store) SetReactorRanges(_ context.Context, k Key, r ranges.Ranges) error {
	if !k.valid() {
		return ErrInvalidKey
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactorRngs[k] = r
	return nil
}

// ReactorRanges implements ranges.Source.
func (s *Store) ReactorRanges(_ context.Context, userID, reactorID string) (ranges.Ranges, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reactorRngs[Key{UserID: userID, ReactorID: reactorID}]
	return r, ok
}

// DeleteReactorRanges removes the reactor override. It reports whether one existed.
func (s *Store) DeleteReactorRanges(_ context.Context, k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reactorRngs[k]
	delete(s.reactorRngs, k)
	return ok
}

// RangeSets returns how many user-global and reactor overrides are saved.
func (s *Store) RangeSets() (user, reactor int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.userRanges), len(s.reactorRngs)
}
