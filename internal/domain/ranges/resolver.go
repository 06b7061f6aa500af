package ranges

import (
	"context"
	"fmt"

	"github.com/okian/zonecorr/internal/domain/thermal"
)

// Origin names the source a resolution came from.
type Origin string

// Resolution origins, most specific first.
const (
	OriginReactor Origin = "reactor"
	OriginUser    Origin = "user"
	OriginDefault Origin = "default"
)

// Source looks up saved range overrides. Both methods report false when no
// override exists.
type Source interface {
	ReactorRanges(ctx context.Context, userID, reactorID string) (Ranges, bool)
	UserRanges(ctx context.Context, userID string) (Ranges, bool)
}

// Resolution is the effective range set and where it came from.
type Resolution struct {
	Ranges Ranges `json:"ranges"`
	Origin Origin `json:"origin"`
}

// Resolver applies the priority chain reactor > user > default.
type Resolver struct {
	source   Source
	defaults Ranges
}

// NewResolver validates the defaults and returns a resolver. A nil source
// always resolves to the defaults.
func NewResolver(source Source, defaults Ranges) (*Resolver, error) {
	if err := defaults.Validate(); err != nil {
		return nil, thermal.Wrap("ranges.new_resolver", err)
	}
	return &Resolver{source: source, defaults: defaults}, nil
}

// Defaults returns the configured system default ranges.
func (r *Resolver) Defaults() Ranges { return r.defaults }

// Resolve returns the most specific ranges available for (userID, reactorID).
func (r *Resolver) Resolve(ctx context.Context, userID, reactorID string) (Resolution, error) {
	const op = "ranges.resolve"
	if r.source != nil {
		if reactorID != "" {
			if rr, ok := r.source.ReactorRanges(ctx, userID, reactorID); ok {
				if err := rr.Validate(); err != nil {
					return Resolution{}, thermal.Wrap(op, fmt.Errorf("reactor %s override: %w", reactorID, err))
				}
				return Resolution{Ranges: rr, Origin: OriginReactor}, nil
			}
		}
		if ur, ok := r.source.UserRanges(ctx, userID); ok {
			if err := ur.Validate(); err != nil {
				return Resolution{}, thermal.Wrap(op, fmt.Errorf("user %s override: %w", userID, err))
			}
			return Resolution{Ranges: ur, Origin: OriginUser}, nil
		}
	}
	return Resolution{Ranges: r.defaults, Origin: OriginDefault}, nil
}
