package thermal

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects which physical subsystem governs a computation.
type Mode uint8

// Supported modes. The zero value is deliberately not a valid mode.
const (
	ModePrimary   Mode = iota + 1 // channel driven by the control computer ("pc")
	ModeSecondary                 // channel driven by the regulator units ("bprt")
)

// Modes lists every valid mode.
var Modes = []Mode{ModePrimary, ModeSecondary}

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModePrimary:
		return "pc"
	case ModeSecondary:
		return "bprt"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool { return m == ModePrimary || m == ModeSecondary }

// ParseMode maps a wire or long name onto a Mode. Unknown names fail with
// ErrModeInvalid instead of falling back to a default.
func ParseMode(s string) (Mode, error) {
	const op = "thermal.parse_mode"
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pc", "primary":
		return ModePrimary, nil
	case "bprt", "secondary":
		return ModeSecondary, nil
	default:
		return 0, WrapKind(op, ErrModeInvalid, fmt.Errorf("unknown mode %q", s))
	}
}

// MarshalText encodes the wire name.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, NewKind("thermal.marshal_mode", ErrModeInvalid)
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts any name ParseMode accepts.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ModeConstants are the per-subsystem constants of the influence model.
type ModeConstants struct {
	CharacteristicLength float64
	MaxDeviation         float64
}

// Validate checks the constants are usable.
func (c ModeConstants) Validate() error {
	if math.IsNaN(c.CharacteristicLength) || math.IsInf(c.CharacteristicLength, 0) || c.CharacteristicLength <= 0 {
		return fmt.Errorf("characteristic length must be positive and finite, got %v", c.CharacteristicLength)
	}
	if math.IsNaN(c.MaxDeviation) || math.IsInf(c.MaxDeviation, 0) || c.MaxDeviation < 0 {
		return fmt.Errorf("max deviation must be non-negative and finite, got %v", c.MaxDeviation)
	}
	return nil
}

// Physics is the immutable table of constants shared by every computation.
type Physics struct {
	distance float64
	modes    map[Mode]ModeConstants
}

// NewPhysics validates and freezes the physical constants.
func NewPhysics(distance float64, primary, secondary ModeConstants) (*Physics, error) {
	const op = "thermal.new_physics"
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return nil, WrapKind(op, ErrNonFinite, fmt.Errorf("distance %v", distance))
	}
	if err := primary.Validate(); err != nil {
		return nil, WrapKind(op, ErrNonFinite, fmt.Errorf("%s: %w", ModePrimary, err))
	}
	if err := secondary.Validate(); err != nil {
		return nil, WrapKind(op, ErrNonFinite, fmt.Errorf("%s: %w", ModeSecondary, err))
	}
	return &Physics{
		distance: distance,
		modes: map[Mode]ModeConstants{
			ModePrimary:   primary,
			ModeSecondary: secondary,
		},
	}, nil
}

// Distance returns the zone spacing used by the influence model.
func (p *Physics) Distance() float64 { return p.distance }

// Constants returns the constants for m.
func (p *Physics) Constants(m Mode) (ModeConstants, error) {
	c, ok := p.modes[m]
	if !ok {
		return ModeConstants{}, WrapKind("thermal.constants", ErrModeInvalid, fmt.Errorf("no constants for %s", m))
	}
	return c, nil
}

// Influence builds the influence matrix for m.
func (p *Physics) Influence(m Mode) (*InfluenceMatrix, error) {
	c, err := p.Constants(m)
	if err != nil {
		return nil, err
	}
	return NewInfluenceMatrix(p.distance, c.CharacteristicLength)
}
