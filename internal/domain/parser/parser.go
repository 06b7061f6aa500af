// Package parser turns operator-entered text into validated temperature vectors.
package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/zonecorr/internal/domain/thermal"
)

// Accepted token counts.
const (
	currentOnlyTokens   = 3
	uniformTargetTokens = 4
	perZoneTargetTokens = 6
)

// Usage describes the accepted input shapes. It is attached to every format error.
const Usage = "expected 3 current temperatures (B C D), " +
	"3 current temperatures and 1 target, " +
	"or 3 current temperatures and 3 per-zone targets; " +
	"use '.' or ',' as the decimal separator, e.g. \"1008.5 1003.7 1001.2 1000.0\" or \"1008,5 1003,7 1001,2 1000,0\""

// TargetUsage describes the accepted target-only input shapes.
const TargetUsage = "expected 1 target for all zones or 3 per-zone targets (B C D), e.g. \"1050\" or \"1045 1040 1040\""

var errNumber = errors.New("not a number")

// decimal matches a signed decimal with an optional '.' or ',' fraction.
var decimal = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:[.,][0-9]*)?|[.,][0-9]+)$`)

// Targets is the normalized target vector plus the display flag recording
// whether it came from a single value.
type Targets struct {
	Values  thermal.Triple `json:"values"`
	Uniform bool           `json:"uniform"`
}

// UniformTargets broadcasts v to every zone.
func UniformTargets(v float64) Targets {
	return Targets{Values: thermal.Uniform(v), Uniform: true}
}

// PerZoneTargets keeps three independent targets.
func PerZoneTargets(t thermal.Triple) Targets {
	return Targets{Values: t}
}

// Input is a parsed reading. Targets is nil when only current temperatures
// were entered (editing an existing output).
type Input struct {
	Current thermal.Triple
	Targets *Targets
}

// HasTargets reports whether the input carried targets.
func (in Input) HasTargets() bool { return in.Targets != nil }

// ParseNumber parses one plain decimal token, accepting ',' as the decimal
// separator. Exponents, hex floats and non-finite values are rejected.
func ParseNumber(token string) (float64, error) {
	token = strings.TrimSpace(token)
	if !decimal.MatchString(token) {
		return 0, fmt.Errorf("%w: %q", errNumber, token)
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", errNumber, token)
	}
	return v, nil
}

// Parse reads 3, 4 or 6 whitespace-separated numbers.
func Parse(text string) (Input, error) {
	const op = "parser.parse"
	values, err := numbers(text)
	if err != nil {
		return Input{}, thermal.WrapKind(op, thermal.ErrInputFormat, fmt.Errorf("%w; %s", err, Usage))
	}
	switch len(values) {
	case currentOnlyTokens:
		return Input{Current: thermal.Triple{values[0], values[1], values[2]}}, nil
	case uniformTargetTokens:
		t := UniformTargets(values[3])
		return Input{Current: thermal.Triple{values[0], values[1], values[2]}, Targets: &t}, nil
	case perZoneTargetTokens:
		t := PerZoneTargets(thermal.Triple{values[3], values[4], values[5]})
		return Input{Current: thermal.Triple{values[0], values[1], values[2]}, Targets: &t}, nil
	default:
		return Input{}, thermal.WrapKind(op, thermal.ErrInputFormat, fmt.Errorf("got %d values; %s", len(values), Usage))
	}
}

// ParseTargets reads a target-only input of 1 or 3 numbers.
func ParseTargets(text string) (Targets, error) {
	const op = "parser.parse_targets"
	values, err := numbers(text)
	if err != nil {
		return Targets{}, thermal.WrapKind(op, thermal.ErrInputFormat, fmt.Errorf("%w; %s", err, TargetUsage))
	}
	switch len(values) {
	case 1:
		return UniformTargets(values[0]), nil
	case thermal.ZoneCount:
		return PerZoneTargets(thermal.Triple{values[0], values[1], values[2]}), nil
	default:
		return Targets{}, thermal.WrapKind(op, thermal.ErrInputFormat, fmt.Errorf("got %d values; %s", len(values), TargetUsage))
	}
}

func numbers(text string) ([]float64, error) {
	fields := strings.Fields(text)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := ParseNumber(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
