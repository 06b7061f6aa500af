// Package format turns solver output into labels and the operator message.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/zonecorr/internal/domain/parser"
	"github.com/okian/zonecorr/internal/domain/ranges"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// NoCorrection is the label for a correction too small to act on.
const NoCorrection = "no correction needed"

const (
	noCorrectionBelow = 0.25
	unit              = "°C"
)

// QuantizeLabel renders v as the closer of its whole-degree and half-degree
// roundings. Values under a quarter degree render as NoCorrection.
func QuantizeLabel(v float64) string {
	if math.Abs(v) < noCorrectionBelow {
		return NoCorrection
	}
	whole := math.RoundToEven(v)
	half := math.RoundToEven(v*2) / 2
	if math.Abs(v-whole) < math.Abs(v-half) {
		return number(whole)
	}
	return number(half)
}

// SignedLabel is QuantizeLabel with a leading '+' on non-negative corrections.
func SignedLabel(v float64) string {
	label := QuantizeLabel(v)
	if label == NoCorrection || v < 0 {
		return label
	}
	return "+" + label
}

// Labels returns SignedLabel for every zone.
func Labels(corrections thermal.Triple) [thermal.ZoneCount]string {
	var out [thermal.ZoneCount]string
	for i, v := range corrections {
		out[i] = SignedLabel(v)
	}
	return out
}

// FinalTemperatures predicts where each zone settles after corrections.
func FinalTemperatures(im *thermal.InfluenceMatrix, current, corrections thermal.Triple) thermal.Triple {
	return im.Apply(current, corrections)
}

// View is everything the operator message shows.
type View struct {
	ReactorID   string
	Mode        thermal.Mode
	Current     thermal.Triple
	Targets     parser.Targets
	Corrections thermal.Triple
	Final       thermal.Triple
	Ranges      *ranges.Ranges
}

// Render builds the operator message for v.
func Render(v View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reactor: %s", v.ReactorID)
	if v.Mode.Valid() {
		fmt.Fprintf(&b, " (%s)", v.Mode)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Current temperatures (B C D): %s\n\n", join(v.Current, ""))
	if v.Targets.Uniform {
		fmt.Fprintf(&b, "Target temperature: %.1f\n\n", v.Targets.Values[thermal.ZoneB])
	} else {
		fmt.Fprintf(&b, "Target temperatures (B C D): %s\n\n", join(v.Targets.Values, ""))
	}
	if v.Ranges != nil {
		fmt.Fprintf(&b, "Working ranges: %s\n\n", ranges.Format(*v.Ranges))
	}
	b.WriteString("Corrections:\n\n")
	for i, label := range Labels(v.Corrections) {
		if label != NoCorrection {
			label += unit
		}
		fmt.Fprintf(&b, "%s: %s\n", thermal.Zones[i], label)
	}
	fmt.Fprintf(&b, "\nPredicted temperatures after corrections: %s", join(v.Final, unit))
	return b.String()
}

func join(t thermal.Triple, suffix string) string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = strconv.FormatFloat(v, 'f', 1, 64) + suffix
	}
	return strings.Join(parts, " ")
}

func number(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
