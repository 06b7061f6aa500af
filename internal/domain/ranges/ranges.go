// Package ranges resolves the per-zone working range that is in effect for a
// reactor and parses operator-entered range text.
package ranges

import (
	"fmt"
	"math"

	"github.com/okian/zonecorr/internal/domain/thermal"
)

// WorkingRange is a tolerance band relative to a zone's target temperature.
type WorkingRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Validate enforces Min <= Max with finite bounds.
func (w WorkingRange) Validate() error {
	if math.IsNaN(w.Min) || math.IsNaN(w.Max) || math.IsInf(w.Min, 0) || math.IsInf(w.Max, 0) {
		return fmt.Errorf("bounds must be finite, got [%v, %v]", w.Min, w.Max)
	}
	if w.Max < w.Min {
		return fmt.Errorf("max offset %v is below min offset %v", w.Max, w.Min)
	}
	return nil
}

// Bounds returns the absolute band around target.
func (w WorkingRange) Bounds(target float64) (lower, upper float64) {
	return target + w.Min, target + w.Max
}

// Contains reports whether temp lies in the band around target, widened by slack.
func (w WorkingRange) Contains(target, temp, slack float64) bool {
	lower, upper := w.Bounds(target)
	return temp >= lower-slack && temp <= upper+slack
}

// Ranges holds one working range per zone.
type Ranges [thermal.ZoneCount]WorkingRange

// Zone returns the range for z.
func (r Ranges) Zone(z thermal.Zone) WorkingRange { return r[z] }

// Validate checks every zone and reports the first offending one.
func (r Ranges) Validate() error {
	for _, z := range thermal.Zones {
		if err := r[z].Validate(); err != nil {
			return thermal.WrapKind("ranges.validate", thermal.ErrRangeInvalid, fmt.Errorf("zone %s: %w", z, err))
		}
	}
	return nil
}

// FromFlat builds ranges from six numbers ordered min/max per zone:
// minB, maxB, minC, maxC, minD, maxD.
func FromFlat(v [6]float64) (Ranges, error) {
	r := Ranges{
		thermal.ZoneB: {Min: v[0], Max: v[1]},
		thermal.ZoneC: {Min: v[2], Max: v[3]},
		thermal.ZoneD: {Min: v[4], Max: v[5]},
	}
	if err := r.Validate(); err != nil {
		return Ranges{}, err
	}
	return r, nil
}

// Flat returns the six numbers in the FromFlat order.
func (r Ranges) Flat() [6]float64 {
	return [6]float64{r[0].Min, r[0].Max, r[1].Min, r[1].Max, r[2].Min, r[2].Max}
}
