// Package thermal holds the shared vocabulary of the correction engine: zones,
// operating modes, temperature triples and the zone influence model.
package thermal

import (
	"fmt"
	"math"
)

// Zone identifies one measurement point. Center sits between the two edges.
type Zone int

// Zones in their fixed physical order.
const (
	ZoneB Zone = iota // first edge
	ZoneC             // center
	ZoneD             // second edge
)

// ZoneCount is the number of zones on an assembly.
const ZoneCount = 3

// Zones lists every zone in order.
var Zones = [ZoneCount]Zone{ZoneB, ZoneC, ZoneD}

// String returns the zone letter.
func (z Zone) String() string {
	switch z {
	case ZoneB:
		return "B"
	case ZoneC:
		return "C"
	case ZoneD:
		return "D"
	default:
		return fmt.Sprintf("Zone(%d)", int(z))
	}
}

// IsEdge reports whether z is one of the two edge zones.
func (z Zone) IsEdge() bool { return z == ZoneB || z == ZoneD }

// Triple is a per-zone value indexed by Zone.
type Triple [ZoneCount]float64

// Uniform returns a triple with v in every zone.
func Uniform(v float64) Triple { return Triple{v, v, v} }

// At returns the value for zone z.
func (t Triple) At(z Zone) float64 { return t[z] }

// Add returns t + o.
func (t Triple) Add(o Triple) Triple {
	return Triple{t[0] + o[0], t[1] + o[1], t[2] + o[2]}
}

// Sub returns t - o.
func (t Triple) Sub(o Triple) Triple {
	return Triple{t[0] - o[0], t[1] - o[1], t[2] - o[2]}
}

// IsFinite reports whether every component is a finite number.
func (t Triple) IsFinite() bool {
	for _, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Slice returns a fresh slice copy.
func (t Triple) Slice() []float64 { return []float64{t[0], t[1], t[2]} }

// TripleFrom builds a triple from a slice of exactly three values.
func TripleFrom(vs []float64) (Triple, bool) {
	if len(vs) != ZoneCount {
		return Triple{}, false
	}
	return Triple{vs[0], vs[1], vs[2]}, true
}
