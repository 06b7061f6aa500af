package thermal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// edgeToEdgePower attenuates the coupling between the two edges, which are
// twice as far apart as an edge and the center.
const edgeToEdgePower = 5

// InfluenceMatrix maps per-zone corrections onto per-zone temperature changes.
// Entry (i, j) is the fraction of a correction applied at zone j that shows up
// at zone i. The matrix is immutable once built.
type InfluenceMatrix struct {
	coef float64
	m    [ZoneCount][ZoneCount]float64
}

// NewInfluenceMatrix derives the coupling matrix from the zone spacing and
// the characteristic length of the active mode:
//
//	coef = exp(-distance / characteristicLength)
//	[[1,      1, coef^5],
//	 [coef,   1, coef  ],
//	 [coef^5, 1, 1     ]]
//
// The center column is all ones: a center correction reaches both edges in full.
func NewInfluenceMatrix(distance, characteristicLength float64) (*InfluenceMatrix, error) {
	const op = "thermal.new_influence_matrix"
	if !finite(distance) || !finite(characteristicLength) {
		return nil, WrapKind(op, ErrNonFinite, fmt.Errorf("distance=%v characteristic_length=%v", distance, characteristicLength))
	}
	if characteristicLength <= 0 {
		return nil, WrapKind(op, ErrNonFinite, fmt.Errorf("characteristic_length must be positive, got %v", characteristicLength))
	}
	coef := math.Exp(-distance / characteristicLength)
	if !finite(coef) {
		return nil, WrapKind(op, ErrNonFinite, fmt.Errorf("coefficient %v", coef))
	}
	far := math.Pow(coef, edgeToEdgePower)
	return &InfluenceMatrix{
		coef: coef,
		m: [ZoneCount][ZoneCount]float64{
			{1, 1, far},
			{coef, 1, coef},
			{far, 1, 1},
		},
	}, nil
}

// Coefficient returns exp(-distance / characteristicLength).
func (im *InfluenceMatrix) Coefficient() float64 { return im.coef }

// At returns the influence of zone `from` on zone `to`.
func (im *InfluenceMatrix) At(to, from Zone) float64 { return im.m[to][from] }

// Dense returns a fresh gonum copy of the matrix.
func (im *InfluenceMatrix) Dense() *mat.Dense {
	data := make([]float64, 0, ZoneCount*ZoneCount)
	for i := range im.m {
		data = append(data, im.m[i][:]...)
	}
	return mat.NewDense(ZoneCount, ZoneCount, data)
}

// Delta returns M·corrections, the temperature change each zone sees.
func (im *InfluenceMatrix) Delta(corrections Triple) Triple {
	var out mat.VecDense
	out.MulVec(im.Dense(), mat.NewVecDense(ZoneCount, corrections.Slice()))
	return Triple{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Apply returns current + M·corrections, the predicted final temperatures.
func (im *InfluenceMatrix) Apply(current, corrections Triple) Triple {
	return current.Add(im.Delta(corrections))
}

// Condition returns the 2-norm condition number of the matrix.
func (im *InfluenceMatrix) Condition() float64 {
	return mat.Cond(im.Dense(), 2)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
