package ranges

import (
	"fmt"
	"strings"

	"github.com/okian/zonecorr/internal/domain/parser"
	"github.com/okian/zonecorr/internal/domain/thermal"
)

// Usage describes the range text format.
const Usage = "enter 6 values as max and min offset per zone (B C D), each starting with '+' or '-' or equal to 0, " +
	"e.g. \"+5 0 +1 -1 0 -2\""

const rangeTokens = 6

// Parse reads operator range text: maxB minB maxC minC maxD minD.
func Parse(text string) (Ranges, error) {
	const op = "ranges.parse"
	fields := strings.Fields(text)
	if len(fields) != rangeTokens {
		return Ranges{}, thermal.WrapKind(op, thermal.ErrInputFormat, fmt.Errorf("got %d values; %s", len(fields), Usage))
	}
	var v [rangeTokens]float64
	for i, f := range fields {
		if !signed(f) {
			return Ranges{}, thermal.WrapKind(op, thermal.ErrInputFormat, fmt.Errorf("value %q has no sign; %s", f, Usage))
		}
		n, err := parser.ParseNumber(f)
		if err != nil {
			return Ranges{}, thermal.WrapKind(op, thermal.ErrInputFormat, fmt.Errorf("%w; %s", err, Usage))
		}
		v[i] = n
	}
	r := Ranges{
		thermal.ZoneB: {Max: v[0], Min: v[1]},
		thermal.ZoneC: {Max: v[2], Min: v[3]},
		thermal.ZoneD: {Max: v[4], Min: v[5]},
	}
	if err := r.Validate(); err != nil {
		return Ranges{}, thermal.Wrap(op, err)
	}
	return r, nil
}

// Format renders r in the same order Parse reads.
func Format(r Ranges) string {
	parts := make([]string, 0, rangeTokens)
	for _, z := range thermal.Zones {
		parts = append(parts, offset(r[z].Max), offset(r[z].Min))
	}
	return strings.Join(parts, " ")
}

func signed(f string) bool {
	return strings.HasPrefix(f, "+") || strings.HasPrefix(f, "-") || f == "0"
}

func offset(v float64) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%+g", v)
}
