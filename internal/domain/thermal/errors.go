package thermal

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for the correction engine. Every error returned by the
// domain packages wraps exactly one of these so callers can use errors.Is.
var (
	ErrInputFormat             = errors.New("invalid input format")
	ErrRangeInvalid            = errors.New("invalid working range")
	ErrOptimizationConvergence = errors.New("optimization did not converge")
	ErrSingularSystem          = errors.New("singular influence system")
	ErrModeInvalid             = errors.New("invalid mode")
	ErrNonFinite               = errors.New("non-finite physical constant")
)

// Error carries the operation that failed, its kind and an optional cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	default:
		return e.Op
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of the given kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind tags err with op and kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap tags err with op, keeping whatever kind it already carries.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Kinds lists every sentinel in a stable order.
var Kinds = []error{
	ErrInputFormat,
	ErrRangeInvalid,
	ErrOptimizationConvergence,
	ErrSingularSystem,
	ErrModeInvalid,
	ErrNonFinite,
}

// KindOf returns the first sentinel kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range Kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// KindName returns a short label for err's kind, used in metrics and API codes.
func KindName(err error) string {
	switch KindOf(err) {
	case ErrInputFormat:
		return "input_format"
	case ErrRangeInvalid:
		return "range_invalid"
	case ErrOptimizationConvergence:
		return "optimization_convergence"
	case ErrSingularSystem:
		return "singular_system"
	case ErrModeInvalid:
		return "mode_invalid"
	case ErrNonFinite:
		return "non_finite"
	default:
		return "internal"
	}
}
