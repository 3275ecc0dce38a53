// Package numeric is the precision seam of the engine. Kernels are written
// once against Arith[T] and run either on IEEE-754 doubles (Float64) or on
// arbitrary-precision decimals (Decimal).
package numeric

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrDomain is returned by Ln/Pow when the argument is outside the real domain.
var ErrDomain = errors.New("numeric: argument outside domain")

// Arith is the arithmetic interface kernels are parameterized with.
// Implementations must be stateless apart from configuration.
type Arith[T any] interface {
	Zero() T
	One() T
	FromInt(i int64) T
	FromFloat(f float64) T
	FromDecimal(d decimal.Decimal) T

	Add(a, b T) T
	Sub(a, b T) T
	Mul(a, b T) T
	// Div divides a by b. Callers guard b == 0.
	Div(a, b T) T
	Neg(a T) T
	Abs(a T) T

	Cmp(a, b T) int
	Sign(a T) int
	IsZero(a T) bool

	// Pow raises a positive base to a real exponent.
	Pow(base T, exp T) (T, error)
	// Ln is the natural logarithm of a positive value.
	Ln(a T) (T, error)
	Round(a T, places int32) T

	Float64(a T) float64
	Decimal(a T) decimal.Decimal
}

// Float64 is the IEEE-754 backend.
type Float64 struct{}

var _ Arith[float64] = Float64{}

func (Float64) Zero() float64 { return 0 }
func (Float64) One() float64 { return 1 }
func (Float64) FromInt(i int64) float64 { return float64(i) }
func (Float64) FromFloat(f float64) float64 { return f }
func (Float64) FromDecimal(d decimal.Decimal) float64 { return d.InexactFloat64() }
func (Float64) Add(a, b float64) float64 { return a + b }
func (Float64) Sub(a, b float64) float64 { return a - b }
func (Float64) Mul(a, b float64) float64 { return a * b }
func (Float64) Div(a, b float64) float64 { return a / b }
func (Float64) Neg(a float64) float64 { return -a }
func (Float64) Abs(a float64) float64 { return math.Abs(a) }
func (Float64) IsZero(a float64) bool { return a == 0 }
func (Float64) Float64(a float64) float64 { return a }

func (Float64) Cmp(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (Float64) Sign(a float64) int {
	switch {
	case a > 0:
		return 1
	case a < 0:
		return -1
	default:
		return 0
	}
}

func (Float64) Pow(base, exp float64) (float64, error) {
	if base <= 0 {
		return 0, ErrDomain
	}
	return math.Pow(base, exp), nil
}

func (Float64) Ln(a float64) (float64, error) {
	if a <= 0 {
		return 0, ErrDomain
	}
	return math.Log(a), nil
}

// Round uses half-away-from-zero at the requested number of places.
func (Float64) Round(a float64, places int32) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return a
	}
	f, _ := decimal.NewFromFloat(a).Round(places).Float64()
	return f
}

func (Float64) Decimal(a float64) decimal.Decimal { return decimal.NewFromFloat(a) }

// DefaultPrecision is the number of significant fractional digits kept by
// the decimal backend on division and transcendental operations.
const DefaultPrecision int32 = 28

// Decimal is the arbitrary-precision backend.
type Decimal struct {
	Precision int32
}

var _ Arith[decimal.Decimal] = Decimal{}

// NewDecimal returns a backend at DefaultPrecision.
func NewDecimal() Decimal { return Decimal{Precision: DefaultPrecision} }

func (a Decimal) prec() int32 {
	if a.Precision <= 0 {
		return DefaultPrecision
	}
	return a.Precision
}

func (Decimal) Zero() decimal.Decimal { return decimal.Zero }
func (Decimal) One() decimal.Decimal { return decimal.NewFromInt(1) }
func (Decimal) FromInt(i int64) decimal.Decimal { return decimal.NewFromInt(i) }
func (Decimal) FromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }
func (Decimal) FromDecimal(d decimal.Decimal) decimal.Decimal { return d }
func (Decimal) Add(x, y decimal.Decimal) decimal.Decimal { return x.Add(y) }
func (Decimal) Sub(x, y decimal.Decimal) decimal.Decimal { return x.Sub(y) }
func (Decimal) Neg(x decimal.Decimal) decimal.Decimal { return x.Neg() }
func (Decimal) Abs(x decimal.Decimal) decimal.Decimal { return x.Abs() }
func (Decimal) Cmp(x, y decimal.Decimal) int { return x.Cmp(y) }
func (Decimal) Sign(x decimal.Decimal) int { return x.Sign() }
func (Decimal) IsZero(x decimal.Decimal) bool { return x.IsZero() }
func (Decimal) Float64(x decimal.Decimal) float64 { return x.InexactFloat64() }
func (Decimal) Decimal(x decimal.Decimal) decimal.Decimal { return x }
func (Decimal) Round(x decimal.Decimal, p int32) decimal.Decimal { return x.Round(p) }

// Mul truncates the exact product back to the working precision so that
// long compounding chains do not grow unbounded exponents.
func (a Decimal) Mul(x, y decimal.Decimal) decimal.Decimal {
	return x.Mul(y).Round(a.prec())
}

func (a Decimal) Div(x, y decimal.Decimal) decimal.Decimal {
	return x.DivRound(y, a.prec())
}

func (a Decimal) Ln(x decimal.Decimal) (decimal.Decimal, error) {
	if x.Sign() <= 0 {
		return decimal.Zero, ErrDomain
	}
	return x.Ln(a.prec())
}

// Pow computes base^exp as exp(exp * ln(base)) at the working precision.
// Integer exponents use the exact power.
func (a Decimal) Pow(base, exp decimal.Decimal) (decimal.Decimal, error) {
	if base.Sign() <= 0 {
		return decimal.Zero, ErrDomain
	}
	if exp.IsInteger() {
		return base.PowWithPrecision(exp, a.prec())
	}
	ln, err := base.Ln(a.prec())
	if err != nil {
		return decimal.Zero, err
	}
	return ln.Mul(exp).ExpTaylor(a.prec())
}
