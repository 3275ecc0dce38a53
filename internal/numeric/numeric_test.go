package numeric

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFloat64_Round(t *testing.T) {
	f := Float64{}
	testCases := []struct {
		in     float64
		places int32
		want   float64
	}{
		{4.0604009999, 4, 4.0604},
		{21.578947368, 6, 21.578947},
		{-0.00005, 4, -0.0001},
		{2.5, 0, 3},
	}
	for _, tc := range testCases {
		if got := f.Round(tc.in, tc.places); got != tc.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tc.in, tc.places, got, tc.want)
		}
	}
}

func TestDomainErrors(t *testing.T) {
	if _, err := (Float64{}).Ln(0); !errors.Is(err, ErrDomain) {
		t.Errorf("Ln(0) should fail with ErrDomain, got %v", err)
	}
	if _, err := NewDecimal().Pow(decimal.NewFromInt(-1), decimal.NewFromFloat(0.5)); !errors.Is(err, ErrDomain) {
		t.Errorf("Pow(-1, 0.5) should fail with ErrDomain, got %v", err)
	}
}

func TestDecimal_AgreesWithFloat(t *testing.T) {
	dec := NewDecimal()
	flt := Float64{}

	base := decimal.RequireFromString("1.0406040100")
	exp := decimal.RequireFromString("91.3125")

	dp, err := dec.Pow(base, exp)
	if err != nil {
		t.Fatal(err)
	}
	fp, _ := flt.Pow(base.InexactFloat64(), exp.InexactFloat64())
	if rel := math.Abs(dp.InexactFloat64()-fp) / fp; rel > 1e-10 {
		t.Errorf("Pow disagrees: decimal=%s float=%v rel=%g", dp, fp, rel)
	}

	dl, err := dec.Ln(base)
	if err != nil {
		t.Fatal(err)
	}
	fl, _ := flt.Ln(base.InexactFloat64())
	if math.Abs(dl.InexactFloat64()-fl) > 1e-14 {
		t.Errorf("Ln disagrees: decimal=%s float=%v", dl, fl)
	}
}

func TestDecimal_DivKeepsPrecision(t *testing.T) {
	dec := NewDecimal()
	q := dec.Div(decimal.NewFromInt(1), decimal.NewFromInt(3))
	if want := "0.3333333333333333333333333333"; q.String() != want {
		t.Errorf("1/3 = %s, want %s", q, want)
	}
	if dec.Sign(dec.Neg(q)) != -1 || !dec.IsZero(dec.Sub(q, q)) {
		t.Error("sign helpers are broken")
	}
}
