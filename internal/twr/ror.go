package twr

import "github.com/atmx/perf-engine/internal/model"

// DailyROR returns the per-day rate of return in percent:
//
//	(end_mv - begin_mv - bod_cf - eod_cf [+ fees if NET]) / |begin_mv + bod_cf| * 100
//
// Rows before their effective period start, or with a zero denominator,
// return zero.
func (c *Calculator[T]) DailyROR(f *Frame[T]) []T {
	a := c.a
	out := make([]T, f.Len())
	for i := range out {
		if f.Date[i].Before(f.EffStart[i]) {
			out[i] = a.Zero()
			continue
		}
		den := a.Abs(a.Add(f.BeginMV[i], f.BodCF[i]))
		if a.IsZero(den) {
			out[i] = a.Zero()
			continue
		}
		num := a.Sub(a.Sub(a.Sub(f.EndMV[i], f.BeginMV[i]), f.BodCF[i]), f.EodCF[i])
		if c.cfg.Basis == model.BasisNet {
			num = a.Add(num, f.Fees[i])
		}
		out[i] = a.Mul(a.Div(num, den), c.hundred)
	}
	return out
}
