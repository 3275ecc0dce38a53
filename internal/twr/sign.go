package twr

// trackSign fills f.Sign. Row 0 takes sign(begin_mv + bod_cf). Later rows
// take the candidate sign only on a flip event (bod_cf != 0, previous eod_cf
// != 0, or previous perf_reset) and otherwise keep the previous sign, so
// valuation crossings without cash activity do not flip the leg.
//
// Process calls it again once f.Reset is seeded so a reset day flips the
// following row.
func (c *Calculator[T]) trackSign(f *Frame[T]) {
	a := c.a
	for i := 0; i < f.Len(); i++ {
		candidate := a.Sign(a.Add(f.BeginMV[i], f.BodCF[i]))
		if i == 0 {
			f.Sign[i] = candidate
			continue
		}
		flip := !a.IsZero(f.BodCF[i]) || !a.IsZero(f.EodCF[i-1]) || f.Reset[i-1]
		if flip {
			f.Sign[i] = candidate
		} else {
			f.Sign[i] = f.Sign[i-1]
		}
	}
}
