package twr

// compound geometrically links the daily returns of the long and short legs.
//
// A block starts at the first row and whenever the effective period start
// changes; with useResets a block also starts on the day after a reset.
// Within a block each leg's running product only moves on days where the
// leg is active (sign +1 for long, -1 for short), so inactive days carry the
// last active value. The short leg compounds (1 - ror/100) and is negated.
//
// With useResets, reset days are forced to zero. NIP days always carry the
// previous row forward.
func (c *Calculator[T]) compound(f *Frame[T], useResets bool) (long, short []T) {
	a := c.a
	one := a.One()
	n := f.Len()
	long, short = make([]T, n), make([]T, n)

	pl, ps := one, one
	for i := 0; i < n; i++ {
		if i == 0 || f.EffStart[i] != f.EffStart[i-1] || (useResets && f.Reset[i-1]) {
			pl, ps = one, one
		}
		if useResets && f.Reset[i] {
			long[i], short[i] = a.Zero(), a.Zero()
			continue
		}
		if f.NIP[i] && i > 0 {
			long[i], short[i] = long[i-1], short[i-1]
			continue
		}

		r := a.Div(f.ROR[i], c.hundred)
		switch f.Sign[i] {
		case 1:
			pl = a.Mul(pl, a.Add(one, r))
		case -1:
			ps = a.Mul(ps, a.Sub(one, r))
		}
		long[i] = a.Mul(a.Sub(pl, one), c.hundred)
		short[i] = a.Neg(a.Mul(a.Sub(ps, one), c.hundred))
	}
	return long, short
}
