package twr

// condCommon reports whether row i has the cash or calendar activity that
// allows a reset: bod_cf or eod_cf on the day, bod_cf on the next day, a
// month end, or a next day beyond the report end. The last row has no next
// day, so only its own activity counts.
func (c *Calculator[T]) condCommon(f *Frame[T], i int) bool {
	a := c.a
	if !a.IsZero(f.BodCF[i]) || !a.IsZero(f.EodCF[i]) || f.Date[i].IsMonthEnd() {
		return true
	}
	if i+1 >= f.Len() {
		return false
	}
	return !a.IsZero(f.BodCF[i+1]) || f.Date[i+1].After(c.cfg.ReportEnd)
}

// evaluateResets sets NCTRL1-3 from the preliminary cumulative returns and
// seeds f.Reset with their union. Each control fires only on the rising
// edge of its own condition.
func (c *Calculator[T]) evaluateResets(f *Frame[T]) {
	a := c.a
	lo, hi := a.FromInt(-100), a.FromInt(100)

	var prev1, prev2, prev3 bool
	for i := 0; i < f.Len(); i++ {
		common := c.condCommon(f, i)
		long, short := f.TempLong[i], f.TempShort[i]

		c1 := common && a.Cmp(long, lo) < 0
		c2 := common && a.Cmp(short, hi) > 0
		c3 := common && a.Cmp(short, lo) < 0 && !a.IsZero(long)

		f.NCtrl1[i] = c1 && !prev1
		f.NCtrl2[i] = c2 && !prev2
		f.NCtrl3[i] = c3 && !prev3
		f.Reset[i] = f.NCtrl1[i] || f.NCtrl2[i] || f.NCtrl3[i]

		prev1, prev2, prev3 = c1, c2, c3
	}
}

// applyNCtrl4 flags days following a final-pass state at or beyond the
// -100/+100 bounds when cash moves into the day. It reports whether any day
// was flagged.
func (c *Calculator[T]) applyNCtrl4(f *Frame[T]) bool {
	a := c.a
	lo, hi := a.FromInt(-100), a.FromInt(100)
	flagged := false
	for i := 1; i < f.Len(); i++ {
		breached := a.Cmp(f.Long[i-1], lo) <= 0 || a.Cmp(f.Short[i-1], hi) >= 0
		cash := !a.IsZero(f.BodCF[i]) || !a.IsZero(f.EodCF[i-1])
		if breached && cash {
			f.NCtrl4[i] = true
			f.Reset[i] = true
			flagged = true
		}
	}
	return flagged
}
