package twr

// detectNIP fills f.NIP.
//
// V2: begin_mv + bod_cf == 0 and end_mv + eod_cf == 0.
//
// V1 (default) keeps the legacy comparison bit-exactly:
// begin_mv + bod_cf + end_mv + eod_cf == 0 and eod_cf == sign(bod_cf).
func (c *Calculator[T]) detectNIP(f *Frame[T]) {
	a := c.a
	for i := 0; i < f.Len(); i++ {
		bod := a.Add(f.BeginMV[i], f.BodCF[i])
		eod := a.Add(f.EndMV[i], f.EodCF[i])
		if c.cfg.NIPV2 {
			f.NIP[i] = a.IsZero(bod) && a.IsZero(eod)
			continue
		}
		signBod := a.FromInt(int64(a.Sign(f.BodCF[i])))
		f.NIP[i] = a.IsZero(a.Add(bod, eod)) && a.Cmp(f.EodCF[i], signBod) == 0
	}
}
