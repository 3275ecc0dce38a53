package twr

import (
	"slices"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/numeric"
	"github.com/shopspring/decimal"
)

// Frame is one entity's daily series as parallel column slices sharing a row
// index. Input columns are filled by NewFrame; derived columns by Run.
type Frame[T any] struct {
	Day      []int
	Date     []date.Date
	BeginMV  []T
	BodCF    []T
	EodCF    []T
	Fees     []T
	EndMV    []T
	EffStart []date.Date

	ROR      []T
	LocalROR []T // nil unless the frame was converted to a report currency
	FXROR    []T
	Sign     []int
	NIP      []bool
	NCtrl1   []bool
	NCtrl2   []bool
	NCtrl3   []bool
	NCtrl4   []bool
	Reset    []bool

	TempLong  []T
	TempShort []T
	Long      []T
	Short     []T
	Final     []T
}

// Len returns the number of rows.
func (f *Frame[T]) Len() int { return len(f.Date) }

// SortPoints returns a copy of points ordered by perf_date.
func SortPoints(points []model.ValuationPoint) []model.ValuationPoint {
	out := slices.Clone(points)
	slices.SortStableFunc(out, func(a, b model.ValuationPoint) int { return a.PerfDate.Compare(b.PerfDate) })
	return out
}

// NewFrame loads sorted valuation points into a frame. effStart holds the
// effective period start of each row and must have the same length.
func NewFrame[T any](a numeric.Arith[T], points []model.ValuationPoint, effStart []date.Date) *Frame[T] {
	n := len(points)
	f := &Frame[T]{
		Day:      make([]int, n),
		Date:     make([]date.Date, n),
		BeginMV:  make([]T, n),
		BodCF:    make([]T, n),
		EodCF:    make([]T, n),
		Fees:     make([]T, n),
		EndMV:    make([]T, n),
		EffStart: slices.Clone(effStart),
	}
	for i, p := range points {
		f.Day[i] = p.Day
		if f.Day[i] == 0 {
			f.Day[i] = i + 1
		}
		f.Date[i] = p.PerfDate
		f.BeginMV[i] = a.FromDecimal(p.BeginMV)
		f.BodCF[i] = a.FromDecimal(p.BodCF)
		f.EodCF[i] = a.FromDecimal(p.EodCF)
		f.Fees[i] = a.FromDecimal(p.MgmtFees)
		f.EndMV[i] = a.FromDecimal(p.EndMV)
	}
	return f
}

func (f *Frame[T]) alloc() {
	n := f.Len()
	f.Sign = make([]int, n)
	f.NIP = make([]bool, n)
	f.NCtrl1 = make([]bool, n)
	f.NCtrl2 = make([]bool, n)
	f.NCtrl3 = make([]bool, n)
	f.NCtrl4 = make([]bool, n)
	f.Reset = make([]bool, n)
	f.Final = make([]T, n)
}

// IndexOf returns the row of d, or -1.
func (f *Frame[T]) IndexOf(d date.Date) int {
	i, ok := slices.BinarySearchFunc(f.Date, d, func(x, y date.Date) int { return x.Compare(y) })
	if !ok {
		return -1
	}
	return i
}

// Window returns the half-open row range [lo, hi) with dates in [start, end].
func (f *Frame[T]) Window(start, end date.Date) (lo, hi int) {
	cmp := func(x, y date.Date) int { return x.Compare(y) }
	lo, _ = slices.BinarySearchFunc(f.Date, start, cmp)
	hi, found := slices.BinarySearchFunc(f.Date, end, cmp)
	if found {
		hi++
	}
	return lo, hi
}

// NIPDays counts rows flagged NIP.
func (f *Frame[T]) NIPDays() int { return count(f.NIP) }

// ResetDays counts rows flagged perf_reset.
func (f *Frame[T]) ResetDays() int { return count(f.Reset) }

func count(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Rows renders the frame as result rows, rounding values with round.
func (f *Frame[T]) Rows(a numeric.Arith[T], round func(T) T) []model.DailyResultRow {
	rows := make([]model.DailyResultRow, f.Len())
	dec := func(v T) decimal.Decimal { return a.Decimal(round(v)) }
	for i := range rows {
		r := model.DailyResultRow{
			Day:                      f.Day[i],
			PerfDate:                 f.Date[i],
			BeginMV:                  dec(f.BeginMV[i]),
			BodCF:                    dec(f.BodCF[i]),
			EodCF:                    dec(f.EodCF[i]),
			MgmtFees:                 dec(f.Fees[i]),
			EndMV:                    dec(f.EndMV[i]),
			Sign:                     f.Sign[i],
			DailyROR:                 dec(f.ROR[i]),
			NIP:                      b2i(f.NIP[i]),
			NCtrl1:                   b2i(f.NCtrl1[i]),
			NCtrl2:                   b2i(f.NCtrl2[i]),
			NCtrl3:                   b2i(f.NCtrl3[i]),
			NCtrl4:                   b2i(f.NCtrl4[i]),
			PerfReset:                b2i(f.Reset[i]),
			TempLongCumROR:           dec(f.TempLong[i]),
			TempShortCumROR:          dec(f.TempShort[i]),
			LongCumROR:               dec(f.Long[i]),
			ShortCumROR:              dec(f.Short[i]),
			FinalCumROR:              dec(f.Final[i]),
			LongShort:                "L",
			EffectivePeriodStartDate: f.EffStart[i],
		}
		if f.Sign[i] < 0 {
			r.LongShort = "S"
		}
		if f.LocalROR != nil {
			l, x := dec(f.LocalROR[i]), dec(f.FXROR[i])
			r.LocalROR, r.FXROR = &l, &x
		}
		rows[i] = r
	}
	return rows
}
