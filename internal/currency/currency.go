// Package currency converts local-currency valuation frames into a report
// currency and splits the base return into its local and FX legs.
package currency

import (
	"slices"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/twr"
	"github.com/shopspring/decimal"
)

// Rates is a de-duplicated FX rate table, one date-sorted series per currency.
type Rates struct {
	report string
	series map[string][]model.FXRate
}

// NewRates indexes rates quoted in report currency. Duplicate (date, ccy)
// entries keep the last value given.
func NewRates(report string, rates []model.FXRate) *Rates {
	last := make(map[string]map[date.Date]decimal.Decimal)
	for _, r := range rates {
		if last[r.Ccy] == nil {
			last[r.Ccy] = make(map[date.Date]decimal.Decimal)
		}
		last[r.Ccy][r.Date] = r.Rate
	}
	series := make(map[string][]model.FXRate, len(last))
	for ccy, byDate := range last {
		s := make([]model.FXRate, 0, len(byDate))
		for d, v := range byDate {
			s = append(s, model.FXRate{Date: d, Ccy: ccy, Rate: v})
		}
		slices.SortFunc(s, func(a, b model.FXRate) int { return a.Date.Compare(b.Date) })
		series[ccy] = s
	}
	return &Rates{report: report, series: series}
}

// On returns the latest rate for ccy dated on or before d. The report
// currency always converts at 1.
func (r *Rates) On(ccy string, d date.Date) (decimal.Decimal, error) {
	if ccy == r.report {
		return decimal.NewFromInt(1), nil
	}
	s := r.series[ccy]
	i, found := slices.BinarySearchFunc(s, d, func(x model.FXRate, t date.Date) int { return x.Date.Compare(t) })
	if found {
		return s[i].Rate, nil
	}
	if i == 0 {
		return decimal.Zero, model.Errorf(model.KindInvalidEngineInput, "no %s/%s rate on or before %s", ccy, r.report, d)
	}
	return s[i-1].Rate, nil
}

// Hedge looks up hedge ratios; a nil Hedge or NONE mode hedges nothing.
type Hedge struct {
	series map[string][]model.HedgeRatio
}

// NewHedge builds a lookup from the hedging spec.
func NewHedge(spec *model.HedgingSpec) *Hedge {
	if spec == nil || spec.Mode != model.HedgingRatio {
		return nil
	}
	h := &Hedge{series: make(map[string][]model.HedgeRatio)}
	for _, r := range spec.Series {
		h.series[r.Ccy] = append(h.series[r.Ccy], r)
	}
	for _, s := range h.series {
		slices.SortStableFunc(s, func(a, b model.HedgeRatio) int { return a.Date.Compare(b.Date) })
	}
	return h
}

// Ratio returns the hedge ratio for ccy in force on d, zero when none.
func (h *Hedge) Ratio(ccy string, d date.Date) decimal.Decimal {
	if h == nil {
		return decimal.Zero
	}
	ratio := decimal.Zero
	for _, r := range h.series[ccy] {
		if r.Date.After(d) {
			break
		}
		ratio = r.Ratio
	}
	return ratio
}

// Convert returns a report-currency frame built from a local frame that has
// already been run. Begin-of-day values convert at the prior calendar day's
// rate and end-of-day values at the day's rate. The returned frame carries
// LocalROR and FXROR and its ROR is the geometric combination
//
//	base = ((1 + local/100)(1 + fx/100) - 1) * 100
//
// with fx = (rate_t / rate_{t-1} - 1) * 100 * (1 - hedge_ratio). The caller
// runs Process on the result.
func Convert[T any](calc *twr.Calculator[T], local *twr.Frame[T], ccy string, rates *Rates, hedge *Hedge) (*twr.Frame[T], error) {
	a := calc.Arith()
	n := local.Len()
	hundred, one := a.FromInt(100), a.One()

	base := &twr.Frame[T]{
		Day:      slices.Clone(local.Day),
		Date:     slices.Clone(local.Date),
		EffStart: slices.Clone(local.EffStart),
		BeginMV:  make([]T, n),
		BodCF:    make([]T, n),
		EodCF:    make([]T, n),
		Fees:     make([]T, n),
		EndMV:    make([]T, n),
		ROR:      make([]T, n),
		LocalROR: slices.Clone(local.ROR),
		FXROR:    make([]T, n),
	}
	for i := 0; i < n; i++ {
		d := local.Date[i]
		prev, err := rates.On(ccy, d.AddDays(-1))
		if err != nil {
			return nil, err
		}
		cur, err := rates.On(ccy, d)
		if err != nil {
			return nil, err
		}
		rp, rc := a.FromDecimal(prev), a.FromDecimal(cur)

		base.BeginMV[i] = a.Mul(local.BeginMV[i], rp)
		base.BodCF[i] = a.Mul(local.BodCF[i], rp)
		base.EodCF[i] = a.Mul(local.EodCF[i], rc)
		base.Fees[i] = a.Mul(local.Fees[i], rc)
		base.EndMV[i] = a.Mul(local.EndMV[i], rc)

		if d.Before(local.EffStart[i]) {
			base.FXROR[i] = a.Zero()
			base.ROR[i] = a.Zero()
			continue
		}
		fx := a.Mul(a.Sub(a.Div(rc, rp), one), hundred)
		if h := hedge.Ratio(ccy, d); !h.IsZero() {
			fx = a.Mul(fx, a.Sub(one, a.FromDecimal(h)))
		}
		base.FXROR[i] = fx
		l := a.Add(one, a.Div(local.ROR[i], hundred))
		x := a.Add(one, a.Div(fx, hundred))
		base.ROR[i] = a.Mul(a.Sub(a.Mul(l, x), one), hundred)
	}
	return base, nil
}
