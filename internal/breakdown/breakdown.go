// Package breakdown resamples a TWR frame into period summaries (daily,
// Friday-anchored weekly, monthly, quarterly, yearly) by geometric linking,
// and annualizes them on request.
package breakdown

import (
	"context"
	"fmt"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/numeric"
	"github.com/atmx/perf-engine/internal/twr"
	"github.com/shopspring/decimal"
)

// Options controls rounding and annualization of summaries.
type Options struct {
	Rounding      int32
	Strict        bool // DECIMAL_STRICT: keep full precision
	Annualization model.Annualization
}

// Aggregator builds summaries from frames of one numeric type.
type Aggregator[T any] struct {
	a       numeric.Arith[T]
	opts    Options
	hundred T
}

func New[T any](a numeric.Arith[T], opts Options) *Aggregator[T] {
	return &Aggregator[T]{a: a, opts: opts, hundred: a.FromInt(100)}
}

// Round applies the output rounding policy.
func (g *Aggregator[T]) Round(v T) T {
	if g.opts.Strict {
		return v
	}
	return g.a.Round(v, g.opts.Rounding)
}

func (g *Aggregator[T]) dec(v T) decimal.Decimal { return g.a.Decimal(g.Round(v)) }

func (g *Aggregator[T]) decp(v T) *decimal.Decimal {
	x := g.dec(v)
	return &x
}

// Link returns (prod(1 + r_t/100) - 1) * 100 over rows [lo, hi) of col.
func (g *Aggregator[T]) Link(col []T, lo, hi int) T {
	a, one := g.a, g.a.One()
	p := one
	for i := lo; i < hi; i++ {
		p = a.Mul(p, a.Add(one, a.Div(col[i], g.hundred)))
	}
	return a.Mul(a.Sub(p, one), g.hundred)
}

// PeriodsPerYear returns the override or the basis default.
func (g *Aggregator[T]) PeriodsPerYear() T {
	ann := g.opts.Annualization
	if ann.PeriodsPerYear != nil {
		return g.a.FromDecimal(*ann.PeriodsPerYear)
	}
	switch ann.EffectiveBasis() {
	case model.BasisBus252:
		return g.a.FromInt(252)
	case model.BasisActAct:
		return g.a.FromDecimal(decimal.RequireFromString("365.25"))
	default:
		return g.a.FromInt(365)
	}
}

// Annualize converts a percent return over days calendar days into
// ((1 + r)^(ppy/days) - 1) * 100. ok is false when the return is at or
// below -100% and no real annualized value exists.
func (g *Aggregator[T]) Annualize(retPct T, days int) (v T, ok bool, err error) {
	a := g.a
	ppy := g.PeriodsPerYear()
	if days <= 0 || a.Sign(ppy) <= 0 {
		return a.Zero(), false, model.Errorf(model.KindInvalidRequest,
			"annualization needs days_in_period > 0 and periods_per_year > 0 (got %d days)", days)
	}
	growth := a.Add(a.One(), a.Div(retPct, g.hundred))
	if a.Sign(growth) <= 0 {
		return a.Zero(), false, nil
	}
	p, err := a.Pow(growth, a.Div(ppy, a.FromInt(int64(days))))
	if err != nil {
		return a.Zero(), false, model.Errorf(model.KindEngineCalculation, "annualize: %w", err)
	}
	return a.Mul(a.Sub(p, a.One()), g.hundred), true, nil
}

// Summarize builds the summary of rows [lo, hi) of f. The range must be
// non-empty.
func (g *Aggregator[T]) Summarize(f *twr.Frame[T], lo, hi int) (model.PeriodSummary, error) {
	a := g.a
	ncf := a.Zero()
	for i := lo; i < hi; i++ {
		ncf = a.Add(ncf, a.Add(f.BodCF[i], f.EodCF[i]))
	}
	ret := g.Link(f.ROR, lo, hi)
	s := model.PeriodSummary{
		BeginMV:         g.dec(f.BeginMV[lo]),
		EndMV:           g.dec(f.EndMV[hi-1]),
		NetCashFlow:     g.dec(ncf),
		PeriodReturnPct: g.dec(ret),
	}
	if f.LocalROR != nil {
		s.LocalReturnPct = g.decp(g.Link(f.LocalROR, lo, hi))
		s.FXReturnPct = g.decp(g.Link(f.FXROR, lo, hi))
	}
	if g.opts.Annualization.Enabled {
		days := f.Date[hi-1].Sub(f.Date[lo]) + 1
		v, ok, err := g.Annualize(ret, days)
		if err != nil {
			return s, err
		}
		if ok {
			s.AnnualizedReturnPct = g.decp(v)
		}
	}
	return s, nil
}

// binLabel names the bin containing d.
func binLabel(d date.Date, freq model.Frequency) (string, error) {
	switch freq {
	case model.FrequencyDaily:
		return d.String(), nil
	case model.FrequencyWeekly:
		return d.WeekEndingFriday().String(), nil
	case model.FrequencyMonthly:
		return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month())), nil
	case model.FrequencyQuarterly:
		return fmt.Sprintf("%04d-Q%d", d.Year(), d.Quarter()), nil
	case model.FrequencyYearly:
		return fmt.Sprintf("%04d", d.Year()), nil
	default:
		return "", model.Errorf(model.KindNotImplemented, "frequency %q", freq)
	}
}

// Bins splits rows [lo, hi) into consecutive bins of freq and summarizes
// each, with the cumulative return from lo through the bin.
func (g *Aggregator[T]) Bins(f *twr.Frame[T], lo, hi int, freq model.Frequency) ([]model.BreakdownItem, error) {
	var items []model.BreakdownItem
	start := lo
	for start < hi {
		label, err := binLabel(f.Date[start], freq)
		if err != nil {
			return nil, err
		}
		end := start + 1
		for end < hi {
			l, _ := binLabel(f.Date[end], freq)
			if l != label {
				break
			}
			end++
		}
		s, err := g.Summarize(f, start, end)
		if err != nil {
			return nil, err
		}
		s.CumulativeReturnPctToDate = g.decp(g.Link(f.ROR, lo, end))
		items = append(items, model.BreakdownItem{
			Period:    label,
			StartDate: f.Date[start],
			EndDate:   f.Date[end-1],
			Summary:   s,
		})
		start = end
	}
	return items, nil
}

// Period summarizes one resolved period and its breakdowns. ok is false when
// the frame has no rows inside the period.
func (g *Aggregator[T]) Period(ctx context.Context, f *twr.Frame[T], p model.ResolvedPeriod, freqs []model.Frequency) (res model.PeriodResult, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return res, false, model.Errorf(model.KindCancelled, "breakdown %s: %w", p.Name, err)
	}
	lo, hi := f.Window(p.StartDate, p.EndDate)
	if lo >= hi {
		return res, false, nil
	}
	res.Period = p
	if res.Summary, err = g.Summarize(f, lo, hi); err != nil {
		return res, false, err
	}
	res.Breakdowns = make(map[model.Frequency][]model.BreakdownItem, len(freqs))
	for _, freq := range freqs {
		if err := ctx.Err(); err != nil {
			return res, false, model.Errorf(model.KindCancelled, "breakdown %s: %w", p.Name, err)
		}
		items, err := g.Bins(f, lo, hi, freq)
		if err != nil {
			return res, false, err
		}
		res.Breakdowns[freq] = items
	}
	return res, true, nil
}
