package attribution

import (
	"context"
	"slices"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
)

// CurrencyEffects is the Karnosky-Singer split of one currency bucket.
// Interaction is folded into CurrencySelection.
type CurrencyEffects struct {
	LocalAllocation    float64
	LocalSelection     float64
	CurrencyAllocation float64
	CurrencySelection  float64
}

func (e CurrencyEffects) Total() float64 {
	return e.LocalAllocation + e.LocalSelection + e.CurrencyAllocation + e.CurrencySelection
}

func (e CurrencyEffects) add(o CurrencyEffects) CurrencyEffects {
	return CurrencyEffects{
		e.LocalAllocation + o.LocalAllocation,
		e.LocalSelection + o.LocalSelection,
		e.CurrencyAllocation + o.CurrencyAllocation,
		e.CurrencySelection + o.CurrencySelection,
	}
}

type CurrencyGroup struct {
	Currency string
	CurrencyEffects
}

// CurrencyResult reconciles the summed effects to the geometric base
// active return; ResidualBps is the gap in basis points.
type CurrencyResult struct {
	Groups           []CurrencyGroup
	Totals           CurrencyEffects
	BaseActiveReturn float64
	ResidualBps      float64
}

type ccyCell struct {
	wp, wb, rpl, rbl, fxp, fxb float64
}

// karnoskySinger decomposes each date's active return per currency and sums
// the effects over dates.
func karnoskySinger(ctx context.Context, series []model.CurrencySeries) (CurrencyResult, error) {
	var res CurrencyResult
	byDate := make(map[date.Date]map[string]ccyCell)
	var ccys []string
	for _, s := range series {
		if !slices.Contains(ccys, s.Currency) {
			ccys = append(ccys, s.Currency)
		}
		for _, o := range s.Observations {
			if byDate[o.Date] == nil {
				byDate[o.Date] = make(map[string]ccyCell)
			}
			byDate[o.Date][s.Currency] = ccyCell{
				wp:  o.PortfolioWeight.InexactFloat64(),
				wb:  o.BenchmarkWeight.InexactFloat64(),
				rpl: o.PortfolioLocalReturn.InexactFloat64(),
				rbl: o.BenchmarkLocalReturn.InexactFloat64(),
				fxp: o.PortfolioFXReturn.InexactFloat64(),
				fxb: o.BenchmarkFXReturn.InexactFloat64(),
			}
		}
	}
	slices.Sort(ccys)
	dates := make([]date.Date, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b date.Date) int { return a.Compare(b) })

	effects := make(map[string]CurrencyEffects, len(ccys))
	portGrowth, benchGrowth := 1.0, 1.0
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return res, model.Errorf(model.KindCancelled, "currency attribution: %w", err)
		}
		cells := byDate[d]
		var benchLocal, benchFX, portBase, benchBase float64
		for _, c := range cells {
			benchLocal += c.wb * c.rbl
			benchFX += c.wb * c.fxb
			portBase += c.wp * ((1+c.rpl)*(1+c.fxp) - 1)
			benchBase += c.wb * ((1+c.rbl)*(1+c.fxb) - 1)
		}
		portGrowth *= 1 + portBase
		benchGrowth *= 1 + benchBase
		for ccy, c := range cells {
			active := c.wp - c.wb
			effects[ccy] = effects[ccy].add(CurrencyEffects{
				LocalAllocation:    active * (c.rbl - benchLocal),
				LocalSelection:     c.wb * (c.rpl - c.rbl),
				CurrencyAllocation: active * (c.fxb - benchFX),
				CurrencySelection:  c.wp*(c.fxp-c.fxb) + active*(c.rpl-c.rbl),
			})
		}
	}

	res.Groups = make([]CurrencyGroup, len(ccys))
	for i, ccy := range ccys {
		res.Groups[i] = CurrencyGroup{Currency: ccy, CurrencyEffects: effects[ccy]}
		res.Totals = res.Totals.add(effects[ccy])
	}
	res.BaseActiveReturn = portGrowth - benchGrowth
	res.ResidualBps = (res.BaseActiveReturn - res.Totals.Total()) * 10000
	return res, nil
}
