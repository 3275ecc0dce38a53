package engine

import (
	"context"

	"github.com/atmx/perf-engine/internal/attribution"
	"github.com/atmx/perf-engine/internal/model"
)

// Attribution explains the active return against the benchmark.
func (e *Engine) Attribution(ctx context.Context, req model.AttributionRequest, meta model.Meta) (*model.AttributionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := attribution.Calculate(ctx, req)
	if err != nil {
		return nil, err
	}

	r := rounder{places: req.Rounding(), strict: req.Precision() == model.PrecisionDecimalStrict}
	group := func(key map[string]string, fx attribution.Effects) model.AttributionGroupResult {
		return model.AttributionGroupResult{
			Key:         key,
			Allocation:  r.dec(fx.Allocation),
			Selection:   r.dec(fx.Selection),
			Interaction: r.dec(fx.Interaction),
			TotalEffect: r.dec(fx.Total()),
		}
	}

	resp := &model.AttributionResponse{
		CalculationID: meta.CalculationID,
		PortfolioID:   req.PortfolioID,
		Model:         req.Model,
		Linking:       req.Linking,
		Reconciliation: model.Reconciliation{
			PortfolioReturn:   r.dec(res.PortfolioReturn),
			BenchmarkReturn:   r.dec(res.BenchmarkReturn),
			TotalActiveReturn: r.dec(res.ActiveReturn),
			SumOfEffects:      r.dec(res.SumOfEffects),
			Residual:          r.dec(res.Residual),
		},
		Meta: meta,
	}
	for _, l := range res.Levels {
		level := model.AttributionLevel{
			Dimension: l.Dimension,
			Groups:    make([]model.AttributionGroupResult, len(l.Groups)),
			Totals:    group(nil, l.Totals),
		}
		for i, g := range l.Groups {
			level.Groups[i] = group(g.Key, g.Effects)
		}
		resp.Levels = append(resp.Levels, level)
	}

	if c := res.Currency; c != nil {
		effects := func(e attribution.CurrencyEffects) model.CurrencyAttributionEffects {
			return model.CurrencyAttributionEffects{
				LocalAllocation:    r.dec(e.LocalAllocation),
				LocalSelection:     r.dec(e.LocalSelection),
				CurrencyAllocation: r.dec(e.CurrencyAllocation),
				CurrencySelection:  r.dec(e.CurrencySelection),
				TotalEffect:        r.dec(e.Total()),
			}
		}
		ca := &model.CurrencyAttribution{
			Groups:           make([]model.CurrencyGroupResult, len(c.Groups)),
			Totals:           effects(c.Totals),
			BaseActiveReturn: r.dec(c.BaseActiveReturn),
			ResidualBps:      r.dec(c.ResidualBps),
		}
		for i, g := range c.Groups {
			ca.Groups[i] = model.CurrencyGroupResult{Currency: g.Currency, Effects: effects(g.CurrencyEffects)}
		}
		resp.Currency = ca
	}
	return resp, nil
}
