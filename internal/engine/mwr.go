package engine

import (
	"context"

	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/mwr"
)

// MWR calculates the money-weighted return. Rates are reported in percent.
func (e *Engine) MWR(ctx context.Context, req model.MWRRequest, meta model.Meta) (*model.MWRResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := mwr.Calculate(ctx, req)
	if err != nil {
		return nil, err
	}
	r := rounder{places: req.Rounding(), strict: req.Precision() == model.PrecisionDecimalStrict}
	resp := &model.MWRResponse{
		CalculationID:       meta.CalculationID,
		PortfolioID:         req.PortfolioID,
		MoneyWeightedReturn: r.dec(res.Rate * 100),
		Method:              res.Method,
		StartDate:           res.Start,
		EndDate:             res.End,
		Convergence:         res.Convergence,
		Notes:               res.Notes,
		Meta:                meta,
	}
	if res.Annualized != nil {
		resp.MWRAnnualized = r.decp(*res.Annualized * 100)
	}
	return resp, nil
}
