package engine

import (
	"context"
	"fmt"

	"github.com/atmx/perf-engine/internal/contribution"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/numeric"
	"github.com/atmx/perf-engine/internal/periods"
	"github.com/atmx/perf-engine/internal/policy"
	"github.com/atmx/perf-engine/internal/twr"
)

// Contribution decomposes the portfolio return over the configured period
// into position contributions. It always computes in float64.
func (e *Engine) Contribution(ctx context.Context, req model.ContributionRequest, meta model.Meta) (*model.ContributionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg := req.EngineConfig
	fx := newFXContext(cfg)
	calc := twr.New[float64](numeric.Float64{}, twr.ConfigFrom(cfg))
	applier := policy.New(cfg.DataPolicy)

	points, _ := trimAfter(twr.SortPoints(req.PortfolioData), cfg.ReportEndDate)
	if len(points) == 0 {
		return nil, model.Errorf(model.KindInsufficientData, "no portfolio data on or before %s", cfg.ReportEndDate)
	}
	port, err := buildFrame(calc, cfg, fx, req.PortfolioCcy, applier.Apply("", points))
	if err != nil {
		return nil, fmt.Errorf("portfolio: %w", err)
	}

	// policy runs sequentially; only frame building fans out
	adjusted := make(map[string][]model.ValuationPoint, len(req.PositionsData))
	ccys := make(map[string]string, len(req.PositionsData))
	positions := make([]contribution.Position, len(req.PositionsData))
	for i, p := range req.PositionsData {
		pts, _ := trimAfter(twr.SortPoints(p.ValuationPoints), cfg.ReportEndDate)
		adjusted[p.PositionID] = applier.Apply(p.PositionID, pts)
		ccys[p.PositionID] = p.Meta["currency"]
		positions[i] = contribution.Position{ID: p.PositionID, Meta: p.Meta}
	}
	build := func(_ context.Context, id string) (*twr.Frame[float64], error) {
		pts := adjusted[id]
		if len(pts) == 0 {
			return twr.NewFrame[float64](numeric.Float64{}, nil, nil), nil
		}
		return buildFrame(calc, cfg, fx, ccys[id], pts)
	}

	inception := cfg.PerformanceStartDate
	period, err := periods.ResolveOne(periods.Default(cfg), cfg.ReportEndDate, &inception)
	if err != nil {
		return nil, err
	}
	res, err := contribution.Calculate(ctx, contribution.Input{
		Portfolio:  port,
		Positions:  positions,
		Build:      build,
		Start:      period.StartDate,
		End:        period.EndDate,
		Weighting:  req.Weighting(),
		Smoothing:  req.SmoothingMethod(),
		Hierarchy:  req.Hierarchy,
		Currency:   fx != nil,
		Timeseries: req.Emit.Timeseries,
		Workers:    e.workers,
	})
	if err != nil {
		return nil, err
	}

	r := rounder{places: cfg.Rounding(), strict: cfg.Precision() == model.PrecisionDecimalStrict}
	resp := &model.ContributionResponse{
		CalculationID:        meta.CalculationID,
		PortfolioID:          req.PortfolioID,
		ReportStartDate:      period.StartDate,
		ReportEndDate:        period.EndDate,
		TotalPortfolioReturn: r.dec(res.TotalPortfolioReturn),
		SumOfContributions:   r.dec(res.SumOfContributions),
		Residual:             r.dec(res.Residual),
		Positions:            make([]model.PositionContribution, len(res.Positions)),
		Diagnostics: model.Diagnostics{
			NIPDays:              port.NIPDays(),
			ResetDays:            port.ResetDays(),
			EffectivePeriodStart: port.EffStart[port.Len()-1],
			Notes:                res.Notes,
			Policy:               applier.Diagnostics(),
		},
		Meta: meta,
	}
	for i, p := range res.Positions {
		pc := model.PositionContribution{
			PositionID:        p.ID,
			Meta:              p.Meta,
			TotalContribution: r.dec(p.Total),
			AverageWeight:     r.dec(p.AverageWeight),
			TotalReturn:       r.dec(p.TotalReturn),
		}
		if fx != nil {
			pc.LocalContribution, pc.FXContribution = r.decp(p.Local), r.decp(p.FX)
		}
		resp.Positions[i] = pc
	}
	for _, l := range res.Levels {
		level := model.ContributionLevel{Level: l.Level, Dimension: l.Dimension, Rows: make([]model.ContributionRow, len(l.Rows))}
		for i, row := range l.Rows {
			cr := model.ContributionRow{
				Key:               row.Key,
				TotalContribution: r.dec(row.Total),
				AverageWeight:     r.dec(row.AverageWeight),
				Positions:         row.Positions,
			}
			if fx != nil {
				cr.LocalContribution, cr.FXContribution = r.decp(row.Local), r.decp(row.FX)
			}
			level.Rows[i] = cr
		}
		resp.Levels = append(resp.Levels, level)
	}
	for _, d := range res.Timeseries {
		resp.Timeseries = append(resp.Timeseries, model.ContributionDay{
			PerfDate:     d.Date,
			PositionID:   d.PositionID,
			Weight:       r.dec(d.Weight),
			Contribution: r.dec(d.Contribution),
		})
	}
	return resp, nil
}
