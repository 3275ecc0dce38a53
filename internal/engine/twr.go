package engine

import (
	"context"
	"fmt"

	"github.com/atmx/perf-engine/internal/breakdown"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/numeric"
	"github.com/atmx/perf-engine/internal/periods"
	"github.com/atmx/perf-engine/internal/policy"
	"github.com/atmx/perf-engine/internal/twr"
	"github.com/shopspring/decimal"
)

// TWR calculates time-weighted returns for every requested period.
func (e *Engine) TWR(ctx context.Context, req model.TWRRequest, meta model.Meta) (*model.TWRResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var (
		resp *model.TWRResponse
		err  error
	)
	switch req.Precision() {
	case model.PrecisionDecimalStrict:
		resp, err = runTWR[decimal.Decimal](ctx, numeric.NewDecimal(), req, true)
	default:
		resp, err = runTWR[float64](ctx, numeric.Float64{}, req, false)
	}
	if err != nil {
		return nil, err
	}
	resp.CalculationID = meta.CalculationID
	resp.Meta = meta
	return resp, nil
}

func runTWR[T any](ctx context.Context, a numeric.Arith[T], req model.TWRRequest, strict bool) (*model.TWRResponse, error) {
	cfg := req.EngineConfig
	resp := &model.TWRResponse{
		PortfolioID:     req.PortfolioID,
		ReportStartDate: cfg.ReportStart(),
		ReportEndDate:   cfg.ReportEndDate,
	}
	diag := &resp.Diagnostics

	applier := policy.New(cfg.DataPolicy)
	points, dropped := trimAfter(twr.SortPoints(req.ValuationPoints), cfg.ReportEndDate)
	if dropped > 0 {
		diag.Notes = append(diag.Notes, fmt.Sprintf("%d valuation points after report_end_date ignored", dropped))
	}
	if len(points) == 0 {
		return nil, model.Errorf(model.KindInsufficientData, "no valuation points on or before %s", cfg.ReportEndDate)
	}
	points = applier.Apply("", points)

	calc := twr.New(a, twr.ConfigFrom(cfg))
	f, err := buildFrame(calc, cfg, newFXContext(cfg), req.PortfolioCcy, points)
	if err != nil {
		return nil, err
	}

	specs := req.Periods
	if len(specs) == 0 {
		specs = []model.PeriodSpec{periods.Default(cfg)}
	}
	inception := cfg.PerformanceStartDate
	resolved, err := periods.Resolve(specs, cfg.ReportEndDate, &inception)
	if err != nil {
		return nil, err
	}

	agg := breakdown.New(a, breakdown.Options{Rounding: cfg.Rounding(), Strict: strict, Annualization: cfg.Annualization})
	for _, p := range resolved {
		res, ok, err := agg.Period(ctx, f, p, req.Frequencies)
		if err != nil {
			return nil, err
		}
		if !ok {
			if cfg.DataPolicy.Missing() == model.MissingFailFast {
				return nil, model.Errorf(model.KindInsufficientData, "period %s (%s..%s) has no observations", p.Name, p.StartDate, p.EndDate)
			}
			diag.Notes = append(diag.Notes, fmt.Sprintf("period %s skipped: no observations between %s and %s", p.Name, p.StartDate, p.EndDate))
			continue
		}
		resp.ResultsByPeriod = append(resp.ResultsByPeriod, res)
	}

	diag.NIPDays = f.NIPDays()
	diag.ResetDays = f.ResetDays()
	diag.EffectivePeriodStart = f.EffStart[f.Len()-1]
	diag.Policy = applier.Diagnostics()
	if req.Output.IncludeTimeseries {
		resp.Timeseries = f.Rows(a, agg.Round)
	}
	return resp, nil
}
