// Package mwr computes money-weighted returns: XIRR solved with Brent's
// method, Modified Dietz and simple Dietz.
//
// All rates here are fractions; the caller converts to percent.
package mwr

import (
	"context"
	"fmt"
	"math"

	"github.com/atmx/perf-engine/internal/breakdown"
	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/numeric"
)

// Result is the outcome of one MWR calculation.
type Result struct {
	Rate        float64
	Annualized  *float64
	Method      model.MWRMethod
	Start       date.Date
	End         date.Date
	Convergence *model.Convergence
	Notes       []string
}

type flow struct {
	date   date.Date
	amount float64
}

// startDate is start_date when given, otherwise the first cash flow date,
// otherwise as_of.
func startDate(req model.MWRRequest) date.Date {
	if req.StartDate != nil {
		return *req.StartDate
	}
	start := req.AsOf
	for _, cf := range req.CashFlows {
		if cf.Date.Before(start) {
			start = cf.Date
		}
	}
	return start
}

// yearDays is the XIRR day-count denominator for an annualization basis.
func yearDays(b model.AnnualizationBasis) float64 {
	if b == model.BasisAct365 {
		return 365
	}
	return 365.25
}

// Calculate runs the requested method. An XIRR failure falls back to
// Modified Dietz when the solver options allow it.
func Calculate(ctx context.Context, req model.MWRRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, model.Errorf(model.KindCancelled, "mwr: %w", err)
	}
	res := Result{Method: req.EffectiveMethod(), Start: startDate(req), End: req.AsOf}

	var err error
	switch res.Method {
	case model.MethodXIRR:
		var conv model.Convergence
		res.Rate, conv, err = XIRR(req, res.Start)
		res.Convergence = &conv
		if err != nil && model.KindOf(err) == model.KindSolverFailed && req.Solver.Fallback() {
			res.Notes = append(res.Notes, fmt.Sprintf("XIRR failed (%v); fell back to %s", err, model.MethodModifiedDietz))
			res.Method = model.MethodModifiedDietz
			res.Rate, err = ModifiedDietz(req, res.Start)
		}
	case model.MethodModifiedDietz:
		res.Rate, err = ModifiedDietz(req, res.Start)
	case model.MethodDietz:
		res.Rate, err = Dietz(req)
	default:
		return res, model.Errorf(model.KindNotImplemented, "mwr_method %q", res.Method)
	}
	if err != nil {
		return res, err
	}

	if req.Annualization.Enabled {
		if err := res.annualize(req.Annualization); err != nil {
			return res, err
		}
	}
	return res, nil
}

// annualize fills Annualized. XIRR is already an annual rate; Dietz rates
// are compounded over the period length.
func (r *Result) annualize(ann model.Annualization) error {
	if r.Method == model.MethodXIRR {
		v := r.Rate
		r.Annualized = &v
		return nil
	}
	days := r.End.Sub(r.Start)
	if days <= 0 {
		r.Notes = append(r.Notes, "annualization skipped: zero-length period")
		return nil
	}
	g := breakdown.New[float64](numeric.Float64{}, breakdown.Options{Strict: true, Annualization: ann})
	v, ok, err := g.Annualize(r.Rate*100, days)
	if err != nil {
		return err
	}
	if !ok {
		r.Notes = append(r.Notes, "annualization skipped: return at or below -100%")
		return nil
	}
	v /= 100
	r.Annualized = &v
	return nil
}

// XIRR solves for the annual rate r that zeroes the net present value of
// the investor's flows: -begin_mv at start, -cf_i at each flow date and
// +end_mv at as_of, discounted by (1 + r)^(days / year).
func XIRR(req model.MWRRequest, start date.Date) (float64, model.Convergence, error) {
	flows := make([]flow, 0, len(req.CashFlows)+2)
	flows = append(flows, flow{start, -req.BeginMV.InexactFloat64()})
	for _, cf := range req.CashFlows {
		flows = append(flows, flow{cf.Date, -cf.Amount.InexactFloat64()})
	}
	flows = append(flows, flow{req.AsOf, req.EndMV.InexactFloat64()})

	year := yearDays(req.Annualization.Basis)
	npv := func(r float64) float64 {
		var sum float64
		for _, f := range flows {
			t := float64(f.date.Sub(start)) / year
			sum += f.amount / math.Pow(1+r, t)
		}
		return sum
	}

	var conv model.Convergence
	lo, hi, ok := bracket(npv)
	if !ok {
		return 0, conv, model.Errorf(model.KindSolverFailed, "xirr: no sign change in [-0.99, 10]")
	}
	root, iters, residual, err := brent(npv, lo, hi, req.Solver.EffectiveTolerance(), req.Solver.EffectiveMaxIter())
	conv = model.Convergence{Iterations: iters, Residual: residual, Converged: err == nil}
	if err != nil {
		return 0, conv, fmt.Errorf("xirr: %w", err)
	}
	return root, conv, nil
}

// ModifiedDietz weights each flow by the share of the period it was
// invested: (total_days - days_since_start) / total_days. A zero-length
// period degrades to simple Dietz.
func ModifiedDietz(req model.MWRRequest, start date.Date) (float64, error) {
	total := req.AsOf.Sub(start)
	if total <= 0 {
		return Dietz(req)
	}
	begin, end := req.BeginMV.InexactFloat64(), req.EndMV.InexactFloat64()
	var net, weighted float64
	for _, cf := range req.CashFlows {
		amt := cf.Amount.InexactFloat64()
		w := float64(total-cf.Date.Sub(start)) / float64(total)
		net += amt
		weighted += amt * w
	}
	return ratio(end-begin-net, begin+weighted, model.MethodModifiedDietz)
}

// Dietz assumes every flow arrived mid-period.
func Dietz(req model.MWRRequest) (float64, error) {
	begin, end := req.BeginMV.InexactFloat64(), req.EndMV.InexactFloat64()
	var net float64
	for _, cf := range req.CashFlows {
		net += cf.Amount.InexactFloat64()
	}
	return ratio(end-begin-net, begin+0.5*net, model.MethodDietz)
}

func ratio(gain, capital float64, m model.MWRMethod) (float64, error) {
	if capital == 0 {
		return 0, model.Errorf(model.KindInsufficientData, "%s: average invested capital is zero", m)
	}
	return gain / capital, nil
}
