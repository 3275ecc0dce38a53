// Package engine orchestrates the analytics kernels for one request:
// validation, data policy, frame construction in the requested precision,
// currency conversion, period resolution and result assembly.
//
// Engine methods are safe for concurrent use; all state is per call.
package engine

import (
	"time"

	"github.com/atmx/perf-engine/internal/canonical"
	"github.com/atmx/perf-engine/internal/currency"
	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/periods"
	"github.com/atmx/perf-engine/internal/twr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultVersion is reported when no engine version is configured.
const DefaultVersion = "1.0.0"

// Engine runs calculations.
type Engine struct {
	version string
	workers int
	now     func() time.Time
}

// New returns an Engine reporting version and fanning contribution
// positions out over workers goroutines.
func New(version string, workers int) *Engine {
	if version == "" {
		version = DefaultVersion
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{version: version, workers: workers, now: time.Now}
}

// Version returns the engine version mixed into calculation hashes.
func (e *Engine) Version() string { return e.version }

// Stamp hashes a request canonically and allocates a calculation id. The
// result is passed to the calculation and returned as response meta.
func (e *Engine) Stamp(req any, mode model.PrecisionMode) (model.Meta, error) {
	fp, hash, err := canonical.Hashes(req, e.version)
	if err != nil {
		return model.Meta{}, model.Errorf(model.KindInvalidRequest, "canonicalize request: %w", err)
	}
	return model.Meta{
		CalculationID:    uuid.New(),
		EngineVersion:    e.version,
		PrecisionMode:    mode,
		InputFingerprint: fp,
		CalculationHash:  hash,
		GeneratedAt:      e.now().UTC(),
	}, nil
}

// rounder renders float64 kernel output as decimals under the request's
// rounding policy.
type rounder struct {
	places int32
	strict bool
}

func (r rounder) dec(v float64) decimal.Decimal {
	d := decimal.NewFromFloat(v)
	if r.strict {
		return d
	}
	return d.Round(r.places)
}

func (r rounder) decp(v float64) *decimal.Decimal {
	d := r.dec(v)
	return &d
}

// fxContext holds the request-wide FX inputs; nil in BASE_ONLY mode.
type fxContext struct {
	rates *currency.Rates
	hedge *currency.Hedge
}

func newFXContext(cfg model.EngineConfig) *fxContext {
	if cfg.Currency() != model.CurrencyBoth {
		return nil
	}
	return &fxContext{
		rates: currency.NewRates(cfg.ReportCcy, cfg.FX.Rates),
		hedge: currency.NewHedge(cfg.Hedging),
	}
}

// buildFrame runs the TWR state machine over sorted, policy-adjusted
// points. With an FX context the local frame is converted to the report
// currency and re-processed.
func buildFrame[T any](calc *twr.Calculator[T], cfg model.EngineConfig, fx *fxContext, ccy string, points []model.ValuationPoint) (*twr.Frame[T], error) {
	dates := make([]date.Date, len(points))
	for i, p := range points {
		dates[i] = p.PerfDate
	}
	f := twr.NewFrame(calc.Arith(), points, periods.Assign(dates, cfg))
	calc.Run(f)
	if fx == nil {
		return f, nil
	}
	base, err := currency.Convert(calc, f, ccy, fx.rates, fx.hedge)
	if err != nil {
		return nil, err
	}
	calc.Process(base)
	return base, nil
}

// trimAfter drops points dated after end and reports how many were dropped.
func trimAfter(points []model.ValuationPoint, end date.Date) ([]model.ValuationPoint, int) {
	n := len(points)
	for n > 0 && points[n-1].PerfDate.After(end) {
		n--
	}
	return points[:n], len(points) - n
}

