// Package contribution decomposes a portfolio's return over a period into
// per-position contributions, with Carino smoothing, residual allocation,
// an optional local/FX split and hierarchical rollup.
//
// Contributions and returns here are fractions.
package contribution

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/twr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// FrameBuilder returns the processed frame of one position.
type FrameBuilder func(ctx context.Context, positionID string) (*twr.Frame[float64], error)

// Position identifies a position and its hierarchy metadata.
type Position struct {
	ID   string
	Meta map[string]string
}

// Input is everything one contribution run needs. Portfolio must already be
// processed by the TWR state machine.
type Input struct {
	Portfolio  *twr.Frame[float64]
	Positions  []Position
	Build      FrameBuilder
	Start      date.Date
	End        date.Date
	Weighting  model.WeightingScheme
	Smoothing  model.SmoothingMethod
	Hierarchy  []string
	Currency   bool // frames carry LocalROR/FXROR
	Timeseries bool
	Workers    int
}

// PositionResult is one position's aggregate over the period.
type PositionResult struct {
	ID            string
	Meta          map[string]string
	Total         float64
	AverageWeight float64
	TotalReturn   float64
	Local         float64
	FX            float64
}

// Row is one node of a rollup level.
type Row struct {
	Key           map[string]string
	Total         float64
	AverageWeight float64
	Local         float64
	FX            float64
	Positions     int
}

// Level groups the rows of one hierarchy depth.
type Level struct {
	Level     int
	Dimension string
	Rows      []Row
}

// Day is one position-day of the smoothed series.
type Day struct {
	Date         date.Date
	PositionID   string
	Weight       float64
	Contribution float64
}

// Result is the output of Calculate. Residual is measured before it is
// allocated to positions.
type Result struct {
	TotalPortfolioReturn float64
	SumOfContributions   float64
	Residual             float64
	Positions            []PositionResult
	Levels               []Level
	Timeseries           []Day
	Notes                []string
}

// portfolioDay is the per-row state shared by every position.
type portfolioDay struct {
	date     date.Date
	capital  float64
	ret      float64
	excluded bool
	smooth   float64 // K/k_t - 1, zero without smoothing
}

// Calculate runs the contribution pipeline. Positions are computed
// concurrently on in.Workers goroutines and joined by position id.
func Calculate(ctx context.Context, in Input) (Result, error) {
	var res Result
	p := in.Portfolio
	lo, hi := p.Window(in.Start, in.End)
	if lo >= hi {
		return res, model.Errorf(model.KindInsufficientData, "no portfolio observations between %s and %s", in.Start, in.End)
	}

	days := make([]portfolioDay, hi-lo)
	growth := 1.0
	active := 0
	for t := range days {
		i := lo + t
		days[t] = portfolioDay{
			date:     p.Date[i],
			capital:  capital(p, i, in.Weighting),
			ret:      p.ROR[i] / 100,
			excluded: p.NIP[i] || p.Reset[i],
		}
		growth *= 1 + days[t].ret
		if !days[t].excluded {
			active++
		}
	}
	res.TotalPortfolioReturn = growth - 1
	if in.Smoothing == model.SmoothingCarino {
		if err := carinoFactors(days, res.TotalPortfolioReturn); err != nil {
			res.Notes = append(res.Notes, err.Error())
		}
	}

	positions := slices.Clone(in.Positions)
	slices.SortFunc(positions, func(a, b Position) int { return strings.Compare(a.ID, b.ID) })
	results := make([]positionRun, len(positions))

	g, gctx := errgroup.WithContext(ctx)
	workers := in.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for k, pos := range positions {
		k, pos := k, pos
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return model.Errorf(model.KindCancelled, "contribution %s: %w", pos.ID, err)
			}
			f, err := in.Build(gctx, pos.ID)
			if err != nil {
				return fmt.Errorf("position %s: %w", pos.ID, err)
			}
			results[k] = runPosition(pos, f, days, active, in)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, model.Errorf(model.KindCancelled, "contribution: %w", err)
	}

	res.Positions = make([]PositionResult, len(results))
	totals := make([]float64, len(results))
	locals := make([]float64, len(results))
	weights := make([]float64, len(results))
	for k, r := range results {
		res.Positions[k] = r.PositionResult
		totals[k], locals[k], weights[k] = r.Total, r.Local, r.AverageWeight
		if in.Timeseries {
			res.Timeseries = append(res.Timeseries, r.days...)
		}
	}
	res.SumOfContributions = floats.Sum(totals)
	res.Residual = res.TotalPortfolioReturn - res.SumOfContributions
	if in.Smoothing == model.SmoothingCarino {
		allocateResidual(res.Positions, res.Residual, floats.Sum(weights), floats.Sum(locals), res.SumOfContributions, in.Currency)
	}
	for k := range res.Positions {
		if in.Currency {
			res.Positions[k].FX = res.Positions[k].Total - res.Positions[k].Local
		}
	}
	if in.Timeseries {
		slices.SortStableFunc(res.Timeseries, func(a, b Day) int {
			if c := a.Date.Compare(b.Date); c != 0 {
				return c
			}
			return strings.Compare(a.PositionID, b.PositionID)
		})
	}
	if len(in.Hierarchy) > 0 {
		res.Levels = Rollup(res.Positions, in.Hierarchy, in.Currency)
	}
	return res, nil
}

// capital is the day's invested capital under the weighting scheme.
func capital(f *twr.Frame[float64], i int, scheme model.WeightingScheme) float64 {
	bod := f.BeginMV[i] + f.BodCF[i]
	if scheme == model.WeightingAvgCapital {
		return (bod + f.EndMV[i] - f.EodCF[i]) / 2
	}
	return bod
}

// carinoLog returns ln(1+r)/r, or 1 at r = 0.
func carinoLog(r float64) (float64, bool) {
	if r == 0 {
		return 1, true
	}
	if 1+r <= 0 {
		return 0, false
	}
	return math.Log1p(r) / r, true
}

// carinoFactors fills the smoothing term of every day. When any factor is
// undefined (a return at or below -100%) smoothing is left off.
func carinoFactors(days []portfolioDay, total float64) error {
	K, ok := carinoLog(total)
	if !ok {
		return fmt.Errorf("carino smoothing skipped: period return %.6f is at or below -100%%", total)
	}
	smooth := make([]float64, len(days))
	for t, d := range days {
		k, ok := carinoLog(d.ret)
		if !ok {
			return fmt.Errorf("carino smoothing skipped: return on %s is at or below -100%%", d.date)
		}
		smooth[t] = K/k - 1
	}
	for t := range days {
		days[t].smooth = smooth[t]
	}
	return nil
}

type positionRun struct {
	PositionResult
	days []Day
}

func runPosition(pos Position, f *twr.Frame[float64], days []portfolioDay, active int, in Input) positionRun {
	run := positionRun{PositionResult: PositionResult{ID: pos.ID, Meta: pos.Meta}}
	growth := 1.0
	var weightSum float64
	for _, d := range days {
		j := f.IndexOf(d.date)
		if j < 0 {
			continue
		}
		r := f.ROR[j] / 100
		growth *= 1 + r

		var w float64
		if d.capital != 0 {
			w = capital(f, j, in.Weighting) / d.capital
		}
		if d.excluded {
			continue
		}
		weightSum += w
		if f.NIP[j] || f.Reset[j] {
			if in.Timeseries {
				run.days = append(run.days, Day{Date: d.date, PositionID: pos.ID, Weight: w})
			}
			continue
		}

		raw := w * r
		adj := w * d.ret * d.smooth
		contrib := raw + adj
		run.Total += contrib
		if in.Currency {
			local := w * f.LocalROR[j] / 100
			if raw != 0 {
				local += adj * local / raw
			}
			run.Local += local
		}
		if in.Timeseries {
			run.days = append(run.days, Day{Date: d.date, PositionID: pos.ID, Weight: w, Contribution: contrib})
		}
	}
	run.TotalReturn = growth - 1
	if active > 0 {
		run.AverageWeight = weightSum / float64(active)
	}
	return run
}

// allocateResidual spreads the residual over positions in proportion to
// their average weight. In currency mode each share is split between the
// local and FX legs in the proportion of the summed contributions.
func allocateResidual(ps []PositionResult, residual, weightSum, localSum, sum float64, ccy bool) {
	if weightSum == 0 || residual == 0 {
		return
	}
	localShare := 1.0
	if ccy && sum != 0 {
		localShare = localSum / sum
	}
	for k := range ps {
		share := residual * ps[k].AverageWeight / weightSum
		ps[k].Total += share
		if ccy {
			ps[k].Local += share * localShare
		}
	}
}

// Rollup aggregates positions by every prefix of the hierarchy. Level 1
// groups by the outermost dimension. Rows are ordered by key.
func Rollup(ps []PositionResult, hierarchy []string, ccy bool) []Level {
	levels := make([]Level, len(hierarchy))
	for n := 1; n <= len(hierarchy); n++ {
		dims := hierarchy[:n]
		index := make(map[string]int)
		var rows []Row
		var ids []string
		for _, p := range ps {
			parts := make([]string, n)
			for i, dim := range dims {
				parts[i] = p.Meta[dim]
			}
			id := strings.Join(parts, "\x1f")
			k, ok := index[id]
			if !ok {
				key := make(map[string]string, n)
				for i, dim := range dims {
					key[dim] = parts[i]
				}
				k = len(rows)
				index[id] = k
				rows = append(rows, Row{Key: key})
				ids = append(ids, id)
			}
			rows[k].Total += p.Total
			rows[k].AverageWeight += p.AverageWeight
			if ccy {
				rows[k].Local += p.Local
				rows[k].FX += p.FX
			}
			rows[k].Positions++
		}
		order := make([]int, len(rows))
		for i := range order {
			order[i] = i
		}
		slices.SortFunc(order, func(a, b int) int { return strings.Compare(ids[a], ids[b]) })
		sorted := make([]Row, len(rows))
		for i, k := range order {
			sorted[i] = rows[k]
		}
		levels[n-1] = Level{Level: n, Dimension: hierarchy[n-1], Rows: sorted}
	}
	return levels
}
