// Package attribution explains active return against a benchmark with
// Brinson-Fachler or Brinson-Hood-Beebower effects, links them across dates
// (arithmetic, Carino or Menchero), rolls them up a group hierarchy and
// optionally decomposes currency effects after Karnosky-Singer.
//
// Weights, returns and effects are fractions.
package attribution

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"gonum.org/v1/gonum/floats"
)

// Effects are the three Brinson effects of one group.
type Effects struct {
	Allocation  float64
	Selection   float64
	Interaction float64
}

func (e Effects) Total() float64 { return e.Allocation + e.Selection + e.Interaction }

func (e Effects) add(o Effects) Effects {
	return Effects{e.Allocation + o.Allocation, e.Selection + o.Selection, e.Interaction + o.Interaction}
}

func (e Effects) scale(f float64) Effects {
	return Effects{e.Allocation * f, e.Selection * f, e.Interaction * f}
}

type Group struct {
	Key map[string]string
	Effects
}

// Level holds the groups of one hierarchy depth; Totals is the same at
// every level.
type Level struct {
	Dimension string
	Groups    []Group
	Totals    Effects
}

// Result is the output of Calculate.
type Result struct {
	Levels          []Level
	PortfolioReturn float64
	BenchmarkReturn float64
	ActiveReturn    float64
	SumOfEffects    float64
	Residual        float64
	Currency        *CurrencyResult
}

// cell is one group's weight and return on one date.
type cell struct {
	weight float64
	ret    float64
}

// panel maps date -> group id -> cell.
type panel map[date.Date]map[string]cell

// keyer projects group keys onto the group_by dimensions.
type keyer struct {
	dims []string
	keys map[string]map[string]string
}

func (k *keyer) id(values map[string]string) string {
	parts := make([]string, len(k.dims))
	for i, d := range k.dims {
		parts[i] = values[d]
	}
	id := strings.Join(parts, "\x1f")
	if _, ok := k.keys[id]; !ok {
		key := make(map[string]string, len(k.dims))
		for i, d := range k.dims {
			key[d] = parts[i]
		}
		k.keys[id] = key
	}
	return id
}

// bucket accumulates observations into a panel. Observations that land in
// the same (date, group) are combined: weights add and the return is the
// weight-weighted average.
type bucket map[date.Date]map[string]*struct{ w, wr float64 }

func (b bucket) add(d date.Date, id string, o model.Observation) {
	if b[d] == nil {
		b[d] = make(map[string]*struct{ w, wr float64 })
	}
	acc := b[d][id]
	if acc == nil {
		acc = &struct{ w, wr float64 }{}
		b[d][id] = acc
	}
	w := o.Weight.InexactFloat64()
	acc.w += w
	acc.wr += w * o.Return.InexactFloat64()
}

func (b bucket) panel() panel {
	p := make(panel, len(b))
	for d, groups := range b {
		p[d] = make(map[string]cell, len(groups))
		for id, acc := range groups {
			c := cell{weight: acc.w}
			if acc.w != 0 {
				c.ret = acc.wr / acc.w
			}
			p[d][id] = c
		}
	}
	return p
}

// Calculate runs the attribution for a validated request.
func Calculate(ctx context.Context, req model.AttributionRequest) (Result, error) {
	var res Result
	k := &keyer{dims: req.GroupBy, keys: make(map[string]map[string]string)}

	port, bench := bucket{}, bucket{}
	switch req.Mode {
	case model.ModeByGroup:
		for _, g := range req.PortfolioGroupsData {
			id := k.id(g.Key)
			for _, o := range g.Observations {
				port.add(o.Date, id, o)
			}
		}
	case model.ModeByInstrument:
		for _, in := range req.InstrumentsData {
			id := k.id(in.Meta)
			for _, o := range in.Observations {
				port.add(o.Date, id, o)
			}
		}
	default:
		return res, model.Errorf(model.KindNotImplemented, "attribution mode %q", req.Mode)
	}
	for _, g := range req.BenchmarkGroupsData {
		id := k.id(g.Key)
		for _, o := range g.Observations {
			bench.add(o.Date, id, o)
		}
	}
	pp, bp := port.panel(), bench.panel()

	dates := unionDates(pp, bp)
	if len(dates) == 0 {
		return res, model.Errorf(model.KindInsufficientData, "attribution has no observations")
	}
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	// single-period effects, date by date
	periodEffects := make([]map[string]Effects, len(dates))
	rp := make([]float64, len(dates))
	rb := make([]float64, len(dates))
	for t, d := range dates {
		if err := ctx.Err(); err != nil {
			return res, model.Errorf(model.KindCancelled, "attribution: %w", err)
		}
		wps, rps, wbs, rbs := aligned(pp[d], bp[d], ids)
		rp[t] = floats.Dot(wps, rps)
		rb[t] = floats.Dot(wbs, rbs)
		periodEffects[t] = make(map[string]Effects, len(ids))
		for i, id := range ids {
			e, err := single(req.Model, wps[i], rps[i], wbs[i], rbs[i], rb[t])
			if err != nil {
				return res, err
			}
			periodEffects[t][id] = e
		}
	}

	res.PortfolioReturn = link(rp)
	res.BenchmarkReturn = link(rb)
	res.ActiveReturn = res.PortfolioReturn - res.BenchmarkReturn

	factors, err := linkFactors(req.Linking, rp, rb)
	if err != nil {
		return res, err
	}
	leaves := make(map[string]Effects, len(ids))
	for t := range dates {
		for _, id := range ids {
			leaves[id] = leaves[id].add(periodEffects[t][id].scale(factors[t]))
		}
	}
	res.Levels = rollup(leaves, ids, k)
	res.SumOfEffects = res.Levels[0].Totals.Total()
	res.Residual = res.ActiveReturn - res.SumOfEffects

	if req.CurrencyMode == model.CurrencyBoth {
		cr, err := karnoskySinger(ctx, req.CurrencyData)
		if err != nil {
			return res, err
		}
		res.Currency = &cr
	}
	return res, nil
}

func unionDates(panels ...panel) []date.Date {
	seen := make(map[date.Date]bool)
	var out []date.Date
	for _, p := range panels {
		for d := range p {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	slices.SortFunc(out, func(a, b date.Date) int { return a.Compare(b) })
	return out
}

// aligned lays out both sides of one date over ids; a group missing on a
// side has zero weight and return.
func aligned(port, bench map[string]cell, ids []string) (wp, rp, wb, rb []float64) {
	n := len(ids)
	wp, rp, wb, rb = make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, id := range ids {
		p, b := port[id], bench[id]
		wp[i], rp[i], wb[i], rb[i] = p.weight, p.ret, b.weight, b.ret
	}
	return wp, rp, wb, rb
}

// single computes one group's effects for one date. benchTotal is the
// benchmark's return that date.
func single(m model.AttributionModel, wp, rp, wb, rb, benchTotal float64) (Effects, error) {
	interaction := (wp - wb) * (rp - rb)
	switch m {
	case model.ModelBF:
		return Effects{
			Allocation:  (wp - wb) * (rb - benchTotal),
			Selection:   wb * (rp - rb),
			Interaction: interaction,
		}, nil
	case model.ModelBHB:
		return Effects{
			Allocation:  (wp - wb) * rb,
			Selection:   wp * (rp - rb),
			Interaction: interaction,
		}, nil
	}
	return Effects{}, model.Errorf(model.KindNotImplemented, "attribution model %q", m)
}

// link compounds a return series: prod(1 + r_t) - 1.
func link(rs []float64) float64 {
	g := 1.0
	for _, r := range rs {
		g *= 1 + r
	}
	return g - 1
}

// linkFactors returns the per-date multiplier applied to single-period
// effects before they are summed.
func linkFactors(m model.LinkingMethod, rp, rb []float64) ([]float64, error) {
	n := len(rp)
	f := make([]float64, n)
	switch m {
	case model.LinkingNone:
		for t := range f {
			f[t] = 1
		}
	case model.LinkingCarino:
		K, err := carino(link(rp), link(rb))
		if err != nil {
			return nil, err
		}
		for t := range f {
			k, err := carino(rp[t], rb[t])
			if err != nil {
				return nil, err
			}
			f[t] = k / K
		}
	case model.LinkingMenchero:
		R, Rb := link(rp), link(rb)
		T := float64(n)
		var M float64
		if math.Abs(R-Rb) < 1e-15 {
			M = math.Pow(1+R, (T-1)/T)
		} else {
			M = ((R - Rb) / T) / (math.Pow(1+R, 1/T) - math.Pow(1+Rb, 1/T))
		}
		active := make([]float64, n)
		floats.SubTo(active, rp, rb)
		sumA := floats.Sum(active)
		sumA2 := floats.Dot(active, active)
		for t := range f {
			f[t] = M
			if sumA2 != 0 {
				f[t] += (R - Rb - M*sumA) * active[t] / sumA2
			}
		}
	default:
		return nil, model.Errorf(model.KindNotImplemented, "linking %q", m)
	}
	return f, nil
}

// carino is the log-linking coefficient
// (ln(1+rp) - ln(1+rb)) / (rp - rb), or 1/(1+rp) when rp = rb.
func carino(rp, rb float64) (float64, error) {
	if 1+rp <= 0 || 1+rb <= 0 {
		return 0, model.Errorf(model.KindEngineCalculation, "carino linking undefined for returns at or below -100%% (%g, %g)", rp, rb)
	}
	if math.Abs(rp-rb) < 1e-15 {
		return 1 / (1 + rp), nil
	}
	return (math.Log1p(rp) - math.Log1p(rb)) / (rp - rb), nil
}

// rollup builds one level per group_by prefix from the leaf effects,
// outermost dimension first.
func rollup(leaves map[string]Effects, ids []string, k *keyer) []Level {
	var total Effects
	for _, id := range ids {
		total = total.add(leaves[id])
	}
	levels := make([]Level, len(k.dims))
	for n := 1; n <= len(k.dims); n++ {
		index := make(map[string]int)
		var groups []Group
		for _, id := range ids {
			prefix := strings.Join(strings.Split(id, "\x1f")[:n], "\x1f")
			i, ok := index[prefix]
			if !ok {
				key := make(map[string]string, n)
				for _, d := range k.dims[:n] {
					key[d] = k.keys[id][d]
				}
				i = len(groups)
				index[prefix] = i
				groups = append(groups, Group{Key: key})
			}
			groups[i].Effects = groups[i].Effects.add(leaves[id])
		}
		levels[n-1] = Level{Dimension: k.dims[n-1], Groups: groups, Totals: total}
	}
	return levels
}
