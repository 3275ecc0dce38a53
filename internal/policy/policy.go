// Package policy applies a request's data policy to valuation series before
// any calculation: value overrides, ignored days with carry-forward, and MAD
// outlier flagging. Flagging never mutates data.
package policy

import (
	"math"
	"slices"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const (
	// maxSamples caps the outlier rows reported in diagnostics.
	maxSamples = 20
	// madFloor is the dispersion below which a window is treated as flat
	// and nothing is flagged.
	madFloor = 1e-12
)

// Applier applies one policy across the entities of a request and
// accumulates the diagnostics counters.
type Applier struct {
	policy *model.DataPolicy
	diag   model.PolicyDiagnostics
}

// New returns an Applier; a nil policy makes Apply a no-op.
func New(p *model.DataPolicy) *Applier {
	return &Applier{policy: p}
}

// Diagnostics returns the counters, or nil when no policy was given.
func (a *Applier) Diagnostics() *model.PolicyDiagnostics {
	if a.policy == nil {
		return nil
	}
	d := a.diag
	return &d
}

// Apply returns a policy-adjusted copy of points, which must be sorted by
// date. An empty positionID denotes the portfolio.
func (a *Applier) Apply(positionID string, points []model.ValuationPoint) []model.ValuationPoint {
	out := slices.Clone(points)
	if a.policy == nil {
		return out
	}
	a.applyOverrides(positionID, out)
	ignored := a.applyIgnoreDays(positionID, out)
	if o := a.policy.Outliers; o != nil && o.Enabled {
		a.flagOutliers(positionID, out, ignored, o.EffectiveWindow(), o.EffectiveMADK())
	}
	return out
}

func (a *Applier) applyOverrides(positionID string, pts []model.ValuationPoint) {
	ov := a.policy.Overrides
	if ov == nil {
		return
	}
	index := make(map[date.Date]int, len(pts))
	for i, p := range pts {
		index[p.PerfDate] = i
	}
	for _, o := range ov.MarketValues {
		i, ok := index[o.PerfDate]
		if !ok || o.PositionID != positionID {
			continue
		}
		if o.BeginMV != nil {
			pts[i].BeginMV = *o.BeginMV
		}
		if o.EndMV != nil {
			pts[i].EndMV = *o.EndMV
		}
		a.diag.OverridesApplied++
	}
	for _, o := range ov.CashFlows {
		i, ok := index[o.PerfDate]
		if !ok || o.PositionID != positionID {
			continue
		}
		if o.BodCF != nil {
			pts[i].BodCF = *o.BodCF
		}
		if o.EodCF != nil {
			pts[i].EodCF = *o.EodCF
		}
		a.diag.OverridesApplied++
	}
}

// applyIgnoreDays replaces ignored rows with carry-forward values: both
// market values take the previous row's end_mv (the row's own begin_mv on
// the first row) and all flows and fees are zeroed.
func (a *Applier) applyIgnoreDays(positionID string, pts []model.ValuationPoint) map[date.Date]bool {
	ignored := make(map[date.Date]bool)
	for _, ig := range a.policy.IgnoreDays {
		matches := (ig.EntityType == model.EntityPortfolio && positionID == "") ||
			(ig.EntityType == model.EntityPosition && ig.EntityID == positionID && positionID != "")
		if !matches {
			continue
		}
		for _, d := range ig.Dates {
			ignored[d] = true
		}
	}
	for i := range pts {
		if !ignored[pts[i].PerfDate] {
			continue
		}
		carry := pts[i].BeginMV
		if i > 0 {
			carry = pts[i-1].EndMV
		}
		pts[i].BeginMV, pts[i].EndMV = carry, carry
		pts[i].BodCF, pts[i].EodCF, pts[i].MgmtFees = decimal.Zero, decimal.Zero, decimal.Zero
		a.diag.IgnoredDays++
	}
	return ignored
}

// simpleReturn is the unannualized daily return as a fraction; ok is false
// when the capital base is zero.
func simpleReturn(p model.ValuationPoint) (float64, bool) {
	den := p.BeginMV.Add(p.BodCF).Abs()
	if den.IsZero() {
		return 0, false
	}
	num := p.EndMV.Sub(p.BeginMV).Sub(p.BodCF).Sub(p.EodCF)
	return num.InexactFloat64() / den.InexactFloat64(), true
}

// flagOutliers compares each return with the median and MAD of the trailing
// window of valid returns ending at it. Ignored days and zero-capital days
// are excluded from the statistics, and flat windows flag nothing.
func (a *Applier) flagOutliers(positionID string, pts []model.ValuationPoint, ignored map[date.Date]bool, window int, k float64) {
	entity := positionID
	if entity == "" {
		entity = string(model.EntityPortfolio)
	}
	var history []float64
	for _, p := range pts {
		if ignored[p.PerfDate] {
			continue
		}
		r, ok := simpleReturn(p)
		if !ok {
			continue
		}
		history = append(history, r)
		if len(history) > window {
			history = history[1:]
		}
		med, mad := MedianMAD(history)
		if mad > madFloor && math.Abs(r-med) > k*mad {
			a.diag.OutliersFlagged++
			if len(a.diag.Samples) < maxSamples {
				a.diag.Samples = append(a.diag.Samples, model.OutlierSample{
					PerfDate: p.PerfDate,
					Entity:   entity,
					Return:   r,
					Median:   med,
					MAD:      mad,
				})
			}
		}
	}
}

// MedianMAD returns the median of xs and the median absolute deviation
// around it. Even-length windows average the two middle values.
func MedianMAD(xs []float64) (med, mad float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	med = median(sorted)

	dev := make([]float64, len(sorted))
	for i, x := range sorted {
		dev[i] = math.Abs(x - med)
	}
	slices.Sort(dev)
	return med, median(dev)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}
