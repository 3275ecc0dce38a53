// Package periods resolves relative reporting-period tags into concrete date
// windows and assigns each observation its effective period start (the date
// compounding is anchored at).
package periods

import (
	"fmt"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
)

// Resolve maps each spec to a [start, end] window ending at asOf. inception
// substitutes the ITD start; when nil, date.Min is used.
func Resolve(specs []model.PeriodSpec, asOf date.Date, inception *date.Date) ([]model.ResolvedPeriod, error) {
	out := make([]model.ResolvedPeriod, 0, len(specs))
	for _, s := range specs {
		p, err := ResolveOne(s, asOf, inception)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ResolveOne resolves a single spec.
func ResolveOne(s model.PeriodSpec, asOf date.Date, inception *date.Date) (model.ResolvedPeriod, error) {
	p := model.ResolvedPeriod{Name: s.Name, EndDate: asOf}
	if p.Name == "" {
		p.Name = string(s.Type)
	}

	switch s.Type {
	case model.PeriodMTD:
		p.StartDate = asOf.StartOfMonth()
	case model.PeriodQTD:
		p.StartDate = asOf.StartOfQuarter()
	case model.PeriodYTD:
		p.StartDate = asOf.StartOfYear()
	case model.PeriodWTD:
		p.StartDate = asOf.StartOfWeek()
	case model.PeriodY1:
		p.StartDate = asOf.AddYears(-1).AddDays(1)
	case model.PeriodY3:
		p.StartDate = asOf.AddYears(-3).AddDays(1)
	case model.PeriodY5:
		p.StartDate = asOf.AddYears(-5).AddDays(1)
	case model.PeriodITD:
		p.StartDate = date.Min
		if inception != nil {
			p.StartDate = *inception
		}
	case model.PeriodRolling:
		switch {
		case s.Months > 0 && s.Days > 0:
			return p, model.Errorf(model.KindInvalidRequest, "ROLLING accepts months or days, not both")
		case s.Months > 0:
			p.StartDate = asOf.AddMonths(-s.Months).AddDays(1)
			if s.Name == "" {
				p.Name = fmt.Sprintf("ROLLING_%dM", s.Months)
			}
		case s.Days > 0:
			p.StartDate = asOf.AddDays(-(s.Days - 1))
			if s.Name == "" {
				p.Name = fmt.Sprintf("ROLLING_%dD", s.Days)
			}
		default:
			return p, model.Errorf(model.KindInvalidRequest, "ROLLING requires a positive months or days")
		}
	case model.PeriodExplicit:
		if s.Start == nil || s.End == nil {
			return p, model.Errorf(model.KindInvalidRequest, "EXPLICIT requires start and end")
		}
		if s.Start.After(*s.End) {
			return p, model.Errorf(model.KindInvalidRequest, "EXPLICIT start %s is after end %s", *s.Start, *s.End)
		}
		p.StartDate, p.EndDate = *s.Start, *s.End
	default:
		return p, model.Errorf(model.KindNotImplemented, "period type %q", s.Type)
	}
	return p, nil
}

// EffectiveStart returns the compounding anchor of an observation dated d:
// the start of the period class containing d, never before perfStart. For
// EXPLICIT and the window tags (ITD, Y1/3/5, ROLLING) the anchor is fixed at
// max(perfStart, reportStart).
func EffectiveStart(d date.Date, pt model.PeriodType, perfStart date.Date, reportStart *date.Date) date.Date {
	var anchor date.Date
	switch pt {
	case model.PeriodYTD:
		anchor = d.StartOfYear()
	case model.PeriodQTD:
		anchor = d.StartOfQuarter()
	case model.PeriodMTD:
		anchor = d.StartOfMonth()
	case model.PeriodWTD:
		anchor = d.StartOfWeek()
	default:
		anchor = perfStart
		if reportStart != nil {
			anchor = *reportStart
		}
	}
	return date.MaxOf(anchor, perfStart)
}

// Assign computes EffectiveStart for every date.
func Assign(dates []date.Date, cfg model.EngineConfig) []date.Date {
	out := make([]date.Date, len(dates))
	for i, d := range dates {
		out[i] = EffectiveStart(d, cfg.PeriodType, cfg.PerformanceStartDate, cfg.ReportStartDate)
	}
	return out
}

// Default returns the single period implied by the configuration when the
// request names none: the period_type ending at report_end.
func Default(cfg model.EngineConfig) model.PeriodSpec {
	s := model.PeriodSpec{Type: cfg.PeriodType}
	if cfg.PeriodType == model.PeriodExplicit {
		start := cfg.ReportStart()
		end := cfg.ReportEndDate
		s.Start, s.End = &start, &end
	}
	if cfg.PeriodType == model.PeriodRolling {
		// a bare ROLLING config covers the report window
		s.Days = cfg.ReportEndDate.Sub(cfg.ReportStart()) + 1
	}
	return s
}
