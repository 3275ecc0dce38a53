package model

import (
	"github.com/atmx/perf-engine/internal/date"
	"github.com/shopspring/decimal"
)

// Defaults for the outlier check.
const (
	DefaultOutlierWindow = 63
	DefaultMADK          = 5.0
)

// DataPolicy is applied to valuation points before any calculation.
type DataPolicy struct {
	Overrides   *Overrides        `json:"overrides,omitempty"`
	IgnoreDays  []IgnoreDays      `json:"ignore_days,omitempty"`
	Outliers    *OutlierPolicy    `json:"outliers,omitempty"`
	MissingData MissingDataPolicy `json:"missing_data,omitempty"`
}

type Overrides struct {
	MarketValues []MarketValueOverride `json:"market_values,omitempty"`
	CashFlows    []CashFlowOverride    `json:"cash_flows,omitempty"`
}

// MarketValueOverride replaces begin_mv and/or end_mv. An empty PositionID
// targets the portfolio.
type MarketValueOverride struct {
	PerfDate   date.Date        `json:"perf_date"`
	PositionID string           `json:"position_id,omitempty"`
	BeginMV    *decimal.Decimal `json:"begin_mv,omitempty"`
	EndMV      *decimal.Decimal `json:"end_mv,omitempty"`
}

type CashFlowOverride struct {
	PerfDate   date.Date        `json:"perf_date"`
	PositionID string           `json:"position_id,omitempty"`
	BodCF      *decimal.Decimal `json:"bod_cf,omitempty"`
	EodCF      *decimal.Decimal `json:"eod_cf,omitempty"`
}

// IgnoreDays lists dates whose values are replaced by carry-forward.
type IgnoreDays struct {
	EntityType EntityType  `json:"entity_type"`
	EntityID   string      `json:"entity_id,omitempty"`
	Dates      []date.Date `json:"dates"`
}

type OutlierPolicy struct {
	Enabled bool     `json:"enabled"`
	Method  string   `json:"method,omitempty"` // only MAD
	Window  *int     `json:"window,omitempty"`
	MADK    *float64 `json:"mad_k,omitempty"`
	Action  string   `json:"action,omitempty"` // only FLAG
}

// EffectiveWindow returns the configured window or DefaultOutlierWindow.
func (o OutlierPolicy) EffectiveWindow() int {
	if o.Window == nil {
		return DefaultOutlierWindow
	}
	return *o.Window
}

func (o OutlierPolicy) EffectiveMADK() float64 {
	if o.MADK == nil {
		return DefaultMADK
	}
	return *o.MADK
}

// Missing returns the effective missing-data policy.
func (p *DataPolicy) Missing() MissingDataPolicy {
	if p == nil || p.MissingData == "" {
		return MissingSkip
	}
	return p.MissingData
}
