package model

import (
	"github.com/atmx/perf-engine/internal/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionData is one position's valuation series. Meta carries the
// hierarchy dimensions (sector, currency, ...).
type PositionData struct {
	PositionID      string            `json:"position_id"`
	Meta            map[string]string `json:"meta,omitempty"`
	ValuationPoints []ValuationPoint  `json:"valuation_points"`
}

type Smoothing struct {
	Method SmoothingMethod `json:"method"`
}

// ContributionEmit selects optional outputs. Hierarchy levels are emitted
// whenever a hierarchy is given.
type ContributionEmit struct {
	Timeseries bool `json:"timeseries"`
}

// ContributionRequest is the body of POST /performance/contribution.
type ContributionRequest struct {
	PortfolioID string `json:"portfolio_id"`
	EngineConfig
	PortfolioCcy    string           `json:"portfolio_ccy,omitempty"`
	PortfolioData   []ValuationPoint `json:"portfolio_data"`
	PositionsData   []PositionData   `json:"positions_data"`
	WeightingScheme WeightingScheme  `json:"weighting_scheme,omitempty"`
	Smoothing       Smoothing        `json:"smoothing"`
	Hierarchy       []string         `json:"hierarchy,omitempty"`
	Emit            ContributionEmit `json:"emit"`
}

// Weighting returns the effective weighting scheme (BOD when unset).
func (r ContributionRequest) Weighting() WeightingScheme {
	if r.WeightingScheme == "" {
		return WeightingBOD
	}
	return r.WeightingScheme
}

// SmoothingMethod returns the effective smoothing method (CARINO when unset).
func (r ContributionRequest) SmoothingMethod() SmoothingMethod {
	if r.Smoothing.Method == "" {
		return SmoothingCarino
	}
	return r.Smoothing.Method
}

// PositionContribution is one position's contribution over the period.
// Returns and contributions are fractions, not percent.
type PositionContribution struct {
	PositionID        string            `json:"position_id"`
	Meta              map[string]string `json:"meta,omitempty"`
	TotalContribution decimal.Decimal   `json:"total_contribution"`
	AverageWeight     decimal.Decimal   `json:"average_weight"`
	TotalReturn       decimal.Decimal   `json:"total_return"`
	LocalContribution *decimal.Decimal  `json:"local_contribution,omitempty"`
	FXContribution    *decimal.Decimal  `json:"fx_contribution,omitempty"`
}

// ContributionRow is one node of a hierarchy level.
type ContributionRow struct {
	Key               map[string]string `json:"key"`
	TotalContribution decimal.Decimal   `json:"total_contribution"`
	AverageWeight     decimal.Decimal   `json:"average_weight"`
	LocalContribution *decimal.Decimal  `json:"local_contribution,omitempty"`
	FXContribution    *decimal.Decimal  `json:"fx_contribution,omitempty"`
	Positions         int               `json:"positions"`
}

type ContributionLevel struct {
	Level     int               `json:"level"`
	Dimension string            `json:"dimension"`
	Rows      []ContributionRow `json:"rows"`
}

// ContributionDay is one position-day of the emitted timeseries.
type ContributionDay struct {
	PerfDate     date.Date       `json:"perf_date"`
	PositionID   string          `json:"position_id"`
	Weight       decimal.Decimal `json:"weight"`
	Contribution decimal.Decimal `json:"contribution"`
}

// ContributionResponse is returned by POST /performance/contribution.
type ContributionResponse struct {
	CalculationID        uuid.UUID              `json:"calculation_id"`
	PortfolioID          string                 `json:"portfolio_id"`
	ReportStartDate      date.Date              `json:"report_start_date"`
	ReportEndDate        date.Date              `json:"report_end_date"`
	TotalPortfolioReturn decimal.Decimal        `json:"total_portfolio_return"`
	SumOfContributions   decimal.Decimal        `json:"sum_of_contributions"`
	Residual             decimal.Decimal        `json:"residual"` // before allocation
	Positions            []PositionContribution `json:"positions"`
	Levels               []ContributionLevel    `json:"levels,omitempty"`
	Timeseries           []ContributionDay      `json:"timeseries,omitempty"`
	Diagnostics          Diagnostics            `json:"diagnostics"`
	Meta                 Meta                   `json:"meta"`
}
