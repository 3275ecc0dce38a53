package model

import (
	"github.com/atmx/perf-engine/internal/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Observation is one dated weight/return pair. Returns are fractions.
type Observation struct {
	Date   date.Date       `json:"date"`
	Weight decimal.Decimal `json:"weight"`
	Return decimal.Decimal `json:"return"`
}

// GroupSeries is the observation series of one group key.
type GroupSeries struct {
	Key          map[string]string `json:"key"`
	Observations []Observation     `json:"observations"`
}

// InstrumentSeries is a portfolio instrument bucketed by its Meta values.
type InstrumentSeries struct {
	InstrumentID string            `json:"instrument_id"`
	Meta         map[string]string `json:"meta"`
	Observations []Observation     `json:"observations"`
}

// CurrencyObservation is one date of the Karnosky-Singer panel.
type CurrencyObservation struct {
	Date                 date.Date       `json:"date"`
	PortfolioWeight      decimal.Decimal `json:"portfolio_weight"`
	BenchmarkWeight      decimal.Decimal `json:"benchmark_weight"`
	PortfolioLocalReturn decimal.Decimal `json:"portfolio_local_return"`
	BenchmarkLocalReturn decimal.Decimal `json:"benchmark_local_return"`
	PortfolioFXReturn    decimal.Decimal `json:"portfolio_fx_return"`
	BenchmarkFXReturn    decimal.Decimal `json:"benchmark_fx_return"`
}

type CurrencySeries struct {
	Currency     string                `json:"currency"`
	Observations []CurrencyObservation `json:"observations"`
}

// AttributionRequest is the body of POST /performance/attribution.
type AttributionRequest struct {
	PortfolioID         string             `json:"portfolio_id"`
	Mode                AttributionMode    `json:"mode"`
	GroupBy             []string           `json:"group_by"`
	Model               AttributionModel   `json:"model"`
	Linking             LinkingMethod      `json:"linking"`
	CurrencyMode        CurrencyMode       `json:"currency_mode,omitempty"`
	ReportCcy           string             `json:"report_ccy,omitempty"`
	PrecisionMode       PrecisionMode      `json:"precision_mode,omitempty"`
	RoundingPrecision   *int               `json:"rounding_precision,omitempty"`
	PortfolioGroupsData []GroupSeries      `json:"portfolio_groups_data,omitempty"`
	BenchmarkGroupsData []GroupSeries      `json:"benchmark_groups_data"`
	InstrumentsData     []InstrumentSeries `json:"instruments_data,omitempty"`
	CurrencyData        []CurrencySeries   `json:"currency_data,omitempty"`
}

func (r AttributionRequest) Rounding() int32 {
	if r.RoundingPrecision == nil {
		return DefaultRoundingPrecision
	}
	return int32(*r.RoundingPrecision)
}

func (r AttributionRequest) Precision() PrecisionMode {
	if r.PrecisionMode == "" {
		return PrecisionFloat64
	}
	return r.PrecisionMode
}

// AttributionGroupResult carries the linked effects of one group.
type AttributionGroupResult struct {
	Key         map[string]string `json:"key"`
	Allocation  decimal.Decimal   `json:"allocation"`
	Selection   decimal.Decimal   `json:"selection"`
	Interaction decimal.Decimal   `json:"interaction"`
	TotalEffect decimal.Decimal   `json:"total_effect"`
}

type AttributionLevel struct {
	Dimension string                   `json:"dimension"`
	Groups    []AttributionGroupResult `json:"groups"`
	Totals    AttributionGroupResult   `json:"totals"`
}

type Reconciliation struct {
	PortfolioReturn   decimal.Decimal `json:"portfolio_return"`
	BenchmarkReturn   decimal.Decimal `json:"benchmark_return"`
	TotalActiveReturn decimal.Decimal `json:"total_active_return"`
	SumOfEffects      decimal.Decimal `json:"sum_of_effects"`
	Residual          decimal.Decimal `json:"residual"`
}

type CurrencyAttributionEffects struct {
	LocalAllocation    decimal.Decimal `json:"local_allocation"`
	LocalSelection     decimal.Decimal `json:"local_selection"`
	CurrencyAllocation decimal.Decimal `json:"currency_allocation"`
	CurrencySelection  decimal.Decimal `json:"currency_selection"`
	TotalEffect        decimal.Decimal `json:"total_effect"`
}

type CurrencyGroupResult struct {
	Currency string                     `json:"currency"`
	Effects  CurrencyAttributionEffects `json:"effects"`
}

// CurrencyAttribution is the Karnosky-Singer decomposition.
type CurrencyAttribution struct {
	Groups           []CurrencyGroupResult      `json:"groups"`
	Totals           CurrencyAttributionEffects `json:"totals"`
	BaseActiveReturn decimal.Decimal            `json:"base_active_return"`
	ResidualBps      decimal.Decimal            `json:"residual_bps"`
}

// AttributionResponse is returned by POST /performance/attribution.
type AttributionResponse struct {
	CalculationID  uuid.UUID            `json:"calculation_id"`
	PortfolioID    string               `json:"portfolio_id"`
	Model          AttributionModel     `json:"model"`
	Linking        LinkingMethod        `json:"linking"`
	Levels         []AttributionLevel   `json:"levels"`
	Reconciliation Reconciliation       `json:"reconciliation"`
	Currency       *CurrencyAttribution `json:"currency_attribution,omitempty"`
	Meta           Meta                 `json:"meta"`
}
