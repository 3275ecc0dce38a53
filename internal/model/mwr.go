package model

import (
	"github.com/atmx/perf-engine/internal/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Solver defaults.
const (
	DefaultMaxIter   = 200
	DefaultTolerance = 1e-10
)

// CashFlow is an external flow into (+) or out of (-) the portfolio.
type CashFlow struct {
	Date   date.Date       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

type SolverOptions struct {
	MaxIter         *int     `json:"max_iter,omitempty"`
	Tolerance       *float64 `json:"tolerance,omitempty"`
	FallbackToDietz *bool    `json:"fallback_to_dietz,omitempty"`
}

func (s SolverOptions) EffectiveMaxIter() int {
	if s.MaxIter == nil {
		return DefaultMaxIter
	}
	return *s.MaxIter
}

func (s SolverOptions) EffectiveTolerance() float64 {
	if s.Tolerance == nil {
		return DefaultTolerance
	}
	return *s.Tolerance
}

func (s SolverOptions) Fallback() bool {
	return s.FallbackToDietz == nil || *s.FallbackToDietz
}

// MWRRequest is the body of POST /performance/mwr.
type MWRRequest struct {
	PortfolioID       string          `json:"portfolio_id"`
	BeginMV           decimal.Decimal `json:"begin_mv"`
	EndMV             decimal.Decimal `json:"end_mv"`
	StartDate         *date.Date      `json:"start_date,omitempty"`
	AsOf              date.Date       `json:"as_of"`
	CashFlows         []CashFlow      `json:"cash_flows"`
	Method            MWRMethod       `json:"mwr_method,omitempty"`
	Solver            SolverOptions   `json:"solver"`
	Annualization     Annualization   `json:"annualization"`
	PrecisionMode     PrecisionMode   `json:"precision_mode,omitempty"`
	RoundingPrecision *int            `json:"rounding_precision,omitempty"`
}

// EffectiveMethod returns the requested method, XIRR when unset.
func (r MWRRequest) EffectiveMethod() MWRMethod {
	if r.Method == "" {
		return MethodXIRR
	}
	return r.Method
}

func (r MWRRequest) Rounding() int32 {
	if r.RoundingPrecision == nil {
		return DefaultRoundingPrecision
	}
	return int32(*r.RoundingPrecision)
}

func (r MWRRequest) Precision() PrecisionMode {
	if r.PrecisionMode == "" {
		return PrecisionFloat64
	}
	return r.PrecisionMode
}

// Convergence reports solver progress for XIRR.
type Convergence struct {
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
	Converged  bool    `json:"converged"`
}

// MWRResponse is returned by POST /performance/mwr. Returns are percent.
type MWRResponse struct {
	CalculationID       uuid.UUID        `json:"calculation_id"`
	PortfolioID         string           `json:"portfolio_id"`
	MoneyWeightedReturn decimal.Decimal  `json:"money_weighted_return"`
	MWRAnnualized       *decimal.Decimal `json:"mwr_annualized,omitempty"`
	Method              MWRMethod        `json:"method"`
	StartDate           date.Date        `json:"start_date"`
	EndDate             date.Date        `json:"end_date"`
	Convergence         *Convergence     `json:"convergence,omitempty"`
	Notes               []string         `json:"notes,omitempty"`
	Meta                Meta             `json:"meta"`
}
