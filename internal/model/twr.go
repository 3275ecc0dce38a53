// Package model defines the request and response records of the performance
// engine, the enumerations they use and the error kinds the engine reports.
// Monetary inputs use shopspring/decimal so no precision is lost before the
// caller's precision mode is applied.
package model

import (
	"time"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultRoundingPrecision is applied when rounding_precision is omitted.
const DefaultRoundingPrecision = 4

// ValuationPoint is one day of one entity (portfolio or position).
type ValuationPoint struct {
	Day      int             `json:"day"`
	PerfDate date.Date       `json:"perf_date"`
	BeginMV  decimal.Decimal `json:"begin_mv"`
	BodCF    decimal.Decimal `json:"bod_cf"`
	EodCF    decimal.Decimal `json:"eod_cf"`
	MgmtFees decimal.Decimal `json:"mgmt_fees"` // signed negative for deductions
	EndMV    decimal.Decimal `json:"end_mv"`
}

type FeatureFlags struct {
	UseNIPV2Rule bool `json:"use_nip_v2_rule"`
}

// Annualization controls annualized returns on breakdowns and MWR.
type Annualization struct {
	Enabled        bool               `json:"enabled"`
	Basis          AnnualizationBasis `json:"basis,omitempty"`
	PeriodsPerYear *decimal.Decimal   `json:"periods_per_year,omitempty"`
}

// FXRate is the price of one unit of Ccy in the report currency on Date.
type FXRate struct {
	Date date.Date       `json:"date"`
	Ccy  string          `json:"ccy"`
	Rate decimal.Decimal `json:"rate"`
}

type FXSpec struct {
	Rates []FXRate `json:"rates"`
}

type HedgeRatio struct {
	Date  date.Date       `json:"date"`
	Ccy   string          `json:"ccy"`
	Ratio decimal.Decimal `json:"hedge_ratio"`
}

// HedgingSpec scales FX returns by (1 - ratio) in RATIO mode.
type HedgingSpec struct {
	Mode   HedgingMode  `json:"mode"`
	Series []HedgeRatio `json:"series,omitempty"`
}

// EngineConfig is the immutable configuration shared by the TWR and
// contribution requests.
type EngineConfig struct {
	PerformanceStartDate date.Date     `json:"performance_start_date"`
	ReportStartDate      *date.Date    `json:"report_start_date,omitempty"`
	ReportEndDate        date.Date     `json:"report_end_date"`
	MetricBasis          MetricBasis   `json:"metric_basis"`
	PeriodType           PeriodType    `json:"period_type"`
	PrecisionMode        PrecisionMode `json:"precision_mode,omitempty"`
	RoundingPrecision    *int          `json:"rounding_precision,omitempty"`
	FeatureFlags         FeatureFlags  `json:"feature_flags"`
	DataPolicy           *DataPolicy   `json:"data_policy,omitempty"`
	CurrencyMode         CurrencyMode  `json:"currency_mode,omitempty"`
	ReportCcy            string        `json:"report_ccy,omitempty"`
	FX                   *FXSpec       `json:"fx,omitempty"`
	Hedging              *HedgingSpec  `json:"hedging,omitempty"`
	Annualization        Annualization `json:"annualization"`
}

// Rounding returns the effective rounding precision.
func (c EngineConfig) Rounding() int32 {
	if c.RoundingPrecision == nil {
		return DefaultRoundingPrecision
	}
	return int32(*c.RoundingPrecision)
}

// Precision returns the effective precision mode (FLOAT64 when unset).
func (c EngineConfig) Precision() PrecisionMode {
	if c.PrecisionMode == "" {
		return PrecisionFloat64
	}
	return c.PrecisionMode
}

// Currency returns the effective currency mode (BASE_ONLY when unset).
func (c EngineConfig) Currency() CurrencyMode {
	if c.CurrencyMode == "" {
		return CurrencyBaseOnly
	}
	return c.CurrencyMode
}

// ReportStart returns the report start, falling back to the performance start.
func (c EngineConfig) ReportStart() date.Date {
	if c.ReportStartDate != nil {
		return *c.ReportStartDate
	}
	return c.PerformanceStartDate
}

// PeriodSpec names one reporting window. Months and Days apply to ROLLING,
// Start and End to EXPLICIT.
type PeriodSpec struct {
	Type   PeriodType `json:"type"`
	Name   string     `json:"name,omitempty"`
	Start  *date.Date `json:"start,omitempty"`
	End    *date.Date `json:"end,omitempty"`
	Months int        `json:"months,omitempty"`
	Days   int        `json:"days,omitempty"`
}

type OutputOptions struct {
	IncludeTimeseries bool `json:"include_timeseries"`
}

// TWRRequest is the body of POST /performance/twr.
type TWRRequest struct {
	PortfolioID string `json:"portfolio_id"`
	EngineConfig
	PortfolioCcy    string           `json:"portfolio_ccy,omitempty"`
	Periods         []PeriodSpec     `json:"periods,omitempty"`
	Frequencies     []Frequency      `json:"frequencies,omitempty"`
	Output          OutputOptions    `json:"output"`
	ValuationPoints []ValuationPoint `json:"valuation_points"`
}

// ResolvedPeriod is a named [start, end] window.
type ResolvedPeriod struct {
	Name      string    `json:"name"`
	StartDate date.Date `json:"start_date"`
	EndDate   date.Date `json:"end_date"`
}

// PeriodSummary summarizes one breakdown bin or one whole period.
type PeriodSummary struct {
	BeginMV                   decimal.Decimal  `json:"begin_mv"`
	EndMV                     decimal.Decimal  `json:"end_mv"`
	NetCashFlow               decimal.Decimal  `json:"net_cash_flow"`
	PeriodReturnPct           decimal.Decimal  `json:"period_return_pct"`
	CumulativeReturnPctToDate *decimal.Decimal `json:"cumulative_return_pct_to_date,omitempty"`
	AnnualizedReturnPct       *decimal.Decimal `json:"annualized_return_pct,omitempty"`
	LocalReturnPct            *decimal.Decimal `json:"local_return_pct,omitempty"`
	FXReturnPct               *decimal.Decimal `json:"fx_return_pct,omitempty"`
}

// BreakdownItem is one bin of a frequency breakdown.
type BreakdownItem struct {
	Period    string        `json:"period"`
	StartDate date.Date     `json:"start_date"`
	EndDate   date.Date     `json:"end_date"`
	Summary   PeriodSummary `json:"summary"`
}

// PeriodResult holds the whole-period summary and its breakdowns.
type PeriodResult struct {
	Period     ResolvedPeriod                `json:"period"`
	Summary    PeriodSummary                 `json:"summary"`
	Breakdowns map[Frequency][]BreakdownItem `json:"breakdowns"`
}

// DailyResultRow is one row of the TWR state machine output.
type DailyResultRow struct {
	Day                      int              `json:"day"`
	PerfDate                 date.Date        `json:"perf_date"`
	BeginMV                  decimal.Decimal  `json:"begin_mv"`
	BodCF                    decimal.Decimal  `json:"bod_cf"`
	EodCF                    decimal.Decimal  `json:"eod_cf"`
	MgmtFees                 decimal.Decimal  `json:"mgmt_fees"`
	EndMV                    decimal.Decimal  `json:"end_mv"`
	Sign                     int              `json:"sign"`
	DailyROR                 decimal.Decimal  `json:"daily_ror"`
	LocalROR                 *decimal.Decimal `json:"local_ror,omitempty"`
	FXROR                    *decimal.Decimal `json:"fx_ror,omitempty"`
	NIP                      int              `json:"nip"`
	NCtrl1                   int              `json:"nctrl_1"`
	NCtrl2                   int              `json:"nctrl_2"`
	NCtrl3                   int              `json:"nctrl_3"`
	NCtrl4                   int              `json:"nctrl_4"`
	PerfReset                int              `json:"perf_reset"`
	TempLongCumROR           decimal.Decimal  `json:"temp_long_cum_ror"`
	TempShortCumROR          decimal.Decimal  `json:"temp_short_cum_ror"`
	LongCumROR               decimal.Decimal  `json:"long_cum_ror"`
	ShortCumROR              decimal.Decimal  `json:"short_cum_ror"`
	FinalCumROR              decimal.Decimal  `json:"final_cum_ror"`
	LongShort                string           `json:"long_short"`
	EffectivePeriodStartDate date.Date        `json:"effective_period_start_date"`
}

// OutlierSample is a row flagged by the MAD outlier check.
type OutlierSample struct {
	PerfDate date.Date `json:"perf_date"`
	Entity   string    `json:"entity"`
	Return   float64   `json:"return"`
	Median   float64   `json:"median"`
	MAD      float64   `json:"mad"`
}

type PolicyDiagnostics struct {
	OverridesApplied int             `json:"overrides_applied"`
	IgnoredDays      int             `json:"ignored_days"`
	OutliersFlagged  int             `json:"outliers_flagged"`
	Samples          []OutlierSample `json:"samples,omitempty"`
}

type Diagnostics struct {
	NIPDays              int                `json:"nip_days"`
	ResetDays            int                `json:"reset_days"`
	EffectivePeriodStart date.Date          `json:"effective_period_start"`
	Notes                []string           `json:"notes,omitempty"`
	Policy               *PolicyDiagnostics `json:"policy,omitempty"`
}

// Meta is attached to every response.
type Meta struct {
	CalculationID    uuid.UUID     `json:"calculation_id"`
	EngineVersion    string        `json:"engine_version"`
	PrecisionMode    PrecisionMode `json:"precision_mode"`
	InputFingerprint string        `json:"input_fingerprint"`
	CalculationHash  string        `json:"calculation_hash"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

// TWRResponse is the body returned by POST /performance/twr.
type TWRResponse struct {
	CalculationID   uuid.UUID        `json:"calculation_id"`
	PortfolioID     string           `json:"portfolio_id"`
	ReportStartDate date.Date        `json:"report_start_date"`
	ReportEndDate   date.Date        `json:"report_end_date"`
	ResultsByPeriod []PeriodResult   `json:"results_by_period"`
	Timeseries      []DailyResultRow `json:"timeseries,omitempty"`
	Diagnostics     Diagnostics      `json:"diagnostics"`
	Meta            Meta             `json:"meta"`
}
