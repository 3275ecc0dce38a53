package model

import (
	"regexp"

	"github.com/atmx/perf-engine/internal/date"
)

// ccyRegex matches ISO-4217 alphabetic codes: USD, EUR, JPY.
var ccyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// MaxRoundingPrecision bounds rounding_precision.
const MaxRoundingPrecision = 15

func invalid(format string, args ...any) error {
	return Errorf(KindInvalidRequest, format, args...)
}

// ValidCurrency reports whether code is a three-letter uppercase code.
func ValidCurrency(code string) bool { return ccyRegex.MatchString(code) }

// Validate checks the configuration shared by TWR and contribution requests.
func (c EngineConfig) Validate() error {
	if c.PerformanceStartDate.IsZero() {
		return invalid("performance_start_date is required")
	}
	if c.ReportEndDate.IsZero() {
		return invalid("report_end_date is required")
	}
	if c.PerformanceStartDate.After(c.ReportEndDate) {
		return invalid("performance_start_date %s is after report_end_date %s", c.PerformanceStartDate, c.ReportEndDate)
	}
	if c.ReportStartDate != nil && c.ReportStartDate.After(c.ReportEndDate) {
		return invalid("report_start_date %s is after report_end_date %s", *c.ReportStartDate, c.ReportEndDate)
	}
	if !oneOf(c.MetricBasis, MetricBases) {
		return invalid("unknown metric_basis %q", c.MetricBasis)
	}
	if !oneOf(c.PeriodType, PeriodTypes) {
		return invalid("unknown period_type %q", c.PeriodType)
	}
	if c.PeriodType == PeriodExplicit && c.ReportStartDate == nil {
		return invalid("period_type EXPLICIT requires report_start_date")
	}
	if !oneOf(c.Precision(), PrecisionModes) {
		return invalid("unknown precision_mode %q", c.PrecisionMode)
	}
	if r := c.Rounding(); r < 0 || r > MaxRoundingPrecision {
		return invalid("rounding_precision %d outside [0, %d]", r, MaxRoundingPrecision)
	}
	if err := c.Annualization.Validate(); err != nil {
		return err
	}
	if err := c.validateCurrency(); err != nil {
		return err
	}
	return c.DataPolicy.Validate()
}

func (c EngineConfig) validateCurrency() error {
	if !oneOf(c.Currency(), CurrencyModes) {
		return invalid("unknown currency_mode %q", c.CurrencyMode)
	}
	if c.ReportCcy != "" && !ValidCurrency(c.ReportCcy) {
		return invalid("report_ccy %q is not an ISO-4217 code", c.ReportCcy)
	}
	if c.Currency() == CurrencyBoth {
		if c.ReportCcy == "" {
			return invalid("currency_mode BOTH requires report_ccy")
		}
		if c.FX == nil || len(c.FX.Rates) == 0 {
			return invalid("currency_mode BOTH requires fx.rates")
		}
	}
	if c.FX != nil {
		for _, r := range c.FX.Rates {
			if !ValidCurrency(r.Ccy) {
				return invalid("fx rate currency %q is not an ISO-4217 code", r.Ccy)
			}
			if r.Date.IsZero() {
				return Errorf(KindInvalidEngineInput, "fx rate for %s has no date", r.Ccy)
			}
			if r.Rate.Sign() <= 0 {
				return invalid("fx rate for %s on %s must be positive", r.Ccy, r.Date)
			}
		}
	}
	if c.Hedging != nil {
		switch c.Hedging.Mode {
		case HedgingNone, HedgingRatio:
		default:
			return invalid("unknown hedging mode %q", c.Hedging.Mode)
		}
		for _, h := range c.Hedging.Series {
			if !ValidCurrency(h.Ccy) {
				return invalid("hedge currency %q is not an ISO-4217 code", h.Ccy)
			}
		}
	}
	return nil
}

// Validate checks the annualization options.
func (a Annualization) Validate() error {
	if a.Basis != "" && !oneOf(a.Basis, Bases) {
		return invalid("unknown annualization basis %q", a.Basis)
	}
	if a.PeriodsPerYear != nil && a.PeriodsPerYear.Sign() <= 0 {
		return invalid("periods_per_year must be positive")
	}
	return nil
}

// EffectiveBasis returns the basis, ACT/365 when unset.
func (a Annualization) EffectiveBasis() AnnualizationBasis {
	if a.Basis == "" {
		return BasisAct365
	}
	return a.Basis
}

// Validate checks a data policy; a nil policy is valid.
func (p *DataPolicy) Validate() error {
	if p == nil {
		return nil
	}
	switch p.Missing() {
	case MissingSkip, MissingFailFast:
	default:
		return invalid("unknown missing_data policy %q", p.MissingData)
	}
	for _, ig := range p.IgnoreDays {
		switch ig.EntityType {
		case EntityPortfolio:
		case EntityPosition:
			if ig.EntityID == "" {
				return invalid("ignore_days for POSITION requires entity_id")
			}
		default:
			return invalid("unknown entity_type %q", ig.EntityType)
		}
	}
	if o := p.Outliers; o != nil {
		if o.Method != "" && o.Method != "MAD" {
			return Errorf(KindNotImplemented, "outlier method %q", o.Method)
		}
		if o.Action != "" && o.Action != "FLAG" {
			return Errorf(KindNotImplemented, "outlier action %q", o.Action)
		}
		if o.EffectiveWindow() < 1 {
			return invalid("outliers.window must be >= 1")
		}
		if o.EffectiveMADK() <= 0 {
			return invalid("outliers.mad_k must be > 0")
		}
	}
	return nil
}

// validatePoints checks one entity's series: non-empty, dated, unique dates.
func validatePoints(entity string, points []ValuationPoint) error {
	if len(points) == 0 {
		return invalid("%s: valuation_points must not be empty", entity)
	}
	seen := make(map[date.Date]bool, len(points))
	for i, p := range points {
		if p.PerfDate.IsZero() {
			return Errorf(KindInvalidEngineInput, "%s: row %d has no perf_date", entity, i+1)
		}
		if seen[p.PerfDate] {
			return Errorf(KindInvalidEngineInput, "%s: duplicate perf_date %s", entity, p.PerfDate)
		}
		seen[p.PerfDate] = true
	}
	return nil
}

// Validate checks a TWR request.
func (r TWRRequest) Validate() error {
	if r.PortfolioID == "" {
		return invalid("portfolio_id is required")
	}
	if err := r.EngineConfig.Validate(); err != nil {
		return err
	}
	if r.PortfolioCcy != "" && !ValidCurrency(r.PortfolioCcy) {
		return invalid("portfolio_ccy %q is not an ISO-4217 code", r.PortfolioCcy)
	}
	if r.Currency() == CurrencyBoth && r.PortfolioCcy == "" {
		return invalid("currency_mode BOTH requires portfolio_ccy")
	}
	for _, f := range r.Frequencies {
		if !oneOf(f, Frequencies) {
			return invalid("unknown frequency %q", f)
		}
	}
	for _, p := range r.Periods {
		if p.Type == "" {
			return invalid("period type is required")
		}
		if !oneOf(p.Type, PeriodTypes) {
			return invalid("unknown period type %q", p.Type)
		}
	}
	return validatePoints("portfolio", r.ValuationPoints)
}

// Validate checks a contribution request.
func (r ContributionRequest) Validate() error {
	if r.PortfolioID == "" {
		return invalid("portfolio_id is required")
	}
	if err := r.EngineConfig.Validate(); err != nil {
		return err
	}
	if r.PortfolioCcy != "" && !ValidCurrency(r.PortfolioCcy) {
		return invalid("portfolio_ccy %q is not an ISO-4217 code", r.PortfolioCcy)
	}
	if r.Currency() == CurrencyBoth && r.PortfolioCcy == "" {
		return invalid("currency_mode BOTH requires portfolio_ccy")
	}
	if !oneOf(r.Weighting(), WeightingSchemes) {
		return invalid("unknown weighting_scheme %q", r.WeightingScheme)
	}
	if !oneOf(r.SmoothingMethod(), SmoothingMethods) {
		return invalid("unknown smoothing method %q", r.Smoothing.Method)
	}
	if err := validatePoints("portfolio", r.PortfolioData); err != nil {
		return err
	}
	if len(r.PositionsData) == 0 {
		return invalid("positions_data must not be empty")
	}
	ids := make(map[string]bool, len(r.PositionsData))
	for _, p := range r.PositionsData {
		if p.PositionID == "" {
			return invalid("position_id is required")
		}
		if ids[p.PositionID] {
			return invalid("duplicate position_id %q", p.PositionID)
		}
		ids[p.PositionID] = true
		if err := validatePoints(p.PositionID, p.ValuationPoints); err != nil {
			return err
		}
		if r.Currency() == CurrencyBoth && !ValidCurrency(p.Meta["currency"]) {
			return invalid("position %s: currency_mode BOTH requires meta.currency", p.PositionID)
		}
	}
	return validateHierarchy(r.Hierarchy, r.PositionsData)
}

func validateHierarchy(dims []string, positions []PositionData) error {
	if dims == nil {
		return nil
	}
	if len(dims) == 0 {
		return invalid("hierarchy must not be empty when given")
	}
	seen := make(map[string]bool, len(dims))
	for _, d := range dims {
		if d == "" || seen[d] {
			return invalid("hierarchy dimensions must be distinct and non-empty")
		}
		seen[d] = true
		for _, p := range positions {
			if _, ok := p.Meta[d]; !ok {
				return invalid("position %s has no meta.%s", p.PositionID, d)
			}
		}
	}
	return nil
}

// Validate checks an attribution request.
func (r AttributionRequest) Validate() error {
	if r.PortfolioID == "" {
		return invalid("portfolio_id is required")
	}
	switch r.Mode {
	case ModeByGroup:
		if len(r.PortfolioGroupsData) == 0 {
			return invalid("portfolio_groups_data must not be empty in BY_GROUP mode")
		}
	case ModeByInstrument:
		if len(r.InstrumentsData) == 0 {
			return invalid("instruments_data must not be empty in BY_INSTRUMENT mode")
		}
	default:
		return invalid("unknown mode %q", r.Mode)
	}
	if !oneOf(r.Model, Models) {
		return invalid("unknown model %q", r.Model)
	}
	if !oneOf(r.Linking, LinkingMethods) {
		return invalid("unknown linking %q", r.Linking)
	}
	if !oneOf(r.Precision(), PrecisionModes) {
		return invalid("unknown precision_mode %q", r.PrecisionMode)
	}
	if p := r.Rounding(); p < 0 || p > MaxRoundingPrecision {
		return invalid("rounding_precision %d outside [0, %d]", p, MaxRoundingPrecision)
	}
	if len(r.GroupBy) == 0 {
		return invalid("group_by must not be empty")
	}
	if len(r.BenchmarkGroupsData) == 0 {
		return invalid("benchmark_groups_data must not be empty")
	}
	for _, g := range append(append([]GroupSeries{}, r.PortfolioGroupsData...), r.BenchmarkGroupsData...) {
		for _, dim := range r.GroupBy {
			if _, ok := g.Key[dim]; !ok {
				return invalid("group key %v has no dimension %q", g.Key, dim)
			}
		}
	}
	for _, in := range r.InstrumentsData {
		for _, dim := range r.GroupBy {
			if _, ok := in.Meta[dim]; !ok {
				return invalid("instrument %s has no meta.%s", in.InstrumentID, dim)
			}
		}
	}
	switch r.CurrencyMode {
	case "", CurrencyBaseOnly:
	case CurrencyBoth:
		if len(r.CurrencyData) == 0 {
			return invalid("currency_mode BOTH requires currency_data")
		}
		for _, c := range r.CurrencyData {
			if !ValidCurrency(c.Currency) {
				return invalid("currency %q is not an ISO-4217 code", c.Currency)
			}
		}
	default:
		return invalid("unknown currency_mode %q", r.CurrencyMode)
	}
	if r.ReportCcy != "" && !ValidCurrency(r.ReportCcy) {
		return invalid("report_ccy %q is not an ISO-4217 code", r.ReportCcy)
	}
	return nil
}

// Validate checks an MWR request.
func (r MWRRequest) Validate() error {
	if r.PortfolioID == "" {
		return invalid("portfolio_id is required")
	}
	if r.AsOf.IsZero() {
		return invalid("as_of is required")
	}
	if r.StartDate != nil && r.StartDate.After(r.AsOf) {
		return invalid("start_date %s is after as_of %s", *r.StartDate, r.AsOf)
	}
	if !oneOf(r.EffectiveMethod(), MWRMethods) {
		return invalid("unknown mwr_method %q", r.Method)
	}
	if r.Solver.EffectiveMaxIter() < 1 {
		return invalid("solver.max_iter must be >= 1")
	}
	if r.Solver.EffectiveTolerance() <= 0 {
		return invalid("solver.tolerance must be > 0")
	}
	if !oneOf(r.Precision(), PrecisionModes) {
		return invalid("unknown precision_mode %q", r.PrecisionMode)
	}
	if p := r.Rounding(); p < 0 || p > MaxRoundingPrecision {
		return invalid("rounding_precision %d outside [0, %d]", p, MaxRoundingPrecision)
	}
	for _, cf := range r.CashFlows {
		if cf.Date.IsZero() {
			return Errorf(KindInvalidEngineInput, "cash flow has no date")
		}
		if cf.Date.After(r.AsOf) {
			return invalid("cash flow on %s is after as_of %s", cf.Date, r.AsOf)
		}
		if r.StartDate != nil && cf.Date.Before(*r.StartDate) {
			return invalid("cash flow on %s is before start_date %s", cf.Date, *r.StartDate)
		}
	}
	return r.Annualization.Validate()
}
