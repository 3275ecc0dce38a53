package model

// MetricBasis selects whether management fees are added back to the return.
type MetricBasis string

const (
	BasisNet   MetricBasis = "NET"
	BasisGross MetricBasis = "GROSS"
)

// PeriodType is a relative reporting-period tag.
type PeriodType string

const (
	PeriodMTD      PeriodType = "MTD"
	PeriodQTD      PeriodType = "QTD"
	PeriodYTD      PeriodType = "YTD"
	PeriodWTD      PeriodType = "WTD"
	PeriodY1       PeriodType = "Y1"
	PeriodY3       PeriodType = "Y3"
	PeriodY5       PeriodType = "Y5"
	PeriodITD      PeriodType = "ITD"
	PeriodRolling  PeriodType = "ROLLING"
	PeriodExplicit PeriodType = "EXPLICIT"
)

// PrecisionMode selects the numeric backend.
type PrecisionMode string

const (
	PrecisionFloat64       PrecisionMode = "FLOAT64"
	PrecisionDecimalStrict PrecisionMode = "DECIMAL_STRICT"
)

// Frequency is a breakdown bin size.
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
)

// AnnualizationBasis is the day-count convention used for annualizing.
type AnnualizationBasis string

const (
	BasisBus252 AnnualizationBasis = "BUS/252"
	BasisAct365 AnnualizationBasis = "ACT/365"
	BasisActAct AnnualizationBasis = "ACT/ACT"
)

// CurrencyMode selects base-only or local+FX decomposition.
type CurrencyMode string

const (
	CurrencyBaseOnly CurrencyMode = "BASE_ONLY"
	CurrencyBoth     CurrencyMode = "BOTH"
)

type HedgingMode string

const (
	HedgingNone  HedgingMode = "NONE"
	HedgingRatio HedgingMode = "RATIO"
)

// WeightingScheme is the capital base of daily contribution weights.
type WeightingScheme string

const (
	WeightingBOD        WeightingScheme = "BOD"
	WeightingAvgCapital WeightingScheme = "AVG_CAPITAL"
)

type SmoothingMethod string

const (
	SmoothingCarino SmoothingMethod = "CARINO"
	SmoothingNone   SmoothingMethod = "NONE"
)

// AttributionModel is the single-period Brinson variant.
type AttributionModel string

const (
	ModelBF  AttributionModel = "BF"
	ModelBHB AttributionModel = "BHB"
)

type LinkingMethod string

const (
	LinkingNone     LinkingMethod = "NONE"
	LinkingCarino   LinkingMethod = "CARINO"
	LinkingMenchero LinkingMethod = "MENCHERO"
)

type AttributionMode string

const (
	ModeByGroup      AttributionMode = "BY_GROUP"
	ModeByInstrument AttributionMode = "BY_INSTRUMENT"
)

// MWRMethod selects the money-weighted return formula.
type MWRMethod string

const (
	MethodXIRR          MWRMethod = "XIRR"
	MethodModifiedDietz MWRMethod = "MODIFIED_DIETZ"
	MethodDietz         MWRMethod = "DIETZ"
)

type MissingDataPolicy string

const (
	MissingSkip     MissingDataPolicy = "SKIP"
	MissingFailFast MissingDataPolicy = "FAIL_FAST"
)

type EntityType string

const (
	EntityPortfolio EntityType = "PORTFOLIO"
	EntityPosition  EntityType = "POSITION"
)

// The sets below back validation and the capabilities document.
var (
	MetricBases      = []MetricBasis{BasisNet, BasisGross}
	PeriodTypes      = []PeriodType{PeriodMTD, PeriodQTD, PeriodYTD, PeriodWTD, PeriodY1, PeriodY3, PeriodY5, PeriodITD, PeriodRolling, PeriodExplicit}
	PrecisionModes   = []PrecisionMode{PrecisionFloat64, PrecisionDecimalStrict}
	Frequencies      = []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly}
	Bases            = []AnnualizationBasis{BasisBus252, BasisAct365, BasisActAct}
	CurrencyModes    = []CurrencyMode{CurrencyBaseOnly, CurrencyBoth}
	WeightingSchemes = []WeightingScheme{WeightingBOD, WeightingAvgCapital}
	SmoothingMethods = []SmoothingMethod{SmoothingCarino, SmoothingNone}
	Models           = []AttributionModel{ModelBF, ModelBHB}
	LinkingMethods   = []LinkingMethod{LinkingNone, LinkingCarino, LinkingMenchero}
	MWRMethods       = []MWRMethod{MethodXIRR, MethodModifiedDietz, MethodDietz}
)

func oneOf[T comparable](v T, set []T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
