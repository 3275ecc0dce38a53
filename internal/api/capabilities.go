package api

import (
	"net/http"

	"github.com/atmx/perf-engine/internal/model"
)

// CapabilitiesDocument lists what this engine build supports.
type CapabilitiesDocument struct {
	EngineVersion string          `json:"engine_version"`
	Endpoints     []string        `json:"endpoints"`
	Features      map[string]bool `json:"features"`
	TWR           twrCaps         `json:"twr"`
	Contribution  contribCaps     `json:"contribution"`
	Attribution   attribCaps      `json:"attribution"`
	MWR           mwrCaps         `json:"mwr"`
}

type twrCaps struct {
	MetricBases    []model.MetricBasis        `json:"metric_bases"`
	PeriodTypes    []model.PeriodType         `json:"period_types"`
	Frequencies    []model.Frequency          `json:"frequencies"`
	Annualization  []model.AnnualizationBasis `json:"annualization_bases"`
	PrecisionModes []model.PrecisionMode      `json:"precision_modes"`
	CurrencyModes  []model.CurrencyMode       `json:"currency_modes"`
	HedgingModes   []model.HedgingMode        `json:"hedging_modes"`
	MissingData    []model.MissingDataPolicy  `json:"missing_data_policies"`
}

type contribCaps struct {
	Weighting []model.WeightingScheme `json:"weighting_schemes"`
	Smoothing []model.SmoothingMethod `json:"smoothing_methods"`
}

type attribCaps struct {
	Modes   []model.AttributionMode  `json:"modes"`
	Models  []model.AttributionModel `json:"models"`
	Linking []model.LinkingMethod    `json:"linking_methods"`
}

type mwrCaps struct {
	Methods []model.MWRMethod `json:"methods"`
}

// Capabilities builds the capability document for version.
func Capabilities(version string) CapabilitiesDocument {
	return CapabilitiesDocument{
		EngineVersion: version,
		Endpoints: []string{
			model.EndpointTWR, model.EndpointMWR, model.EndpointContribution, model.EndpointAttribution,
		},
		Features: map[string]bool{
			"multi_currency":       true,
			"currency_hedging":     true,
			"data_policy":          true,
			"daily_timeseries":     true,
			"lineage":              true,
			"idempotent_replay":    true,
			"karnosky_singer":      true,
			"mwr_dietz_fallback":   true,
			"position_attribution": true,
			"grap_linking":         false,
		},
		TWR: twrCaps{
			MetricBases:    model.MetricBases,
			PeriodTypes:    model.PeriodTypes,
			Frequencies:    model.Frequencies,
			Annualization:  model.Bases,
			PrecisionModes: model.PrecisionModes,
			CurrencyModes:  model.CurrencyModes,
			HedgingModes:   []model.HedgingMode{model.HedgingNone, model.HedgingRatio},
			MissingData:    []model.MissingDataPolicy{model.MissingSkip, model.MissingFailFast},
		},
		Contribution: contribCaps{
			Weighting: model.WeightingSchemes,
			Smoothing: model.SmoothingMethods,
		},
		Attribution: attribCaps{
			Modes:   []model.AttributionMode{model.ModeByGroup, model.ModeByInstrument},
			Models:  model.Models,
			Linking: model.LinkingMethods,
		},
		MWR: mwrCaps{Methods: model.MWRMethods},
	}
}

// Capabilities handles GET /performance/capabilities
func (s *Service) Capabilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Capabilities(s.engine.Version()))
}
