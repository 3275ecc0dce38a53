package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func growthPoints(start string, mvs ...float64) []model.ValuationPoint {
	day := date.MustParse(start)
	out := make([]model.ValuationPoint, len(mvs)-1)
	for i := range out {
		out[i] = model.ValuationPoint{Day: i + 1, PerfDate: day.AddDays(i), BeginMV: d(mvs[i]), EndMV: d(mvs[i+1])}
	}
	return out
}

func scenarioA() model.TWRRequest {
	return model.TWRRequest{
		PortfolioID: "P1",
		EngineConfig: model.EngineConfig{
			PerformanceStartDate: date.MustParse("2025-01-01"),
			ReportEndDate:        date.MustParse("2025-01-04"),
			MetricBasis:          model.BasisNet,
			PeriodType:           model.PeriodYTD,
		},
		ValuationPoints: growthPoints("2025-01-01", 1000, 1010, 1020.1, 1030.301, 1040.60401),
	}
}

func stamp(t *testing.T, e *Engine, req any, mode model.PrecisionMode) model.Meta {
	t.Helper()
	meta, err := e.Stamp(req, mode)
	if err != nil {
		t.Fatal(err)
	}
	return meta
}

func TestTWR_StandardGrowth(t *testing.T) {
	e := New("test", 2)
	req := scenarioA()
	req.Output.IncludeTimeseries = true
	req.Frequencies = []model.Frequency{model.FrequencyDaily}
	meta := stamp(t, e, req, req.Precision())

	resp, err := e.TWR(context.Background(), req, meta)
	if err != nil {
		t.Fatal(err)
	}
	if resp.CalculationID != meta.CalculationID || resp.Meta.CalculationHash != meta.CalculationHash {
		t.Error("response must carry the stamped meta")
	}
	if len(resp.ResultsByPeriod) != 1 || resp.ResultsByPeriod[0].Period.Name != "YTD" {
		t.Fatalf("unexpected periods %+v", resp.ResultsByPeriod)
	}
	if got := resp.ResultsByPeriod[0].Summary.PeriodReturnPct; !got.Equal(d(4.0604)) {
		t.Errorf("YTD return = %s, want 4.0604", got)
	}
	if n := len(resp.ResultsByPeriod[0].Breakdowns[model.FrequencyDaily]); n != 4 {
		t.Errorf("daily bins = %d", n)
	}
	if len(resp.Timeseries) != 4 || !resp.Timeseries[3].FinalCumROR.Equal(d(4.0604)) {
		t.Errorf("unexpected timeseries tail %+v", resp.Timeseries[len(resp.Timeseries)-1])
	}
	if resp.Diagnostics.NIPDays != 0 || resp.Diagnostics.ResetDays != 0 {
		t.Errorf("unexpected diagnostics %+v", resp.Diagnostics)
	}
}

func TestTWR_PrecisionModesAgree(t *testing.T) {
	e := New("test", 1)
	req := scenarioA()
	req.Annualization = model.Annualization{Enabled: true, Basis: model.BasisActAct}
	digits := 15
	req.RoundingPrecision = &digits

	f, err := e.TWR(context.Background(), req, model.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	req.PrecisionMode = model.PrecisionDecimalStrict
	s, err := e.TWR(context.Background(), req, model.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if !s.ResultsByPeriod[0].Summary.PeriodReturnPct.Equal(decimal.RequireFromString("4.060401")) {
		t.Errorf("strict return = %s, want exactly 4.060401", s.ResultsByPeriod[0].Summary.PeriodReturnPct)
	}
	ref := s.ResultsByPeriod[0].Summary.AnnualizedReturnPct.InexactFloat64()
	got := f.ResultsByPeriod[0].Summary.AnnualizedReturnPct.InexactFloat64()
	if math.Abs(got-ref)/math.Abs(ref) > 1e-10 {
		t.Errorf("float annualized %v differs from decimal %v", got, ref)
	}
}

func TestTWR_MissingDataPolicy(t *testing.T) {
	e := New("test", 1)
	start, end := date.MustParse("2024-06-01"), date.MustParse("2024-06-30")
	req := scenarioA()
	req.Periods = []model.PeriodSpec{
		{Type: model.PeriodYTD},
		{Type: model.PeriodExplicit, Name: "JUNE_2024", Start: &start, End: &end},
	}

	resp, err := e.TWR(context.Background(), req, model.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ResultsByPeriod) != 1 || len(resp.Diagnostics.Notes) != 1 ||
		!strings.Contains(resp.Diagnostics.Notes[0], "JUNE_2024") {
		t.Errorf("SKIP should drop the empty period with a note: %+v", resp.Diagnostics)
	}

	req.DataPolicy = &model.DataPolicy{MissingData: model.MissingFailFast}
	if _, err := e.TWR(context.Background(), req, model.Meta{}); !errors.Is(err, model.ErrInsufficientData) {
		t.Errorf("FAIL_FAST should give InsufficientData, got %v", err)
	}
}

func TestTWR_Errors(t *testing.T) {
	e := New("test", 1)

	req := scenarioA()
	req.MetricBasis = "TOTAL"
	if _, err := e.TWR(context.Background(), req, model.Meta{}); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("expected InvalidRequest, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.TWR(ctx, scenarioA(), model.Meta{}); !errors.Is(err, model.ErrCancelled) {
		t.Errorf("expected Cancelled, got %v", err)
	}
}

func TestTWR_MultiCurrency(t *testing.T) {
	e := New("test", 1)
	req := scenarioA()
	req.PortfolioCcy = "EUR"
	req.CurrencyMode = model.CurrencyBoth
	req.ReportCcy = "USD"
	req.FX = &model.FXSpec{Rates: []model.FXRate{
		{Date: date.MustParse("2024-12-31"), Ccy: "EUR", Rate: d(1.00)},
		{Date: date.MustParse("2025-01-01"), Ccy: "EUR", Rate: d(1.05)},
	}}

	resp, err := e.TWR(context.Background(), req, model.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	s := resp.ResultsByPeriod[0].Summary
	if s.LocalReturnPct == nil || !s.LocalReturnPct.Equal(d(4.0604)) {
		t.Errorf("local return = %v, want 4.0604", s.LocalReturnPct)
	}
	if s.FXReturnPct == nil || !s.FXReturnPct.Equal(d(5)) {
		t.Errorf("fx return = %v, want 5", s.FXReturnPct)
	}
	want := (1.05*1.04060401 - 1) * 100
	if math.Abs(s.PeriodReturnPct.InexactFloat64()-want) > 1e-4 {
		t.Errorf("base return = %s, want %v", s.PeriodReturnPct, want)
	}
}

func TestContribution_Reconciles(t *testing.T) {
	e := New("test", 4)
	cfg := scenarioA().EngineConfig
	cfg.ReportEndDate = date.MustParse("2025-01-02")
	cfg.PrecisionMode = model.PrecisionDecimalStrict
	req := model.ContributionRequest{
		PortfolioID:   "P1",
		EngineConfig:  cfg,
		PortfolioData: growthPoints("2025-01-01", 1000, 1016, 1030.2),
		PositionsData: []model.PositionData{
			{PositionID: "A", Meta: map[string]string{"sector": "Energy"}, ValuationPoints: growthPoints("2025-01-01", 600, 612, 618.12)},
			{PositionID: "B", Meta: map[string]string{"sector": "Tech"}, ValuationPoints: growthPoints("2025-01-01", 400, 404, 412.08)},
		},
		Hierarchy: []string{"sector"},
		Emit:      model.ContributionEmit{Timeseries: true},
	}

	resp, err := e.Contribution(context.Background(), req, model.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	total := resp.TotalPortfolioReturn.InexactFloat64()
	if math.Abs(total-0.0302) > 1e-12 {
		t.Errorf("total portfolio return = %v", total)
	}
	var sum float64
	for _, p := range resp.Positions {
		sum += p.TotalContribution.InexactFloat64()
	}
	if math.Abs(sum-total) > 1e-9 {
		t.Errorf("contributions %v do not reconcile to %v", sum, total)
	}
	if len(resp.Levels) != 1 || len(resp.Levels[0].Rows) != 2 || len(resp.Timeseries) != 4 {
		t.Errorf("unexpected levels/timeseries: %+v / %d", resp.Levels, len(resp.Timeseries))
	}
}

func TestAttribution_Reconciliation(t *testing.T) {
	e := New("test", 1)
	obs := func(w, r float64) []model.Observation {
		return []model.Observation{{Date: date.MustParse("2025-01-31"), Weight: d(w), Return: d(r)}}
	}
	sector := func(s string) map[string]string { return map[string]string{"sector": s} }
	req := model.AttributionRequest{
		PortfolioID: "P1",
		Mode:        model.ModeByGroup,
		GroupBy:     []string{"sector"},
		Model:       model.ModelBF,
		Linking:     model.LinkingCarino,
		PortfolioGroupsData: []model.GroupSeries{
			{Key: sector("Tech"), Observations: obs(0.5, 0.02)},
			{Key: sector("Energy"), Observations: obs(0.5, 0.01)},
		},
		BenchmarkGroupsData: []model.GroupSeries{
			{Key: sector("Tech"), Observations: obs(0.4, 0.015)},
			{Key: sector("Energy"), Observations: obs(0.6, 0.01)},
		},
	}
	resp, err := e.Attribution(context.Background(), req, model.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	rec := resp.Reconciliation
	if !rec.TotalActiveReturn.Equal(d(0.003)) || !rec.SumOfEffects.Equal(d(0.003)) || !rec.Residual.IsZero() {
		t.Errorf("unexpected reconciliation %+v", rec)
	}
	if resp.Model != model.ModelBF || len(resp.Levels) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestMWR_Percent(t *testing.T) {
	e := New("test", 1)
	req := model.MWRRequest{
		PortfolioID: "P1",
		BeginMV:     d(100000),
		EndMV:       d(115000),
		AsOf:        date.MustParse("2025-12-31"),
		CashFlows: []model.CashFlow{
			{Date: date.MustParse("2025-03-15"), Amount: d(10000)},
			{Date: date.MustParse("2025-09-20"), Amount: d(-5000)},
		},
	}
	resp, err := e.MWR(context.Background(), req, model.Meta{})
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.MoneyWeightedReturn.InexactFloat64(); math.Abs(got-11.723) > 0.005 {
		t.Errorf("money weighted return = %v%%, want ~11.723%%", got)
	}
	if resp.Method != model.MethodXIRR || resp.Convergence == nil {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestStamp(t *testing.T) {
	e := New("", 0)
	if e.Version() != DefaultVersion {
		t.Errorf("version = %q", e.Version())
	}
	a := stamp(t, e, scenarioA(), model.PrecisionFloat64)
	b := stamp(t, e, scenarioA(), model.PrecisionFloat64)
	if a.CalculationID == b.CalculationID {
		t.Error("each stamp needs a fresh calculation id")
	}
	if a.InputFingerprint != b.InputFingerprint || a.CalculationHash != b.CalculationHash {
		t.Error("identical requests must hash identically")
	}
}
