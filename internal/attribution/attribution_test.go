package attribution

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/shopspring/decimal"
)

const tol = 1e-12

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// obs builds one observation per date, pairing weights and returns.
func obs(dates []string, weights, returns []float64) []model.Observation {
	out := make([]model.Observation, len(dates))
	for i, s := range dates {
		out[i] = model.Observation{Date: date.MustParse(s), Weight: d(weights[i]), Return: d(returns[i])}
	}
	return out
}

func group(sector string, dates []string, w, r []float64) model.GroupSeries {
	return model.GroupSeries{Key: map[string]string{"sector": sector}, Observations: obs(dates, w, r)}
}

var day1 = []string{"2025-01-31"}

func sectorRequest() model.AttributionRequest {
	return model.AttributionRequest{
		PortfolioID: "P1",
		Mode:        model.ModeByGroup,
		GroupBy:     []string{"sector"},
		Model:       model.ModelBF,
		Linking:     model.LinkingNone,
		PortfolioGroupsData: []model.GroupSeries{
			group("Tech", day1, []float64{0.5}, []float64{0.02}),
			group("Energy", day1, []float64{0.5}, []float64{0.01}),
		},
		BenchmarkGroupsData: []model.GroupSeries{
			group("Tech", day1, []float64{0.4}, []float64{0.015}),
			group("Energy", day1, []float64{0.6}, []float64{0.01}),
		},
	}
}

func TestBrinsonFachler_SinglePeriod(t *testing.T) {
	res, err := Calculate(context.Background(), sectorRequest())
	if err != nil {
		t.Fatal(err)
	}
	// R_p = 0.015, R_b = 0.012
	if math.Abs(res.ActiveReturn-0.003) > tol {
		t.Errorf("active return = %v, want 0.003", res.ActiveReturn)
	}
	if math.Abs(res.SumOfEffects-0.003) > tol {
		t.Errorf("allocation + selection + interaction = %v, want 0.003", res.SumOfEffects)
	}

	groups := res.Levels[0].Groups
	if len(groups) != 2 || groups[0].Key["sector"] != "Energy" {
		t.Fatalf("unexpected groups %+v", groups)
	}
	tech := groups[1].Effects
	want := Effects{Allocation: 0.1 * 0.003, Selection: 0.4 * 0.005, Interaction: 0.1 * 0.005}
	if math.Abs(tech.Allocation-want.Allocation) > tol || math.Abs(tech.Selection-want.Selection) > tol ||
		math.Abs(tech.Interaction-want.Interaction) > tol {
		t.Errorf("Tech effects = %+v, want %+v", tech, want)
	}
	if math.Abs(res.ActiveReturn-res.SumOfEffects-res.Residual) > tol {
		t.Error("active return must equal effects plus residual")
	}
}

func TestBrinsonHoodBeebower(t *testing.T) {
	req := sectorRequest()
	req.Model = model.ModelBHB
	res, err := Calculate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	totals := res.Levels[0].Totals
	if math.Abs(totals.Allocation-0.0005) > tol || math.Abs(totals.Selection-0.0025) > tol {
		t.Errorf("BHB totals = %+v", totals)
	}
	// selection weighted by the portfolio already includes the interaction
	if math.Abs(res.Residual+totals.Interaction) > tol {
		t.Errorf("residual = %v, want -interaction %v", res.Residual, -totals.Interaction)
	}
}

func multiPeriod(linking model.LinkingMethod) model.AttributionRequest {
	dates := []string{"2025-01-31", "2025-02-28", "2025-03-31"}
	return model.AttributionRequest{
		PortfolioID: "P1",
		Mode:        model.ModeByGroup,
		GroupBy:     []string{"sector"},
		Model:       model.ModelBF,
		Linking:     linking,
		PortfolioGroupsData: []model.GroupSeries{
			group("Tech", dates, []float64{0.6, 0.55, 0.5}, []float64{0.04, -0.02, 0.03}),
			group("Energy", dates, []float64{0.4, 0.45, 0.5}, []float64{0.01, 0.015, -0.01}),
		},
		BenchmarkGroupsData: []model.GroupSeries{
			group("Tech", dates, []float64{0.5, 0.5, 0.5}, []float64{0.035, -0.01, 0.02}),
			group("Energy", dates, []float64{0.5, 0.5, 0.5}, []float64{0.012, 0.01, -0.005}),
		},
	}
}

func TestLinking_Reconciles(t *testing.T) {
	for _, m := range []model.LinkingMethod{model.LinkingCarino, model.LinkingMenchero} {
		res, err := Calculate(context.Background(), multiPeriod(m))
		if err != nil {
			t.Fatalf("%s: %v", m, err)
		}
		if math.Abs(res.Residual) > tol {
			t.Errorf("%s: linked effects %v leave residual %v against active %v", m, res.SumOfEffects, res.Residual, res.ActiveReturn)
		}
	}

	res, err := Calculate(context.Background(), multiPeriod(model.LinkingNone))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Residual) < 1e-8 {
		t.Error("arithmetic linking over several periods should leave a residual")
	}
	if math.Abs(res.ActiveReturn-res.SumOfEffects-res.Residual) > tol {
		t.Error("active return must equal effects plus residual")
	}
}

func TestByInstrument_Buckets(t *testing.T) {
	req := sectorRequest()
	req.Mode = model.ModeByInstrument
	req.PortfolioGroupsData = nil
	req.InstrumentsData = []model.InstrumentSeries{
		{InstrumentID: "AAPL", Meta: map[string]string{"sector": "Tech"}, Observations: obs(day1, []float64{0.3}, []float64{0.03})},
		{InstrumentID: "MSFT", Meta: map[string]string{"sector": "Tech"}, Observations: obs(day1, []float64{0.2}, []float64{0.005})},
		{InstrumentID: "XOM", Meta: map[string]string{"sector": "Energy"}, Observations: obs(day1, []float64{0.5}, []float64{0.01})},
	}
	res, err := Calculate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	byGroup, _ := Calculate(context.Background(), sectorRequest())
	if math.Abs(res.PortfolioReturn-byGroup.PortfolioReturn) > tol || math.Abs(res.SumOfEffects-byGroup.SumOfEffects) > tol {
		t.Errorf("bucketed instruments should match the group panel: %+v vs %+v", res, byGroup)
	}
}

func TestHierarchyAndMissingGroups(t *testing.T) {
	key := func(sector, region string) map[string]string {
		return map[string]string{"sector": sector, "region": region}
	}
	req := model.AttributionRequest{
		PortfolioID: "P1",
		Mode:        model.ModeByGroup,
		GroupBy:     []string{"sector", "region"},
		Model:       model.ModelBF,
		Linking:     model.LinkingCarino,
		PortfolioGroupsData: []model.GroupSeries{
			{Key: key("Tech", "US"), Observations: obs(day1, []float64{0.4}, []float64{0.03})},
			{Key: key("Tech", "EU"), Observations: obs(day1, []float64{0.2}, []float64{0.01})},
			{Key: key("Energy", "US"), Observations: obs(day1, []float64{0.4}, []float64{-0.01})},
		},
		BenchmarkGroupsData: []model.GroupSeries{
			{Key: key("Tech", "US"), Observations: obs(day1, []float64{0.3}, []float64{0.02})},
			{Key: key("Energy", "US"), Observations: obs(day1, []float64{0.5}, []float64{-0.005})},
			{Key: key("Cash", "US"), Observations: obs(day1, []float64{0.2}, []float64{0.001})},
		},
	}
	res, err := Calculate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Levels) != 2 || res.Levels[0].Dimension != "sector" || res.Levels[1].Dimension != "region" {
		t.Fatalf("unexpected levels %+v", res.Levels)
	}
	if len(res.Levels[0].Groups) != 3 || len(res.Levels[1].Groups) != 4 {
		t.Errorf("want 3 sectors and 4 leaves, got %d and %d", len(res.Levels[0].Groups), len(res.Levels[1].Groups))
	}
	var parent, leaves float64
	for _, g := range res.Levels[0].Groups {
		parent += g.Total()
	}
	for _, g := range res.Levels[1].Groups {
		leaves += g.Total()
	}
	if math.Abs(parent-leaves) > tol || math.Abs(parent-res.Levels[0].Totals.Total()) > tol {
		t.Errorf("parent %v, leaves %v, totals %v", parent, leaves, res.Levels[0].Totals.Total())
	}
	if math.Abs(res.Residual) > tol {
		t.Errorf("single period BF should reconcile, residual %v", res.Residual)
	}
}

func TestKarnoskySinger(t *testing.T) {
	ccyObs := func(wp, wb, rpl, rbl, fxp, fxb float64) []model.CurrencyObservation {
		return []model.CurrencyObservation{{
			Date:            date.MustParse("2025-01-31"),
			PortfolioWeight: d(wp), BenchmarkWeight: d(wb),
			PortfolioLocalReturn: d(rpl), BenchmarkLocalReturn: d(rbl),
			PortfolioFXReturn: d(fxp), BenchmarkFXReturn: d(fxb),
		}}
	}
	req := sectorRequest()
	req.CurrencyMode = model.CurrencyBoth
	req.CurrencyData = []model.CurrencySeries{
		{Currency: "USD", Observations: ccyObs(0.6, 0.5, 0.02, 0.015, 0, 0)},
		{Currency: "EUR", Observations: ccyObs(0.4, 0.5, 0.01, 0.012, 0.02, 0.02)},
	}
	res, err := Calculate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	c := res.Currency
	if c == nil || len(c.Groups) != 2 || c.Groups[0].Currency != "EUR" {
		t.Fatalf("unexpected currency result %+v", c)
	}
	// effects sum to the arithmetic local plus FX active return
	local := (0.6*0.02 + 0.4*0.01) - (0.5*0.015 + 0.5*0.012)
	fx := 0.4*0.02 - 0.5*0.02
	if math.Abs(c.Totals.Total()-(local+fx)) > tol {
		t.Errorf("KS total = %v, want %v", c.Totals.Total(), local+fx)
	}
	base := (0.6*0.02 + 0.4*(1.01*1.02-1)) - (0.5*0.015 + 0.5*(1.012*1.02-1))
	if math.Abs(c.BaseActiveReturn-base) > tol {
		t.Errorf("base active = %v, want %v", c.BaseActiveReturn, base)
	}
	if math.Abs(c.ResidualBps-(base-(local+fx))*10000) > 1e-8 {
		t.Errorf("residual bps = %v", c.ResidualBps)
	}
}

func TestErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Calculate(ctx, sectorRequest()); !errors.Is(err, model.ErrCancelled) {
		t.Errorf("expected Cancelled, got %v", err)
	}
	req := sectorRequest()
	req.Linking = "GRAP"
	if _, err := Calculate(context.Background(), req); !errors.Is(err, model.ErrNotImplemented) {
		t.Errorf("expected NotImplemented, got %v", err)
	}
}
