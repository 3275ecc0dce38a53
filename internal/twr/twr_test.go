package twr

import (
	"math"
	"testing"

	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/numeric"
	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// row is (bmv, bcf, ecf, fees, emv).
type row [5]float64

func points(start string, rows []row) []model.ValuationPoint {
	day := date.MustParse(start)
	out := make([]model.ValuationPoint, len(rows))
	for i, r := range rows {
		out[i] = model.ValuationPoint{
			Day:      i + 1,
			PerfDate: day.AddDays(i),
			BeginMV:  d(r[0]),
			BodCF:    d(r[1]),
			EodCF:    d(r[2]),
			MgmtFees: d(r[3]),
			EndMV:    d(r[4]),
		}
	}
	return out
}

func runFloat(t *testing.T, pts []model.ValuationPoint, cfg Config, perfStart date.Date) *Frame[float64] {
	t.Helper()
	eff := make([]date.Date, len(pts))
	for i, p := range pts {
		eff[i] = date.MaxOf(p.PerfDate.StartOfYear(), perfStart)
	}
	f := NewFrame[float64](numeric.Float64{}, pts, eff)
	New[float64](numeric.Float64{}, cfg).Run(f)
	return f
}

func runDecimal(t *testing.T, pts []model.ValuationPoint, cfg Config, perfStart date.Date) *Frame[decimal.Decimal] {
	t.Helper()
	eff := make([]date.Date, len(pts))
	for i, p := range pts {
		eff[i] = date.MaxOf(p.PerfDate.StartOfYear(), perfStart)
	}
	a := numeric.NewDecimal()
	f := NewFrame[decimal.Decimal](a, pts, eff)
	New[decimal.Decimal](a, cfg).Run(f)
	return f
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %.9f, want %.9f (tol %g)", name, got, want, tol)
	}
}

var ytdConfig = Config{Basis: model.BasisNet, ReportEnd: date.MustParse("2025-01-04")}

func TestStandardLongGrowth(t *testing.T) {
	pts := points("2025-01-01", []row{
		{1000, 0, 0, 0, 1010},
		{1010, 0, 0, 0, 1020.1},
		{1020.1, 0, 0, 0, 1030.301},
		{1030.301, 0, 0, 0, 1040.60401},
	})
	f := runFloat(t, pts, ytdConfig, date.MustParse("2025-01-01"))

	approx(t, "final_cum_ror[4]", f.Final[3], 4.060401, 1e-9)
	for i := range f.Final {
		if f.Sign[i] != 1 {
			t.Errorf("day %d: sign = %d, want +1", i+1, f.Sign[i])
		}
		if f.NIP[i] || f.Reset[i] {
			t.Errorf("day %d: unexpected nip=%v reset=%v", i+1, f.NIP[i], f.Reset[i])
		}
		approx(t, "daily_ror", f.ROR[i], 1, 1e-9)
	}

	fd := runDecimal(t, pts, ytdConfig, date.MustParse("2025-01-01"))
	if got := fd.Final[3].Round(6).String(); got != "4.060401" {
		t.Errorf("decimal final_cum_ror[4] = %s, want 4.060401", got)
	}
}

func TestLongFlipReset(t *testing.T) {
	pts := points("2025-01-01", []row{
		{1000, 0, 0, 0, 500},
		{500, 0, 0, 0, -50},
		{-50, 1000, 0, 0, 1050},
		{1050, 0, 0, 0, 1155},
	})
	f := runFloat(t, pts, ytdConfig, date.MustParse("2025-01-01"))

	wantROR := []float64{-50, -110, 10.526316, 10}
	wantLong := []float64{-50, 0, 10.526316, 21.578947}
	for i := range wantROR {
		approx(t, "daily_ror", f.ROR[i], wantROR[i], 1e-6)
		approx(t, "long_cum_ror", f.Long[i], wantLong[i], 1e-6)
	}
	if !f.NCtrl1[1] || !f.Reset[1] {
		t.Errorf("expected NCTRL1 and perf_reset on day 2, got nctrl1=%v reset=%v", f.NCtrl1[1], f.Reset[1])
	}
	for _, i := range []int{0, 2, 3} {
		if f.Reset[i] {
			t.Errorf("unexpected reset on day %d", i+1)
		}
	}
	approx(t, "final_cum_ror[3]", f.Final[2], 10.526316, 1e-6)
	approx(t, "final_cum_ror[4]", f.Final[3], 21.578947, 1e-6)
	if f.ResetDays() != 1 {
		t.Errorf("ResetDays = %d, want 1", f.ResetDays())
	}
}

func TestNIPDayV2(t *testing.T) {
	pts := points("2025-01-01", []row{
		{1000, 0, 0, 0, 1000},
		{1000, 1000, 0, 0, 2000},
		{0, 0, 0, 0, 0},
	})
	cfg := ytdConfig
	cfg.NIPV2 = true
	f := runFloat(t, pts, cfg, date.MustParse("2025-01-01"))

	want := []bool{false, false, true}
	for i, w := range want {
		if f.NIP[i] != w {
			t.Errorf("day %d: nip = %v, want %v", i+1, f.NIP[i], w)
		}
	}
	if f.Long[2] != f.Long[1] || f.Short[2] != f.Short[1] || f.Final[2] != f.Final[1] {
		t.Errorf("NIP day should carry cumulative values: %v/%v/%v vs %v/%v/%v",
			f.Long[2], f.Short[2], f.Final[2], f.Long[1], f.Short[1], f.Final[1])
	}
}

func TestNIPV1LegacyComparison(t *testing.T) {
	// bmv+bcf+emv+ecf == 0 with bod_cf > 0: the legacy rule needs eod_cf == +1,
	// not -1.
	pts := points("2025-01-01", []row{
		{1000, 0, 0, 0, 1000},
		{-1001, 1, 1, 0, 999},
		{-1001, 1, -1, 0, 1001},
	})
	f := runFloat(t, pts, ytdConfig, date.MustParse("2025-01-01"))
	if !f.NIP[1] {
		t.Error("day 2 should be NIP under the legacy rule (eod_cf == sign(bod_cf))")
	}
	if f.NIP[2] {
		t.Error("day 3 must not be NIP under the legacy rule")
	}
}

func TestSignPersistsWithoutFlipEvent(t *testing.T) {
	pts := points("2025-01-01", []row{
		{100, 0, 0, 0, 90},
		{-10, 0, 0, 0, -11}, // valuation crossed zero without cash: stays long
		{-11, 0, -5, 0, -20},
		{-20, 0, 0, 0, -22}, // previous eod_cf is a flip event
	})
	f := runFloat(t, pts, ytdConfig, date.MustParse("2025-01-01"))
	want := []int{1, 1, 1, -1}
	for i, w := range want {
		if f.Sign[i] != w {
			t.Errorf("day %d: sign = %d, want %d", i+1, f.Sign[i], w)
		}
	}
	// bmv -20, emv -22 is a -10% day; the short factor is 1.1
	approx(t, "short_cum_ror[4]", f.Short[3], -10, 1e-9)
	// the long leg is inactive on day 4 and carries its last value
	approx(t, "long_cum_ror[4]", f.Long[3], f.Long[2], 0)
	if f.ResetDays() != 0 {
		t.Errorf("unexpected resets: %v", f.Reset)
	}
}

func TestRowsBeforeEffectiveStartHaveZeroReturn(t *testing.T) {
	pts := points("2024-12-30", []row{
		{1000, 0, 0, 0, 1100},
		{1100, 0, 0, 0, 1210},
		{1210, 0, 0, 0, 1331},
	})
	f := runFloat(t, pts, Config{Basis: model.BasisGross, ReportEnd: date.MustParse("2025-01-01")}, date.MustParse("2024-12-31"))
	approx(t, "daily_ror[1]", f.ROR[0], 0, 0)
	approx(t, "final[2]", f.Final[1], 10, 1e-9)
	// new year restarts compounding
	approx(t, "final[3]", f.Final[2], 10, 1e-9)
}

func TestNetBasisAddsFees(t *testing.T) {
	pts := points("2025-01-01", []row{{1000, 0, 0, -2, 1010}})
	net := runFloat(t, pts, ytdConfig, date.MustParse("2025-01-01"))
	gross := runFloat(t, pts, Config{Basis: model.BasisGross, ReportEnd: ytdConfig.ReportEnd}, date.MustParse("2025-01-01"))
	approx(t, "net", net.ROR[0], 0.8, 1e-12)
	approx(t, "gross", gross.ROR[0], 1, 1e-12)
}

func TestResetWaitsForCashActivity(t *testing.T) {
	// Day 2 drives the long leg below -100% with no cash, no month end and
	// the next day inside the report window, so no reset fires. Day 3 is
	// followed by a bod_cf and resets on the rising edge.
	cfg := Config{Basis: model.BasisNet, ReportEnd: date.MustParse("2025-01-10")}
	pts := points("2025-01-05", []row{
		{1000, 0, 0, 0, 500},
		{500, 0, 0, 0, -50},
		{-50, 0, 0, 0, -60},
		{-60, 1000, 0, 0, 1000},
		{1000, 0, 0, 0, 1010},
	})
	f := runFloat(t, pts, cfg, date.MustParse("2025-01-01"))

	if f.NCtrl1[1] {
		t.Fatal("day 2 has no cash activity and must not trigger NCTRL1")
	}
	if !f.NCtrl1[2] || !f.Reset[2] {
		t.Fatalf("expected NCTRL1 on day 3, got %v", f.NCtrl1)
	}
	if f.NCtrl1[3] || f.NCtrl1[4] {
		t.Error("NCTRL1 must only fire on the rising edge")
	}
	approx(t, "final[5]", f.Final[4], (1000.0/940*1.01-1)*100, 1e-9)
	assertInvariants(t, f)
}

func TestNCtrl4CatchesBoundaryBreach(t *testing.T) {
	// A -100% day sits exactly on the bound, which NCTRL1 (strict) ignores.
	// The bod_cf on day 2 triggers NCTRL4 and compounding restarts on day 3.
	cfg := Config{Basis: model.BasisNet, ReportEnd: date.MustParse("2025-01-10")}
	pts := points("2025-01-06", []row{
		{1000, 0, 0, 0, 0},
		{0, 500, 0, 0, 510},
		{510, 0, 0, 0, 520},
	})
	f := runFloat(t, pts, cfg, date.MustParse("2025-01-01"))

	if f.NCtrl1[0] || f.NCtrl1[1] {
		t.Fatal("NCTRL1 must not fire at exactly -100")
	}
	if !f.NCtrl4[1] || !f.Reset[1] {
		t.Fatalf("expected NCTRL4 on day 2, got %v", f.NCtrl4)
	}
	approx(t, "final[3]", f.Final[2], 10.0/510*100, 1e-9)
	assertInvariants(t, f)
}

func TestInvariantsHoldOnMixedSeries(t *testing.T) {
	cfg := Config{Basis: model.BasisNet, ReportEnd: date.MustParse("2025-03-31")}
	rows := []row{
		{1000, 0, 0, 0, 1020},
		{1020, 0, 0, -1, 990},
		{990, -990, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 500, 0, 0, 510},
		{510, 0, 0, 0, 100},
		{100, 0, 0, 0, -30},
		{-30, 0, -20, 0, -40},
		{-40, 0, 0, 0, -36},
		{-36, 100, 0, 0, 70},
		{70, 0, 0, 0, 77},
	}
	for _, v2 := range []bool{false, true} {
		cfg.NIPV2 = v2
		pts := points("2025-01-27", rows)
		f := runFloat(t, pts, cfg, date.MustParse("2025-01-01"))
		assertInvariants(t, f)

		fd := runDecimal(t, pts, cfg, date.MustParse("2025-01-01"))
		for i := range f.Final {
			ref := fd.Final[i].InexactFloat64()
			if diff := math.Abs(f.Final[i] - ref); diff > 1e-10*math.Max(1, math.Abs(ref)) {
				t.Errorf("v2=%v day %d: float %.12f vs decimal %.12f", v2, i+1, f.Final[i], ref)
			}
			if f.Reset[i] != fd.Reset[i] || f.NIP[i] != fd.NIP[i] || f.Sign[i] != fd.Sign[i] {
				t.Errorf("v2=%v day %d: flags differ between backends", v2, i+1)
			}
		}
	}
}

func assertInvariants(t *testing.T, f *Frame[float64]) {
	t.Helper()
	for i := range f.Final {
		want := ((1+f.Long[i]/100)*(1+f.Short[i]/100) - 1) * 100
		if math.Abs(f.Final[i]-want) > 1e-9*math.Max(1, math.Abs(want)) {
			t.Errorf("day %d: combination identity broken: %v vs %v", i+1, f.Final[i], want)
		}
		if f.Reset[i] && (f.Long[i] != 0 || f.Short[i] != 0 || f.Final[i] != 0) {
			t.Errorf("day %d: reset day not discharged", i+1)
		}
		if i > 0 && f.NIP[i] && !f.Reset[i] {
			if f.Long[i] != f.Long[i-1] || f.Short[i] != f.Short[i-1] || f.Final[i] != f.Final[i-1] {
				t.Errorf("day %d: NIP day did not carry forward", i+1)
			}
		}
		if i > 0 && f.BodCF[i] == 0 && f.EodCF[i-1] == 0 && !f.Reset[i-1] && f.Sign[i] != f.Sign[i-1] {
			t.Errorf("day %d: sign changed without a flip event", i+1)
		}
	}
}

func TestResetEdgeCases(t *testing.T) {
	cases := []struct {
		name      string
		start     string
		reportEnd string
		rows      []row
		wantReset []bool
		wantSign  []int
		wantFinal []float64
	}{
		{
			name:      "quiet last row does not reset",
			start:     "2025-01-01",
			reportEnd: "2025-01-05",
			rows: []row{
				{1000, 0, 0, 0, 500},
				{500, 0, 0, 0, -50},
				{-50, 1000, 0, 0, 1050},
				{1050, 0, 0, 0, 1155},
				{1155, 0, 0, 0, 1212.75},
			},
			wantReset: []bool{false, true, false, false, false},
			wantSign:  []int{1, 1, 1, 1, 1},
			wantFinal: []float64{-50, 0, 10.526315789, 21.578947368, 27.657894737},
		},
		{
			name:      "last row with cash resets",
			start:     "2025-01-01",
			reportEnd: "2025-01-02",
			rows: []row{
				{1000, 0, 0, 0, 500},
				{500, 0, 10, 0, -50},
			},
			wantReset: []bool{false, true},
			wantSign:  []int{1, 1},
			wantFinal: []float64{-50, 0},
		},
		{
			name:      "sign flips on the day after a reset",
			start:     "2025-01-30",
			reportEnd: "2025-02-02",
			rows: []row{
				{1000, 0, 0, 0, 500},
				{500, 0, 0, 0, -50},
				{-50, 0, 0, 0, -60},
				{-60, 0, 0, 0, -66},
			},
			wantReset: []bool{false, true, false, false},
			wantSign:  []int{1, 1, -1, -1},
			wantFinal: []float64{-50, 0, -20, -32},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pts := points(tc.start, tc.rows)
			cfg := Config{Basis: model.BasisNet, ReportEnd: date.MustParse(tc.reportEnd)}
			start := date.MustParse(tc.start)

			f := runFloat(t, pts, cfg, start)
			assertInvariants(t, f)
			for i := range tc.rows {
				if f.Reset[i] != tc.wantReset[i] {
					t.Errorf("day %d: perf_reset = %v, want %v", i+1, f.Reset[i], tc.wantReset[i])
				}
				if f.Sign[i] != tc.wantSign[i] {
					t.Errorf("day %d: sign = %d, want %d", i+1, f.Sign[i], tc.wantSign[i])
				}
				approx(t, "final_cum_ror", f.Final[i], tc.wantFinal[i], 1e-6)
			}

			fd := runDecimal(t, pts, cfg, start)
			for i := range tc.rows {
				if fd.Reset[i] != tc.wantReset[i] || fd.Sign[i] != tc.wantSign[i] {
					t.Errorf("day %d: decimal reset/sign = %v/%d, want %v/%d",
						i+1, fd.Reset[i], fd.Sign[i], tc.wantReset[i], tc.wantSign[i])
				}
				approx(t, "decimal final_cum_ror", fd.Final[i].InexactFloat64(), tc.wantFinal[i], 1e-6)
			}
		})
	}
}

func TestShortLegAfterResetCompounds(t *testing.T) {
	pts := points("2025-01-30", []row{
		{1000, 0, 0, 0, 500},
		{500, 0, 0, 0, -50},
		{-50, 0, 0, 0, -60},
		{-60, 0, 0, 0, -66},
	})
	cfg := Config{Basis: model.BasisNet, ReportEnd: date.MustParse("2025-02-02")}
	f := runFloat(t, pts, cfg, date.MustParse("2025-01-30"))

	if !f.NCtrl1[1] {
		t.Fatal("expected NCTRL1 on the month-end day")
	}
	approx(t, "daily_ror[3]", f.ROR[2], -20, 1e-9)
	approx(t, "daily_ror[4]", f.ROR[3], -10, 1e-9)
	approx(t, "long_cum_ror[4]", f.Long[3], 0, 1e-9)
	approx(t, "short_cum_ror[4]", f.Short[3], -32, 1e-9)
	if f.ResetDays() != 1 {
		t.Errorf("ResetDays = %d, want 1", f.ResetDays())
	}
}
