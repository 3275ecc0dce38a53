// Package twr implements the daily time-weighted return state machine: daily
// rate of return, sign tracking, NIP detection, the NCTRL1-4 reset algebra
// and the two-pass long/short compounding into a final cumulative return.
//
// The kernel is generic over numeric.Arith so the same code runs on float64
// and on decimal.Decimal. It performs no I/O and never logs.
package twr

import (
	"github.com/atmx/perf-engine/internal/date"
	"github.com/atmx/perf-engine/internal/model"
	"github.com/atmx/perf-engine/internal/numeric"
)

// Config is the subset of the engine configuration the state machine reads.
type Config struct {
	Basis     model.MetricBasis
	ReportEnd date.Date
	NIPV2     bool
}

// ConfigFrom extracts the state machine configuration.
func ConfigFrom(c model.EngineConfig) Config {
	return Config{
		Basis:     c.MetricBasis,
		ReportEnd: c.ReportEndDate,
		NIPV2:     c.FeatureFlags.UseNIPV2Rule,
	}
}

// Calculator runs the state machine on frames of one numeric type.
type Calculator[T any] struct {
	a       numeric.Arith[T]
	cfg     Config
	hundred T
}

// New returns a Calculator using arithmetic a.
func New[T any](a numeric.Arith[T], cfg Config) *Calculator[T] {
	return &Calculator[T]{a: a, cfg: cfg, hundred: a.FromInt(100)}
}

// Arith exposes the backend the calculator was built with.
func (c *Calculator[T]) Arith() numeric.Arith[T] { return c.a }

// Run computes every derived column of f from its input columns.
func (c *Calculator[T]) Run(f *Frame[T]) {
	f.ROR = c.DailyROR(f)
	c.Process(f)
}

// Process runs everything after the daily return: sign, NIP, resets and
// compounding. Callers that supply their own ROR column (currency
// conversion) call it directly.
func (c *Calculator[T]) Process(f *Frame[T]) {
	f.alloc()
	c.trackSign(f)
	c.detectNIP(f)

	f.TempLong, f.TempShort = c.compound(f, false)
	c.evaluateResets(f)

	// a reset is a flip event for the row after it
	c.trackSign(f)
	f.Long, f.Short = c.compound(f, true)
	if c.applyNCtrl4(f) {
		// zero the NCTRL4 days and restart compounding after them
		c.trackSign(f)
		f.Long, f.Short = c.compound(f, true)
	}
	c.combine(f)
}

// combine writes final = ((1 + long/100)(1 + short/100) - 1) * 100.
func (c *Calculator[T]) combine(f *Frame[T]) {
	a, one := c.a, c.a.One()
	for i := range f.Final {
		l := a.Add(one, a.Div(f.Long[i], c.hundred))
		s := a.Add(one, a.Div(f.Short[i], c.hundred))
		f.Final[i] = a.Mul(a.Sub(a.Mul(l, s), one), c.hundred)
	}
}
