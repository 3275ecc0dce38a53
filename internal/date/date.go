// Package date provides a calendar date with day granularity and the
// period arithmetic used by the performance engine (month/quarter/year
// boundaries, Friday-anchored weeks, month shifts clamped to month end).
package date

import (
	"encoding/json"
	"fmt"
	"time"
)

// Format is the ISO-8601 layout used to read and write dates.
const Format = "2006-01-02"

// Date represents a calendar day. The zero value is not a valid date; use
// Min for the "unknown inception" sentinel.
type Date struct {
	y int
	m time.Month
	d int
}

// Min is the sentinel for an unbounded start (ITD without inception).
var Min = Date{1, time.January, 1}

// New returns a normalized Date for the given year, month, and day.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.Time().Date()
	return d
}

// FromTime truncates t to its calendar day in t's location.
func FromTime(t time.Time) Date { return New(t.Date()) }

// Parse parses a strict YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Format, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", s, Format, err)
	}
	return FromTime(t), nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) Year() int { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int { return d.d }
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Date) IsZero() bool { return d == Date{} }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string { return d.Time().Format(Format) }

func (d Date) Before(x Date) bool { return d.Compare(x) < 0 }
func (d Date) After(x Date) bool { return d.Compare(x) > 0 }

// Compare returns -1, 0 or +1.
func (d Date) Compare(x Date) int {
	switch {
	case d.y != x.y:
		return cmpInt(d.y, x.y)
	case d.m != x.m:
		return cmpInt(int(d.m), int(x.m))
	default:
		return cmpInt(d.d, x.d)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

// AddMonths shifts by n months, clamping the day to the target month's
// last day (2024-03-31 minus one month is 2024-02-29).
func (d Date) AddMonths(n int) Date {
	total := d.y*12 + int(d.m-1) + n
	y, m := total/12, time.Month(total%12+1)
	if total < 0 && total%12 != 0 {
		y, m = total/12-1, time.Month(total%12+13)
	}
	last := daysIn(y, m)
	day := d.d
	if day > last {
		day = last
	}
	return Date{y, m, day}
}

// AddYears shifts by n years with the same clamping as AddMonths.
func (d Date) AddYears(n int) Date { return d.AddMonths(12 * n) }

// Sub returns the number of days from x to d.
func (d Date) Sub(x Date) int {
	return int(d.Time().Sub(x.Time()).Hours() / 24)
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartOfMonth returns the first day of d's month.
func (d Date) StartOfMonth() Date { return Date{d.y, d.m, 1} }

// EndOfMonth returns the last day of d's month.
func (d Date) EndOfMonth() Date { return Date{d.y, d.m, daysIn(d.y, d.m)} }

// Quarter returns 1..4.
func (d Date) Quarter() int { return int(d.m-1)/3 + 1 }

// StartOfQuarter returns the first day of d's calendar quarter.
func (d Date) StartOfQuarter() Date {
	return Date{d.y, time.Month((d.Quarter()-1)*3 + 1), 1}
}

// EndOfQuarter returns the last day of d's calendar quarter.
func (d Date) EndOfQuarter() Date {
	m := time.Month(d.Quarter() * 3)
	return Date{d.y, m, daysIn(d.y, m)}
}

func (d Date) StartOfYear() Date { return Date{d.y, time.January, 1} }
func (d Date) EndOfYear() Date { return Date{d.y, time.December, 31} }

// StartOfWeek returns the Monday on or before d.
func (d Date) StartOfWeek() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// WeekEndingFriday returns the Friday on or after d.
func (d Date) WeekEndingFriday() Date {
	offset := (int(time.Friday) - int(d.Weekday()) + 7) % 7
	return d.AddDays(offset)
}

// IsMonthEnd reports whether d is the last day of its month.
func (d Date) IsMonthEnd() bool { return d.d == daysIn(d.y, d.m) }

// MaxOf returns the later of a and b.
func MaxOf(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// MinOf returns the earlier of a and b.
func MinOf(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// MarshalText implements encoding.TextMarshaler. The zero Date is empty.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalJSON writes the date as a JSON string.
func (d Date) MarshalJSON() ([]byte, error) {
	b, _ := d.MarshalText()
	return json.Marshal(string(b))
}

// UnmarshalJSON reads a YYYY-MM-DD JSON string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

var _ json.Marshaler = Date{}
var _ json.Unmarshaler = (*Date)(nil)
