package generic

import (
	"time"
)

// =============================================================================
// DATE - Calendar day, the granularity of every transaction date
// =============================================================================

type Date struct {
	Time time.Time
}

const DateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date { return NewDate(t.Year(), t.Month(), t.Day()) }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool         { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool         { return d.Time.Equal(o.Time) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }

func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) IsZero() bool       { return d.Time.IsZero() }
func (d Date) Month() Month       { return Month{Year: d.Time.Year(), Month: d.Time.Month()} }
func (d Date) String() string     { return d.Time.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) { return []byte(`"` + d.String() + `"`), nil }

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) < 2 {
		return &time.ParseError{Layout: DateLayout, Value: string(b)}
	}
	parsed, err := ParseDate(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// MONTH - Calendar month, the window of the advance salary cap
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

func (m Month) Start() Date { return NewDate(m.Year, m.Month, 1) }
func (m Month) End() Date   { return NewDate(m.Year, m.Month+1, 1).AddDays(-1) }

func (m Month) Contains(d Date) bool {
	return d.AfterOrEqual(m.Start()) && d.BeforeOrEqual(m.End())
}

func (m Month) String() string { return m.Start().Time.Format("2006-01") }

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, err
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// =============================================================================
// CLOCK - Server clock, injectable for tests
// =============================================================================

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
