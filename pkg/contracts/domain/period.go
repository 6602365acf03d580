package domain

import (
	"fmt"
	"time"
)

// Period identifies one publication month.
type Period struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2018,max=2035"`
}

// NewPeriod builds a Period, validating the month range.
func NewPeriod(month, year int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid month: %d", month)
	}
	if year < 2000 || year > 2100 {
		return Period{}, fmt.Errorf("invalid year: %d", year)
	}
	return Period{Month: month, Year: year}, nil
}

// Ordinal returns a monotonically increasing value for chronological
// comparison (year*12 + month, matching sheet ordering).
func (p Period) Ordinal() int {
	return p.Year*12 + p.Month
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	return p.Ordinal() < other.Ordinal()
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Month == 0 && p.Year == 0
}

// String formats the period as "2024-01", the form used for sheet names
// and log fields.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Display formats the period for user-facing messages, e.g. "January 2024".
func (p Period) Display() string {
	return fmt.Sprintf("%s %d", time.Month(p.Month).String(), p.Year)
}

// PeriodRange is an inclusive month range.
type PeriodRange struct {
	From Period `json:"from"`
	To   Period `json:"to"`
}

// SinglePeriod returns a range covering exactly one period.
func SinglePeriod(p Period) PeriodRange {
	return PeriodRange{From: p, To: p}
}

// Contains reports whether p falls inside the range.
func (r PeriodRange) Contains(p Period) bool {
	return p.Ordinal() >= r.From.Ordinal() && p.Ordinal() <= r.To.Ordinal()
}
