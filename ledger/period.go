package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Time boundary for balance calculation
// =============================================================================

// Period is an inclusive [Start, End] date range at day granularity.
// Opening balances are computed from entries dated strictly before Start;
// turnover from entries within the period.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a period, normalizing both bounds to UTC days.
func NewPeriod(start, end time.Time) (Period, error) {
	start = Day(start)
	end = Day(end)
	if end.Before(start) {
		return Period{}, &ValidationError{Field: "period", Reason: "end before start"}
	}
	return Period{Start: start, End: end}, nil
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s]", p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
}

// MonthPeriod returns the calendar month as a period.
func MonthPeriod(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// QuarterPeriod returns the calendar quarter (q in 1..4) as a period.
func QuarterPeriod(year, q int) Period {
	start := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 3, -1)}
}

// YearPeriod returns the calendar year as a period.
func YearPeriod(year int) Period {
	return Period{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// QuarterOf returns the calendar quarter (1..4) containing t.
func QuarterOf(t time.Time) (year, quarter int) {
	t = t.UTC()
	return t.Year(), (int(t.Month())-1)/3 + 1
}
