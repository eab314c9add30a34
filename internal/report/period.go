package report

import (
	"time"

	"labstock/internal/core"
)

const (
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
	PeriodCustom  = "custom"
)

// DateRange is an inclusive calendar-date interval.
type DateRange struct {
	Start core.Date
	End   core.Date
}

// ResolvePeriod turns a named period into a concrete date range relative to
// now. now is injected so reports are deterministic under test; callers pass
// time.Now().UTC() in production.
func ResolvePeriod(period string, now time.Time) (DateRange, error) {
	now = now.UTC()
	year, month, _ := now.Date()

	switch period {
	case PeriodMonth:
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		return DateRange{Start: core.Date{Time: start}, End: core.Date{Time: end}}, nil
	case PeriodQuarter:
		qStart := time.Month((int(month)-1)/3*3 + 1)
		start := time.Date(year, qStart, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 3, -1)
		return DateRange{Start: core.Date{Time: start}, End: core.Date{Time: end}}, nil
	case PeriodYear:
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
		return DateRange{Start: core.Date{Time: start}, End: core.Date{Time: end}}, nil
	case PeriodCustom:
		return DateRange{}, core.Invalidf("custom period requires explicit startDate and endDate")
	default:
		return DateRange{}, core.Invalidf("unknown period %q", period)
	}
}

// MonthRange resolves a "YYYY-MM" budget period to its calendar month range.
func MonthRange(period string) (DateRange, error) {
	p, err := core.ParsePeriod(period)
	if err != nil {
		return DateRange{}, err
	}
	start, _ := time.Parse("2006-01", p)
	end := start.AddDate(0, 1, -1)
	return DateRange{Start: core.Date{Time: start}, End: core.Date{Time: end}}, nil
}
