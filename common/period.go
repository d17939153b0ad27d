package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// The date formats accepted in data files, tried in this order.
const (
	DateLayoutISO     = "2006-01-02"
	DateLayoutCompact = "20060102"
	DateLayoutUS      = "01/02/2006"
)

var dateLayouts = []string{DateLayoutISO, DateLayoutCompact, DateLayoutUS}

// ParseDateAny parses s against the accepted formats and reports which layout
// matched. Dates are normalized to UTC midnight.
func ParseDateAny(s string) (time.Time, string, bool) {
	for _, layout := range dateLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), layout, true
		}
	}
	return time.Time{}, "", false
}

// ParseDateLayout parses s against one known layout. Used once a file's date
// format has been locked in.
func ParseDateLayout(s, layout string) (time.Time, bool) {
	if len(s) != len(layout) {
		return time.Time{}, false
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return DateOf(t), true
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date in the canonical ISO form used in reports and SQL.
func FormatDate(t time.Time) string {
	return t.Format(DateLayoutISO)
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// Period is an inclusive range of calendar days. The zero Period means "all":
// discovery matches every file and validation scans the whole table.
type Period struct {
	Start time.Time
	End   time.Time
	kind  PlaceholderKind
}

// ParsePeriod accepts "YYYYMMDD-YYYYMMDD", "YYYY-MM", or the empty string.
func ParsePeriod(s string) (Period, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return Period{}, nil
	}

	if len(s) == 7 && s[4] == '-' {
		month, err := time.Parse("2006-01", s)
		if err != nil {
			return Period{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
		}
		start := DateOf(month)
		return Period{Start: start, End: start.AddDate(0, 1, -1), kind: EPlaceholderKind.Month()}, nil
	}

	parts := strings.Split(s, "-")
	if len(parts) == 2 && len(parts[0]) == 8 && len(parts[1]) == 8 {
		start, okS := ParseDateLayout(parts[0], DateLayoutCompact)
		end, okE := ParseDateLayout(parts[1], DateLayoutCompact)
		if okS && okE {
			if end.Before(start) {
				return Period{}, fmt.Errorf("invalid period %q: end date precedes start date", s)
			}
			return Period{Start: start, End: end, kind: EPlaceholderKind.DateRange()}, nil
		}
	}

	return Period{}, fmt.Errorf("invalid period %q: expected YYYYMMDD-YYYYMMDD or YYYY-MM", s)
}

// NewPeriod builds a day-range period from two inclusive dates.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: DateOf(start), End: DateOf(end), kind: EPlaceholderKind.DateRange()}
}

// IsAll reports whether the period is unbounded.
func (p Period) IsAll() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

func (p Period) Kind() PlaceholderKind {
	return p.kind
}

// Contains reports whether the day falls inside the period. Every day is
// inside the unbounded period.
func (p Period) Contains(day time.Time) bool {
	if p.IsAll() {
		return true
	}
	day = DateOf(day)
	return !day.Before(p.Start) && !day.After(p.End)
}

// Covers reports whether other lies entirely inside p.
func (p Period) Covers(other Period) bool {
	if p.IsAll() {
		return true
	}
	if other.IsAll() {
		return false
	}
	return !other.Start.Before(p.Start) && !other.End.After(p.End)
}

// Days enumerates every calendar day of the period in order. It returns nil
// for the unbounded period, whose days cannot be enumerated.
func (p Period) Days() []time.Time {
	if p.IsAll() {
		return nil
	}
	days := make([]time.Time, 0, int(p.End.Sub(p.Start).Hours()/24)+1)
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DateRangeToken renders the period the way a {date_range} file pattern spells
// it, e.g. 20240101-20240131.
func (p Period) DateRangeToken() string {
	return p.Start.Format(DateLayoutCompact) + "-" + p.End.Format(DateLayoutCompact)
}

// MonthToken renders the period the way a {month} file pattern spells it,
// e.g. 2024-01. It only exists for periods parsed as months.
func (p Period) MonthToken() (string, bool) {
	if p.kind != EPlaceholderKind.Month() {
		return "", false
	}
	return p.Start.Format("2006-01"), true
}

// String round-trips the command-line form.
func (p Period) String() string {
	if p.IsAll() {
		return "all"
	}
	if token, ok := p.MonthToken(); ok {
		return token
	}
	return p.DateRangeToken()
}

// Implementing MarshalJSON() method for type Period
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}
