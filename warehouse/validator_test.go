package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
)

// newStubbedValidator wires a fake session with SALES(d, a, v) metadata.
func newStubbedValidator() (*Validator, *FakeSession) {
	fake := NewFakeSession()
	fake.StubQuery("INFORMATION_SCHEMA.COLUMNS", []Row{
		{"SALES", "D"}, {"SALES", "A"}, {"SALES", "V"},
	})
	return NewValidator(fake, "MARKET", "RAW"), fake
}

func january() common.Period {
	p, err := common.ParsePeriod("2024-01")
	if err != nil {
		panic(err)
	}
	return p
}

// completenessRows builds the tagged union the completeness statement
// returns: one summary row, per-date rows, gap boundary pairs.
func completenessRows(days []int, rowsPerDay int64) []Row {
	out := []Row{}
	var total int64
	minDay, maxDay := days[0], days[len(days)-1]
	out = append(out, Row{"summary",
		fmt.Sprintf("2024-01-%02d", minDay), fmt.Sprintf("2024-01-%02d", maxDay),
		int64(len(days)), int64(len(days)) * rowsPerDay})
	prev := -1
	for _, d := range days {
		out = append(out, Row{"per_date", fmt.Sprintf("2024-01-%02d", d), nil, rowsPerDay, nil})
		if prev > 0 && d-prev > 1 {
			out = append(out, Row{"gap_after", fmt.Sprintf("2024-01-%02d", prev), fmt.Sprintf("2024-01-%02d", d), nil, nil})
		}
		prev = d
		total += rowsPerDay
	}
	return out
}

func allDays(n int) []int {
	days := make([]int, n)
	for i := range days {
		days[i] = i + 1
	}
	return days
}

func TestValidateHappyPath(t *testing.T) {
	a := assert.New(t)

	v, fake := newStubbedValidator()
	fake.StubQuery("WITH per_date", completenessRows(allDays(31), 100))

	report, err := v.Validate(context.Background(), "sales", "d", nil, january())
	require.NoError(t, err)

	a.True(report.Valid)
	a.Empty(report.FailureReasons)
	a.Equal(int64(31), report.UniqueDates)
	a.Equal(int64(3100), report.TotalRows)
	a.Empty(report.Gaps)
	a.Empty(report.Anomalies)
	a.Nil(report.Duplicates)
	a.Equal("SALES", report.Table)
}

func TestValidateExpandsGapPairs(t *testing.T) {
	a := assert.New(t)

	// days 14..16 missing mid-period: one LAG pair (13, 17) expands to three dates
	days := []int{}
	for d := 1; d <= 31; d++ {
		if d < 14 || d > 16 {
			days = append(days, d)
		}
	}

	v, fake := newStubbedValidator()
	fake.StubQuery("WITH per_date", completenessRows(days, 100))

	report, err := v.Validate(context.Background(), "SALES", "D", nil, january())
	require.NoError(t, err)

	require.Len(t, report.Gaps, 3)
	a.Equal(time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC), report.Gaps[0])
	a.Equal(time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), report.Gaps[2])
	a.False(report.Valid)
	a.Equal([]string{"3 date(s) missing"}, report.FailureReasons)
}

func TestValidateHeadAndTailGaps(t *testing.T) {
	a := assert.New(t)

	// data only on the 5th through the 28th: the LAG query sees no interior
	// gap, but the expected period still misses its edges
	days := []int{}
	for d := 5; d <= 28; d++ {
		days = append(days, d)
	}

	v, fake := newStubbedValidator()
	fake.StubQuery("WITH per_date", completenessRows(days, 50))

	report, err := v.Validate(context.Background(), "SALES", "D", nil, january())
	require.NoError(t, err)

	require.Len(t, report.Gaps, 7) // 1..4 and 29..31
	a.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), report.Gaps[0])
	a.Equal(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), report.Gaps[6])
}

func TestValidateEmptyTableMissesWholePeriod(t *testing.T) {
	a := assert.New(t)

	v, fake := newStubbedValidator()
	fake.StubQuery("WITH per_date", []Row{{"summary", nil, nil, int64(0), nil}})

	report, err := v.Validate(context.Background(), "SALES", "D", nil, january())
	require.NoError(t, err)

	a.Len(report.Gaps, 31)
	a.False(report.Valid)
}

func TestValidateUnboundedPeriodUsesObservedRange(t *testing.T) {
	a := assert.New(t)

	v, fake := newStubbedValidator()
	fake.StubQuery("WITH per_date", completenessRows([]int{3, 4, 5}, 10))

	report, err := v.Validate(context.Background(), "SALES", "D", nil, common.Period{})
	require.NoError(t, err)

	// no expectation beyond the data itself
	a.Empty(report.Gaps)
	a.True(report.Valid)

	// and the statement carried no WHERE filter
	require.NotEmpty(t, fake.Queries)
	for _, q := range fake.Queries {
		a.NotContains(q, "BETWEEN ?")
	}
}

func TestValidateSeverelyLowDayFailsVerdict(t *testing.T) {
	a := assert.New(t)

	rows := completenessRows(allDays(31), 48_000)
	// overwrite day 15's per-date row with a 12-row count (S3)
	for i, r := range rows {
		if asString(r[0]) == "per_date" && asString(r[1]) == "2024-01-15" {
			rows[i] = Row{"per_date", "2024-01-15", nil, int64(12), nil}
		}
	}

	v, fake := newStubbedValidator()
	fake.StubQuery("WITH per_date", rows)

	report, err := v.Validate(context.Background(), "SALES", "D", nil, january())
	require.NoError(t, err)

	a.False(report.Valid)
	require.Len(t, report.Anomalies, 1)
	a.Equal(common.EAnomalyClass.SeverelyLow(), report.Anomalies[0].Class)
	a.Equal([]string{"1 date(s) with severely low row counts"}, report.FailureReasons)
}

func TestValidateUnknownTable(t *testing.T) {
	a := assert.New(t)

	v, _ := newStubbedValidator()
	_, err := v.Validate(context.Background(), "NOPE", "D", nil, january())

	var identErr *IdentifierError
	require.ErrorAs(t, err, &identErr)
	a.Equal("NOPE", identErr.Name)
}

func TestValidateUnknownColumn(t *testing.T) {
	v, _ := newStubbedValidator()
	_, err := v.Validate(context.Background(), "SALES", "trade_dt", nil, january())

	var identErr *IdentifierError
	require.ErrorAs(t, err, &identErr)
}

func TestValidateWithoutDateColumn(t *testing.T) {
	a := assert.New(t)

	// a spec with duplicate keys but no date column still gets a verdict:
	// only the row count and the duplicate check run
	v, fake := newStubbedValidator()
	fake.StubQuery("SELECT COUNT(*)", []Row{{int64(1000)}})
	fake.StubQuery("WITH dup", []Row{})

	report, err := v.Validate(context.Background(), "sales", "", []string{"a"}, common.Period{})
	require.NoError(t, err)

	a.True(report.Valid)
	a.Equal(int64(1000), report.TotalRows)
	a.Zero(report.UniqueDates)
	a.Empty(report.Gaps)
	require.NotNil(t, report.Duplicates)
	a.Zero(report.Duplicates.Groups)
	for _, q := range fake.Queries {
		a.NotContains(q, "WITH per_date")
	}
}

func TestValidatePeriodFilterBindsDates(t *testing.T) {
	a := assert.New(t)

	where, binds := periodFilter("D", january())
	a.Equal("WHERE D BETWEEN ? AND ?", where)
	a.Equal([]any{"2024-01-01", "2024-01-31"}, binds)

	where, binds = periodFilter("D", common.Period{})
	a.Empty(where)
	a.Nil(binds)
}
