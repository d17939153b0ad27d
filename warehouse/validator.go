// Copyright © 2025 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/manifest"
)

const (
	perDateCountCap = 1000
	gapPairCap      = 100
)

// DateCount is one date's row count, straight off the aggregate.
type DateCount struct {
	Date time.Time
	Rows int64
}

// DateAnomaly is a date whose row count stands out from the period's
// distribution.
type DateAnomaly struct {
	Date  time.Time
	Rows  int64
	Class common.AnomalyClass
}

// ValidationReport is the validator's full verdict on one table for one
// period. Assembled from aggregate queries only.
type ValidationReport struct {
	Table  string
	Period common.Period

	MinDate     time.Time
	MaxDate     time.Time
	UniqueDates int64
	TotalRows   int64

	// PerDateCounts is capped server-side; Truncated says the cap bit.
	PerDateCounts []DateCount
	Truncated     bool

	Gaps      []time.Time
	Anomalies []DateAnomaly

	// Duplicates is nil when the spec configures no duplicate keys.
	Duplicates *DuplicateReport

	Valid          bool
	FailureReasons []string
}

// ValidationError carries an invalid verdict up to the orchestrator. The
// load is never rolled back over it; post-load validation is observational.
type ValidationError struct {
	Report *ValidationReport
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s",
		e.Report.Table, strings.Join(e.Report.FailureReasons, "; "))
}

// Validator checks loaded tables by aggregate queries against one session's
// (database, schema).
type Validator struct {
	session Session
	cache   *MetadataCache
}

func NewValidator(s Session, database, schema string) *Validator {
	return &Validator{session: s, cache: NewMetadataCache(database, schema)}
}

// Validate is the one-call form for embedders holding a session. Callers
// checking many tables should keep one Validator so the metadata cache
// survives between calls.
func Validate(ctx context.Context, s Session, database, schema string, spec *manifest.FileSpec, period common.Period) (*ValidationReport, error) {
	return NewValidator(s, database, schema).Validate(ctx, spec.TableName, spec.DateColumn, spec.DuplicateKeyColumns, period)
}

// CheckDuplicates is the one-call form of the standalone duplicate check.
func CheckDuplicates(ctx context.Context, s Session, database, schema, table, dateColumn string, keys []string, period common.Period) (*DuplicateReport, error) {
	return NewValidator(s, database, schema).CheckDuplicates(ctx, table, dateColumn, keys, period)
}

// Validate runs date completeness, anomaly classification, and (when keys
// are given) duplicate detection, and composes the overall verdict. An
// invalid verdict is a report, not an error; errors mean the checks could
// not run.
func (v *Validator) Validate(ctx context.Context, table, dateColumn string, duplicateKeys []string, period common.Period) (*ValidationReport, error) {
	var report *ValidationReport
	if dateColumn != "" {
		var err error
		report, err = v.dateCompleteness(ctx, table, dateColumn, period)
		if err != nil {
			return nil, err
		}
		report.Anomalies = classifyAnomalies(report.PerDateCounts)
	} else {
		// no date column configured; only the row count and the duplicate
		// check below have anything to say
		canonicalTable, err := v.cache.RequireTable(ctx, v.session, table)
		if err != nil {
			return nil, err
		}
		total, err := v.countRows(ctx, canonicalTable, "", period)
		if err != nil {
			return nil, err
		}
		report = &ValidationReport{Table: canonicalTable, Period: period, TotalRows: total}
	}

	if len(duplicateKeys) > 0 {
		dup, err := v.checkDuplicates(ctx, table, dateColumn, duplicateKeys, period, report.TotalRows)
		if err != nil {
			return nil, err
		}
		report.Duplicates = dup
	}

	v.composeVerdict(report)
	return report, nil
}

// CheckDuplicates runs only the duplicate-key check, for the standalone
// check-duplicates operation.
func (v *Validator) CheckDuplicates(ctx context.Context, table, dateColumn string, keys []string, period common.Period) (*DuplicateReport, error) {
	canonicalTable, err := v.cache.RequireTable(ctx, v.session, table)
	if err != nil {
		return nil, err
	}

	total, err := v.countRows(ctx, canonicalTable, dateColumn, period)
	if err != nil {
		return nil, err
	}
	return v.checkDuplicates(ctx, table, dateColumn, keys, period, total)
}

// dateCompleteness runs the one-statement aggregate: summary scalars, the
// capped per-date count list, and LAG-based gap boundary pairs, all tagged
// rows of a single result set. The client expands boundary pairs into the
// full missing-date list and adds head/tail gaps against the expected period.
func (v *Validator) dateCompleteness(ctx context.Context, table, dateColumn string, period common.Period) (*ValidationReport, error) {
	canonicalTable, err := v.cache.RequireTable(ctx, v.session, table)
	if err != nil {
		return nil, err
	}
	cols, err := v.cache.RequireColumns(ctx, v.session, table, dateColumn)
	if err != nil {
		return nil, err
	}
	canonicalDate := cols[0]

	where, binds := periodFilter(canonicalDate, period)
	sql := fmt.Sprintf(`
WITH per_date AS (
    SELECT %[1]s AS d, COUNT(*) AS c
    FROM %[2]s
    %[3]s
    GROUP BY 1
),
boundaries AS (
    SELECT d, LAG(d) OVER (ORDER BY d) AS prev_d FROM per_date
)
SELECT 'summary' AS tag, MIN(d) AS d1, MAX(d) AS d2, COUNT(*) AS n1, SUM(c) AS n2 FROM per_date
UNION ALL
SELECT 'per_date', d, NULL, c, NULL FROM per_date
QUALIFY ROW_NUMBER() OVER (ORDER BY d) <= %[4]d
UNION ALL
SELECT 'gap_after', prev_d, d, NULL, NULL FROM boundaries
WHERE prev_d IS NOT NULL AND DATEDIFF(day, prev_d, d) > 1
QUALIFY ROW_NUMBER() OVER (ORDER BY d) <= %[5]d`,
		canonicalDate, canonicalTable, where, perDateCountCap, gapPairCap)

	rows, err := v.session.Query(ctx, sql, binds...)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{Table: canonicalTable, Period: period}
	var gapPairs [][2]time.Time
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		switch asString(row[0]) {
		case "summary":
			report.MinDate, _ = asDate(row[1])
			report.MaxDate, _ = asDate(row[2])
			report.UniqueDates, _ = asInt64(row[3])
			report.TotalRows, _ = asInt64(row[4])
		case "per_date":
			d, ok := asDate(row[1])
			n, _ := asInt64(row[3])
			if ok {
				report.PerDateCounts = append(report.PerDateCounts, DateCount{Date: d, Rows: n})
			}
		case "gap_after":
			prev, okP := asDate(row[1])
			next, okN := asDate(row[2])
			if okP && okN {
				gapPairs = append(gapPairs, [2]time.Time{prev, next})
			}
		}
	}
	report.Truncated = int64(len(report.PerDateCounts)) < report.UniqueDates

	report.Gaps = expandGaps(gapPairs, report.MinDate, report.MaxDate, period, report.UniqueDates > 0)
	return report, nil
}

// expandGaps turns LAG boundary pairs into the full sorted list of missing
// dates, then extends the expectation to the period's edges: days before the
// observed min and after the observed max are gaps too.
func expandGaps(pairs [][2]time.Time, minDate, maxDate time.Time, period common.Period, anyData bool) []time.Time {
	var gaps []time.Time

	if !anyData {
		// an empty table misses the whole expected period
		if !period.IsAll() {
			gaps = append(gaps, period.Days()...)
		}
		return gaps
	}

	if !period.IsAll() {
		for d := period.Start; d.Before(minDate); d = d.AddDate(0, 0, 1) {
			gaps = append(gaps, d)
		}
	}
	for _, pair := range pairs {
		for d := pair[0].AddDate(0, 0, 1); d.Before(pair[1]); d = d.AddDate(0, 0, 1) {
			gaps = append(gaps, d)
		}
	}
	if !period.IsAll() {
		for d := maxDate.AddDate(0, 0, 1); !d.After(period.End); d = d.AddDate(0, 0, 1) {
			gaps = append(gaps, d)
		}
	}
	return gaps
}

func (v *Validator) countRows(ctx context.Context, canonicalTable, dateColumn string, period common.Period) (int64, error) {
	where := ""
	var binds []any
	if dateColumn != "" && !period.IsAll() {
		cols, err := v.cache.RequireColumns(ctx, v.session, canonicalTable, dateColumn)
		if err != nil {
			return 0, err
		}
		where, binds = periodFilter(cols[0], period)
	}

	rows, err := v.session.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s %s", canonicalTable, where), binds...)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	n, _ := asInt64(rows[0][0])
	return n, nil
}

// periodFilter renders the conditional WHERE clause: a bounded period narrows
// the scan, the unbounded period scans the whole table.
func periodFilter(canonicalDateColumn string, period common.Period) (string, []any) {
	if period.IsAll() {
		return "", nil
	}
	return fmt.Sprintf("WHERE %s BETWEEN ? AND ?", canonicalDateColumn),
		[]any{common.FormatDate(period.Start), common.FormatDate(period.End)}
}

// composeVerdict computes Valid and the ordered FailureReasons: gaps first,
// then severely-low dates, then critical duplicates.
func (v *Validator) composeVerdict(report *ValidationReport) {
	report.Valid = true

	if len(report.Gaps) > 0 {
		report.Valid = false
		report.FailureReasons = append(report.FailureReasons,
			fmt.Sprintf("%d date(s) missing", len(report.Gaps)))
	}

	severelyLow := 0
	for _, anomaly := range report.Anomalies {
		if anomaly.Class == common.EAnomalyClass.SeverelyLow() {
			severelyLow++
		}
	}
	if severelyLow > 0 {
		report.Valid = false
		report.FailureReasons = append(report.FailureReasons,
			fmt.Sprintf("%d date(s) with severely low row counts", severelyLow))
	}

	if report.Duplicates != nil && report.Duplicates.Severity == common.EDupSeverity.Critical() && report.Duplicates.Groups > 0 {
		report.Valid = false
		report.FailureReasons = append(report.FailureReasons,
			fmt.Sprintf("critical duplicate keys: %d group(s), %d excess row(s)",
				report.Duplicates.Groups, report.Duplicates.ExcessRows))
	}
}
