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

	"github.com/wastore/sfcopy/common"
)

const duplicateSampleCap = 5

// DuplicateGroup is one sampled key tuple that occurs more than once.
type DuplicateGroup struct {
	KeyValues []string // aligned with the configured key columns
	Count     int64
}

// DuplicateReport summarizes duplicate-key findings for one table and period.
type DuplicateReport struct {
	KeyColumns []string
	Groups     int64 // distinct key tuples with multiplicity > 1
	ExcessRows int64 // rows beyond the first occurrence, summed over groups
	TotalRows  int64
	Samples    []DuplicateGroup // worst offenders first, capped
	Severity   common.DupSeverity
}

// Describe renders the finding for operators.
func (r *DuplicateReport) Describe() string {
	if r.Groups == 0 {
		return fmt.Sprintf("no duplicate (%s) tuples", strings.Join(r.KeyColumns, ", "))
	}
	return fmt.Sprintf("%s: %d duplicate group(s) on (%s), %d excess row(s)",
		r.Severity, r.Groups, strings.Join(r.KeyColumns, ", "), r.ExcessRows)
}

// checkDuplicates runs the one grouped statement: HAVING filters to
// multiplicity > 1, window aggregates carry the group count and excess total
// on every row, and the LIMIT keeps only the worst sample groups.
func (v *Validator) checkDuplicates(ctx context.Context, table, dateColumn string, keys []string, period common.Period, totalRows int64) (*DuplicateReport, error) {
	canonicalTable, err := v.cache.RequireTable(ctx, v.session, table)
	if err != nil {
		return nil, err
	}
	canonicalKeys, err := v.cache.RequireColumns(ctx, v.session, table, keys...)
	if err != nil {
		return nil, err
	}

	where := ""
	var binds []any
	if dateColumn != "" && !period.IsAll() {
		cols, err := v.cache.RequireColumns(ctx, v.session, table, dateColumn)
		if err != nil {
			return nil, err
		}
		where, binds = periodFilter(cols[0], period)
	}

	keyList := strings.Join(canonicalKeys, ", ")
	sql := fmt.Sprintf(`
WITH dup AS (
    SELECT %[1]s, COUNT(*) AS c
    FROM %[2]s
    %[3]s
    GROUP BY %[1]s
    HAVING COUNT(*) > 1
)
SELECT COUNT(*) OVER () AS groups, SUM(c - 1) OVER () AS excess, c, %[1]s
FROM dup
ORDER BY c DESC
LIMIT %[4]d`, keyList, canonicalTable, where, duplicateSampleCap)

	rows, err := v.session.Query(ctx, sql, binds...)
	if err != nil {
		return nil, err
	}

	report := &DuplicateReport{KeyColumns: canonicalKeys, TotalRows: totalRows}
	var maxGroup int64
	for _, row := range rows {
		if len(row) < 3+len(canonicalKeys) {
			continue
		}
		report.Groups, _ = asInt64(row[0])
		report.ExcessRows, _ = asInt64(row[1])
		count, _ := asInt64(row[2])
		if count > maxGroup {
			maxGroup = count
		}
		values := make([]string, len(canonicalKeys))
		for i := range canonicalKeys {
			values[i] = asString(row[3+i])
		}
		report.Samples = append(report.Samples, DuplicateGroup{KeyValues: values, Count: count})
	}

	report.Severity = duplicateSeverity(report.ExcessRows, totalRows, maxGroup)
	return report, nil
}

// duplicateSeverity grades by the share of the table affected or the worst
// single group, whichever is uglier.
func duplicateSeverity(excess, totalRows, maxGroup int64) common.DupSeverity {
	share := 0.0
	if totalRows > 0 {
		share = float64(excess) / float64(totalRows)
	}

	switch {
	case share > 0.10 || maxGroup > 100:
		return common.EDupSeverity.Critical()
	case share > 0.05 || maxGroup > 50:
		return common.EDupSeverity.High()
	case share > 0.01 || maxGroup > 10:
		return common.EDupSeverity.Medium()
	default:
		return common.EDupSeverity.Low()
	}
}
