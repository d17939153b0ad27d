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
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wastore/sfcopy/common"
)

// classifyAnomalies grades each date's row count against the distribution of
// all counts in the report and returns the dates that are not Normal.
// Classification is first-match-wins: SeverelyLow, Low, OutlierLow, Normal,
// OutlierHigh; a count claimed by an earlier class never re-labels.
func classifyAnomalies(counts []DateCount) []DateAnomaly {
	if len(counts) == 0 {
		return nil
	}

	values := make([]float64, len(counts))
	for i, dc := range counts {
		values[i] = float64(dc.Rows)
	}
	mean := stat.Mean(values, nil)

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1

	var anomalies []DateAnomaly
	for _, dc := range counts {
		class := classifyCount(float64(dc.Rows), mean, q1, q3, iqr)
		if class != common.EAnomalyClass.Normal() {
			anomalies = append(anomalies, DateAnomaly{Date: dc.Date, Rows: dc.Rows, Class: class})
		}
	}
	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].Date.Before(anomalies[j].Date) })
	return anomalies
}

// classifyCount is total over non-negative counts: any count that escapes
// every predicate lands on Normal.
func classifyCount(c, mean, q1, q3, iqr float64) common.AnomalyClass {
	switch {
	case c < 0.10*mean:
		return common.EAnomalyClass.SeverelyLow()
	case c < 0.50*mean:
		return common.EAnomalyClass.Low()
	case c < q1-1.5*iqr:
		return common.EAnomalyClass.OutlierLow()
	case c >= 0.90*mean && c <= 1.10*mean:
		return common.EAnomalyClass.Normal()
	case c > q3+1.5*iqr:
		return common.EAnomalyClass.OutlierHigh()
	default:
		return common.EAnomalyClass.Normal()
	}
}
