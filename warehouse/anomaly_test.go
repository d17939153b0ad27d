package warehouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifySeverelyLowDay(t *testing.T) {
	a := assert.New(t)

	// S3: one day at 12 rows among days of 48,000
	counts := make([]DateCount, 0, 31)
	for d := 1; d <= 31; d++ {
		rows := int64(48_000)
		if d == 15 {
			rows = 12
		}
		counts = append(counts, DateCount{Date: day(d), Rows: rows})
	}

	anomalies := classifyAnomalies(counts)
	require.Len(t, anomalies, 1)
	a.Equal(day(15), anomalies[0].Date)
	a.Equal(int64(12), anomalies[0].Rows)
	a.Equal(common.EAnomalyClass.SeverelyLow(), anomalies[0].Class)
}

func TestClassifyUniformCountsAreNormal(t *testing.T) {
	a := assert.New(t)

	counts := make([]DateCount, 0, 10)
	for d := 1; d <= 10; d++ {
		counts = append(counts, DateCount{Date: day(d), Rows: 1000})
	}
	a.Empty(classifyAnomalies(counts))
}

func TestClassifyFirstMatchWins(t *testing.T) {
	a := assert.New(t)

	// mean 100: 5 is SeverelyLow even if it is also below Q1 - 1.5*IQR
	a.Equal(common.EAnomalyClass.SeverelyLow(), classifyCount(5, 100, 90, 110, 20))
	// 40 is Low (0.1µ ≤ 40 < 0.5µ), not OutlierLow
	a.Equal(common.EAnomalyClass.Low(), classifyCount(40, 100, 90, 110, 20))
	// within ±10% of the mean is Normal
	a.Equal(common.EAnomalyClass.Normal(), classifyCount(95, 100, 90, 110, 20))
	a.Equal(common.EAnomalyClass.Normal(), classifyCount(110, 100, 90, 110, 20))
	// far above Q3 + 1.5*IQR
	a.Equal(common.EAnomalyClass.OutlierHigh(), classifyCount(500, 100, 90, 110, 20))
	// between 0.5µ and 0.9µ, inside the fences: total function falls to Normal
	a.Equal(common.EAnomalyClass.Normal(), classifyCount(70, 100, 50, 150, 100))
}

func TestClassifyTotalOverNonNegativeCounts(t *testing.T) {
	a := assert.New(t)

	// every non-negative count gets some label without panicking
	for c := 0.0; c <= 300; c += 7 {
		_ = classifyCount(c, 100, 90, 110, 20)
	}

	// zero mean (empty table dates) must not divide-by-zero its way out
	a.NotPanics(func() { classifyCount(0, 0, 0, 0, 0) })
}

func TestClassifyEmptyInput(t *testing.T) {
	assert.Nil(t, classifyAnomalies(nil))
}
