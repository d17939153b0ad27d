package flatfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEstimateCountsSmallFilesExactly(t *testing.T) {
	a := assert.New(t)

	var sb strings.Builder
	for i := 0; i < 1234; i++ {
		sb.WriteString("2024-01-01\tAAPL\t1.23\n")
	}
	path := writeTempFile(t, "rows.tsv", sb.String())

	est, err := EstimateFile(path)
	require.NoError(t, err)

	a.Equal(int64(1234), est.Rows)
	a.False(est.Sampled)
	a.Equal(int64(len(sb.String())), est.SizeBytes)
	a.Greater(est.TotalTime(), est.CompressTime)
}

func TestEstimateMissingFile(t *testing.T) {
	a := assert.New(t)

	_, err := EstimateFile(filepath.Join(t.TempDir(), "nope.tsv"))
	a.Error(err)

	var analyzeErr *AnalyzeError
	a.ErrorAs(err, &analyzeErr)
}

func TestSampleRowCountExtrapolates(t *testing.T) {
	a := assert.New(t)

	// uniform rows: the extrapolation should land on the exact count
	row := strings.Repeat("x", 99) + "\n" // 100 bytes per row
	path := writeTempFile(t, "uniform.txt", strings.Repeat(row, 50_000))

	rows, ok, err := sampleRowCount(path, int64(100*50_000))
	require.NoError(t, err)
	a.True(ok)
	a.InDelta(50_000, rows, 1)
}

func TestSampleRowCountRejectsSparseNewlines(t *testing.T) {
	a := assert.New(t)

	// one giant line: every sample sees fewer than 10 newlines
	content := strings.Repeat("y", 3*1024*1024) + "\n"
	path := writeTempFile(t, "sparse.txt", content)

	_, ok, err := sampleRowCount(path, int64(len(content)))
	require.NoError(t, err)
	a.False(ok)
}

func TestDescribeMentionsSizeAndRows(t *testing.T) {
	a := assert.New(t)

	est := Estimate{SizeBytes: 1024 * 1024, Rows: 5000}
	desc := est.Describe()
	a.Contains(desc, "MiB")
	a.Contains(desc, "5,000")
	a.Contains(desc, "counted")

	est.Sampled = true
	a.Contains(est.Describe(), "estimated")
}
