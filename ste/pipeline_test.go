package ste

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/flatfile"
	"github.com/wastore/sfcopy/manifest"
	"github.com/wastore/sfcopy/warehouse"
)

// writeSalesFile generates sales_2024-01.tsv: rowsPerDay rows for every
// January day except the skipped ones.
func writeSalesFile(t *testing.T, dir string, rowsPerDay int, skipDays ...int) string {
	t.Helper()
	skip := make(map[int]bool)
	for _, d := range skipDays {
		skip[d] = true
	}

	var sb strings.Builder
	for day := 1; day <= 31; day++ {
		if skip[day] {
			continue
		}
		for i := 0; i < rowsPerDay; i++ {
			fmt.Fprintf(&sb, "2024-01-%02d\tA%d\t%d\n", day, i, i*10)
		}
	}
	path := filepath.Join(dir, "sales_2024-01.tsv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

func salesManifest(basePath string) *manifest.Manifest {
	return &manifest.Manifest{
		Snowflake: manifest.Connection{
			Account: "org-acct", User: "loader", Password: "pw",
			Warehouse: "LOAD_WH", Database: "MARKET", Schema: "RAW",
		},
		Files: []manifest.FileSpec{{
			Pattern:         "sales_{month}.tsv",
			Placeholder:     common.EPlaceholderKind.Month(),
			TableName:       "SALES",
			Format:          common.EFileFormat.TSV(),
			Delimiter:       '\t',
			DateColumn:      "d",
			ExpectedColumns: []string{"d", "a", "v"},
		}},
		Path: filepath.Join(basePath, "manifest.json"),
	}
}

func TestRunnerHappyPath(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	input := writeSalesFile(t, dir, 100)

	fake := warehouse.NewFakeSession()
	r := NewRunner(salesManifest(dir), fake, nil, RunOptions{BasePath: dir, QCWorkers: 1})

	outcome := r.Run(context.Background(), mustPeriod(t, "2024-01"))
	require.NoError(t, outcome.Err)
	a.False(outcome.Failed())

	require.Len(t, outcome.Files, 1)
	file := outcome.Files[0]
	a.Equal(common.EFileState.Done(), file.State)
	a.NoError(file.Err)
	require.NotNil(t, file.QC)
	a.Equal(int64(3100), file.QC.RowsScanned)
	a.Empty(file.QC.Gaps)
	require.NotNil(t, file.Estimate)
	a.Equal(int64(3100), file.Estimate.Rows)

	// stage hygiene: cleanup before put, then the copy
	a.Len(fake.ExecsContaining("REMOVE @%SALES"), 1)
	a.Len(fake.ExecsContaining("PUT '"), 1)
	copies := fake.ExecsContaining("COPY INTO SALES")
	require.Len(t, copies, 1)
	a.Contains(copies[0], "FILES = ('sales_2024-01.tsv.gz')")
	a.NotContains(copies[0], "SKIP_HEADER") // the file carries no header row

	// the compressed temp is gone after the commit
	_, err := os.Stat(input + ".gz")
	a.True(os.IsNotExist(err))
	// and the input itself survives
	_, err = os.Stat(input)
	a.NoError(err)
}

func TestRunnerHeaderedFileSkipsHeaderInCopy(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "sales_2024-01.tsv")
	content := "d\ta\tv\n2024-01-01\tA1\t10\n2024-01-01\tA2\t20\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	fake := warehouse.NewFakeSession()
	r := NewRunner(salesManifest(dir), fake, nil, RunOptions{BasePath: dir, SkipQC: true})

	outcome := r.Run(context.Background(), mustPeriod(t, "2024-01"))
	require.False(t, outcome.Failed(), "%s", outcome.Describe())

	copies := fake.ExecsContaining("COPY INTO SALES")
	require.Len(t, copies, 1)
	a.Contains(copies[0], "SKIP_HEADER = 1")
	a.Equal(common.EFileState.Done(), outcome.Files[0].State)
}

func TestRunnerQCGapRefusesLoad(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	writeSalesFile(t, dir, 100, 15) // 2024-01-15 missing

	fake := warehouse.NewFakeSession()
	r := NewRunner(salesManifest(dir), fake, nil, RunOptions{BasePath: dir, QCWorkers: 1})

	outcome := r.Run(context.Background(), mustPeriod(t, "2024-01"))
	a.True(outcome.Failed())

	require.Len(t, outcome.Files, 1)
	file := outcome.Files[0]
	a.Equal(common.EFileState.Failed(), file.State)

	var qcErr *flatfile.QCError
	require.ErrorAs(t, file.Err, &qcErr)
	require.Len(t, qcErr.Report.Gaps, 1)
	a.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), qcErr.Report.Gaps[0])

	// nothing reached the warehouse
	a.Empty(fake.Execs)

	// no compressed debris either
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		a.NotContains(e.Name(), ".gz")
	}
}

func TestRunnerValidateInWarehouse(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	writeSalesFile(t, dir, 100, 15)

	fake := warehouse.NewFakeSession()
	fake.StubQuery("INFORMATION_SCHEMA.COLUMNS", []warehouse.Row{
		{"SALES", "D"}, {"SALES", "A"}, {"SALES", "V"},
	})
	// the warehouse sees the gap the streaming check was told to skip
	fake.StubQuery("WITH per_date", []warehouse.Row{
		{"summary", "2024-01-01", "2024-01-31", int64(30), int64(3000)},
		{"gap_after", "2024-01-14", "2024-01-16", nil, nil},
	})

	r := NewRunner(salesManifest(dir), fake, nil, RunOptions{BasePath: dir, ValidateInWarehouse: true})

	outcome := r.Run(context.Background(), mustPeriod(t, "2024-01"))
	a.True(outcome.Failed()) // load went through, verdict is invalid

	require.Len(t, outcome.Files, 1)
	a.Equal(common.EFileState.Done(), outcome.Files[0].State)
	a.Nil(outcome.Files[0].QC) // streaming check was skipped

	require.Len(t, outcome.Validations, 1)
	verdict := outcome.Validations[0]
	a.False(verdict.Valid)
	a.Equal([]string{"1 date(s) missing"}, verdict.FailureReasons)

	// the load really did commit before validation ran
	a.Len(fake.ExecsContaining("COPY INTO SALES"), 1)
}

func TestRunnerAnalyzeOnly(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	writeSalesFile(t, dir, 10)

	fake := warehouse.NewFakeSession()
	r := NewRunner(salesManifest(dir), fake, nil, RunOptions{BasePath: dir, AnalyzeOnly: true})

	outcome := r.Run(context.Background(), mustPeriod(t, "2024-01"))
	a.False(outcome.Failed())

	require.Len(t, outcome.Files, 1)
	a.Equal(common.EFileState.Analyzed(), outcome.Files[0].State)
	require.NotNil(t, outcome.Files[0].Estimate)
	a.Equal(int64(310), outcome.Files[0].Estimate.Rows)

	a.Empty(fake.Execs)
	a.Empty(fake.Queries)
}

func TestRunnerNoMatchingFiles(t *testing.T) {
	a := assert.New(t)

	fake := warehouse.NewFakeSession()
	dir := t.TempDir()
	r := NewRunner(salesManifest(dir), fake, nil, RunOptions{BasePath: dir})

	outcome := r.Run(context.Background(), mustPeriod(t, "2024-01"))
	a.True(outcome.Failed())
	a.ErrorContains(outcome.Err, "no input files")
}

func TestRunnerCancelledBeforeStart(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	writeSalesFile(t, dir, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := warehouse.NewFakeSession()
	r := NewRunner(salesManifest(dir), fake, nil, RunOptions{BasePath: dir})

	outcome := r.Run(ctx, mustPeriod(t, "2024-01"))
	a.True(outcome.Failed())
	require.Len(t, outcome.Files, 1)
	a.ErrorIs(outcome.Files[0].Err, common.ErrCancelled)
}

func TestRunnerValidateOnly(t *testing.T) {
	a := assert.New(t)

	// no input file on disk at all; validate-only never looks for one
	dir := t.TempDir()

	fake := warehouse.NewFakeSession()
	fake.StubQuery("INFORMATION_SCHEMA.COLUMNS", []warehouse.Row{
		{"SALES", "D"}, {"SALES", "A"}, {"SALES", "V"},
	})
	fake.StubQuery("WITH per_date", []warehouse.Row{
		{"summary", "2024-01-01", "2024-01-31", int64(31), int64(3100)},
	})

	r := NewRunner(salesManifest(dir), fake, nil, RunOptions{BasePath: dir, ValidateOnly: true})

	outcome := r.Run(context.Background(), mustPeriod(t, "2024-01"))
	require.NoError(t, outcome.Err)
	a.False(outcome.Failed())
	a.Empty(outcome.Files)

	require.Len(t, outcome.Validations, 1)
	a.True(outcome.Validations[0].Valid)
	a.Empty(fake.ExecsContaining("COPY INTO"))
}
