package ste

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/manifest"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("d\ta\tv\n"), 0644))
	return path
}

func mustPeriod(t *testing.T, s string) common.Period {
	t.Helper()
	p, err := common.ParsePeriod(s)
	require.NoError(t, err)
	return p
}

func TestDiscoverMonthPatternExactFilename(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	want := touch(t, dir, "sales_2024-01.tsv")
	touch(t, dir, "sales_2024-02.tsv") // different month, must not match

	spec := &manifest.FileSpec{Pattern: "sales_{month}.tsv", Placeholder: common.EPlaceholderKind.Month()}
	files, err := DiscoverFiles(dir, spec, mustPeriod(t, "2024-01"))
	require.NoError(t, err)

	require.Len(t, files, 1)
	a.Equal(want, files[0].Path)
	a.Equal("2024-01", files[0].Period.String())
}

func TestDiscoverMonthPatternMissingFile(t *testing.T) {
	a := assert.New(t)

	spec := &manifest.FileSpec{Pattern: "sales_{month}.tsv", Placeholder: common.EPlaceholderKind.Month()}
	files, err := DiscoverFiles(t.TempDir(), spec, mustPeriod(t, "2024-01"))
	require.NoError(t, err)
	a.Empty(files)
}

func TestDiscoverMonthPatternUnboundedPeriodScans(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	touch(t, dir, "sales_2024-01.tsv")
	touch(t, dir, "sales_2024-02.tsv")
	touch(t, dir, "sales_2024-77.tsv") // matches the shape, not the calendar
	touch(t, dir, "inventory_2024-01.tsv")

	spec := &manifest.FileSpec{Pattern: "sales_{month}.tsv", Placeholder: common.EPlaceholderKind.Month()}
	files, err := DiscoverFiles(dir, spec, common.Period{})
	require.NoError(t, err)

	require.Len(t, files, 2)
	// sorted by path
	a.Contains(files[0].Path, "sales_2024-01.tsv")
	a.Contains(files[1].Path, "sales_2024-02.tsv")
}

func TestDiscoverDateRangeContainment(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	touch(t, dir, "trades_20240101-20240115.csv")
	touch(t, dir, "trades_20240116-20240131.csv")
	touch(t, dir, "trades_20240125-20240210.csv") // spills past the period

	spec := &manifest.FileSpec{Pattern: "trades_{date_range}.csv", Placeholder: common.EPlaceholderKind.DateRange()}
	files, err := DiscoverFiles(dir, spec, mustPeriod(t, "20240101-20240131"))
	require.NoError(t, err)

	require.Len(t, files, 2)
	a.Contains(files[0].Path, "20240101-20240115")
	a.Contains(files[1].Path, "20240116-20240131")

	// the file's own token becomes its period
	a.Equal("20240101-20240115", files[0].Period.DateRangeToken())
}

func TestDiscoverDateRangeUnboundedKeepsEverything(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	touch(t, dir, "trades_20240101-20240115.csv")
	touch(t, dir, "trades_20250601-20250630.csv")

	spec := &manifest.FileSpec{Pattern: "trades_{date_range}.csv", Placeholder: common.EPlaceholderKind.DateRange()}
	files, err := DiscoverFiles(dir, spec, common.Period{})
	require.NoError(t, err)
	a.Len(files, 2)
}

func TestDiscoverPatternAnchoredToWholeName(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	touch(t, dir, "old_trades_20240101-20240115.csv")
	touch(t, dir, "trades_20240101-20240115.csv.bak")

	spec := &manifest.FileSpec{Pattern: "trades_{date_range}.csv", Placeholder: common.EPlaceholderKind.DateRange()}
	files, err := DiscoverFiles(dir, spec, common.Period{})
	require.NoError(t, err)
	a.Empty(files)
}
