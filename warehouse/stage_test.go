package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagePutBuildsFileURL(t *testing.T) {
	a := assert.New(t)

	fake := NewFakeSession()
	err := StagePut(context.Background(), fake, "/data/in/sales_202401.csv.gz", "SALES")
	require.NoError(t, err)

	require.Len(t, fake.Execs, 1)
	sql := fake.Execs[0]
	a.Contains(sql, "PUT 'file:///data/in/sales_202401.csv.gz' @%SALES")
	a.Contains(sql, "AUTO_COMPRESS = FALSE")
	a.Contains(sql, "OVERWRITE = TRUE")
}

func TestStagePutFailureWrapsPath(t *testing.T) {
	a := assert.New(t)

	fake := NewFakeSession()
	fake.StubExecError("PUT ", assert.AnError)

	err := StagePut(context.Background(), fake, "/data/in/f.csv.gz", "SALES")

	var putErr *StagePutError
	require.ErrorAs(t, err, &putErr)
	a.Equal("/data/in/f.csv.gz", putErr.Path)
	a.ErrorIs(err, assert.AnError)
}

func TestStageCleanupQuotesBasename(t *testing.T) {
	a := assert.New(t)

	fake := NewFakeSession()
	err := StageCleanup(context.Background(), fake, "SALES", "sales_202401.csv.gz")
	require.NoError(t, err)

	require.Len(t, fake.Execs, 1)
	sql := fake.Execs[0]
	a.Contains(sql, "REMOVE @%SALES")
	// dots in the basename are literal, not regex wildcards
	a.Contains(sql, `PATTERN = '.*sales_202401\.csv\.gz.*'`)
}

func TestWarehouseSize(t *testing.T) {
	a := assert.New(t)

	fake := NewFakeSession()
	fake.StubQuery("SHOW WAREHOUSES", []Row{
		{"LOAD_WH", "STARTED", "STANDARD", "Medium"},
	})
	a.Equal("Medium", WarehouseSize(context.Background(), fake, "LOAD_WH"))

	empty := NewFakeSession()
	a.Empty(WarehouseSize(context.Background(), empty, "MISSING_WH"))
}

func TestUndersizedWarehouse(t *testing.T) {
	a := assert.New(t)

	a.True(UndersizedWarehouse("X-Small"))
	a.True(UndersizedWarehouse("Small"))
	a.False(UndersizedWarehouse("Medium"))
	a.False(UndersizedWarehouse(""))
}
