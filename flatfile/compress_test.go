package flatfile

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
)

func TestCompressRoundTrips(t *testing.T) {
	a := assert.New(t)

	content := strings.Repeat("2024-01-01\tAAPL\t192.53\n", 10_000)
	path := writeTempFile(t, "prices.tsv", content)

	var progressed int64
	gzPath, err := Compress(context.Background(), path, func(delta int64) { progressed += delta })
	require.NoError(t, err)

	a.Equal(path+".gz", gzPath)
	a.Equal(int64(len(content)), progressed)

	f, err := os.Open(gzPath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	decompressed, err := io.ReadAll(gz)
	require.NoError(t, err)
	a.Equal(content, string(decompressed))
}

func TestCompressMissingInput(t *testing.T) {
	a := assert.New(t)

	_, err := Compress(context.Background(), "/no/such/file.tsv", nil)
	a.Error(err)

	var compressErr *CompressError
	a.ErrorAs(err, &compressErr)
}

func TestCompressCancellationRemovesPartialOutput(t *testing.T) {
	a := assert.New(t)

	path := writeTempFile(t, "big.tsv", strings.Repeat("row\n", 1000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // observed at the first block boundary

	_, err := Compress(ctx, path, nil)
	a.ErrorIs(err, common.ErrCancelled)

	_, statErr := os.Stat(path + ".gz")
	a.True(os.IsNotExist(statErr))
}

func TestCheckDiskSpaceQuietWhenRoomy(t *testing.T) {
	a := assert.New(t)

	// a 3-byte input needs ~1 byte free; any real filesystem passes
	path := writeTempFile(t, "tiny.tsv", "x\n")
	a.Empty(CheckDiskSpace(path, 3))
}
