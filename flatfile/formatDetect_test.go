package flatfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/manifest"
)

func TestResolveDelimiterPrefersExplicitSpec(t *testing.T) {
	a := assert.New(t)

	d, err := ResolveDelimiter("whatever.txt", manifest.FileSpec{Delimiter: '|'})
	require.NoError(t, err)
	a.Equal(byte('|'), d)
}

func TestResolveDelimiterByExtension(t *testing.T) {
	a := assert.New(t)

	auto := manifest.FileSpec{Format: common.EFileFormat.Auto()}

	d, err := ResolveDelimiter("data.CSV", auto)
	require.NoError(t, err)
	a.Equal(byte(','), d)

	d, err = ResolveDelimiter("data.tsv", auto)
	require.NoError(t, err)
	a.Equal(byte('\t'), d)
}

func TestSniffDelimiterPicksConsistentCandidate(t *testing.T) {
	a := assert.New(t)

	// pipes are consistent at 4 fields; commas appear but vary per line
	content := "a|b|c,x|d\n" +
		"e|f|g|h\n" +
		"i|j|k,,|l\n" +
		"m|n|o|p\n"
	path := writeTempFile(t, "data.txt", content)

	d, err := sniffDelimiter(path)
	require.NoError(t, err)
	a.Equal(byte('|'), d)
}

func TestSniffDelimiterSkipsBlankLines(t *testing.T) {
	a := assert.New(t)

	path := writeTempFile(t, "gappy.txt", "\n\na;b;c\nd;e;f\n\n g;h;i\n")

	d, err := sniffDelimiter(path)
	require.NoError(t, err)
	a.Equal(byte(';'), d)
}

func TestSniffDelimiterFailsOnSingleColumn(t *testing.T) {
	a := assert.New(t)

	path := writeTempFile(t, "plain.txt", "just some words\nno delimiters here\n")

	_, err := sniffDelimiter(path)
	a.Error(err)

	var detectErr *FormatDetectError
	a.ErrorAs(err, &detectErr)
	a.Equal(path, detectErr.Path)
}
