package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
)

const validManifest = `{
	"snowflake": {
		"account": "myorg-myaccount",
		"user": "loader",
		"password": "hunter2",
		"warehouse": "LOAD_WH",
		"database": "MARKET",
		"schema": "RAW"
	},
	"files": [
		{
			"file_pattern": "trades_{date_range}.tsv",
			"table_name": "TRADES",
			"file_format": "TSV",
			"date_column": "trade_date",
			"expected_columns": ["trade_date", "symbol", "price", "qty"],
			"duplicate_key_columns": ["trade_date", "symbol"]
		},
		{
			"file_pattern": "quotes_{month}.csv",
			"table_name": "QUOTES",
			"file_format": "CSV",
			"quote_char": "\"",
			"expected_columns": ["quote_date", "symbol", "bid", "ask"]
		}
	]
}`

func TestParseValidManifest(t *testing.T) {
	a := assert.New(t)

	m, err := Parse([]byte(validManifest))
	require.NoError(t, err)

	a.Equal("myorg-myaccount", m.Snowflake.Account)
	a.Equal("RAW", m.Snowflake.Schema)
	a.Empty(m.Snowflake.Role)
	require.Len(t, m.Files, 2)

	trades := m.Files[0]
	a.Equal(common.EPlaceholderKind.DateRange(), trades.Placeholder)
	a.Equal(common.EFileFormat.TSV(), trades.Format)
	a.Equal(byte('\t'), trades.Delimiter)
	a.Equal(byte(0), trades.QuoteChar)
	a.Equal("trade_date", trades.DateColumn)
	a.Equal(0, trades.DateColumnIndex())
	a.True(trades.HasQC())

	quotes := m.Files[1]
	a.Equal(common.EPlaceholderKind.Month(), quotes.Placeholder)
	a.Equal(byte(','), quotes.Delimiter)
	a.Equal(byte('"'), quotes.QuoteChar)
	a.Empty(quotes.DateColumn)
	a.Equal(-1, quotes.DateColumnIndex())

	a.Equal(&m.Files[1], m.SpecForTable("QUOTES"))
	a.Nil(m.SpecForTable("NOPE"))
}

func TestLoadCachesPerPath(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(validManifest), 0644))

	first, err := Load(path)
	require.NoError(t, err)

	// even if the file changes on disk, the process keeps its loaded copy
	require.NoError(t, os.WriteFile(path, []byte("{ not even json"), 0644))
	second, err := Load(path)
	require.NoError(t, err)
	a.Same(first, second)
}

func TestPasswordFromEnvironment(t *testing.T) {
	a := assert.New(t)

	t.Setenv(common.EEnvironmentVariable.WarehousePassword().Name, "fromenv")
	m, err := Parse([]byte(validManifest))
	require.NoError(t, err)
	a.Equal("fromenv", m.Snowflake.Password)
}

func mustConfigError(t *testing.T, raw string, wantField string) {
	t.Helper()
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	cfgErr, ok := err.(*ConfigError)
	require.True(t, ok, "expected *ConfigError, got %T: %v", err, err)
	assert.Equal(t, wantField, cfgErr.Field)
}

func TestRejectsMissingConnectionFields(t *testing.T) {
	mustConfigError(t, `{
		"snowflake": {"account": "a", "user": "u", "password": "p", "warehouse": "w", "database": "d"},
		"files": [{"file_pattern": "x_{month}.tsv", "table_name": "T", "expected_columns": ["c"]}]
	}`, "snowflake.schema")
}

func TestRejectsEmptyFiles(t *testing.T) {
	mustConfigError(t, `{
		"snowflake": {"account": "a", "user": "u", "password": "p", "warehouse": "w", "database": "d", "schema": "s"},
		"files": []
	}`, "files")
}

func TestRejectsBadPlaceholders(t *testing.T) {
	connection := `"snowflake": {"account": "a", "user": "u", "password": "p", "warehouse": "w", "database": "d", "schema": "s"}`

	// no placeholder at all
	mustConfigError(t, `{`+connection+`,
		"files": [{"file_pattern": "static.tsv", "table_name": "T", "expected_columns": ["c"]}]
	}`, "files[0].file_pattern")

	// both placeholders at once
	mustConfigError(t, `{`+connection+`,
		"files": [{"file_pattern": "x_{month}_{date_range}.tsv", "table_name": "T", "expected_columns": ["c"]}]
	}`, "files[0].file_pattern")

	// the same placeholder twice
	mustConfigError(t, `{`+connection+`,
		"files": [{"file_pattern": "{month}_{month}.tsv", "table_name": "T", "expected_columns": ["c"]}]
	}`, "files[0].file_pattern")
}

func TestRejectsDuplicateTables(t *testing.T) {
	mustConfigError(t, `{
		"snowflake": {"account": "a", "user": "u", "password": "p", "warehouse": "w", "database": "d", "schema": "s"},
		"files": [
			{"file_pattern": "x_{month}.tsv", "table_name": "T", "expected_columns": ["c"]},
			{"file_pattern": "y_{month}.tsv", "table_name": "T", "expected_columns": ["c"]}
		]
	}`, "files[1].table_name")
}

func TestRejectsBadColumns(t *testing.T) {
	connection := `"snowflake": {"account": "a", "user": "u", "password": "p", "warehouse": "w", "database": "d", "schema": "s"}`

	mustConfigError(t, `{`+connection+`,
		"files": [{"file_pattern": "x_{month}.tsv", "table_name": "T", "expected_columns": []}]
	}`, "files[0].expected_columns")

	mustConfigError(t, `{`+connection+`,
		"files": [{"file_pattern": "x_{month}.tsv", "table_name": "T",
			"date_column": "dt", "expected_columns": ["a", "b"]}]
	}`, "files[0].date_column")

	mustConfigError(t, `{`+connection+`,
		"files": [{"file_pattern": "x_{month}.tsv", "table_name": "T",
			"expected_columns": ["a", "b"], "duplicate_key_columns": ["a", "z"]}]
	}`, "files[0].duplicate_key_columns")
}

func TestRejectsBadFormatAndDelimiter(t *testing.T) {
	connection := `"snowflake": {"account": "a", "user": "u", "password": "p", "warehouse": "w", "database": "d", "schema": "s"}`

	mustConfigError(t, `{`+connection+`,
		"files": [{"file_pattern": "x_{month}.tsv", "table_name": "T", "file_format": "PARQUET", "expected_columns": ["c"]}]
	}`, "files[0].file_format")

	mustConfigError(t, `{`+connection+`,
		"files": [{"file_pattern": "x_{month}.tsv", "table_name": "T", "delimiter": "||", "expected_columns": ["c"]}]
	}`, "files[0].delimiter")
}
