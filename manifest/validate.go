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

package manifest

import (
	"fmt"
	"strings"

	"github.com/wastore/sfcopy/common"
)

// ConfigError reports one rule the manifest breaks. The Field names the JSON
// member, qualified by the files[] index where that matters.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Reason)
}

const (
	tokenDateRange = "{date_range}"
	tokenMonth     = "{month}"
)

func (rm rawManifest) cook() (*Manifest, error) {
	conn, err := rm.Snowflake.cook()
	if err != nil {
		return nil, err
	}

	if len(rm.Files) == 0 {
		return nil, &ConfigError{Field: "files", Reason: "at least one file spec is required"}
	}

	m := &Manifest{Snowflake: conn, Files: make([]FileSpec, 0, len(rm.Files))}
	tables := make(map[string]int)
	for i, rf := range rm.Files {
		fs, err := rf.cook(i)
		if err != nil {
			return nil, err
		}

		// Two specs loading one table would share a table stage and race on
		// stage cleanup, so same-table siblings are rejected up front.
		if prev, dup := tables[fs.TableName]; dup {
			return nil, &ConfigError{
				Field:  fmt.Sprintf("files[%d].table_name", i),
				Reason: fmt.Sprintf("table %q already used by files[%d]", fs.TableName, prev),
			}
		}
		tables[fs.TableName] = i

		m.Files = append(m.Files, fs)
	}

	return m, nil
}

func (rc rawConnection) cook() (Connection, error) {
	conn := Connection{
		Account:   rc.Account,
		User:      rc.User,
		Password:  rc.Password,
		Warehouse: rc.Warehouse,
		Database:  rc.Database,
		Schema:    rc.Schema,
		Role:      common.IffStringNotNil(rc.Role, ""),
	}

	// the environment wins over the manifest, so manifests need not hold secrets
	if fromEnv := common.GetEnvironmentVariable(common.EEnvironmentVariable.WarehousePassword()); fromEnv != "" {
		conn.Password = fromEnv
	}

	required := []struct {
		name  string
		value string
	}{
		{"account", conn.Account},
		{"user", conn.User},
		{"password", conn.Password},
		{"warehouse", conn.Warehouse},
		{"database", conn.Database},
		{"schema", conn.Schema},
	}
	for _, r := range required {
		if r.value == "" {
			return Connection{}, &ConfigError{Field: "snowflake." + r.name, Reason: "required"}
		}
	}

	return conn, nil
}

func (rf rawFileSpec) cook(i int) (FileSpec, error) {
	field := func(name string) string { return fmt.Sprintf("files[%d].%s", i, name) }

	if rf.FilePattern == "" {
		return FileSpec{}, &ConfigError{Field: field("file_pattern"), Reason: "required"}
	}

	rangeCount := strings.Count(rf.FilePattern, tokenDateRange)
	monthCount := strings.Count(rf.FilePattern, tokenMonth)
	var placeholder common.PlaceholderKind
	switch {
	case rangeCount == 1 && monthCount == 0:
		placeholder = common.EPlaceholderKind.DateRange()
	case rangeCount == 0 && monthCount == 1:
		placeholder = common.EPlaceholderKind.Month()
	default:
		return FileSpec{}, &ConfigError{
			Field:  field("file_pattern"),
			Reason: fmt.Sprintf("must contain exactly one of %s or %s", tokenDateRange, tokenMonth),
		}
	}

	if rf.TableName == "" {
		return FileSpec{}, &ConfigError{Field: field("table_name"), Reason: "required"}
	}

	format := common.EFileFormat.Auto()
	if rf.FileFormat != nil {
		if err := format.Parse(*rf.FileFormat); err != nil {
			return FileSpec{}, &ConfigError{
				Field:  field("file_format"),
				Reason: fmt.Sprintf("%q is not one of TSV, CSV, AUTO", *rf.FileFormat),
			}
		}
	}

	delimiter := format.DefaultDelimiter()
	if rf.Delimiter != nil {
		if len(*rf.Delimiter) != 1 {
			return FileSpec{}, &ConfigError{Field: field("delimiter"), Reason: "must be a single byte"}
		}
		delimiter = (*rf.Delimiter)[0]
	}

	var quote byte
	if rf.QuoteChar != nil {
		if len(*rf.QuoteChar) != 1 {
			return FileSpec{}, &ConfigError{Field: field("quote_char"), Reason: "must be a single byte"}
		}
		quote = (*rf.QuoteChar)[0]
	}

	if len(rf.ExpectedColumns) == 0 {
		return FileSpec{}, &ConfigError{Field: field("expected_columns"), Reason: "required"}
	}
	colSet := make(map[string]bool, len(rf.ExpectedColumns))
	for j, col := range rf.ExpectedColumns {
		if col == "" {
			return FileSpec{}, &ConfigError{
				Field:  field("expected_columns"),
				Reason: fmt.Sprintf("column %d is empty", j),
			}
		}
		colSet[col] = true
	}

	dateColumn := common.IffStringNotNil(rf.DateColumn, "")
	if dateColumn != "" && !colSet[dateColumn] {
		return FileSpec{}, &ConfigError{
			Field:  field("date_column"),
			Reason: fmt.Sprintf("%q is not among expected_columns", dateColumn),
		}
	}

	for _, key := range rf.DuplicateKeyColumns {
		if !colSet[key] {
			return FileSpec{}, &ConfigError{
				Field:  field("duplicate_key_columns"),
				Reason: fmt.Sprintf("%q is not among expected_columns", key),
			}
		}
	}

	return FileSpec{
		Pattern:             rf.FilePattern,
		Placeholder:         placeholder,
		TableName:           rf.TableName,
		Format:              format,
		Delimiter:           delimiter,
		QuoteChar:           quote,
		DateColumn:          dateColumn,
		ExpectedColumns:     rf.ExpectedColumns,
		DuplicateKeyColumns: rf.DuplicateKeyColumns,
	}, nil
}
