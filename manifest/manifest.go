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

// Package manifest loads and validates the JSON run manifest: the warehouse
// connection descriptor plus the list of file specs to ingest. A manifest is
// immutable once loaded and cached per path for the life of the process.
package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/wastore/sfcopy/common"
)

// Connection describes how to reach one warehouse database/schema.
// Only password auth is supported; key-pair and SSO flows are not carried.
type Connection struct {
	Account   string
	User      string
	Password  string
	Warehouse string
	Database  string
	Schema    string
	Role      string // optional
}

// FileSpec is the cooked form of one manifest entry: a dated file family
// bound to a destination table.
type FileSpec struct {
	Pattern             string
	Placeholder         common.PlaceholderKind
	TableName           string
	Format              common.FileFormat
	Delimiter           byte // 0 until format detection resolves Auto
	QuoteChar           byte // 0 means no quoting
	DateColumn          string
	ExpectedColumns     []string
	DuplicateKeyColumns []string
}

// HasQC reports whether streaming quality checks can do anything useful for
// this spec: with no expected columns there is nothing to verify.
func (fs FileSpec) HasQC() bool {
	return len(fs.ExpectedColumns) > 0
}

// DateColumnIndex returns the position of the date column, or -1.
func (fs FileSpec) DateColumnIndex() int {
	for i, col := range fs.ExpectedColumns {
		if col == fs.DateColumn {
			return i
		}
	}
	return -1
}

type Manifest struct {
	Snowflake Connection
	Files     []FileSpec

	// Path is where this manifest was loaded from, for messages.
	Path string
}

// SpecForTable finds the file spec that loads the given table, or nil.
func (m *Manifest) SpecForTable(table string) *FileSpec {
	for i := range m.Files {
		if m.Files[i].TableName == table {
			return &m.Files[i]
		}
	}
	return nil
}

// raw* types mirror the JSON exactly; cooking validates them into the typed
// form above.
type rawManifest struct {
	Snowflake rawConnection `json:"snowflake"`
	Files     []rawFileSpec `json:"files"`
}

type rawConnection struct {
	Account   string  `json:"account"`
	User      string  `json:"user"`
	Password  string  `json:"password"`
	Warehouse string  `json:"warehouse"`
	Database  string  `json:"database"`
	Schema    string  `json:"schema"`
	Role      *string `json:"role"`
}

type rawFileSpec struct {
	FilePattern         string   `json:"file_pattern"`
	TableName           string   `json:"table_name"`
	FileFormat          *string  `json:"file_format"`
	Delimiter           *string  `json:"delimiter"`
	QuoteChar           *string  `json:"quote_char"`
	DateColumn          *string  `json:"date_column"`
	ExpectedColumns     []string `json:"expected_columns"`
	DuplicateKeyColumns []string `json:"duplicate_key_columns"`
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]*Manifest)
)

// Load reads, validates, and caches the manifest at path. Repeated loads of
// the same path return the cached instance.
func Load(path string) (*Manifest, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if m, ok := cache[path]; ok {
		return m, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading manifest")
	}

	m, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	m.Path = path

	cache[path] = m
	return m, nil
}

// Parse validates manifest bytes without touching the cache.
func Parse(raw []byte) (*Manifest, error) {
	var rm rawManifest
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&rm); err != nil {
		return nil, &ConfigError{Field: "manifest", Reason: err.Error()}
	}

	return rm.cook()
}
