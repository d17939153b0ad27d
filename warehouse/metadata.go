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

package warehouse

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// IdentifierError means a table or column name was not found in the schema
// metadata. Identifiers are never bound as SQL parameters; they must pass
// through this cache before being composed into validator SQL, which is what
// keeps user-supplied names from becoming injection vectors.
type IdentifierError struct {
	Name string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("unknown identifier %q: not present in schema metadata", e.Name)
}

// MetadataCache answers "does this table exist" and "does this column exist
// in this table" for one (database, schema), from a single information-schema
// query per session.
type MetadataCache struct {
	database string
	schema   string

	mu     sync.Mutex
	loaded bool
	tables map[string]map[string]bool // upper table -> upper columns
}

func NewMetadataCache(database, schema string) *MetadataCache {
	return &MetadataCache{database: database, schema: schema}
}

// refresh fetches the schema metadata on first use. Later calls are no-ops;
// the cache lives as long as the session and tables do not change mid-run.
func (c *MetadataCache) refresh(ctx context.Context, s Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	rows, err := s.Query(ctx, fmt.Sprintf(
		`SELECT table_name, column_name FROM %s.INFORMATION_SCHEMA.COLUMNS WHERE table_schema = ?`,
		strings.ToUpper(c.database)), strings.ToUpper(c.schema))
	if err != nil {
		return err
	}

	c.tables = make(map[string]map[string]bool)
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		table := strings.ToUpper(asString(row[0]))
		column := strings.ToUpper(asString(row[1]))
		if c.tables[table] == nil {
			c.tables[table] = make(map[string]bool)
		}
		c.tables[table][column] = true
	}
	c.loaded = true
	return nil
}

// RequireTable validates the table name against the cache and returns its
// canonical (upper-case) spelling for SQL composition.
func (c *MetadataCache) RequireTable(ctx context.Context, s Session, table string) (string, error) {
	if err := c.refresh(ctx, s); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	canonical := strings.ToUpper(table)
	if c.tables[canonical] == nil {
		return "", &IdentifierError{Name: table}
	}
	return canonical, nil
}

// RequireColumns validates each column against the table and returns their
// canonical spellings, in the same order.
func (c *MetadataCache) RequireColumns(ctx context.Context, s Session, table string, columns ...string) ([]string, error) {
	canonicalTable, err := c.RequireTable(ctx, s, table)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(columns))
	for i, col := range columns {
		canonical := strings.ToUpper(col)
		if !c.tables[canonicalTable][canonical] {
			return nil, &IdentifierError{Name: table + "." + col}
		}
		out[i] = canonical
	}
	return out, nil
}
