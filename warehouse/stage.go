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
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/wastore/sfcopy/common"
)

// StagePutError wraps a failed upload into the table stage. Uploads are
// atomic from the orchestrator's point of view; there is no auto-retry.
type StagePutError struct {
	Path string
	Err  error
}

func (e *StagePutError) Error() string {
	return fmt.Sprintf("uploading %s to stage: %v", e.Path, e.Err)
}

func (e *StagePutError) Unwrap() error { return e.Err }

// StageRef names the internal table stage for a table. Using the table stage
// partitions the stage namespace by table, so sibling runs loading different
// tables can never collide.
func StageRef(table string) string {
	return "@%" + table
}

// StagePut uploads the local file into the table's stage, uncompressed
// server-side (the file is already gzipped locally), overwriting any
// leftover of the same name.
func StagePut(ctx context.Context, s Session, localPath, table string) error {
	// the driver expects a file URL with forward slashes, whatever the OS
	fileURL := "file://" + filepath.ToSlash(localPath)

	putID := uuid.NewString()
	common.LogToRunLog(fmt.Sprintf("PUT %s -> %s (put id %s)", localPath, StageRef(table), putID), common.LogInfo)

	sql := fmt.Sprintf("PUT '%s' %s AUTO_COMPRESS = FALSE OVERWRITE = TRUE",
		strings.ReplaceAll(fileURL, "'", "''"), StageRef(table))
	if err := s.Exec(ctx, sql); err != nil {
		return &StagePutError{Path: localPath, Err: err}
	}
	return nil
}

// StageCleanup removes stage files matching the basename pattern, so a
// re-run never loads a stale file left by an interrupted predecessor.
func StageCleanup(ctx context.Context, s Session, table, basename string) error {
	pattern := ".*" + regexp.QuoteMeta(basename) + ".*"
	sql := fmt.Sprintf("REMOVE %s PATTERN = '%s'", StageRef(table), strings.ReplaceAll(pattern, "'", "''"))
	return s.Exec(ctx, sql)
}

// WarehouseSize reports the size label of the named warehouse (e.g.
// "X-Small"), or "" when it cannot be determined. Only used for the
// undersized-warehouse warning; never worth failing a load over.
func WarehouseSize(ctx context.Context, s Session, warehouseName string) string {
	rows, err := s.Query(ctx, fmt.Sprintf("SHOW WAREHOUSES LIKE '%s'",
		strings.ReplaceAll(warehouseName, "'", "''")))
	if err != nil || len(rows) == 0 {
		return ""
	}
	// SHOW WAREHOUSES puts the size label in the fourth column
	if len(rows[0]) > 3 {
		return asString(rows[0][3])
	}
	return ""
}

// UndersizedWarehouse reports whether the size label is one an operator
// should hear about before loading a very large file through it.
func UndersizedWarehouse(size string) bool {
	return size == "X-Small" || size == "Small"
}
