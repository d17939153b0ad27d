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
	"time"

	"github.com/wastore/sfcopy/common"
)

// BulkLoadError is a warehouse-side load failure. Per-file terminal; the
// orchestrator surfaces it and moves to the next file.
type BulkLoadError struct {
	QueryID string
	Reason  string
}

func (e *BulkLoadError) Error() string {
	if e.QueryID != "" {
		return fmt.Sprintf("bulk load failed (query %s): %s", e.QueryID, e.Reason)
	}
	return fmt.Sprintf("bulk load failed: %s", e.Reason)
}

const (
	// Stage files above this compressed size are loaded asynchronously so the
	// client can keep the connection alive across a multi-hour COPY.
	asyncLoadThreshold = 100 * 1024 * 1024

	defaultPollInterval = 10 * time.Second

	// The keepalive cadence is independent of the poll cadence: it exists to
	// beat a 5-minute connection-side idle timeout, not to observe progress.
	defaultKeepAliveInterval = 4 * time.Minute
)

// LoadOptions parameterizes one COPY from stage into a table.
type LoadOptions struct {
	// Basename of the stage file to load.
	StageFile string

	// CompressedSize of the stage file, deciding sync vs. async execution.
	CompressedSize int64

	// FILE_FORMAT details, mirroring the local file.
	Delimiter  byte
	QuoteChar  byte // 0 means no quoting
	SkipHeader bool

	// Poll/keepalive cadences; zero means the defaults. Overridable so tests
	// need not wait minutes.
	PollInterval      time.Duration
	KeepAliveInterval time.Duration
}

// LoadResult reports a committed load.
type LoadResult struct {
	QueryID string // empty for synchronous loads
	Async   bool
}

// BulkLoad copies the staged file into the table. Failures abort the
// statement (no continue-on-error) and the stage file is purged on success,
// so a re-run starts clean. Never auto-retried.
func BulkLoad(ctx context.Context, s Session, table string, opts LoadOptions) (LoadResult, error) {
	sql := copyStatement(table, opts)

	if opts.CompressedSize <= asyncLoadThreshold {
		if err := s.Exec(ctx, sql); err != nil {
			return LoadResult{}, &BulkLoadError{Reason: err.Error()}
		}
		return LoadResult{}, nil
	}

	return pollAsyncLoad(ctx, s, sql, opts)
}

func copyStatement(table string, opts LoadOptions) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "COPY INTO %s FROM %s", table, StageRef(table))
	fmt.Fprintf(&sb, " FILES = ('%s')", strings.ReplaceAll(opts.StageFile, "'", "''"))
	fmt.Fprintf(&sb, " FILE_FORMAT = (TYPE = CSV COMPRESSION = GZIP FIELD_DELIMITER = '%s'", escapeDelimiter(opts.Delimiter))
	if opts.QuoteChar != 0 {
		fmt.Fprintf(&sb, " FIELD_OPTIONALLY_ENCLOSED_BY = '%s'", escapeDelimiter(opts.QuoteChar))
	}
	if opts.SkipHeader {
		sb.WriteString(" SKIP_HEADER = 1")
	}
	sb.WriteString(` NULL_IF = ('', 'NULL', 'null', '\\N'))`)
	sb.WriteString(" ON_ERROR = 'ABORT_STATEMENT' PURGE = TRUE")
	return sb.String()
}

func escapeDelimiter(d byte) string {
	switch d {
	case '\t':
		return `\t`
	case '\'':
		return `''`
	default:
		return string(d)
	}
}

// pollAsyncLoad submits the COPY asynchronously and babysits it: a status
// poll on a short cadence, and a keepalive fetch on its own independent
// timer. Cancellation cancels the remote query best-effort; the local result
// is Cancelled either way.
func pollAsyncLoad(ctx context.Context, s Session, sql string, opts LoadOptions) (LoadResult, error) {
	pollEvery := opts.PollInterval
	if pollEvery == 0 {
		pollEvery = defaultPollInterval
	}
	keepAliveEvery := opts.KeepAliveInterval
	if keepAliveEvery == 0 {
		keepAliveEvery = defaultKeepAliveInterval
	}

	queryID, err := s.SubmitAsync(ctx, sql)
	if err != nil {
		return LoadResult{}, &BulkLoadError{Reason: err.Error()}
	}
	common.LogToRunLog(fmt.Sprintf("async bulk load submitted, query id %s", queryID), common.LogInfo)

	poll := time.NewTicker(pollEvery)
	defer poll.Stop()
	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.CancelQuery(cancelCtx, queryID); err != nil {
				common.LogToRunLog(fmt.Sprintf("could not cancel query %s: %v", queryID, err), common.LogWarning)
			}
			cancel()
			return LoadResult{}, common.ErrCancelled

		case <-keepAlive.C:
			if err := s.KeepAlive(ctx, queryID); err != nil {
				common.LogToRunLog(fmt.Sprintf("keepalive fetch failed: %v", err), common.LogWarning)
			}

		case <-poll.C:
			status, err := s.QueryStatus(ctx, queryID)
			if err != nil {
				// transient history hiccups are survivable; the next poll retries
				common.LogToRunLog(fmt.Sprintf("status poll failed for %s: %v", queryID, err), common.LogWarning)
				continue
			}
			switch status.State {
			case EQueryState.Success():
				return LoadResult{QueryID: queryID, Async: true}, nil
			case EQueryState.Failed():
				return LoadResult{}, &BulkLoadError{QueryID: queryID, Reason: status.ErrorMessage}
			}
		}
	}
}
