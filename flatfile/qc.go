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

package flatfile

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wastore/sfcopy/common"
)

const (
	// qcChunkRows is how many rows a worker scans between progress reports
	// and cancellation checks. It bounds the work in flight, never the memory:
	// rows are processed one at a time.
	qcChunkRows = 100_000

	// maxBadRowSamples caps how many offending line numbers a report keeps
	// per check class.
	maxBadRowSamples = 100

	// dateFormatSampleSize is how many non-null date values are inspected
	// before the file's date layout is locked in.
	dateFormatSampleSize = 100

	qcMaxLineSize = 4 * 1024 * 1024
)

// nullDateValues are the spellings a date column may use for "no date".
// They are permitted and counted, never flagged.
var nullDateValues = map[string]bool{"": true, "NULL": true, "null": true, `\N`: true}

// QCOptions parameterizes one quality-check pass. The zero DateColumnIndex is
// meaningful, so callers with no date column must set it to -1.
type QCOptions struct {
	Delimiter       byte
	QuoteChar       byte // 0 means no quoting
	ExpectedColumns []string
	DateColumnIndex int
	Period          common.Period
	Workers         int               // ≤1 means single-stream
	Progress        func(delta int64) // rows scanned, called at chunk boundaries
}

func (o QCOptions) expectedFieldCount() int { return len(o.ExpectedColumns) }

// QCReport accumulates per-row findings during the stream and is read-only
// once the stream ends.
type QCReport struct {
	RowsScanned    int64
	BadColumnCount int64
	BadDateFormat  int64
	NullDates      int64

	// The first offending line numbers per class, 1-based, header included.
	BadColumnLines []int64
	BadDateLines   []int64

	// DateLayout is the layout locked in from the leading samples, empty if
	// no non-null date was ever seen.
	DateLayout string

	datesSeen map[time.Time]struct{}

	// Gaps lists the expected-period days with no parsed rows, sorted.
	// Populated by finalize, after the stream.
	Gaps []time.Time
}

func newQCReport() *QCReport {
	return &QCReport{datesSeen: make(map[time.Time]struct{})}
}

// ObservedDates returns the distinct parsed dates, sorted.
func (r *QCReport) ObservedDates() []time.Time {
	dates := make([]time.Time, 0, len(r.datesSeen))
	for d := range r.datesSeen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Failed reports whether the file must not be loaded.
func (r *QCReport) Failed() bool {
	return r.BadColumnCount > 0 || r.BadDateFormat > 0 || len(r.Gaps) > 0
}

// FailureSummary renders the reasons a failed report failed, in check order.
func (r *QCReport) FailureSummary() string {
	var reasons []string
	if r.BadColumnCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d row(s) with wrong column count (first at line %d)",
			r.BadColumnCount, r.BadColumnLines[0]))
	}
	if r.BadDateFormat > 0 {
		reasons = append(reasons, fmt.Sprintf("%d row(s) with unparseable dates (first at line %d)",
			r.BadDateFormat, r.BadDateLines[0]))
	}
	if len(r.Gaps) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d date(s) missing: %s", len(r.Gaps), formatDates(r.Gaps)))
	}
	return strings.Join(reasons, "; ")
}

func formatDates(dates []time.Time) string {
	const most = 10
	out := make([]string, 0, most+1)
	for i, d := range dates {
		if i == most {
			out = append(out, "...")
			break
		}
		out = append(out, common.FormatDate(d))
	}
	return strings.Join(out, ", ")
}

// finalize computes the gap list against the expected period. The unbounded
// period has no expectation, so it can have no gaps.
func (r *QCReport) finalize(period common.Period) {
	if period.IsAll() {
		return
	}
	for _, day := range period.Days() {
		if _, ok := r.datesSeen[day]; !ok {
			r.Gaps = append(r.Gaps, day)
		}
	}
}

// QCError is the terminal per-file verdict when quality checks found
// unrecoverable issues. The load is not attempted.
type QCError struct {
	Path   string
	Report *QCReport
}

func (e *QCError) Error() string {
	return fmt.Sprintf("quality check failed for %s: %s", e.Path, e.Report.FailureSummary())
}

// Check streams the file once and reports what it found. The returned error
// is only ever an I/O hard stop (or cancellation); data problems live in the
// report. Callers decide whether a failed report blocks the load.
func Check(ctx context.Context, path string, opts QCOptions) (*QCReport, error) {
	if opts.Workers > 1 {
		return checkParallel(ctx, path, opts)
	}

	layout, err := detectDateLayout(path, opts)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening for quality check")
	}
	defer f.Close()

	report := newQCReport()
	report.DateLayout = layout
	if err := scanRange(ctx, f, opts, layout, true, report); err != nil {
		return nil, err
	}
	report.finalize(opts.Period)
	return report, nil
}

// HasHeader reports whether the file's first line names the expected columns.
// The bulk load needs this independently of the streaming checks, which the
// caller may have skipped.
func HasHeader(path string, delimiter, quoteChar byte, columns []string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrap(err, "checking for header row")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), qcMaxLineSize)
	if !scanner.Scan() {
		return false, scanner.Err()
	}
	fields := splitRow(scanner.Bytes(), delimiter, quoteChar, nil)
	return isHeaderRow(fields, columns), nil
}

// detectDateLayout locks in the file's date format from the first non-null
// samples. Returns "" when the spec has no date column or the samples ran out.
func detectDateLayout(path string, opts QCOptions) (string, error) {
	if opts.DateColumnIndex < 0 {
		return "", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening for date format detection")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), qcMaxLineSize)

	var fields [][]byte
	seen := 0
	first := true
	for scanner.Scan() && seen < dateFormatSampleSize {
		line := scanner.Bytes()
		fields = splitRow(line, opts.Delimiter, opts.QuoteChar, fields[:0])
		if first {
			first = false
			if isHeaderRow(fields, opts.ExpectedColumns) {
				continue
			}
		}
		if opts.DateColumnIndex >= len(fields) {
			continue
		}
		value := string(fields[opts.DateColumnIndex])
		if nullDateValues[value] {
			continue
		}
		seen++
		if _, layout, ok := common.ParseDateAny(value); ok {
			return layout, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", errors.Wrap(err, "sampling date format")
	}

	// Nothing parseable among the samples; scanRange will count every
	// non-null date as bad, which is the honest outcome.
	return "", nil
}

// scanRange runs the per-row checks over one reader. checkHeader is true only
// for the reader positioned at the top of the file.
func scanRange(ctx context.Context, r io.Reader, opts QCOptions, layout string, checkHeader bool, report *QCReport) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), qcMaxLineSize)

	expected := opts.expectedFieldCount()
	var fields [][]byte
	var sinceProgress int64
	first := checkHeader

	for scanner.Scan() {
		line := scanner.Bytes()
		fields = splitRow(line, opts.Delimiter, opts.QuoteChar, fields[:0])

		if first {
			first = false
			if isHeaderRow(fields, opts.ExpectedColumns) {
				continue
			}
		}

		report.RowsScanned++
		sinceProgress++
		lineNo := report.RowsScanned // relative to this range; offset at merge

		if len(fields) != expected {
			report.BadColumnCount++
			if len(report.BadColumnLines) < maxBadRowSamples {
				report.BadColumnLines = append(report.BadColumnLines, lineNo)
			}
		} else if opts.DateColumnIndex >= 0 {
			value := string(fields[opts.DateColumnIndex])
			switch {
			case nullDateValues[value]:
				report.NullDates++
			case layout == "":
				report.BadDateFormat++
				if len(report.BadDateLines) < maxBadRowSamples {
					report.BadDateLines = append(report.BadDateLines, lineNo)
				}
			default:
				if day, ok := common.ParseDateLayout(value, layout); ok {
					report.datesSeen[day] = struct{}{}
				} else {
					report.BadDateFormat++
					if len(report.BadDateLines) < maxBadRowSamples {
						report.BadDateLines = append(report.BadDateLines, lineNo)
					}
				}
			}
		}

		if sinceProgress >= qcChunkRows {
			if opts.Progress != nil {
				opts.Progress(sinceProgress)
			}
			sinceProgress = 0
			select {
			case <-ctx.Done():
				return common.ErrCancelled
			default:
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scanning rows")
	}

	if opts.Progress != nil && sinceProgress > 0 {
		opts.Progress(sinceProgress)
	}
	return nil
}

// isHeaderRow reports whether the fields are the expected column names,
// in order, compared case-insensitively.
func isHeaderRow(fields [][]byte, columns []string) bool {
	if len(columns) == 0 || len(fields) != len(columns) {
		return false
	}
	for i, col := range columns {
		if !strings.EqualFold(string(fields[i]), col) {
			return false
		}
	}
	return true
}

// splitRow splits line on delim, honoring the quote byte when configured:
// delimiters inside an open quote do not split. out is reused across rows to
// avoid per-row allocation.
func splitRow(line []byte, delim, quote byte, out [][]byte) [][]byte {
	if quote == 0 {
		start := 0
		for {
			i := bytes.IndexByte(line[start:], delim)
			if i < 0 {
				return append(out, line[start:])
			}
			out = append(out, line[start:start+i])
			start += i + 1
		}
	}

	start := 0
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case quote:
			inQuote = !inQuote
		case delim:
			if !inQuote {
				out = append(out, trimQuotes(line[start:i], quote))
				start = i + 1
			}
		}
	}
	return append(out, trimQuotes(line[start:], quote))
}

func trimQuotes(field []byte, quote byte) []byte {
	if len(field) >= 2 && field[0] == quote && field[len(field)-1] == quote {
		return field[1 : len(field)-1]
	}
	return field
}
