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
	"context"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// checkParallel fans the file out over opts.Workers goroutines, each scanning
// its own byte range, and merges the partial reports. The date layout is
// locked in from the top of the file before any worker starts, so every range
// judges dates by the same yardstick.
func checkParallel(ctx context.Context, path string, opts QCOptions) (*QCReport, error) {
	layout, err := detectDateLayout(path, opts)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "sizing for parallel quality check")
	}

	ranges, err := splitRanges(path, fi.Size(), opts.Workers)
	if err != nil {
		return nil, err
	}

	partials := make([]*QCReport, len(ranges))
	g, gctx := errgroup.WithContext(ctx)
	for i, br := range ranges {
		i, br := i, br
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "opening range for quality check")
			}
			defer f.Close()

			report := newQCReport()
			section := io.NewSectionReader(f, br.start, br.end-br.start)
			if err := scanRange(gctx, section, opts, layout, br.start == 0, report); err != nil {
				return err
			}
			partials[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeReports(partials)
	merged.DateLayout = layout
	merged.finalize(opts.Period)
	return merged, nil
}

type byteRange struct {
	start, end int64 // half-open; end always falls just past a newline or at EOF
}

// splitRanges cuts the file into one byte range per worker, shifting each
// boundary forward to the byte after the next newline so no row straddles two
// ranges.
func splitRanges(path string, size int64, workers int) ([]byteRange, error) {
	if int64(workers) > size {
		workers = int(size)
	}
	if workers < 2 {
		return []byteRange{{0, size}}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening for range split")
	}
	defer f.Close()

	cuts := make([]int64, 0, workers+1)
	cuts = append(cuts, 0)
	step := size / int64(workers)
	buf := make([]byte, 64*1024)
	for i := 1; i < workers; i++ {
		cut, err := nextNewline(f, int64(i)*step, size, buf)
		if err != nil {
			return nil, err
		}
		// ranges collapse to nothing when rows are longer than a step
		if cut > cuts[len(cuts)-1] {
			cuts = append(cuts, cut)
		}
	}
	cuts = append(cuts, size)

	ranges := make([]byteRange, 0, len(cuts)-1)
	for i := 0; i+1 < len(cuts); i++ {
		if cuts[i] < cuts[i+1] {
			ranges = append(ranges, byteRange{cuts[i], cuts[i+1]})
		}
	}
	return ranges, nil
}

// nextNewline returns the offset just past the first newline at or after
// offset, or size when the tail has none.
func nextNewline(f *os.File, offset, size int64, buf []byte) (int64, error) {
	for offset < size {
		n, err := f.ReadAt(buf, offset)
		for i := 0; i < n; i++ {
			if buf[i] == '\n' {
				return offset + int64(i) + 1, nil
			}
		}
		offset += int64(n)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrap(err, "aligning range to newline")
		}
	}
	return size, nil
}

// mergeReports folds the per-range partial reports into one: counters sum,
// date sets union, and bad-line samples are rebased by each range's cumulative
// starting row so they refer to positions in the whole file, keeping the
// smallest.
func mergeReports(partials []*QCReport) *QCReport {
	merged := newQCReport()
	var rowOffset int64
	for _, p := range partials {
		merged.BadColumnCount += p.BadColumnCount
		merged.BadDateFormat += p.BadDateFormat
		merged.NullDates += p.NullDates
		for _, line := range p.BadColumnLines {
			merged.BadColumnLines = append(merged.BadColumnLines, line+rowOffset)
		}
		for _, line := range p.BadDateLines {
			merged.BadDateLines = append(merged.BadDateLines, line+rowOffset)
		}
		for d := range p.datesSeen {
			merged.datesSeen[d] = struct{}{}
		}
		rowOffset += p.RowsScanned
		merged.RowsScanned += p.RowsScanned
	}

	merged.BadColumnLines = lowestLines(merged.BadColumnLines)
	merged.BadDateLines = lowestLines(merged.BadDateLines)
	return merged
}

func lowestLines(lines []int64) []int64 {
	sort.Slice(lines, func(i, j int) bool { return lines[i] < lines[j] })
	if len(lines) > maxBadRowSamples {
		lines = lines[:maxBadRowSamples]
	}
	return lines
}
