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

// Package flatfile handles the local half of the pipeline: sizing and row
// estimation, delimiter detection, streaming quality checks, and gzip
// compression. Everything in this package works in constant memory no matter
// how large the input file is.
package flatfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// AnalyzeError wraps local I/O failures during estimation. The file is
// aborted; sibling files keep going.
type AnalyzeError struct {
	Path string
	Err  error
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("analyzing %s: %v", e.Path, e.Err)
}

func (e *AnalyzeError) Unwrap() error { return e.Err }

const (
	analyzeBufferSize = 8 * 1024 * 1024

	// Files at or below this size get an exact newline count; larger files
	// are sampled. 500 MiB of sequential read is a few seconds on any disk
	// this tool is pointed at.
	exactCountThreshold = 500 * 1024 * 1024

	minNewlinesPerSample = 10
)

// Flat rates used only for ETA display; see Estimate.StageTimes. These are
// deliberately pessimistic for the remote stages.
const (
	rateCountRowsPerSec  = 500_000
	rateQCRowsPerSec     = 50_000
	rateCompressBytesSec = 25 * 1000 * 1000
	rateUploadBytesSec   = 5 * 1000 * 1000
	rateLoadRowsPerSec   = 100_000
)

// Estimate is the analyzer's verdict on one input file.
type Estimate struct {
	SizeBytes int64
	Rows      int64
	Sampled   bool // true when Rows was extrapolated rather than counted

	QCTime       time.Duration
	CompressTime time.Duration
	UploadTime   time.Duration
	LoadTime     time.Duration
}

// TotalTime sums the per-stage wall-clock estimates.
func (e Estimate) TotalTime() time.Duration {
	return e.QCTime + e.CompressTime + e.UploadTime + e.LoadTime
}

// Describe renders the estimate for display after the analysis stage.
func (e Estimate) Describe() string {
	kind := "counted"
	if e.Sampled {
		kind = "estimated"
	}
	return fmt.Sprintf("%s, ~%s rows (%s), est. %v total (compress %v, upload %v, load %v)",
		humanize.IBytes(uint64(e.SizeBytes)), humanize.Comma(e.Rows), kind,
		e.TotalTime().Round(time.Second), e.CompressTime.Round(time.Second),
		e.UploadTime.Round(time.Second), e.LoadTime.Round(time.Second))
}

// EstimateFile sizes the file and counts (or, for large files, extrapolates)
// its rows, then derives the per-stage time estimates from flat rates.
func EstimateFile(path string) (Estimate, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Estimate{}, &AnalyzeError{Path: path, Err: err}
	}

	est := Estimate{SizeBytes: fi.Size()}

	if fi.Size() <= exactCountThreshold {
		est.Rows, err = countNewlines(path)
		if err != nil {
			return Estimate{}, &AnalyzeError{Path: path, Err: err}
		}
	} else {
		est.Rows, est.Sampled, err = sampleRowCount(path, fi.Size())
		if err != nil {
			return Estimate{}, &AnalyzeError{Path: path, Err: err}
		}
		if !est.Sampled {
			// a sample came back too sparse to trust, count for real
			est.Rows, err = countNewlines(path)
			if err != nil {
				return Estimate{}, &AnalyzeError{Path: path, Err: err}
			}
		}
	}

	est.QCTime = time.Duration(float64(est.Rows) / rateQCRowsPerSec * float64(time.Second))
	est.CompressTime = time.Duration(float64(est.SizeBytes) / rateCompressBytesSec * float64(time.Second))
	// uploads move the compressed file; assume roughly 3x gzip on delimited text
	est.UploadTime = time.Duration(float64(est.SizeBytes) / 3 / rateUploadBytesSec * float64(time.Second))
	est.LoadTime = time.Duration(float64(est.Rows) / rateLoadRowsPerSec * float64(time.Second))

	return est, nil
}

// countNewlines reads the whole file in large buffers and counts '\n' exactly.
func countNewlines(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "opening for row count")
	}
	defer f.Close()

	buf := make([]byte, analyzeBufferSize)
	var count int64
	for {
		n, err := f.Read(buf)
		count += int64(bytes.Count(buf[:n], []byte{'\n'}))
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, errors.Wrap(err, "counting rows")
		}
	}
}

// sampleRowCount reads three buffers at 5%, 50% and 95% of the file, measures
// the mean bytes-per-newline, and extrapolates the row count from the size.
// ok is false when any sample holds too few newlines to trust (pathologically
// long lines); the caller then falls back to an exact count.
func sampleRowCount(path string, size int64) (rows int64, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false, errors.Wrap(err, "opening for sampling")
	}
	defer f.Close()

	buf := make([]byte, analyzeBufferSize)
	var totalBytes, totalNewlines int64
	for _, fraction := range []float64{0.05, 0.50, 0.95} {
		offset := int64(float64(size) * fraction)
		if offset+analyzeBufferSize > size {
			offset = size - analyzeBufferSize
		}
		if offset < 0 {
			offset = 0
		}
		n, err := f.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return 0, false, errors.Wrap(err, "reading sample")
		}
		newlines := int64(bytes.Count(buf[:n], []byte{'\n'}))
		if newlines < minNewlinesPerSample {
			return 0, false, nil
		}
		totalBytes += int64(n)
		totalNewlines += newlines
	}

	meanBytesPerRow := float64(totalBytes) / float64(totalNewlines)
	return int64(float64(size) / meanBytesPerRow), true, nil
}
