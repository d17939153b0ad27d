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
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/wastore/sfcopy/manifest"
)

// FormatDetectError means the sniffer could not settle on a delimiter for an
// AUTO-format file.
type FormatDetectError struct {
	Path string
}

func (e *FormatDetectError) Error() string {
	return fmt.Sprintf("could not detect the delimiter of %s; set file_format or delimiter in the manifest", e.Path)
}

var delimiterCandidates = []byte{',', '\t', '|', ';'}

const sniffLines = 10

// ResolveDelimiter returns the delimiter to split the file with. Explicit
// manifest delimiters and non-AUTO formats answer immediately; AUTO falls back
// to the file extension, then to sniffing the first lines of content.
func ResolveDelimiter(path string, spec manifest.FileSpec) (byte, error) {
	if spec.Delimiter != 0 {
		return spec.Delimiter, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ',', nil
	case ".tsv":
		return '\t', nil
	}

	return sniffDelimiter(path)
}

// sniffDelimiter samples the first non-blank lines and picks the candidate
// whose field count is most consistent across lines. A candidate only
// qualifies if it yields at least 2 fields on every sampled line.
func sniffDelimiter(path string) (byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "opening for format detection")
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() && len(lines) < sniffLines {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrap(err, "sampling for format detection")
	}
	if len(lines) == 0 {
		return 0, &FormatDetectError{Path: path}
	}

	best := byte(0)
	bestVariance := math.Inf(1)
	for _, candidate := range delimiterCandidates {
		counts := make([]float64, len(lines))
		qualifies := true
		for i, line := range lines {
			n := strings.Count(line, string(candidate)) + 1
			if n < 2 {
				qualifies = false
				break
			}
			counts[i] = float64(n)
		}
		if !qualifies {
			continue
		}
		if v := variance(counts); v < bestVariance {
			bestVariance = v
			best = candidate
		}
	}

	if best == 0 {
		return 0, &FormatDetectError{Path: path}
	}
	return best, nil
}

func variance(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var v float64
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(xs))
}

// delimiterName gives delimiters a printable spelling for logs.
func delimiterName(d byte) string {
	switch d {
	case '\t':
		return "TAB"
	default:
		return string(d)
	}
}
