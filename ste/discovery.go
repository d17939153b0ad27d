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

package ste

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/manifest"
)

// ResolvedFile pairs a file spec with a concrete on-disk file and the period
// the filename claims to carry. Lifetime: one pipeline run.
type ResolvedFile struct {
	Spec   *manifest.FileSpec
	Path   string
	Period common.Period
}

const (
	monthTokenPattern     = `(\d{4}-\d{2})`
	dateRangeTokenPattern = `(\d{8}-\d{8})`
)

// DiscoverFiles resolves a spec's pattern under basePath for the requested
// period. A month pattern with a month period resolves to one exact filename;
// every other combination scans the directory with the pattern's derived
// regex, keeping files whose own date token lies within the period. The
// unbounded period keeps everything that matches.
func DiscoverFiles(basePath string, spec *manifest.FileSpec, period common.Period) ([]ResolvedFile, error) {
	if spec.Placeholder == common.EPlaceholderKind.Month() {
		if token, ok := period.MonthToken(); ok {
			path := filepath.Join(basePath, strings.Replace(spec.Pattern, "{month}", token, 1))
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					return nil, nil
				}
				return nil, errors.Wrap(err, "resolving input file")
			}
			return []ResolvedFile{{Spec: spec, Path: path, Period: period}}, nil
		}
		return scanDirectory(basePath, spec, period, "{month}", monthTokenPattern)
	}
	return scanDirectory(basePath, spec, period, "{date_range}", dateRangeTokenPattern)
}

// scanDirectory matches directory entries against the pattern's regex and
// filters by period containment of each file's own date token.
func scanDirectory(basePath string, spec *manifest.FileSpec, period common.Period, token, tokenPattern string) ([]ResolvedFile, error) {
	re, err := patternRegexp(spec.Pattern, token, tokenPattern)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, errors.Wrap(err, "scanning input folder")
	}

	var resolved []ResolvedFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := re.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		filePeriod, err := common.ParsePeriod(match[1])
		if err != nil {
			// the regex matched but the dates are nonsense, e.g. month 77
			common.LogToRunLog(fmt.Sprintf("skipping %s: %v", entry.Name(), err), common.LogWarning)
			continue
		}
		if !period.Covers(filePeriod) {
			continue
		}
		resolved = append(resolved, ResolvedFile{
			Spec:   spec,
			Path:   filepath.Join(basePath, entry.Name()),
			Period: filePeriod,
		})
	}

	sort.Slice(resolved, func(i, j int) bool { return resolved[i].Path < resolved[j].Path })
	return resolved, nil
}

func patternRegexp(pattern, token, tokenPattern string) (*regexp.Regexp, error) {
	idx := strings.Index(pattern, token)
	if idx < 0 {
		return nil, fmt.Errorf("pattern %q carries no %s placeholder", pattern, token)
	}
	expr := "^" + regexp.QuoteMeta(pattern[:idx]) + tokenPattern + regexp.QuoteMeta(pattern[idx+len(token):]) + "$"
	return regexp.Compile(expr)
}
