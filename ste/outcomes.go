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
	"path/filepath"
	"strings"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/flatfile"
	"github.com/wastore/sfcopy/warehouse"
)

// FileOutcome is the fate of one resolved file after its state machine ran.
type FileOutcome struct {
	Path  string
	Table string
	State common.FileState

	Estimate *flatfile.Estimate
	QC       *flatfile.QCReport

	// Warnings the operator should see even though the file went through.
	Warnings []string

	Err error
}

func (o *FileOutcome) Failed() bool {
	return o.State == common.EFileState.Failed()
}

func (o *FileOutcome) Describe() string {
	name := filepath.Base(o.Path)
	if o.Failed() {
		return fmt.Sprintf("%s -> %s: failed: %v", name, o.Table, o.Err)
	}
	return fmt.Sprintf("%s -> %s: %s", name, o.Table, o.State)
}

// PeriodOutcome is one pipeline run's summary: every file's fate plus the
// post-load validation verdicts, one per validated table.
type PeriodOutcome struct {
	Period common.Period
	Files  []*FileOutcome

	Validations []*warehouse.ValidationReport

	// Err is a run-level failure (discovery, connection), distinct from
	// per-file failures which live in Files.
	Err error
}

// Failed reports whether anything in the run went wrong: the run itself, any
// file, or any validation verdict.
func (p *PeriodOutcome) Failed() bool {
	if p.Err != nil {
		return true
	}
	for _, f := range p.Files {
		if f.Failed() {
			return true
		}
	}
	for _, v := range p.Validations {
		if !v.Valid {
			return true
		}
	}
	return false
}

// Describe renders the period summary for operators, one line per file and
// per verdict.
func (p *PeriodOutcome) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "period %s:", p.Period)
	if p.Err != nil {
		fmt.Fprintf(&sb, " %v", p.Err)
		return sb.String()
	}
	for _, f := range p.Files {
		sb.WriteString("\n  ")
		sb.WriteString(f.Describe())
	}
	for _, v := range p.Validations {
		verdict := "valid"
		if !v.Valid {
			verdict = "INVALID: " + strings.Join(v.FailureReasons, "; ")
		}
		fmt.Fprintf(&sb, "\n  %s validation: %s (%d rows over %d dates)",
			v.Table, verdict, v.TotalRows, v.UniqueDates)
	}
	return sb.String()
}
