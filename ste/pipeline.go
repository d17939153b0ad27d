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

// Package ste is the load engine: it resolves a manifest's file patterns into
// concrete inputs, drives each file through analyze, quality check, compress,
// stage upload and bulk load, validates loaded tables, and schedules whole
// periods across worker processes.
package ste

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/flatfile"
	"github.com/wastore/sfcopy/manifest"
	"github.com/wastore/sfcopy/warehouse"
)

// Inputs above this size through an undersized warehouse get a warning
// before the upload starts.
const largeInputThreshold = 500 * 1024 * 1024

// RunOptions parameterizes one pipeline run over one period.
type RunOptions struct {
	// BasePath is the folder the file patterns resolve under.
	BasePath string

	// SkipQC loads without the streaming quality check.
	SkipQC bool

	// ValidateInWarehouse replaces the streaming check with post-load
	// validation of the target tables.
	ValidateInWarehouse bool

	// AnalyzeOnly stops every file after the estimate.
	AnalyzeOnly bool

	// ValidateOnly skips the file pipeline and runs only the warehouse-side
	// checks for each table the manifest configures them for.
	ValidateOnly bool

	// QCWorkers is the quality-check pool size for this run.
	QCWorkers int
}

// Runner executes the per-file state machine for every file of a period.
// One Runner, one period, one warehouse session.
type Runner struct {
	manifest *manifest.Manifest
	session  warehouse.Session
	bus      *common.ProgressBus // nil when the caller wants no progress
	opts     RunOptions

	validator *warehouse.Validator
}

func NewRunner(m *manifest.Manifest, session warehouse.Session, bus *common.ProgressBus, opts RunOptions) *Runner {
	r := &Runner{manifest: m, session: session, bus: bus, opts: opts}
	if session != nil {
		r.validator = warehouse.NewValidator(session, m.Snowflake.Database, m.Snowflake.Schema)
	}
	return r
}

// Load is the embeddable entry point: it opens one session, runs the
// pipeline for each period in order, and reports one outcome per period.
// The CLI assembles the same pieces itself so it can thread progress bars
// and job records through them.
func Load(ctx context.Context, m *manifest.Manifest, periods []common.Period, opts RunOptions) ([]*PeriodOutcome, error) {
	var session warehouse.Session
	if !opts.AnalyzeOnly {
		var err error
		session, err = warehouse.Connect(ctx, m.Snowflake)
		if err != nil {
			return nil, err
		}
		defer func() { _ = session.Close() }()
	}

	outcomes := make([]*PeriodOutcome, 0, len(periods))
	for _, period := range periods {
		outcomes = append(outcomes, NewRunner(m, session, nil, opts).Run(ctx, period))
	}
	return outcomes, nil
}

func (r *Runner) barReset(bar common.ProgressBar, total int64, desc string) {
	if r.bus != nil {
		r.bus.Reset(bar, total, desc)
	}
}

func (r *Runner) barAdd(bar common.ProgressBar, delta int64) {
	if r.bus != nil {
		r.bus.Add(bar, delta)
	}
}

// Run resolves and processes every file of the period. Per-file failures are
// collected, never propagated; only discovery-level problems set the run
// error. Post-load validation runs once per spec, after all of that spec's
// files have committed.
func (r *Runner) Run(ctx context.Context, period common.Period) *PeriodOutcome {
	outcome := &PeriodOutcome{Period: period}

	if r.opts.ValidateOnly {
		for i := range r.manifest.Files {
			spec := &r.manifest.Files[i]
			if spec.DateColumn == "" && len(spec.DuplicateKeyColumns) == 0 {
				continue
			}
			report, err := r.validator.Validate(ctx, spec.TableName, spec.DateColumn, spec.DuplicateKeyColumns, period)
			if err != nil {
				outcome.Err = err
				return outcome
			}
			outcome.Validations = append(outcome.Validations, report)
		}
		return outcome
	}

	bySpec := make([][]ResolvedFile, len(r.manifest.Files))
	total := 0
	for i := range r.manifest.Files {
		files, err := DiscoverFiles(r.opts.BasePath, &r.manifest.Files[i], period)
		if err != nil {
			outcome.Err = err
			return outcome
		}
		bySpec[i] = files
		total += len(files)
	}
	if total == 0 {
		outcome.Err = fmt.Errorf("no input files under %s match the manifest for period %s",
			r.opts.BasePath, period)
		return outcome
	}

	r.barReset(common.EProgressBar.Files(), int64(total), "period "+period.String())

	for i := range r.manifest.Files {
		spec := &r.manifest.Files[i]

		var committed []*FileOutcome
		for _, f := range bySpec[i] {
			out := r.runFile(ctx, f)
			outcome.Files = append(outcome.Files, out)
			r.barAdd(common.EProgressBar.Files(), 1)
			if out.State == common.EFileState.Done() && !r.opts.AnalyzeOnly {
				committed = append(committed, out)
			}
		}

		if r.opts.ValidateInWarehouse && !r.opts.AnalyzeOnly && len(committed) > 0 {
			r.validateSpec(ctx, spec, period, committed, outcome)
		}
	}
	return outcome
}

// validateSpec runs the warehouse-side checks for one spec's table. An
// invalid verdict is recorded, not raised; the loads already committed.
func (r *Runner) validateSpec(ctx context.Context, spec *manifest.FileSpec, period common.Period, committed []*FileOutcome, outcome *PeriodOutcome) {
	if spec.DateColumn == "" {
		// nothing to validate against without a date column
		return
	}

	report, err := r.validator.Validate(ctx, spec.TableName, spec.DateColumn, spec.DuplicateKeyColumns, period)
	if err != nil {
		for _, out := range committed {
			out.State = common.EFileState.Failed()
			out.Err = errors.Wrap(err, "post-load validation could not run")
		}
		return
	}
	outcome.Validations = append(outcome.Validations, report)
}

// runFile drives one file through the state machine. The compressed temp file
// is removed on every exit path, and immediately after the load commits.
func (r *Runner) runFile(ctx context.Context, f ResolvedFile) *FileOutcome {
	out := &FileOutcome{Path: f.Path, Table: f.Spec.TableName, State: common.EFileState.Discovered()}
	name := filepath.Base(f.Path)

	fail := func(err error) *FileOutcome {
		out.State = common.EFileState.Failed()
		out.Err = err
		common.LogToRunLog(fmt.Sprintf("%s: %v", name, err), common.LogError)
		return out
	}

	if ctx.Err() != nil {
		return fail(common.ErrCancelled)
	}

	est, err := flatfile.EstimateFile(f.Path)
	if err != nil {
		return fail(err)
	}
	out.Estimate = &est
	out.State = common.EFileState.Analyzed()
	common.LogToRunLog(fmt.Sprintf("%s: %s", name, est.Describe()), common.LogInfo)

	if r.opts.AnalyzeOnly {
		return out
	}

	delim, err := flatfile.ResolveDelimiter(f.Path, *f.Spec)
	if err != nil {
		return fail(err)
	}

	if f.Spec.HasQC() && !r.opts.SkipQC && !r.opts.ValidateInWarehouse {
		r.barReset(common.EProgressBar.QCRows(), est.Rows, name)
		report, err := flatfile.Check(ctx, f.Path, flatfile.QCOptions{
			Delimiter:       delim,
			QuoteChar:       f.Spec.QuoteChar,
			ExpectedColumns: f.Spec.ExpectedColumns,
			DateColumnIndex: f.Spec.DateColumnIndex(),
			Period:          f.Period,
			Workers:         r.opts.QCWorkers,
			Progress:        func(d int64) { r.barAdd(common.EProgressBar.QCRows(), d) },
		})
		if err != nil {
			return fail(err)
		}
		out.QC = report
		if report.Failed() {
			return fail(&flatfile.QCError{Path: f.Path, Report: report})
		}
		out.State = common.EFileState.QCPassed()
	} else {
		out.State = common.EFileState.QCSkipped()
	}

	if warn := flatfile.CheckDiskSpace(f.Path, est.SizeBytes); warn != "" {
		out.Warnings = append(out.Warnings, warn)
		common.LogToRunLog(warn, common.LogWarning)
	}

	r.barReset(common.EProgressBar.Compress(), est.SizeBytes, name)
	gzPath, err := flatfile.Compress(ctx, f.Path, func(d int64) { r.barAdd(common.EProgressBar.Compress(), d) })
	if err != nil {
		return fail(err)
	}
	gzName := filepath.Base(gzPath)
	removed := false
	removeGz := func() {
		if !removed {
			_ = os.Remove(gzPath)
			removed = true
		}
	}
	defer removeGz()
	out.State = common.EFileState.Compressed()

	gzInfo, err := os.Stat(gzPath)
	if err != nil {
		return fail(errors.Wrap(err, "sizing compressed file"))
	}
	gzSize := gzInfo.Size()

	if est.SizeBytes > largeInputThreshold {
		if size := warehouse.WarehouseSize(ctx, r.session, r.manifest.Snowflake.Warehouse); warehouse.UndersizedWarehouse(size) {
			warn := fmt.Sprintf("loading %s through warehouse %s (%s) will be slow; consider a larger warehouse",
				name, r.manifest.Snowflake.Warehouse, size)
			out.Warnings = append(out.Warnings, warn)
			common.LogToRunLog(warn, common.LogWarning)
		}
	}

	r.barReset(common.EProgressBar.Upload(), gzSize, gzName)
	if err := warehouse.StageCleanup(ctx, r.session, f.Spec.TableName, gzName); err != nil {
		return fail(err)
	}
	if err := warehouse.StagePut(ctx, r.session, gzPath, f.Spec.TableName); err != nil {
		return fail(err)
	}
	// the driver exposes no transfer progress; the bar completes at commit
	r.barAdd(common.EProgressBar.Upload(), gzSize)
	out.State = common.EFileState.Uploaded()

	skipHeader, err := flatfile.HasHeader(f.Path, delim, f.Spec.QuoteChar, f.Spec.ExpectedColumns)
	if err != nil {
		return fail(err)
	}

	r.barReset(common.EProgressBar.Copy(), gzSize, gzName)
	_, err = warehouse.BulkLoad(ctx, r.session, f.Spec.TableName, warehouse.LoadOptions{
		StageFile:      gzName,
		CompressedSize: gzSize,
		Delimiter:      delim,
		QuoteChar:      f.Spec.QuoteChar,
		SkipHeader:     skipHeader,
	})
	if err != nil {
		return fail(err)
	}
	out.State = common.EFileState.Loaded()
	removeGz() // the load committed; the local temp is garbage from here on
	r.barAdd(common.EProgressBar.Copy(), gzSize)
	out.State = common.EFileState.Done()
	return out
}
