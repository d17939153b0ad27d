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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/jobsAdmin"
	"github.com/wastore/sfcopy/manifest"
	"github.com/wastore/sfcopy/ste"
	"github.com/wastore/sfcopy/warehouse"
)

type rawLoadCmdArgs struct {
	manifestPath        string
	periods             string
	basePath            string
	skipQC              bool
	validateInWarehouse bool
	maxWorkers          int
	parallel            int
	continueOnError     bool
}

// cook validates everything that can be validated without touching the
// warehouse: the manifest, the period tokens, the concurrency knobs.
func (raw rawLoadCmdArgs) cook() (cookedLoadCmdArgs, error) {
	cooked := cookedLoadCmdArgs{raw: raw}

	if raw.manifestPath == "" {
		return cooked, errors.New("the --manifest flag is required")
	}
	m, err := manifest.Load(raw.manifestPath)
	if err != nil {
		return cooked, err
	}
	cooked.manifest = m

	cooked.periods, err = parsePeriods(raw.periods)
	if err != nil {
		return cooked, err
	}

	if raw.parallel < 1 {
		return cooked, errors.New("--parallel must be at least 1")
	}
	if raw.maxWorkers < 0 {
		return cooked, errors.New("--max-workers cannot be negative")
	}
	cooked.settings = ste.NewConcurrencySettings(raw.maxWorkers, raw.parallel)

	cooked.basePath = raw.basePath
	if cooked.basePath == "" {
		cooked.basePath = "."
	}
	return cooked, nil
}

type cookedLoadCmdArgs struct {
	raw rawLoadCmdArgs

	manifest *manifest.Manifest
	periods  []common.Period
	basePath string
	settings ste.ConcurrencySettings

	// analyzeOnly stops every file after its estimate; set by the analyze
	// command, which shares this machinery.
	analyzeOnly bool

	// setFlags is the flags the user explicitly passed, for the run log.
	setFlags []string
}

// parsePeriods splits the comma-separated flag value. An empty value means
// one unbounded run covering every file the patterns match.
func parsePeriods(raw string) ([]common.Period, error) {
	if strings.TrimSpace(raw) == "" {
		return []common.Period{{}}, nil
	}
	var out []common.Period
	for _, token := range strings.Split(raw, ",") {
		p, err := common.ParsePeriod(strings.TrimSpace(token))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func init() {
	raw := rawLoadCmdArgs{}

	// loadCmd represents the load command
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: loadCmdShortDescription,
		Long:  loadCmdLongDescription,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New("the load command takes no arguments, only flags")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cooked, err := raw.cook()
			if err != nil {
				exitWithUsageError("failed to parse user input due to error: " + err.Error())
			}
			// remember what the user actually set, for the run log
			cmd.Flags().Visit(func(f *pflag.Flag) {
				cooked.setFlags = append(cooked.setFlags, fmt.Sprintf("--%s=%s", f.Name, f.Value))
			})
			cooked.process()
		},
	}
	rootCmd.AddCommand(loadCmd)

	loadCmd.PersistentFlags().StringVar(&raw.manifestPath, "manifest", "", "Path of the JSON manifest describing the warehouse connection and the file-to-table mappings.")
	loadCmd.PersistentFlags().StringVar(&raw.periods, "period", "", "Period(s) to load: a month (2024-01), a day range (20240101-20240131), or several of either separated by commas. An empty value loads every file the patterns match.")
	loadCmd.PersistentFlags().StringVar(&raw.basePath, "base-path", "", "Folder the manifest's file patterns resolve under. Defaults to the current directory.")
	loadCmd.PersistentFlags().BoolVar(&raw.skipQC, "skip-qc", false, "Load without the streaming quality check. Bad rows then surface as COPY aborts instead of local findings.")
	loadCmd.PersistentFlags().BoolVar(&raw.validateInWarehouse, "validate-in-warehouse", false, "Replace the streaming quality check with aggregate validation queries after the load commits.")
	loadCmd.PersistentFlags().IntVar(&raw.maxWorkers, "max-workers", 0, "Total quality-check worker budget, split evenly across parallel runs. Auto-detected from the CPU count when omitted.")
	loadCmd.PersistentFlags().IntVar(&raw.parallel, "parallel", 1, "How many periods to load at the same time. Values above 1 run each period in its own worker process.")
	loadCmd.PersistentFlags().BoolVar(&raw.continueOnError, "continue-on-error", false, "Keep loading the remaining periods after one of them fails.")
}

func (cooked cookedLoadCmdArgs) process() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// a worker spawned by a parallel batch learns its identity from the
	// environment; everything else below the branch is the parent's business
	if jobID := glcm.GetEnvironmentVariable(common.EEnvironmentVariable.JobID()); jobID != "" {
		cooked.processAsWorker(ctx, jobID)
		return
	}

	registry, err := jobsAdmin.NewRegistry(sfcopyStateFolder, sfcopyLogPathFolder)
	if err != nil {
		exitWithUsageError("cannot open the job registry: " + err.Error())
	}
	if crashed, err := registry.HealthCheck(); err != nil {
		glcm.Warn("job registry health check failed: " + err.Error())
	} else if crashed > 0 {
		glcm.Warn(fmt.Sprintf("marked %d stale job(s) as crashed", crashed))
	}

	batch := &ste.Batch{
		Periods:         cooked.periods,
		Parallel:        cooked.raw.parallel,
		ContinueOnError: cooked.raw.continueOnError,
	}

	var job *jobsAdmin.Job
	if batch.Parallel <= 1 {
		// single lane runs in-process under one job record of its own
		job, err = registry.Start("load", strings.Join(os.Args, " "))
		if err != nil {
			glcm.Error("cannot register the job: " + err.Error())
		}
		if err := registry.RecordPID(job.ID, os.Getpid()); err != nil {
			glcm.Warn("could not record pid: " + err.Error())
		}
		cooked.openRunLog(job.ID)
		glcm.Init(common.GetStandardInitOutputBuilder(job.ID, common.LogFilePath(sfcopyLogPathFolder, "load", job.ID)))

		batch.RunInProcess = func(ctx context.Context, period common.Period, offset int) error {
			return runLoadPeriod(ctx, &cooked, period, offset)
		}
	} else {
		batch.SpawnChild = func(period common.Period, offset int) (ste.ChildRun, error) {
			worker, err := registry.StartProcess("load", cooked.workerArgv(period), []string{
				common.EEnvironmentVariable.ProgressOffset().Name + "=" + strconv.Itoa(offset),
			})
			if err != nil {
				return nil, err
			}
			glcm.Info(fmt.Sprintf("period %s started as job %s, log at %s", period, worker.Job.ID, worker.Job.LogFile))
			return &managedWorker{registry: registry, worker: worker}, nil
		}
	}

	summary := batch.Run(ctx)

	if job != nil {
		status := common.EJobStatus.Completed()
		if len(summary.Failed) > 0 || len(summary.Skipped) > 0 {
			status = common.EJobStatus.Failed()
		}
		if err := registry.Complete(job.ID, status); err != nil {
			glcm.Warn("could not finalize the job record: " + err.Error())
		}
	}

	glcm.Exit(func(format common.OutputFormat) string {
		if format == common.EOutputFormat.Json() {
			return common.GetJsonStringFromTemplate(summary)
		}
		return summary.Describe()
	}, summary.ExitCode(cooked.raw.continueOnError))
}

// processAsWorker runs exactly one period in this process on behalf of a
// parent batch. The parent owns the job record's terminal transition; the
// worker only has to run and exit honestly.
func (cooked cookedLoadCmdArgs) processAsWorker(ctx context.Context, jobID string) {
	if len(cooked.periods) != 1 {
		exitWithUsageError("a worker run takes exactly one --period")
	}

	offset := 0
	if rawOffset := glcm.GetEnvironmentVariable(common.EEnvironmentVariable.ProgressOffset()); rawOffset != "" {
		parsed, err := strconv.Atoi(rawOffset)
		if err != nil {
			exitWithUsageError(fmt.Sprintf("invalid %s value %q", common.EEnvironmentVariable.ProgressOffset().Name, rawOffset))
		}
		offset = parsed
	}

	cooked.openRunLog(jobID)

	if err := runLoadPeriod(ctx, &cooked, cooked.periods[0], offset); err != nil {
		glcm.Error(err.Error())
	}
	glcm.Exit(func(format common.OutputFormat) string {
		return fmt.Sprintf("period %s completed", cooked.periods[0])
	}, common.EExitCode.Success())
}

// openRunLog routes common.LogToRunLog callers into this run's log file.
func (cooked *cookedLoadCmdArgs) openRunLog(jobID string) {
	logger := common.NewRunLogger("load", jobID, sfcopyLogLevel, sfcopyLogPathFolder)
	logger.OpenLog()
	common.CurrentRunLogger = logger
	glcm.RegisterCloseFunc(logger.CloseLog)
	if len(cooked.setFlags) > 0 {
		common.LogToRunLog("flags: "+strings.Join(cooked.setFlags, " "), common.LogInfo)
	}
}

// runLoadPeriod runs the whole pipeline for one period: progress region,
// warehouse session, per-file state machines, post-load validation.
func runLoadPeriod(ctx context.Context, cooked *cookedLoadCmdArgs, period common.Period, offset int) error {
	withQC := !cooked.raw.skipQC && !cooked.raw.validateInWarehouse && !cooked.analyzeOnly
	bus := common.NewProgressBus(offset, withQC, stderrIsTerminal())
	defer bus.Close()

	var session warehouse.Session
	if !cooked.analyzeOnly {
		var err error
		session, err = warehouse.Connect(ctx, cooked.manifest.Snowflake)
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()
	}

	runner := ste.NewRunner(cooked.manifest, session, bus, ste.RunOptions{
		BasePath:            cooked.basePath,
		SkipQC:              cooked.raw.skipQC,
		ValidateInWarehouse: cooked.raw.validateInWarehouse,
		AnalyzeOnly:         cooked.analyzeOnly,
		QCWorkers:           cooked.settings.QCWorkers.Value,
	})
	outcome := runner.Run(ctx, period)

	glcm.Info(outcome.Describe())
	if cooked.analyzeOnly {
		for _, f := range outcome.Files {
			if f.Estimate != nil {
				glcm.Info(fmt.Sprintf("%s: %s", filepath.Base(f.Path), f.Estimate.Describe()))
			}
		}
	}
	if outcome.Failed() {
		return fmt.Errorf("period %s did not complete cleanly", period)
	}
	return nil
}

// workerArgv rebuilds the command line for one period's worker process.
func (cooked cookedLoadCmdArgs) workerArgv(period common.Period) []string {
	argv := []string{os.Args[0], "load",
		"--manifest=" + cooked.raw.manifestPath,
		"--period=" + period.String(),
		"--output-type=" + outputFormatRaw,
		"--log-level=" + logLevelRaw,
	}
	if cooked.raw.basePath != "" {
		argv = append(argv, "--base-path="+cooked.raw.basePath)
	}
	if cooked.raw.skipQC {
		argv = append(argv, "--skip-qc")
	}
	if cooked.raw.validateInWarehouse {
		argv = append(argv, "--validate-in-warehouse")
	}
	if cooked.raw.maxWorkers > 0 {
		// each worker gets its slice of the explicit budget
		argv = append(argv, "--max-workers="+strconv.Itoa(cooked.settings.QCWorkers.Value))
	}
	return argv
}

// managedWorker pairs a spawned worker with its registry record so the
// record reaches a terminal status exactly when the process does.
type managedWorker struct {
	registry *jobsAdmin.Registry
	worker   *jobsAdmin.Worker
}

func (m *managedWorker) Wait() error {
	err := m.worker.Wait()
	status := common.EJobStatus.Completed()
	if err != nil {
		status = common.EJobStatus.Failed()
	}
	if cerr := m.registry.Complete(m.worker.Job.ID, status); cerr != nil {
		common.LogToRunLog(fmt.Sprintf("could not finalize job %s: %v", m.worker.Job.ID, cerr), common.LogWarning)
	}
	return err
}

func (m *managedWorker) Signal(sig os.Signal) error {
	return m.worker.Signal(sig)
}
