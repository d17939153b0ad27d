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
	"strings"

	"github.com/spf13/cobra"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/manifest"
	"github.com/wastore/sfcopy/warehouse"
)

func init() {
	type checkDuplicatesReq struct {
		manifestPath string
		period       string
		table        string
	}

	commandLineInput := checkDuplicatesReq{}

	checkDuplicatesCmd := &cobra.Command{
		Use:   "check-duplicates",
		Short: checkDuplicatesCmdShortDescription,
		Long:  checkDuplicatesCmdLongDescription,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New("the check-duplicates command takes no arguments, only flags")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			if commandLineInput.manifestPath == "" {
				exitWithUsageError("the --manifest flag is required")
			}
			m, err := manifest.Load(commandLineInput.manifestPath)
			if err != nil {
				exitWithUsageError(err.Error())
			}
			period, err := common.ParsePeriod(strings.TrimSpace(commandLineInput.period))
			if err != nil {
				exitWithUsageError(err.Error())
			}
			handleCheckDuplicatesCommand(m, commandLineInput.table, period)
		},
	}

	rootCmd.AddCommand(checkDuplicatesCmd)

	checkDuplicatesCmd.PersistentFlags().StringVar(&commandLineInput.manifestPath, "manifest", "", "Path of the JSON manifest describing the warehouse connection and the file-to-table mappings.")
	checkDuplicatesCmd.PersistentFlags().StringVar(&commandLineInput.period, "period", "", "Period to check: a month (2024-01) or a day range (20240101-20240131). An empty value scans each whole table.")
	checkDuplicatesCmd.PersistentFlags().StringVar(&commandLineInput.table, "table", "", "Check only the named destination table instead of every table with keys configured.")
}

func handleCheckDuplicatesCommand(m *manifest.Manifest, onlyTable string, period common.Period) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session, err := warehouse.Connect(ctx, m.Snowflake)
	if err != nil {
		glcm.Error(err.Error())
	}
	defer func() { _ = session.Close() }()

	validator := warehouse.NewValidator(session, m.Snowflake.Database, m.Snowflake.Schema)

	var reports []*warehouse.DuplicateReport
	for _, spec := range specsToCheck(m, onlyTable) {
		if len(spec.DuplicateKeyColumns) == 0 {
			glcm.Info(fmt.Sprintf("%s: no duplicate key columns configured, skipping", spec.TableName))
			continue
		}
		report, err := validator.CheckDuplicates(ctx, spec.TableName, spec.DateColumn, spec.DuplicateKeyColumns, period)
		if err != nil {
			glcm.Error(fmt.Sprintf("duplicate check of %s could not run: %v", spec.TableName, err))
		}
		reports = append(reports, report)
		glcm.Info(fmt.Sprintf("%s: %s", spec.TableName, report.Describe()))
		for _, sample := range report.Samples {
			glcm.Info(fmt.Sprintf("  (%s) x%d", strings.Join(sample.KeyValues, ", "), sample.Count))
		}
	}
	if len(reports) == 0 {
		glcm.Error("nothing to check: no matching table configures duplicate_key_columns")
	}

	// anything short of critical is reported but tolerated
	exitCode := common.EExitCode.Success()
	for _, report := range reports {
		if report.Groups > 0 && report.Severity == common.EDupSeverity.Critical() {
			exitCode = common.EExitCode.Error()
		}
	}
	glcm.Exit(func(format common.OutputFormat) string {
		if format == common.EOutputFormat.Json() {
			return common.GetJsonStringFromTemplate(reports)
		}
		return fmt.Sprintf("%d table(s) checked", len(reports))
	}, exitCode)
}
