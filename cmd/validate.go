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
	"time"

	"github.com/spf13/cobra"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/manifest"
	"github.com/wastore/sfcopy/warehouse"
)

func init() {
	type validateReq struct {
		manifestPath string
		period       string
		table        string
	}

	commandLineInput := validateReq{}

	// validateCmd represents the validate command
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: validateCmdShortDescription,
		Long:  validateCmdLongDescription,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New("the validate command takes no arguments, only flags")
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
			handleValidateCommand(m, commandLineInput.table, period)
		},
	}

	rootCmd.AddCommand(validateCmd)

	validateCmd.PersistentFlags().StringVar(&commandLineInput.manifestPath, "manifest", "", "Path of the JSON manifest describing the warehouse connection and the file-to-table mappings.")
	validateCmd.PersistentFlags().StringVar(&commandLineInput.period, "period", "", "Period to validate: a month (2024-01) or a day range (20240101-20240131). An empty value scans each whole table.")
	validateCmd.PersistentFlags().StringVar(&commandLineInput.table, "table", "", "Validate only the named destination table instead of every table in the manifest.")
}

func handleValidateCommand(m *manifest.Manifest, onlyTable string, period common.Period) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session, err := warehouse.Connect(ctx, m.Snowflake)
	if err != nil {
		glcm.Error(err.Error())
	}
	defer func() { _ = session.Close() }()

	validator := warehouse.NewValidator(session, m.Snowflake.Database, m.Snowflake.Schema)

	var reports []*warehouse.ValidationReport
	for _, spec := range specsToCheck(m, onlyTable) {
		if spec.DateColumn == "" && len(spec.DuplicateKeyColumns) == 0 {
			glcm.Info(fmt.Sprintf("%s: no date column or duplicate keys configured, nothing to validate", spec.TableName))
			continue
		}
		report, err := validator.Validate(ctx, spec.TableName, spec.DateColumn, spec.DuplicateKeyColumns, period)
		if err != nil {
			glcm.Error(fmt.Sprintf("validation of %s could not run: %v", spec.TableName, err))
		}
		reports = append(reports, report)
		glcm.Info(describeValidation(report))
	}
	if len(reports) == 0 {
		glcm.Error("nothing to validate: no matching table with checks configured")
	}

	exitCode := common.EExitCode.Success()
	for _, report := range reports {
		if !report.Valid {
			exitCode = common.EExitCode.Error()
		}
	}
	glcm.Exit(func(format common.OutputFormat) string {
		if format == common.EOutputFormat.Json() {
			return common.GetJsonStringFromTemplate(reports)
		}
		if exitCode == common.EExitCode.Success() {
			return fmt.Sprintf("%d table(s) valid", len(reports))
		}
		return "validation found problems; see the verdicts above"
	}, exitCode)
}

// specsToCheck narrows the manifest to the requested table, or keeps all.
func specsToCheck(m *manifest.Manifest, onlyTable string) []manifest.FileSpec {
	if onlyTable == "" {
		return m.Files
	}
	if spec := m.SpecForTable(onlyTable); spec != nil {
		return []manifest.FileSpec{*spec}
	}
	exitWithUsageError(fmt.Sprintf("table %s is not in the manifest", onlyTable))
	return nil
}

// describeValidation renders one verdict for the console; the full report
// rides the json output.
func describeValidation(r *warehouse.ValidationReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s): ", r.Table, r.Period)
	if r.Valid {
		sb.WriteString("valid")
	} else {
		sb.WriteString("INVALID: " + strings.Join(r.FailureReasons, "; "))
	}
	fmt.Fprintf(&sb, "\n  %d rows over %d date(s)", r.TotalRows, r.UniqueDates)
	if !r.MinDate.IsZero() {
		fmt.Fprintf(&sb, ", %s to %s", common.FormatDate(r.MinDate), common.FormatDate(r.MaxDate))
	}
	if len(r.Gaps) > 0 {
		fmt.Fprintf(&sb, "\n  missing dates (%d): %s", len(r.Gaps), joinDates(r.Gaps, 10))
	}
	for _, anomaly := range r.Anomalies {
		fmt.Fprintf(&sb, "\n  %s: %d rows (%s)", common.FormatDate(anomaly.Date), anomaly.Rows, anomaly.Class)
	}
	if r.Duplicates != nil {
		sb.WriteString("\n  " + r.Duplicates.Describe())
	}
	return sb.String()
}

func joinDates(dates []time.Time, most int) string {
	tokens := make([]string, 0, most+1)
	for i, d := range dates {
		if i == most {
			tokens = append(tokens, "...")
			break
		}
		tokens = append(tokens, common.FormatDate(d))
	}
	return strings.Join(tokens, ", ")
}
