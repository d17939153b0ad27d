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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/jobsAdmin"
)

func init() {
	type jobsListReq struct {
		withStatus string
	}

	commandLineInput := jobsListReq{}

	// lsCmd represents the jobs list command
	lsCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   listJobsCmdShortDescription,
		Long:    listJobsCmdLongDescription,
		Args: func(cmd *cobra.Command, args []string) error {
			// if there is any argument passed
			// it is an error
			if len(args) > 0 {
				return fmt.Errorf("list does not require any argument")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			var filter *common.JobStatus
			if commandLineInput.withStatus != "" {
				parsed := common.EJobStatus
				if err := parsed.Parse(commandLineInput.withStatus); err != nil {
					exitWithUsageError(fmt.Sprintf("failed to parse --with-status due to error: %s", err))
				}
				filter = &parsed
			}
			handleListJobsCommand(filter)
		},
	}

	jobsCmd.AddCommand(lsCmd)

	lsCmd.PersistentFlags().StringVar(&commandLineInput.withStatus, "with-status", "",
		"List only the jobs with the specified status. Available values include: Running, Completed, Failed, Crashed")
}

// handleListJobsCommand health-checks the registry, then prints every job
// record that passes the optional status filter, newest first.
func handleListJobsCommand(filter *common.JobStatus) {
	registry := openRegistry()

	jobs, err := registry.List()
	if err != nil {
		glcm.Error("failed to list jobs due to error: " + err.Error())
	}

	var kept []*jobsAdmin.Job
	for _, job := range jobs {
		if filter == nil || job.Status == *filter {
			kept = append(kept, job)
		}
	}

	glcm.Exit(func(format common.OutputFormat) string {
		if format == common.EOutputFormat.Json() {
			jsonOutput, err := json.Marshal(kept)
			common.PanicIfErr(err)
			return string(jsonOutput)
		}

		var sb strings.Builder
		sb.WriteString("Existing Jobs \n")
		for _, job := range kept {
			sb.WriteString(fmt.Sprintf("JobId: %s\nStart Time: %s\nStatus: %s\nCommand: %s\n\n",
				job.ID,
				job.StartTime.Format(time.RFC850),
				job.Status,
				job.Command))
		}
		return sb.String()
	}, common.EExitCode.Success())
}
