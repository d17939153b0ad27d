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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wastore/sfcopy/common"
)

func init() {
	withStatus := ""

	// remove the records of jobs that reached a terminal status
	jobsCleanCmd := &cobra.Command{
		Use:     "clean",
		Aliases: []string{"cl"},
		Short:   cleanJobsCmdShortDescription,
		Long:    cleanJobsCmdLongDescription,
		Example: cleanJobsCmdExample,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return errors.New("clean command does not accept arguments")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			registry := openRegistry()

			// a health check first, so a crashed job does not survive the
			// clean just because nothing had noticed its worker died
			if _, err := registry.HealthCheck(); err != nil {
				glcm.Warn("job registry health check failed: " + err.Error())
			}

			var removed int
			var err error
			if withStatus == "" {
				removed, err = registry.CleanCompleted()
			} else {
				status := common.EJobStatus
				if parseErr := status.Parse(withStatus); parseErr != nil {
					exitWithUsageError(fmt.Sprintf("failed to parse --with-status due to error: %s", parseErr))
				}
				removed, err = registry.CleanWithStatus(status)
			}
			if err != nil {
				glcm.Error("failed to remove job records due to error: " + err.Error())
			}
			glcm.Exit(func(format common.OutputFormat) string {
				return fmt.Sprintf("Successfully removed %d job record(s). Log files are kept.", removed)
			}, common.EExitCode.Success())
		},
	}

	jobsCmd.AddCommand(jobsCleanCmd)

	jobsCleanCmd.PersistentFlags().StringVar(&withStatus, "with-status", "",
		"Remove only the records with the specified status. Available values include: Completed, Failed, Crashed. By default every terminal-status record is removed.")
}
