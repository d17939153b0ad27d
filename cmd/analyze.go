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
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wastore/sfcopy/common"
)

func init() {
	raw := rawLoadCmdArgs{parallel: 1}

	// analyzeCmd represents the analyze command; it rides the load machinery
	// with every stage after the estimate turned off
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: analyzeCmdShortDescription,
		Long:  analyzeCmdLongDescription,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New("the analyze command takes no arguments, only flags")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cooked, err := raw.cook()
			if err != nil {
				exitWithUsageError("failed to parse user input due to error: " + err.Error())
			}
			cooked.analyzeOnly = true

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			for _, period := range cooked.periods {
				if err := runLoadPeriod(ctx, &cooked, period, 0); err != nil {
					glcm.Error(err.Error())
				}
			}
			glcm.Exit(nil, common.EExitCode.Success())
		},
	}

	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.PersistentFlags().StringVar(&raw.manifestPath, "manifest", "", "Path of the JSON manifest describing the warehouse connection and the file-to-table mappings.")
	analyzeCmd.PersistentFlags().StringVar(&raw.periods, "period", "", "Period(s) to analyze, same forms as the load command accepts.")
	analyzeCmd.PersistentFlags().StringVar(&raw.basePath, "base-path", "", "Folder the manifest's file patterns resolve under. Defaults to the current directory.")
}
