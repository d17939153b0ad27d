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
	"github.com/spf13/cobra"

	"github.com/wastore/sfcopy/jobsAdmin"
)

// jobs command is used to encapsulate all sub-commands related to managing jobs
// it is declared as a global variable here so that its sub-commands can add themselves to it
// jobs command itself is not runnable
var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Short:   jobsCmdShortDescription,
	Long:    jobsCmdLongDescription,
	Example: jobsCmdExample,
}

func init() {
	// add jobs command as a top level command
	rootCmd.AddCommand(jobsCmd)
}

func openRegistry() *jobsAdmin.Registry {
	registry, err := jobsAdmin.NewRegistry(sfcopyStateFolder, sfcopyLogPathFolder)
	if err != nil {
		exitWithUsageError("cannot open the job registry: " + err.Error())
	}
	return registry
}
