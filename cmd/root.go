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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wastore/sfcopy/common"
)

var sfcopyStateFolder string
var sfcopyLogPathFolder string
var outputFormatRaw string
var logLevelRaw string
var sfcopyOutputFormat common.OutputFormat
var sfcopyLogLevel = common.ELogLevel.Info()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: common.SfcopyVersion, // will enable the user to see the version info in the standard posix way: --version
	Use:     "sfcopy",
	Short:   rootCmdShortDescription,
	Long:    rootCmdLongDescription,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		err := sfcopyOutputFormat.Parse(outputFormatRaw)
		glcm.SetOutputFormat(sfcopyOutputFormat)
		if err != nil {
			return err
		}

		return sfcopyLogLevel.Parse(logLevelRaw)
	},
}

// hold a pointer to the global lifecycle controller so that commands could output messages and exit properly
var glcm = common.GetLifecycleMgr()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(stateFolder, logPathFolder string) {
	sfcopyStateFolder = stateFolder
	sfcopyLogPathFolder = logPathFolder

	if err := rootCmd.Execute(); err != nil {
		// a command that failed this early never started any work
		exitWithUsageError(err.Error())
	} else {
		// our commands all control their own life explicitly with the lifecycle manager
		// only commands that don't explicitly exit actually reach this point (e.g. help commands)
		glcm.Exit(nil, common.EExitCode.Success())
	}
}

func init() {
	// replace the word "global" to avoid confusion (e.g. it doesn't affect all instances of sfcopy)
	rootCmd.SetUsageTemplate(strings.Replace((&cobra.Command{}).UsageTemplate(), "Global Flags", "Flags Applying to All Commands", -1))

	rootCmd.PersistentFlags().StringVar(&outputFormatRaw, "output-type", "text", "Format of the command's output. The choices include: text, json. The default value is 'text'.")
	rootCmd.PersistentFlags().StringVar(&logLevelRaw, "log-level", "INFO", "Define the log verbosity for the run log, available levels: DEBUG, INFO, WARNING, ERROR, NONE. The default value is 'INFO'.")
}

// exitWithUsageError reports a configuration or environment problem found
// before any work started. The exit code lets wrappers tell a bad
// invocation from a run that failed.
func exitWithUsageError(msg string) {
	glcm.Exit(func(format common.OutputFormat) string {
		return msg
	}, common.EExitCode.Usage())
}

// stderrIsTerminal gates the progress region: when stderr is redirected the
// bars degrade to periodic plain-text lines.
func stderrIsTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
