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

package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/wastore/sfcopy/cmd"
	"github.com/wastore/sfcopy/common"
)

func main() {
	stateFolder := getStateFolder()
	logFolder := common.GetEnvironmentVariable(common.EEnvironmentVariable.LogLocation())
	if logFolder == "" {
		logFolder = filepath.Join(stateFolder, "logs")
	}

	for _, folder := range []string{stateFolder, filepath.Join(stateFolder, "jobs"), filepath.Join(stateFolder, "locks"), logFolder} {
		if err := os.MkdirAll(folder, 0755); err != nil {
			log.Fatalf("cannot create folder %s: %v", folder, err)
		}
	}

	cmd.Execute(stateFolder, logFolder)
}

// getStateFolder resolves where job records, locks, and (by default) logs
// live: the .sfcopy folder under the user's home, unless overridden.
func getStateFolder() string {
	if fromEnv := common.GetEnvironmentVariable(common.EEnvironmentVariable.StateLocation()); fromEnv != "" {
		return fromEnv
	}
	home, err := homedir.Dir()
	if err != nil {
		log.Fatalf("cannot resolve the home directory: %v", err)
	}
	return filepath.Join(home, ".sfcopy")
}
