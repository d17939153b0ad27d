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

package ste

import (
	"fmt"
	"log"
	"runtime"
	"strconv"

	"github.com/wastore/sfcopy/common"
)

// ConfiguredInt is an integer which may be optionally configured by user through an environment variable
type ConfiguredInt struct {
	Value             int
	IsUserSpecified   bool
	EnvVarName        string
	DefaultSourceDesc string
}

func (i *ConfiguredInt) GetDescription() string {
	if i.IsUserSpecified {
		return fmt.Sprintf("Based on %s environment variable", i.EnvVarName)
	} else {
		return fmt.Sprintf("Based on %s. Set %s environment variable to override", i.DefaultSourceDesc, i.EnvVarName)
	}
}

// tryNewConfiguredInt populates a ConfiguredInt from an environment variable, or returns nil if env var is not set
func tryNewConfiguredInt(envVar common.EnvironmentVariable) *ConfiguredInt {
	override := common.GetLifecycleMgr().GetEnvironmentVariable(envVar)
	if override != "" {
		val, err := strconv.ParseInt(override, 10, 64)
		if err != nil {
			log.Fatalf("error parsing the env %s %q failed with error %v",
				envVar.Name, override, err)
		}
		return &ConfiguredInt{int(val), true, envVar.Name, ""}
	}
	return nil
}

// ConcurrencySettings stores the numbers that govern how hard one pipeline
// run works the local machine.
type ConcurrencySettings struct {
	// QCWorkers is the size of the quality-check worker pool, the only
	// CPU-bound stage of the pipeline.
	QCWorkers *ConfiguredInt
}

// NewConcurrencySettings resolves the QC worker count: the environment
// override wins, then an explicit --max-workers budget divided across
// parallel siblings, then the auto-detected tier for this machine.
func NewConcurrencySettings(maxWorkers, parallel int) ConcurrencySettings {
	if parallel < 1 {
		parallel = 1
	}

	qc := tryNewConfiguredInt(common.EEnvironmentVariable.ConcurrencyValue())
	if qc == nil {
		if maxWorkers > 0 {
			value := maxWorkers / parallel
			if value < 1 {
				value = 1
			}
			qc = &ConfiguredInt{value, false, common.EEnvironmentVariable.ConcurrencyValue().Name, "the worker budget split across parallel runs"}
		} else {
			qc = &ConfiguredInt{autoWorkerCount(runtime.NumCPU()), false, common.EEnvironmentVariable.ConcurrencyValue().Name, "the CPU count of the local machine"}
		}
	}
	if qc.Value < 1 {
		qc.Value = 1
	}

	return ConcurrencySettings{QCWorkers: qc}
}

// autoWorkerCount picks a worker count for a machine with the given core
// count, leaving progressively more headroom for the I/O stages and the rest
// of the machine as core counts grow.
func autoWorkerCount(cores int) int {
	switch {
	case cores <= 4:
		return cores
	case cores <= 8:
		return cores - 1
	case cores <= 16:
		return (cores * 3) / 4
	case cores <= 32:
		return (cores * 60) / 100
	default:
		half := cores / 2
		if half > 32 {
			half = 32
		}
		return half
	}
}
