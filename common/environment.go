// Copyright © 2017 Microsoft <wastore@microsoft.com>
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

package common

import "os"

type EnvironmentVariable struct {
	Name         string
	DefaultValue string
	Description  string
	Hidden       bool
}

// This array needs to be updated when a new public environment variable is added
var VisibleEnvironmentVariables = []EnvironmentVariable{
	EEnvironmentVariable.ConcurrencyValue(),
	EEnvironmentVariable.LogLocation(),
	EEnvironmentVariable.StateLocation(),
	EEnvironmentVariable.WarehousePassword(),
	EEnvironmentVariable.UserAgentPrefix(),
}

var EEnvironmentVariable = EnvironmentVariable{}

func (EnvironmentVariable) ConcurrencyValue() EnvironmentVariable {
	return EnvironmentVariable{
		Name:        "SFCOPY_CONCURRENCY_VALUE",
		Description: "Overrides how many quality-check workers scan a file. By default, this number is determined based on the number of logical cores on the machine.",
	}
}

func (EnvironmentVariable) LogLocation() EnvironmentVariable {
	return EnvironmentVariable{
		Name:        "SFCOPY_LOG_LOCATION",
		Description: "Overrides where the log files are stored, to avoid filling up a disk.",
	}
}

func (EnvironmentVariable) StateLocation() EnvironmentVariable {
	return EnvironmentVariable{
		Name:        "SFCOPY_STATE_LOCATION",
		Description: "Overrides where job records and locks are stored. Defaults to the .sfcopy folder under the user's home directory.",
	}
}

func (EnvironmentVariable) WarehousePassword() EnvironmentVariable {
	return EnvironmentVariable{
		Name:        "SFCOPY_WAREHOUSE_PASSWORD",
		Description: "Overrides the warehouse password from the manifest, so the manifest file need not hold a secret.",
		Hidden:      true,
	}
}

func (EnvironmentVariable) UserAgentPrefix() EnvironmentVariable {
	return EnvironmentVariable{
		Name:        "SFCOPY_USER_AGENT_PREFIX",
		Description: "Add a prefix to the default user agent used while making requests.",
	}
}

// ProgressOffset is set by the batch scheduler on its worker processes so
// sibling runs render their progress bars on disjoint terminal lines.
func (EnvironmentVariable) ProgressOffset() EnvironmentVariable {
	return EnvironmentVariable{Name: "SFCOPY_PROGRESS_OFFSET", Hidden: true}
}

// JobID is set by the batch scheduler on its worker processes so the child
// writes its terminal status into the job record the parent created.
func (EnvironmentVariable) JobID() EnvironmentVariable {
	return EnvironmentVariable{Name: "SFCOPY_JOB_ID", Hidden: true}
}

// GetEnvironmentVariable reads the variable from the process environment,
// falling back to its default when unset or empty.
func GetEnvironmentVariable(env EnvironmentVariable) string {
	if value := os.Getenv(env.Name); value != "" {
		return value
	}
	return env.DefaultValue
}

// ClearEnvironmentVariable clears the environment variable
func ClearEnvironmentVariable(variable EnvironmentVariable) {
	_ = os.Setenv(variable.Name, "")
}
