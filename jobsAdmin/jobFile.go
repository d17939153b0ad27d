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

package jobsAdmin

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wastore/sfcopy/common"
)

// jobFileExt is the extension of one job's record under <state>/jobs.
const jobFileExt = ".job"

const jobTimeLayout = time.RFC3339

// Job is the durable record of one managed run. It survives the process that
// created it; crash detection works off the recorded pid.
type Job struct {
	ID        string
	Name      string
	Command   string
	StartTime time.Time
	EndTime   time.Time // zero until the status is terminal
	Status    common.JobStatus
	PID       int // 0 until the worker is known
	LogFile   string
}

// encodeJob renders the KEY="value" lines. Key order is fixed so records
// diff cleanly.
func encodeJob(j *Job) string {
	var sb strings.Builder
	write := func(key, value string) {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(strconv.Quote(value))
		sb.WriteByte('\n')
	}

	write("JOB_ID", j.ID)
	write("JOB_NAME", j.Name)
	write("COMMAND", j.Command)
	write("START_TIME", j.StartTime.UTC().Format(jobTimeLayout))
	endTime := ""
	if !j.EndTime.IsZero() {
		endTime = j.EndTime.UTC().Format(jobTimeLayout)
	}
	write("END_TIME", endTime)
	write("STATUS", strings.ToUpper(j.Status.String()))
	write("PID", strconv.Itoa(j.PID))
	write("LOG_FILE", j.LogFile)
	return sb.String()
}

// parseJob reads the line-oriented record. Unknown keys are ignored so older
// binaries can read records written by newer ones.
func parseJob(content string) (*Job, error) {
	j := &Job{}
	for lineNo, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, rawValue, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("job record line %d: no separator", lineNo+1)
		}
		value, err := strconv.Unquote(rawValue)
		if err != nil {
			return nil, fmt.Errorf("job record line %d: %v", lineNo+1, err)
		}

		switch key {
		case "JOB_ID":
			j.ID = value
		case "JOB_NAME":
			j.Name = value
		case "COMMAND":
			j.Command = value
		case "START_TIME":
			if j.StartTime, err = time.Parse(jobTimeLayout, value); err != nil {
				return nil, fmt.Errorf("job record line %d: %v", lineNo+1, err)
			}
		case "END_TIME":
			if value != "" {
				if j.EndTime, err = time.Parse(jobTimeLayout, value); err != nil {
					return nil, fmt.Errorf("job record line %d: %v", lineNo+1, err)
				}
			}
		case "STATUS":
			if err = j.Status.Parse(value); err != nil {
				return nil, fmt.Errorf("job record line %d: %v", lineNo+1, err)
			}
		case "PID":
			if j.PID, err = strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("job record line %d: %v", lineNo+1, err)
			}
		case "LOG_FILE":
			j.LogFile = value
		}
	}
	if j.ID == "" {
		return nil, fmt.Errorf("job record carries no JOB_ID")
	}
	return j, nil
}

// writeJobFile rewrites the whole record through a temp file and a rename, so
// a reader never observes a half-written record.
func writeJobFile(path string, j *Job) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return errors.Wrap(err, "writing job record")
	}
	tmpName := tmp.Name()

	if _, err = tmp.WriteString(encodeJob(j)); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "writing job record")
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "writing job record")
	}
	return nil
}

func readJobFile(path string) (*Job, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading job record")
	}
	return parseJob(string(content))
}
