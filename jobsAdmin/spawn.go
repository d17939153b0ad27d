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
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/wastore/sfcopy/common"
)

// Worker is a spawned job's process handle, held by whoever started it.
type Worker struct {
	Job *Job

	cmd       *exec.Cmd
	logHandle *os.File
}

// StartProcess registers a job, spawns argv as its worker process, and
// records the worker's pid into the record. The worker's stdout goes to the
// job's log file; stderr stays on the parent's terminal so shared progress
// rendering works.
func (r *Registry) StartProcess(name string, argv []string, extraEnv []string) (*Worker, error) {
	job, err := r.Start(name, strings.Join(argv, " "))
	if err != nil {
		return nil, err
	}

	logHandle, err := os.OpenFile(job.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "opening worker log")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	// the worker learns which record it belongs to through the environment
	cmd.Env = append(os.Environ(), common.EEnvironmentVariable.JobID().Name+"="+job.ID)
	cmd.Env = append(cmd.Env, extraEnv...)
	cmd.Stdout = logHandle
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		_ = logHandle.Close()
		_ = r.Complete(job.ID, common.EJobStatus.Failed())
		return nil, errors.Wrap(err, "spawning worker")
	}

	job.PID = cmd.Process.Pid
	if err := r.RecordPID(job.ID, job.PID); err != nil {
		// worker is already running; the record merely lacks its pid, which
		// degrades crash detection for this one job
		common.LogToRunLog(fmt.Sprintf("could not record pid for job %s: %v", job.ID, err), common.LogWarning)
	}

	return &Worker{Job: job, cmd: cmd, logHandle: logHandle}, nil
}

// Wait blocks until the worker exits and returns its error, if any. The
// caller still owns the job record's terminal transition.
func (w *Worker) Wait() error {
	err := w.cmd.Wait()
	_ = w.logHandle.Close()
	return err
}

// Signal forwards a signal to the worker process.
func (w *Worker) Signal(sig os.Signal) error {
	return w.cmd.Process.Signal(sig)
}
