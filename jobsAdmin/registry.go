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

// Package jobsAdmin is the durable job registry: one small record file per
// managed run, mutated only under a cross-process advisory lock, so runs and
// their fates survive the processes that started them.
package jobsAdmin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/wastore/sfcopy/common"
)

// Registry manages the job records under one state folder.
type Registry struct {
	jobsFolder string
	logFolder  string
	lockPath   string
}

// NewRegistry opens (creating if needed) the registry under stateFolder.
// Log files for new jobs are placed under logFolder.
func NewRegistry(stateFolder, logFolder string) (*Registry, error) {
	r := &Registry{
		jobsFolder: filepath.Join(stateFolder, "jobs"),
		logFolder:  logFolder,
		lockPath:   filepath.Join(stateFolder, "locks", "manager.lock"),
	}
	for _, folder := range []string{r.jobsFolder, filepath.Dir(r.lockPath), logFolder} {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return nil, errors.Wrap(err, "creating registry folder")
		}
	}
	return r, nil
}

// NewJobID derives an id unique enough for a single state folder: wall-clock
// second plus the creating pid.
func NewJobID() string {
	return fmt.Sprintf("%s-%d", time.Now().UTC().Format("20060102T150405"), os.Getpid())
}

func (r *Registry) jobPath(id string) string {
	return filepath.Join(r.jobsFolder, id+jobFileExt)
}

// LogFilePathFor names the log file a job of this name and id writes to.
func (r *Registry) LogFilePathFor(name, id string) string {
	return common.LogFilePath(r.logFolder, name, id)
}

// Start writes a new RUNNING record and returns it. The worker pid is not
// known yet; the spawner records it with RecordPID once the process exists,
// and in-process runs record their own.
func (r *Registry) Start(name, command string) (*Job, error) {
	job := &Job{
		ID:        NewJobID(),
		Name:      name,
		Command:   command,
		StartTime: time.Now().UTC(),
		Status:    common.EJobStatus.Running(),
	}

	err := r.withLock(false, func() error {
		// a second start within the same wall-clock second needs a distinct id
		for seq := 2; ; seq++ {
			if _, statErr := os.Stat(r.jobPath(job.ID)); os.IsNotExist(statErr) {
				break
			}
			job.ID = fmt.Sprintf("%s.%d", NewJobID(), seq)
		}
		job.LogFile = r.LogFilePathFor(name, job.ID)
		return writeJobFile(r.jobPath(job.ID), job)
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// RecordPID attaches the worker's pid to a running job.
func (r *Registry) RecordPID(id string, pid int) error {
	return r.Update(id, "PID", fmt.Sprintf("%d", pid))
}

// Complete transitions a job to a terminal status with END_TIME stamped now.
func (r *Registry) Complete(id string, status common.JobStatus) error {
	return r.withLock(false, func() error {
		job, err := readJobFile(r.jobPath(id))
		if err != nil {
			return err
		}
		job.Status = status
		job.EndTime = time.Now().UTC()
		return writeJobFile(r.jobPath(id), job)
	})
}

// Update rewrites a single key of a job record, atomically and under the
// lock. The key names match the file format.
func (r *Registry) Update(id, key, value string) error {
	return r.withLock(false, func() error {
		job, err := readJobFile(r.jobPath(id))
		if err != nil {
			return err
		}
		if err := applyField(job, key, value); err != nil {
			return err
		}
		return writeJobFile(r.jobPath(id), job)
	})
}

func applyField(j *Job, key, value string) error {
	switch key {
	case "JOB_NAME":
		j.Name = value
	case "COMMAND":
		j.Command = value
	case "END_TIME":
		if value == "" {
			j.EndTime = time.Time{}
			return nil
		}
		t, err := time.Parse(jobTimeLayout, value)
		if err != nil {
			return err
		}
		j.EndTime = t
	case "STATUS":
		return j.Status.Parse(value)
	case "PID":
		var pid int
		if _, err := fmt.Sscanf(value, "%d", &pid); err != nil {
			return err
		}
		j.PID = pid
	case "LOG_FILE":
		j.LogFile = value
	default:
		return fmt.Errorf("job record has no updatable key %q", key)
	}
	return nil
}

// List returns every job record, newest first. Stale RUNNING entries are
// reclassified before the listing so callers never see a pid-dead job as
// live.
func (r *Registry) List() ([]*Job, error) {
	if _, err := r.HealthCheck(); err != nil {
		return nil, err
	}

	var jobs []*Job
	err := r.withLock(true, func() error {
		var readErr error
		jobs, readErr = r.readAll()
		return readErr
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})
	return jobs, nil
}

// Get reads one job record.
func (r *Registry) Get(id string) (*Job, error) {
	var job *Job
	err := r.withLock(true, func() error {
		var readErr error
		job, readErr = readJobFile(r.jobPath(id))
		return readErr
	})
	return job, err
}

// CleanCompleted removes records with terminal status and returns how many
// went. Log files stay; they are the evidence the record pointed at.
func (r *Registry) CleanCompleted() (int, error) {
	return r.clean(func(j *Job) bool { return j.Status.IsTerminal() })
}

// CleanWithStatus removes only the records carrying the given status.
// Running records are never removed; their workers still own them.
func (r *Registry) CleanWithStatus(status common.JobStatus) (int, error) {
	if status == common.EJobStatus.Running() {
		return 0, errors.New("cannot remove the record of a running job")
	}
	return r.clean(func(j *Job) bool { return j.Status == status })
}

func (r *Registry) clean(remove func(*Job) bool) (int, error) {
	removed := 0
	err := r.withLock(false, func() error {
		jobs, err := r.readAll()
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if !remove(job) {
				continue
			}
			if err := os.Remove(r.jobPath(job.ID)); err != nil {
				return errors.Wrap(err, "removing job record")
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// readAll loads every record in the jobs folder. Caller holds the lock.
// Records that fail to parse are skipped rather than wedging every listing.
func (r *Registry) readAll() ([]*Job, error) {
	entries, err := os.ReadDir(r.jobsFolder)
	if err != nil {
		return nil, errors.Wrap(err, "listing job records")
	}

	var jobs []*Job
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), jobFileExt) {
			continue
		}
		job, err := readJobFile(filepath.Join(r.jobsFolder, entry.Name()))
		if err != nil {
			common.LogToRunLog(fmt.Sprintf("skipping unreadable job record %s: %v", entry.Name(), err), common.LogWarning)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
