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
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/wastore/sfcopy/common"
)

// HealthCheck reclassifies RUNNING jobs whose worker pid is gone. Dead pid
// means CRASHED, not FAILED: absence of evidence, not evidence of failure.
// Returns how many jobs were reclassified. Runs at process start and before
// any listing.
func (r *Registry) HealthCheck() (int, error) {
	crashed := 0
	err := r.withLock(false, func() error {
		jobs, err := r.readAll()
		if err != nil {
			return err
		}

		for _, job := range jobs {
			if job.Status != common.EJobStatus.Running() || job.PID == 0 {
				continue
			}

			alive, err := process.PidExists(int32(job.PID))
			if err != nil {
				// cannot tell; leave the record as-is for the next check
				common.LogToRunLog(fmt.Sprintf("pid probe for job %s failed: %v", job.ID, err), common.LogWarning)
				continue
			}
			if alive {
				continue
			}

			job.Status = common.EJobStatus.Crashed()
			job.EndTime = time.Now().UTC()
			if err := writeJobFile(r.jobPath(job.ID), job); err != nil {
				return err
			}
			crashed++
			common.LogToRunLog(fmt.Sprintf("job %s (pid %d) found dead, marked crashed", job.ID, job.PID), common.LogWarning)
		}
		return nil
	})
	return crashed, err
}
