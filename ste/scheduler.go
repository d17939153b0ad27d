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
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wastore/sfcopy/common"
)

const defaultGracePeriod = 30 * time.Second

// ChildRun is a spawned sibling the scheduler waits on. The job registry's
// worker handle satisfies it.
type ChildRun interface {
	Wait() error
	Signal(sig os.Signal) error
}

// Batch schedules one pipeline run per period. parallel=1 runs in-process;
// otherwise each period runs in its own worker process, spawned by the
// caller's SpawnChild, so runs get independent warehouse connections and
// honest pid-based crash detection. The offset handed to each run is its
// progress-region position among the siblings.
type Batch struct {
	Periods         []common.Period
	Parallel        int
	ContinueOnError bool
	GracePeriod     time.Duration // 0 means the 30s default

	// RunInProcess executes one period in this process. Used when Parallel<=1.
	RunInProcess func(ctx context.Context, period common.Period, offset int) error

	// SpawnChild starts one period in a worker process. Used when Parallel>1.
	SpawnChild func(period common.Period, offset int) (ChildRun, error)
}

// BatchSummary is the scheduler's final account of every requested period.
type BatchSummary struct {
	Successful []common.Period
	Failed     []common.Period
	Skipped    []common.Period // never started: aborted early or cancelled
}

// ExitCode maps the summary onto the process exit contract.
func (s *BatchSummary) ExitCode(continueOnError bool) common.ExitCode {
	if len(s.Failed) == 0 && len(s.Skipped) == 0 {
		return common.EExitCode.Success()
	}
	if continueOnError {
		return common.EExitCode.Partial()
	}
	return common.EExitCode.Error()
}

func (s *BatchSummary) Describe() string {
	render := func(ps []common.Period) string {
		if len(ps) == 0 {
			return "none"
		}
		tokens := make([]string, len(ps))
		for i, p := range ps {
			tokens[i] = p.String()
		}
		return strings.Join(tokens, ", ")
	}
	return fmt.Sprintf("successful: %s\nfailed: %s\nskipped: %s",
		render(s.Successful), render(s.Failed), render(s.Skipped))
}

// Run schedules every period and blocks until all runs finish, fail, or the
// context's cancellation grace window expires.
func (b *Batch) Run(ctx context.Context) *BatchSummary {
	if b.Parallel <= 1 {
		return b.runSequential(ctx)
	}
	return b.runParallel(ctx)
}

func (b *Batch) runSequential(ctx context.Context) *BatchSummary {
	summary := &BatchSummary{}
	aborted := false
	for _, period := range b.Periods {
		if aborted || ctx.Err() != nil {
			summary.Skipped = append(summary.Skipped, period)
			continue
		}
		if err := b.RunInProcess(ctx, period, 0); err != nil {
			summary.Failed = append(summary.Failed, period)
			common.LogToRunLog(fmt.Sprintf("period %s failed: %v", period, err), common.LogError)
			if !b.ContinueOnError {
				aborted = true
			}
			continue
		}
		summary.Successful = append(summary.Successful, period)
	}
	return summary
}

func (b *Batch) runParallel(ctx context.Context) *BatchSummary {
	grace := b.GracePeriod
	if grace == 0 {
		grace = defaultGracePeriod
	}

	summary := &BatchSummary{}
	var mu sync.Mutex
	recorded := make(map[string]bool)
	record := func(period common.Period, failed bool) {
		mu.Lock()
		defer mu.Unlock()
		key := period.String()
		if recorded[key] {
			return
		}
		recorded[key] = true
		if failed {
			summary.Failed = append(summary.Failed, period)
		} else {
			summary.Successful = append(summary.Successful, period)
		}
	}

	// progress-region slots cycle through 0..Parallel-1 as runs come and go
	slots := make(chan int, b.Parallel)
	for i := 0; i < b.Parallel; i++ {
		slots <- i
	}

	sem := semaphore.NewWeighted(int64(b.Parallel))
	live := make(map[ChildRun]common.Period)
	var wg sync.WaitGroup

	for _, period := range b.Periods {
		if err := sem.Acquire(ctx, 1); err != nil {
			summary.Skipped = append(summary.Skipped, period)
			continue
		}
		slot := <-slots

		child, err := b.SpawnChild(period, slot)
		if err != nil {
			record(period, true)
			common.LogToRunLog(fmt.Sprintf("could not start worker for period %s: %v", period, err), common.LogError)
			slots <- slot
			sem.Release(1)
			continue
		}

		mu.Lock()
		live[child] = period
		mu.Unlock()

		wg.Add(1)
		go func(period common.Period, child ChildRun, slot int) {
			defer wg.Done()
			err := child.Wait()
			mu.Lock()
			delete(live, child)
			mu.Unlock()
			record(period, err != nil)
			slots <- slot
			sem.Release(1)
		}(period, child, slot)
	}

	waited := make(chan struct{})
	go func() {
		wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		// nudge the children, then give them the grace window to clean up
		mu.Lock()
		for child := range live {
			_ = child.Signal(os.Interrupt)
		}
		mu.Unlock()

		select {
		case <-waited:
		case <-time.After(grace):
			mu.Lock()
			for _, period := range live {
				if !recorded[period.String()] {
					recorded[period.String()] = true
					summary.Failed = append(summary.Failed, period)
				}
			}
			mu.Unlock()
		}
	}
	return summary
}
