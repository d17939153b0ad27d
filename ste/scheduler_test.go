package ste

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
)

func batchPeriods(t *testing.T, tokens ...string) []common.Period {
	t.Helper()
	out := make([]common.Period, len(tokens))
	for i, tok := range tokens {
		out[i] = mustPeriod(t, tok)
	}
	return out
}

func TestSequentialBatchAbortsOnFirstFailure(t *testing.T) {
	a := assert.New(t)

	var ran []string
	b := &Batch{
		Periods:  batchPeriods(t, "2024-01", "2024-02", "2024-03"),
		Parallel: 1,
		RunInProcess: func(_ context.Context, p common.Period, offset int) error {
			ran = append(ran, p.String())
			a.Zero(offset)
			if p.String() == "2024-02" {
				return errors.New("load failed")
			}
			return nil
		},
	}

	summary := b.Run(context.Background())

	a.Equal([]string{"2024-01", "2024-02"}, ran)
	a.Len(summary.Successful, 1)
	a.Len(summary.Failed, 1)
	a.Len(summary.Skipped, 1)
	a.Equal(common.EExitCode.Error(), summary.ExitCode(false))
}

func TestSequentialBatchContinueOnError(t *testing.T) {
	a := assert.New(t)

	b := &Batch{
		Periods:         batchPeriods(t, "2024-01", "2024-02", "2024-03"),
		Parallel:        1,
		ContinueOnError: true,
		RunInProcess: func(_ context.Context, p common.Period, _ int) error {
			if p.String() == "2024-02" {
				return errors.New("load failed")
			}
			return nil
		},
	}

	summary := b.Run(context.Background())

	a.Len(summary.Successful, 2)
	a.Len(summary.Failed, 1)
	a.Empty(summary.Skipped)
	a.Equal(common.EExitCode.Partial(), summary.ExitCode(true))
}

func TestSequentialBatchAllGood(t *testing.T) {
	a := assert.New(t)

	b := &Batch{
		Periods:      batchPeriods(t, "2024-01", "2024-02"),
		Parallel:     1,
		RunInProcess: func(context.Context, common.Period, int) error { return nil },
	}

	summary := b.Run(context.Background())
	a.Len(summary.Successful, 2)
	a.Equal(common.EExitCode.Success(), summary.ExitCode(false))
	a.Contains(summary.Describe(), "2024-01")
}

// fakeChild stands in for a worker process.
type fakeChild struct {
	duration time.Duration
	err      error

	signalled chan os.Signal
}

func newFakeChild(duration time.Duration, err error) *fakeChild {
	return &fakeChild{duration: duration, err: err, signalled: make(chan os.Signal, 1)}
}

func (c *fakeChild) Wait() error {
	select {
	case <-time.After(c.duration):
		return c.err
	case <-c.signalled:
		return errors.New("interrupted")
	}
}

func (c *fakeChild) Signal(sig os.Signal) error {
	select {
	case c.signalled <- sig:
	default:
	}
	return nil
}

func TestParallelBatchAssignsDisjointSlots(t *testing.T) {
	a := assert.New(t)

	var mu sync.Mutex
	var inFlight, maxInFlight int32
	seenOffsets := make(map[int]int)

	b := &Batch{
		Periods:  batchPeriods(t, "2024-01", "2024-02", "2024-03", "2024-04", "2024-05"),
		Parallel: 3,
		SpawnChild: func(_ common.Period, offset int) (ChildRun, error) {
			mu.Lock()
			seenOffsets[offset]++
			mu.Unlock()

			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxInFlight)
				if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
					break
				}
			}
			child := newFakeChild(20*time.Millisecond, nil)
			go func() {
				time.Sleep(15 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			}()
			return child, nil
		},
	}

	summary := b.Run(context.Background())

	a.Len(summary.Successful, 5)
	a.Empty(summary.Failed)
	a.LessOrEqual(atomic.LoadInt32(&maxInFlight), int32(3))

	// only offsets 0..2 exist, and each was reused rather than grown
	for offset := range seenOffsets {
		a.GreaterOrEqual(offset, 0)
		a.Less(offset, 3)
	}
	total := 0
	for _, n := range seenOffsets {
		total += n
	}
	a.Equal(5, total)
}

func TestParallelBatchRecordsChildFailures(t *testing.T) {
	a := assert.New(t)

	b := &Batch{
		Periods:  batchPeriods(t, "2024-01", "2024-02"),
		Parallel: 2,
		SpawnChild: func(p common.Period, _ int) (ChildRun, error) {
			if p.String() == "2024-02" {
				return newFakeChild(time.Millisecond, errors.New("exit status 1")), nil
			}
			return newFakeChild(time.Millisecond, nil), nil
		},
	}

	summary := b.Run(context.Background())
	a.Len(summary.Successful, 1)
	a.Len(summary.Failed, 1)
}

func TestParallelBatchSpawnFailureIsPeriodFailure(t *testing.T) {
	a := assert.New(t)

	b := &Batch{
		Periods:  batchPeriods(t, "2024-01", "2024-02"),
		Parallel: 2,
		SpawnChild: func(p common.Period, _ int) (ChildRun, error) {
			if p.String() == "2024-01" {
				return nil, errors.New("fork failed")
			}
			return newFakeChild(time.Millisecond, nil), nil
		},
	}

	summary := b.Run(context.Background())
	a.Len(summary.Failed, 1)
	a.Len(summary.Successful, 1)
}

func TestParallelBatchCancellationSignalsChildren(t *testing.T) {
	a := assert.New(t)

	var children []*fakeChild
	var mu sync.Mutex

	ctx, cancel := context.WithCancel(context.Background())
	b := &Batch{
		Periods:     batchPeriods(t, "2024-01", "2024-02", "2024-03"),
		Parallel:    2,
		GracePeriod: time.Second,
		SpawnChild: func(_ common.Period, _ int) (ChildRun, error) {
			child := newFakeChild(time.Hour, nil) // would never finish on its own
			mu.Lock()
			children = append(children, child)
			mu.Unlock()
			return child, nil
		},
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	summary := b.Run(ctx)

	// two ran and were interrupted, the third never got a slot
	require.Len(t, summary.Failed, 2)
	a.Len(summary.Skipped, 1)
	mu.Lock()
	a.Len(children, 2)
	mu.Unlock()
}
