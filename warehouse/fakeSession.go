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

package warehouse

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FakeSession is a deterministic in-memory Session for tests, here rather
// than in a _test file so the pipeline and scheduler tests can drive it too.
// Statements are recorded; query results and async status sequences are
// scripted by substring match.
type FakeSession struct {
	mu sync.Mutex

	Execs   []string
	Queries []string

	queryStubs []fakeStub
	execErrs   []fakeExecErr

	// asyncStatuses maps query id to the remaining status sequence; a drained
	// or missing sequence answers Success.
	asyncStatuses map[string][]QueryStatus
	pendingStates []QueryStatus // applied to the next SubmitAsync

	KeepAlives map[string]int
	Cancelled  []string
	Closed     bool
}

type fakeStub struct {
	substr string
	rows   []Row
	err    error
}

type fakeExecErr struct {
	substr string
	err    error
}

func NewFakeSession() *FakeSession {
	return &FakeSession{
		asyncStatuses: make(map[string][]QueryStatus),
		KeepAlives:    make(map[string]int),
	}
}

var _ Session = &FakeSession{}

// StubQuery makes any Query whose SQL contains substr answer with rows.
// Later stubs win over earlier ones.
func (f *FakeSession) StubQuery(substr string, rows []Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryStubs = append(f.queryStubs, fakeStub{substr: substr, rows: rows})
}

// StubQueryError makes any matching Query fail.
func (f *FakeSession) StubQueryError(substr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryStubs = append(f.queryStubs, fakeStub{substr: substr, err: err})
}

// StubExecError makes any matching Exec fail.
func (f *FakeSession) StubExecError(substr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execErrs = append(f.execErrs, fakeExecErr{substr: substr, err: err})
}

// StubAsyncStates scripts the status sequence of the next async submission:
// each QueryStatus answers one poll, then the last one repeats.
func (f *FakeSession) StubAsyncStates(states ...QueryStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingStates = states
}

func (f *FakeSession) Exec(ctx context.Context, sql string, binds ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Execs = append(f.Execs, sql)
	for _, e := range f.execErrs {
		if strings.Contains(sql, e.substr) {
			return e.err
		}
	}
	return nil
}

func (f *FakeSession) Query(ctx context.Context, sql string, binds ...any) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, sql)
	for i := len(f.queryStubs) - 1; i >= 0; i-- {
		if strings.Contains(sql, f.queryStubs[i].substr) {
			return f.queryStubs[i].rows, f.queryStubs[i].err
		}
	}
	return nil, nil
}

func (f *FakeSession) SubmitAsync(ctx context.Context, sql string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Execs = append(f.Execs, sql)
	for _, e := range f.execErrs {
		if strings.Contains(sql, e.substr) {
			return "", e.err
		}
	}

	qid := uuid.NewString()
	f.asyncStatuses[qid] = f.pendingStates
	f.pendingStates = nil
	return qid, nil
}

func (f *FakeSession) QueryStatus(ctx context.Context, queryID string) (QueryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq, ok := f.asyncStatuses[queryID]
	if !ok {
		return QueryStatus{}, fmt.Errorf("unknown query id %s", queryID)
	}
	if len(seq) == 0 {
		return QueryStatus{State: EQueryState.Success()}, nil
	}
	status := seq[0]
	if len(seq) > 1 {
		f.asyncStatuses[queryID] = seq[1:]
	}
	return status, nil
}

func (f *FakeSession) KeepAlive(ctx context.Context, queryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.KeepAlives[queryID]++
	return nil
}

func (f *FakeSession) CancelQuery(ctx context.Context, queryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled = append(f.Cancelled, queryID)
	return nil
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// ExecsContaining returns the recorded statements that contain substr.
func (f *FakeSession) ExecsContaining(substr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.Execs {
		if strings.Contains(e, substr) {
			out = append(out, e)
		}
	}
	return out
}

// TotalKeepAlives sums keepalive fetches across all query ids.
func (f *FakeSession) TotalKeepAlives() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.KeepAlives {
		total += n
	}
	return total
}
