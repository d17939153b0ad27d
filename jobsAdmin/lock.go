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
	"errors"
	"time"

	"github.com/danjacques/gofslock/fslock"
)

// ErrLockBusy means another process held the registry lock past our deadline.
// Callers report it and decline to proceed; they never force the lock.
var ErrLockBusy = errors.New("job registry is locked by another process")

const (
	lockDeadline      = 5 * time.Second
	lockRetryInterval = 50 * time.Millisecond
)

// withLock runs fn while holding the registry's advisory file lock. All
// cross-process mutations of the jobs directory go through here; readers take
// the shared side.
func (r *Registry) withLock(shared bool, fn func() error) error {
	deadline := time.Now().Add(lockDeadline)

	l := fslock.L{
		Path:   r.lockPath,
		Shared: shared,
		Block: fslock.Blocker(func() error {
			if time.Now().After(deadline) {
				return ErrLockBusy
			}
			time.Sleep(lockRetryInterval)
			return nil
		}),
	}

	handle, err := l.Lock()
	if err != nil {
		return err
	}
	defer func() { _ = handle.Unlock() }()

	return fn()
}
