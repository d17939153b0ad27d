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

package common

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/JeffreyRichter/enum/enum"
	tm "github.com/buger/goterm"
)

var EProgressBar = ProgressBar(0)

// ProgressBar names the per-stage counters a run renders. Each bar owns
// exactly one terminal line for the whole run.
type ProgressBar uint8

func (ProgressBar) Files() ProgressBar    { return ProgressBar(0) }
func (ProgressBar) QCRows() ProgressBar   { return ProgressBar(1) }
func (ProgressBar) Compress() ProgressBar { return ProgressBar(2) }
func (ProgressBar) Upload() ProgressBar   { return ProgressBar(3) }
func (ProgressBar) Copy() ProgressBar     { return ProgressBar(4) }

func (pb ProgressBar) String() string {
	return enum.StringInt(pb, reflect.TypeOf(pb))
}

// barLabel is the fixed on-screen name of each bar.
func (pb ProgressBar) barLabel() string {
	switch pb {
	case EProgressBar.Files():
		return "files"
	case EProgressBar.QCRows():
		return "qc_rows"
	case EProgressBar.Compress():
		return "compress"
	case EProgressBar.Upload():
		return "upload"
	default:
		return "copy"
	}
}

type barState struct {
	total   int64
	current int64
	desc    string
}

type barUpdate struct {
	bar   ProgressBar
	reset bool
	delta int64
	total int64
	desc  string
}

// ProgressBus is the single writer of the process's progress region on
// stderr. Pipeline stages push updates over a channel; one actor goroutine
// owns the terminal and re-renders on a short tick. Bars are reset in place
// as the pipeline moves from file to file, so a run's terminal footprint
// never grows.
//
// Sibling worker processes of a parallel batch receive disjoint line offsets
// through SFCOPY_PROGRESS_OFFSET; every process addresses its own rows
// absolutely and never touches another's.
type ProgressBus struct {
	updates    chan barUpdate
	done       chan struct{}
	drained    chan struct{}
	bars       [5]barState
	order      []ProgressBar
	baseRow    int
	isTerminal bool
	plainEvery time.Duration
	out        *bufio.Writer
}

// NewProgressBus starts the region actor. offset is this run's position among
// parallel siblings (0 for a single run); withQC controls whether the qc_rows
// line exists, which is part of the line-accounting contract.
func NewProgressBus(offset int, withQC bool, isTerminal bool) *ProgressBus {
	order := []ProgressBar{EProgressBar.Files()}
	if withQC {
		order = append(order, EProgressBar.QCRows())
	}
	order = append(order, EProgressBar.Compress(), EProgressBar.Upload(), EProgressBar.Copy())

	b := &ProgressBus{
		updates:    make(chan barUpdate, 256),
		done:       make(chan struct{}),
		drained:    make(chan struct{}),
		order:      order,
		baseRow:    offset*len(order) + 1,
		isTerminal: isTerminal,
		plainEvery: 5 * time.Second,
		out:        bufio.NewWriter(os.Stderr),
	}
	go b.run()
	return b
}

// Reset rearms a bar for the next file: new total, new description, counter
// back to zero. The bar keeps its line.
func (b *ProgressBus) Reset(bar ProgressBar, total int64, desc string) {
	b.send(barUpdate{bar: bar, reset: true, total: total, desc: desc})
}

// Add advances a bar by delta units.
func (b *ProgressBus) Add(bar ProgressBar, delta int64) {
	b.send(barUpdate{bar: bar, delta: delta})
}

func (b *ProgressBus) send(u barUpdate) {
	select {
	case b.updates <- u:
	case <-b.done:
	}
}

// Close stops the actor after a final render. Safe to call once.
func (b *ProgressBus) Close() {
	close(b.done)
	<-b.drained
}

func (b *ProgressBus) run() {
	renderTick := time.NewTicker(100 * time.Millisecond)
	defer renderTick.Stop()
	plainTick := time.NewTicker(b.plainEvery)
	defer plainTick.Stop()

	dirty := true
	for {
		select {
		case u := <-b.updates:
			b.apply(u)
			dirty = true
		case <-renderTick.C:
			if dirty && b.isTerminal {
				b.render()
				dirty = false
			}
		case <-plainTick.C:
			if !b.isTerminal {
				b.renderPlain()
			}
		case <-b.done:
			// drain whatever the stages managed to send before stopping
			for {
				select {
				case u := <-b.updates:
					b.apply(u)
				default:
					if b.isTerminal {
						b.render()
						b.parkCursor()
					} else {
						b.renderPlain()
					}
					close(b.drained)
					return
				}
			}
		}
	}
}

func (b *ProgressBus) apply(u barUpdate) {
	s := &b.bars[u.bar]
	if u.reset {
		s.total = u.total
		s.current = 0
		s.desc = u.desc
		return
	}
	s.current += u.delta
	if s.total > 0 && s.current > s.total {
		s.current = s.total
	}
}

func (b *ProgressBus) render() {
	tm.Output = b.out
	for i, id := range b.order {
		tm.MoveCursor(1, b.baseRow+i)
		tm.Print("\033[2K") // clear the line before rewriting it
		tm.Print(b.formatLine(id))
	}
	tm.Flush()
}

// parkCursor drops the cursor below the region so the shell prompt does not
// land inside it after exit.
func (b *ProgressBus) parkCursor() {
	tm.Output = b.out
	tm.MoveCursor(1, b.baseRow+len(b.order))
	tm.Flush()
}

func (b *ProgressBus) renderPlain() {
	for _, id := range b.order {
		fmt.Fprintln(b.out, b.formatLine(id))
	}
	_ = b.out.Flush()
}

const progressBarWidth = 30

func (b *ProgressBus) formatLine(id ProgressBar) string {
	s := b.bars[id]
	label := fmt.Sprintf("%-8s", id.barLabel())
	if s.total <= 0 {
		return fmt.Sprintf("%s [%s] %s", label, strings.Repeat("-", progressBarWidth), s.desc)
	}

	ratio := float64(s.current) / float64(s.total)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * progressBarWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)
	return fmt.Sprintf("%s [%s] %3.0f%% (%d/%d) %s", label, bar, ratio*100, s.current, s.total, s.desc)
}
