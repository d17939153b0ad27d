package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// builds a bus without starting the render actor, so state can be inspected
func newIdleBus(withQC bool, offset int) *ProgressBus {
	order := []ProgressBar{EProgressBar.Files()}
	if withQC {
		order = append(order, EProgressBar.QCRows())
	}
	order = append(order, EProgressBar.Compress(), EProgressBar.Upload(), EProgressBar.Copy())

	return &ProgressBus{order: order, baseRow: offset*len(order) + 1}
}

func TestProgressBusLineAccounting(t *testing.T) {
	a := assert.New(t)

	withQC := newIdleBus(true, 0)
	a.Len(withQC.order, 5)
	a.Equal(1, withQC.baseRow)

	withoutQC := newIdleBus(false, 0)
	a.Len(withoutQC.order, 4)

	// the second sibling of a parallel batch starts right below the first
	sibling := newIdleBus(true, 1)
	a.Equal(6, sibling.baseRow)
	third := newIdleBus(true, 2)
	a.Equal(11, third.baseRow)
}

func TestProgressBusResetKeepsLine(t *testing.T) {
	a := assert.New(t)
	b := newIdleBus(true, 0)

	b.apply(barUpdate{bar: EProgressBar.Compress(), reset: true, total: 100, desc: "day1.tsv"})
	b.apply(barUpdate{bar: EProgressBar.Compress(), delta: 40})
	line := b.formatLine(EProgressBar.Compress())
	a.Contains(line, "compress")
	a.Contains(line, "(40/100)")
	a.Contains(line, "day1.tsv")

	// next file: same bar, counter rearmed in place
	b.apply(barUpdate{bar: EProgressBar.Compress(), reset: true, total: 70, desc: "day2.tsv"})
	line = b.formatLine(EProgressBar.Compress())
	a.Contains(line, "(0/70)")
	a.Contains(line, "day2.tsv")
	a.NotContains(line, "day1.tsv")
}

func TestProgressBusClampsOverflow(t *testing.T) {
	a := assert.New(t)
	b := newIdleBus(false, 0)

	b.apply(barUpdate{bar: EProgressBar.Upload(), reset: true, total: 10, desc: ""})
	b.apply(barUpdate{bar: EProgressBar.Upload(), delta: 25})
	line := b.formatLine(EProgressBar.Upload())
	a.Contains(line, "(10/10)")
	a.Contains(line, "100%")
}

func TestProgressBusIndeterminateBar(t *testing.T) {
	a := assert.New(t)
	b := newIdleBus(false, 0)

	// no total yet: the bar renders as a dashed placeholder
	line := b.formatLine(EProgressBar.Copy())
	a.Contains(line, strings.Repeat("-", progressBarWidth))
	a.NotContains(line, "%")
}

func TestProgressBusPushAndClose(t *testing.T) {
	a := assert.New(t)

	// non-terminal mode writes plain lines to stderr; this exercises the
	// actor lifecycle end to end
	b := NewProgressBus(0, false, false)
	b.Reset(EProgressBar.Files(), 3, "")
	b.Add(EProgressBar.Files(), 2)
	b.Close()

	a.Equal(int64(2), b.bars[EProgressBar.Files()].current)
	a.Equal(int64(3), b.bars[EProgressBar.Files()].total)
}
