// Copyright © 2017 Microsoft <wastore@microsoft.com>
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
	"encoding/json"
	"errors"
	"reflect"
	"sync/atomic"

	"github.com/JeffreyRichter/enum/enum"
)

// ErrCancelled is returned by long-running operations interrupted by the user.
var ErrCancelled = errors.New("cancelled by user")

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EExitCode = ExitCode(0)

type ExitCode uint32

func (ExitCode) Success() ExitCode { return ExitCode(0) }
func (ExitCode) Error() ExitCode   { return ExitCode(1) }

// Partial means some period runs failed but continue-on-error kept the batch going.
func (ExitCode) Partial() ExitCode { return ExitCode(2) }

// Usage covers configuration and environment failures detected before any work started.
func (ExitCode) Usage() ExitCode { return ExitCode(3) }

// NoExit is used as a marker, to suppress the normal exit behaviour
func (ExitCode) NoExit() ExitCode { return ExitCode(99) }

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EJobStatus = JobStatus(0)

// JobStatus indicates the lifecycle state of a managed run; the default is Running.
type JobStatus uint32 // Must be 32-bit for atomic operations

func (j *JobStatus) Parse(s string) error {
	val, err := enum.Parse(reflect.TypeOf(j), s, true)
	if err == nil {
		*j = val.(JobStatus)
	}
	return err
}

// Implementing MarshalJSON() method for type JobStatus
func (j JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.String())
}

// Implementing UnmarshalJSON() method for type JobStatus
func (j *JobStatus) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return j.Parse(s)
}

func (JobStatus) Running() JobStatus   { return JobStatus(0) }
func (JobStatus) Completed() JobStatus { return JobStatus(1) }
func (JobStatus) Failed() JobStatus    { return JobStatus(2) }

// Crashed is never written by the worker itself; the health check assigns it
// when a Running job's recorded pid is no longer alive.
func (JobStatus) Crashed() JobStatus { return JobStatus(3) }

func (j JobStatus) IsTerminal() bool {
	return j != EJobStatus.Running()
}

func (js JobStatus) String() string {
	return enum.StringInt(js, reflect.TypeOf(js))
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EFileState = FileState(0)

// FileState tracks one input file through the load pipeline. States only ever
// advance; a file that cannot advance is marked Failed and keeps its error.
type FileState uint32 // Must be 32-bit for atomic operations

func (f *FileState) AtomicLoad() FileState {
	return FileState(atomic.LoadUint32((*uint32)(f)))
}

func (f *FileState) AtomicStore(newState FileState) {
	atomic.StoreUint32((*uint32)(f), uint32(newState))
}

func (FileState) Discovered() FileState        { return FileState(0) }
func (FileState) Analyzed() FileState          { return FileState(1) }
func (FileState) QCPassed() FileState          { return FileState(2) }
func (FileState) QCSkipped() FileState         { return FileState(3) }
func (FileState) Compressed() FileState        { return FileState(4) }
func (FileState) Uploaded() FileState          { return FileState(5) }
func (FileState) Loaded() FileState            { return FileState(6) }
func (FileState) Validated() FileState         { return FileState(7) }
func (FileState) ValidationSkipped() FileState { return FileState(8) }
func (FileState) Done() FileState              { return FileState(9) }
func (FileState) Failed() FileState            { return FileState(10) }

func (fs FileState) String() string {
	return enum.StringInt(fs, reflect.TypeOf(fs))
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EFileFormat = FileFormat(0)

// FileFormat is the declared layout of an input file. Auto defers the decision
// to the analyzer's delimiter sniffing.
type FileFormat uint8

func (FileFormat) Auto() FileFormat { return FileFormat(0) }
func (FileFormat) CSV() FileFormat  { return FileFormat(1) }
func (FileFormat) TSV() FileFormat  { return FileFormat(2) }

func (ff *FileFormat) Parse(s string) error {
	val, err := enum.Parse(reflect.TypeOf(ff), s, true)
	if err == nil {
		*ff = val.(FileFormat)
	}
	return err
}

func (ff FileFormat) String() string {
	return enum.StringInt(ff, reflect.TypeOf(ff))
}

// DefaultDelimiter returns the delimiter implied by the format, or 0 for Auto.
func (ff FileFormat) DefaultDelimiter() byte {
	switch ff {
	case EFileFormat.CSV():
		return ','
	case EFileFormat.TSV():
		return '\t'
	default:
		return 0
	}
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EPlaceholderKind = PlaceholderKind(0)

// PlaceholderKind identifies which date token a file pattern carries.
type PlaceholderKind uint8

func (PlaceholderKind) None() PlaceholderKind      { return PlaceholderKind(0) }
func (PlaceholderKind) DateRange() PlaceholderKind { return PlaceholderKind(1) }
func (PlaceholderKind) Month() PlaceholderKind     { return PlaceholderKind(2) }

func (pk PlaceholderKind) String() string {
	return enum.StringInt(pk, reflect.TypeOf(pk))
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var ELogLevel = LogLevel(LogNone)

type LogLevel uint8

const (
	LogNone LogLevel = iota
	LogFatal
	LogPanic
	LogError
	LogWarning
	LogInfo
	LogDebug
)

func (LogLevel) None() LogLevel    { return LogNone }
func (LogLevel) Fatal() LogLevel   { return LogFatal }
func (LogLevel) Panic() LogLevel   { return LogPanic }
func (LogLevel) Error() LogLevel   { return LogError }
func (LogLevel) Warning() LogLevel { return LogWarning }
func (LogLevel) Info() LogLevel    { return LogInfo }
func (LogLevel) Debug() LogLevel   { return LogDebug }

func (ll *LogLevel) Parse(s string) error {
	val, err := enum.Parse(reflect.TypeOf(ll), s, true)
	if err == nil {
		*ll = val.(LogLevel)
	}
	return err
}

func (ll LogLevel) String() string {
	switch ll {
	case LogError:
		return "ERR"
	case LogWarning:
		return "WARN"
	case LogInfo:
		return "INFO"
	case LogDebug:
		return "DBG"
	default:
		return enum.StringInt(ll, reflect.TypeOf(ll))
	}
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EOutputFormat = OutputFormat(0)

type OutputFormat uint32

func (OutputFormat) None() OutputFormat { return OutputFormat(0) }
func (OutputFormat) Text() OutputFormat { return OutputFormat(1) }
func (OutputFormat) Json() OutputFormat { return OutputFormat(2) }

func (of *OutputFormat) Parse(s string) error {
	val, err := enum.Parse(reflect.TypeOf(of), s, true)
	if err == nil {
		*of = val.(OutputFormat)
	}
	return err
}

func (of OutputFormat) String() string {
	return enum.StringInt(of, reflect.TypeOf(of))
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EAnomalyClass = AnomalyClass(0)

// AnomalyClass grades a single date's row count against the distribution of
// the counts observed for the validated period. Classification is
// first-match-wins in the order SeverelyLow, Low, OutlierLow, Normal,
// OutlierHigh.
type AnomalyClass uint8

func (AnomalyClass) Normal() AnomalyClass      { return AnomalyClass(0) }
func (AnomalyClass) SeverelyLow() AnomalyClass { return AnomalyClass(1) }
func (AnomalyClass) Low() AnomalyClass         { return AnomalyClass(2) }
func (AnomalyClass) OutlierLow() AnomalyClass  { return AnomalyClass(3) }
func (AnomalyClass) OutlierHigh() AnomalyClass { return AnomalyClass(4) }

// String returns the report label, which is part of the output contract.
func (ac AnomalyClass) String() string {
	switch ac {
	case EAnomalyClass.SeverelyLow():
		return "SEVERELY_LOW"
	case EAnomalyClass.Low():
		return "LOW"
	case EAnomalyClass.OutlierLow():
		return "OUTLIER_LOW"
	case EAnomalyClass.OutlierHigh():
		return "OUTLIER_HIGH"
	default:
		return "NORMAL"
	}
}

// Implementing MarshalJSON() method for type AnomalyClass
func (ac AnomalyClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(ac.String())
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EDupSeverity = DupSeverity(0)

// DupSeverity grades duplicate-key findings by how much of the table they touch.
type DupSeverity uint8

func (DupSeverity) Low() DupSeverity      { return DupSeverity(0) }
func (DupSeverity) Medium() DupSeverity   { return DupSeverity(1) }
func (DupSeverity) High() DupSeverity     { return DupSeverity(2) }
func (DupSeverity) Critical() DupSeverity { return DupSeverity(3) }

// String returns the report label, which is part of the output contract.
func (ds DupSeverity) String() string {
	switch ds {
	case EDupSeverity.Critical():
		return "CRITICAL"
	case EDupSeverity.High():
		return "HIGH"
	case EDupSeverity.Medium():
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// Implementing MarshalJSON() method for type DupSeverity
func (ds DupSeverity) MarshalJSON() ([]byte, error) {
	return json.Marshal(ds.String())
}
