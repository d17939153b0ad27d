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
	"fmt"
	"io"
	"log"
	"path"
	"runtime"
	"strings"
	"time"
)

// CurrentRunLogger is the log file of the run this process is executing.
// Nil until the front end opens it.
var CurrentRunLogger ILoggerResetable

// LogToRunLog logs a message with a severity prefix to the current run's log file.
func LogToRunLog(msg string, level LogLevel) {
	if CurrentRunLogger != nil {
		prefix := ""
		if level <= LogWarning {
			prefix = fmt.Sprintf("%s: ", level) // so readers can find serious ones, but information ones still look uncluttered without INFO:
		}
		CurrentRunLogger.Log(level, prefix+msg)
	}
}

type ILogger interface {
	ShouldLog(level LogLevel) bool
	Log(level LogLevel, msg string)
	Panic(err error)
}

type ILoggerCloser interface {
	ILogger
	CloseLog()
}

type ILoggerResetable interface {
	OpenLog()
	MinimumLogLevel() LogLevel
	ILoggerCloser
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

const maxLogSize = 500 * 1024 * 1024

var lineEnding = Iff(runtime.GOOS == "windows", "\r\n", "\n")

type runLogger struct {
	// jobName and jobID together name the log file, <name>_<id>.log,
	// matching the LOG_FILE recorded in the job registry.
	jobName           string
	jobID             string
	minimumLevelToLog LogLevel       // The maximum customer-desired log level for this run
	file              io.WriteCloser // The run's log file
	logFileFolder     string         // The log file's parent folder, needed for opening the file at the right place
	logger            *log.Logger    // The run's logger
	sanitizer         LogSanitizer
}

func NewRunLogger(jobName, jobID string, minimumLevelToLog LogLevel, logFileFolder string) ILoggerResetable {
	return &runLogger{
		jobName:           jobName,
		jobID:             jobID,
		minimumLevelToLog: minimumLevelToLog,
		logFileFolder:     logFileFolder,
		sanitizer:         NewSfcopyLogSanitizer(),
	}
}

// LogFilePath returns the file a run's log is written to.
func LogFilePath(logFileFolder, jobName, jobID string) string {
	return path.Join(logFileFolder, jobName+"_"+jobID+".log")
}

func (rl *runLogger) OpenLog() {
	if rl.minimumLevelToLog == LogNone {
		return
	}

	file, err := NewRotatingWriter(LogFilePath(rl.logFileFolder, rl.jobName, rl.jobID), maxLogSize)
	PanicIfErr(err)

	rl.file = file

	flags := log.LstdFlags | log.LUTC
	utcMessage := fmt.Sprintf("Log times are in UTC. Local time is %s", time.Now().Format("2 Jan 2006 15:04:05"))

	rl.logger = log.New(rl.file, "", flags)
	// Log the sfcopy version
	rl.logger.Println("SfcopyVersion ", SfcopyVersion)
	// Log the OS Environment and OS Architecture
	rl.logger.Println("OS-Environment ", runtime.GOOS)
	rl.logger.Println("OS-Architecture ", runtime.GOARCH)
	rl.logger.Println(utcMessage)
}

func (rl *runLogger) MinimumLogLevel() LogLevel {
	return rl.minimumLevelToLog
}

func (rl *runLogger) ShouldLog(level LogLevel) bool {
	if level == LogNone {
		return false
	}
	return level <= rl.minimumLevelToLog
}

func (rl *runLogger) CloseLog() {
	if rl.minimumLevelToLog == LogNone || rl.file == nil {
		return
	}

	rl.logger.Println("Closing Log")
	_ = rl.file.Close() // If it was already closed, that's alright. We wanted to close it, anyway.
}

func (rl runLogger) Log(loglevel LogLevel, msg string) {
	if !rl.ShouldLog(loglevel) || rl.logger == nil {
		return
	}

	// ensure all secrets are redacted
	msg = rl.sanitizer.SanitizeLogMessage(msg)

	// Go defaults to \n for line endings, so if the platform has a different
	// line ending, we should replace them to ensure readability.
	if lineEnding != "\n" {
		msg = strings.Replace(msg, "\n", lineEnding, -1)
	}
	rl.logger.Println(msg)
}

func (rl runLogger) Panic(err error) {
	if rl.logger != nil {
		rl.logger.Println(err) // We do NOT panic here as the app would terminate; we just log it
	}
	panic(err)
	// We should never reach this line of code!
}
