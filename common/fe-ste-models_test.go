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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusParseAndString(t *testing.T) {
	a := assert.New(t)

	var status JobStatus
	a.NoError(status.Parse("completed"))
	a.Equal(EJobStatus.Completed(), status)

	a.NoError(status.Parse("CRASHED"))
	a.Equal(EJobStatus.Crashed(), status)
	a.Equal("Crashed", status.String())

	a.Error(status.Parse("unheard-of"))

	a.False(EJobStatus.Running().IsTerminal())
	a.True(EJobStatus.Completed().IsTerminal())
	a.True(EJobStatus.Failed().IsTerminal())
	a.True(EJobStatus.Crashed().IsTerminal())
}

func TestJobStatusJSONRoundTrip(t *testing.T) {
	a := assert.New(t)

	raw, err := json.Marshal(EJobStatus.Failed())
	a.NoError(err)
	a.Equal(`"Failed"`, string(raw))

	var status JobStatus
	a.NoError(json.Unmarshal(raw, &status))
	a.Equal(EJobStatus.Failed(), status)
}

func TestFileFormatDelimiters(t *testing.T) {
	a := assert.New(t)

	a.Equal(byte(','), EFileFormat.CSV().DefaultDelimiter())
	a.Equal(byte('\t'), EFileFormat.TSV().DefaultDelimiter())
	a.Equal(byte(0), EFileFormat.Auto().DefaultDelimiter())

	var format FileFormat
	a.NoError(format.Parse("tsv"))
	a.Equal(EFileFormat.TSV(), format)
	a.NoError(format.Parse("Auto"))
	a.Equal(EFileFormat.Auto(), format)
}

func TestFileStateAtomics(t *testing.T) {
	a := assert.New(t)

	state := EFileState.Discovered()
	state.AtomicStore(EFileState.Compressed())
	a.Equal(EFileState.Compressed(), state.AtomicLoad())
	a.Equal("Compressed", state.String())
}

func TestAnomalyClassLabels(t *testing.T) {
	a := assert.New(t)

	a.Equal("SEVERELY_LOW", EAnomalyClass.SeverelyLow().String())
	a.Equal("LOW", EAnomalyClass.Low().String())
	a.Equal("OUTLIER_LOW", EAnomalyClass.OutlierLow().String())
	a.Equal("OUTLIER_HIGH", EAnomalyClass.OutlierHigh().String())
	a.Equal("NORMAL", EAnomalyClass.Normal().String())
}

func TestDupSeverityLabels(t *testing.T) {
	a := assert.New(t)

	a.Equal("CRITICAL", EDupSeverity.Critical().String())
	a.Equal("HIGH", EDupSeverity.High().String())
	a.Equal("MEDIUM", EDupSeverity.Medium().String())
	a.Equal("LOW", EDupSeverity.Low().String())
}

func TestExitCodes(t *testing.T) {
	a := assert.New(t)

	a.EqualValues(0, EExitCode.Success())
	a.EqualValues(1, EExitCode.Error())
	a.EqualValues(2, EExitCode.Partial())
	a.EqualValues(3, EExitCode.Usage())
}
