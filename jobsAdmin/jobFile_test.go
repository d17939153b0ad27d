package jobsAdmin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastore/sfcopy/common"
)

func sampleJob() *Job {
	return &Job{
		ID:        "20240115T093000-4242",
		Name:      "load",
		Command:   `load --manifest "/etc/feeds/daily.json" --period 2024-01`,
		StartTime: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
		Status:    common.EJobStatus.Running(),
		PID:       4242,
		LogFile:   "/var/log/sfcopy/load_20240115T093000-4242.log",
	}
}

func TestJobRecordRoundTrip(t *testing.T) {
	a := assert.New(t)

	original := sampleJob()
	parsed, err := parseJob(encodeJob(original))
	require.NoError(t, err)
	a.Equal(original, parsed)

	// terminal job carries its end time through
	original.Status = common.EJobStatus.Completed()
	original.EndTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	parsed, err = parseJob(encodeJob(original))
	require.NoError(t, err)
	a.Equal(original, parsed)
}

func TestJobRecordFormat(t *testing.T) {
	a := assert.New(t)

	content := encodeJob(sampleJob())

	a.Contains(content, `JOB_ID="20240115T093000-4242"`)
	a.Contains(content, `STATUS="RUNNING"`)
	a.Contains(content, `PID="4242"`)
	a.Contains(content, `END_TIME=""`) // running, so no end time yet
	// embedded quotes in the command survive quoting
	a.Contains(content, `COMMAND="load --manifest \"/etc/feeds/daily.json\" --period 2024-01"`)
}

func TestJobRecordIgnoresUnknownKeys(t *testing.T) {
	a := assert.New(t)

	content := encodeJob(sampleJob()) + "FUTURE_KEY=\"whatever\"\n"
	parsed, err := parseJob(content)
	require.NoError(t, err)
	a.Equal("20240115T093000-4242", parsed.ID)
}

func TestJobRecordRejectsGarbage(t *testing.T) {
	a := assert.New(t)

	_, err := parseJob("this is not a record\n")
	a.Error(err)

	_, err = parseJob(`STATUS="RUNNING"` + "\n") // no JOB_ID
	a.Error(err)

	_, err = parseJob(`JOB_ID=unquoted` + "\n")
	a.Error(err)

	_, err = parseJob(`JOB_ID="x"` + "\n" + `STATUS="EXPLODED"` + "\n")
	a.Error(err)
}

func TestWriteJobFileLeavesNoTempDebris(t *testing.T) {
	a := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "j.job")
	require.NoError(t, writeJobFile(path, sampleJob()))

	// overwrite in place
	job := sampleJob()
	job.Status = common.EJobStatus.Completed()
	job.EndTime = time.Now().UTC().Truncate(time.Second)
	require.NoError(t, writeJobFile(path, job))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	a.Equal("j.job", entries[0].Name())

	read, err := readJobFile(path)
	require.NoError(t, err)
	a.Equal(common.EJobStatus.Completed(), read.Status)
}

func TestStatusParsingIsCaseTolerant(t *testing.T) {
	a := assert.New(t)

	content := strings.Replace(encodeJob(sampleJob()), `STATUS="RUNNING"`, `STATUS="Running"`, 1)
	parsed, err := parseJob(content)
	require.NoError(t, err)
	a.Equal(common.EJobStatus.Running(), parsed.Status)
}
