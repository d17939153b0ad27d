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

package cmd

import "github.com/wastore/sfcopy/common"

// ===================================== ROOT COMMAND ===================================== //
const rootCmdShortDescription = "sfcopy is a command-line tool that bulk-loads delimited flat files into a Snowflake warehouse."

const rootCmdLongDescription = "sfcopy " + common.SfcopyVersion +
	`
  The general format of the commands is: sfcopy [command] [arguments] --[flag-name]=[flag-value].
`

// ===================================== LOAD COMMAND ===================================== //
const loadCmdShortDescription = "Loads the manifest's flat files for one or more periods into the warehouse"

const loadCmdLongDescription = `
Loads every file the manifest's patterns resolve to for the requested periods: each file is
analyzed, quality-checked (streaming), gzip-compressed, uploaded to the destination table's
stage, and committed with a bulk COPY. Files that fail their quality check are never loaded.

Periods are either month tokens (2024-01) or day ranges (20240101-20240131); several may be
given separated by commas, and an empty period means every file the patterns match. With
--parallel greater than one, each period runs in its own worker process so runs get
independent warehouse connections.

Examples:
  - sfcopy load --manifest=market.json --period=2024-01
  - sfcopy load --manifest=market.json --period=2024-01,2024-02,2024-03 --parallel=3
  - sfcopy load --manifest=market.json --period=20240101-20240110 --skip-qc
  - sfcopy load --manifest=market.json --validate-in-warehouse
`

// ===================================== VALIDATE COMMAND ===================================== //
const validateCmdShortDescription = "Validates already-loaded tables with aggregate warehouse queries"

const validateCmdLongDescription = `
Runs the warehouse-side checks against the manifest's destination tables without moving any
data: date completeness over the requested period, per-date row-count anomaly grading, and
duplicate-key detection where the manifest configures key columns. The verdict is printed for
every table; any invalid verdict fails the command.

Examples:
  - sfcopy validate --manifest=market.json --period=2024-01
  - sfcopy validate --manifest=market.json --table=SALES --period=2024-01
`

// ===================================== CHECK-DUPLICATES COMMAND ===================================== //
const checkDuplicatesCmdShortDescription = "Reports duplicate key tuples in already-loaded tables"

const checkDuplicatesCmdLongDescription = `
Runs only the duplicate-key check against tables whose manifest entry configures
duplicate_key_columns, and grades the findings by how much of the table they touch. A
CRITICAL grade fails the command; anything milder is reported and tolerated.

Example:
  - sfcopy check-duplicates --manifest=market.json --table=SALES --period=2024-01
`

// ===================================== ANALYZE COMMAND ===================================== //
const analyzeCmdShortDescription = "Estimates sizes, row counts, and stage times without loading anything"

const analyzeCmdLongDescription = `
Resolves the manifest's patterns for the period and prints each file's size, estimated row
count, and a per-stage wall-time estimate. Nothing is read beyond the samples the estimate
needs and the warehouse is never contacted.

Example:
  - sfcopy analyze --manifest=market.json --period=2024-01
`

// ===================================== JOBS COMMAND ===================================== //
const jobsCmdShortDescription = "Sub-commands related to managing jobs"

const jobsCmdLongDescription = "Sub-commands related to managing jobs."

const jobsCmdExample = "sfcopy jobs list"

const listJobsCmdShortDescription = "Display information on all jobs"

const listJobsCmdLongDescription = `
Display information on all jobs the registry knows about. Jobs whose worker process died
without reaching a terminal status are shown as Crashed.
`

const cleanJobsCmdShortDescription = "Remove the records of completed jobs"

const cleanJobsCmdLongDescription = `
Remove the job records whose status is terminal (Completed, Failed, or Crashed). Running
jobs and every job's log file are left alone.
`

const cleanJobsCmdExample = "sfcopy jobs clean"

// ===================================== ENV COMMAND ===================================== //
const envCmdShortDescription = "Shows the environment variables that can configure sfcopy's behavior"

const envCmdLongDescription = `Shows the environment variables that can configure sfcopy's behavior.`
