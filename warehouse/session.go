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

// Package warehouse talks to the columnar warehouse: session lifecycle, stage
// uploads, bulk loads (sync and async with keepalive), and the aggregate-query
// validator. Everything here runs in constant client memory; the validator in
// particular never pulls per-row data.
package warehouse

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/JeffreyRichter/enum/enum"
)

// Row is one result row, column values in select order, in whatever Go types
// the driver hands back.
type Row []any

// Session is one open warehouse connection. A pipeline run owns its session
// exclusively; parallel sibling runs each open their own.
type Session interface {
	// Exec runs a statement and discards any result.
	Exec(ctx context.Context, sql string, binds ...any) error

	// Query runs a statement and returns all result rows. Only ever used for
	// aggregate results of bounded size.
	Query(ctx context.Context, sql string, binds ...any) ([]Row, error)

	// SubmitAsync starts a statement without waiting for it and returns its
	// query id for status polling.
	SubmitAsync(ctx context.Context, sql string) (queryID string, err error)

	// QueryStatus reports where an async statement currently stands.
	QueryStatus(ctx context.Context, queryID string) (QueryStatus, error)

	// KeepAlive performs a cheap fetch against the session so the connection
	// is not reaped while an async statement runs server-side.
	KeepAlive(ctx context.Context, queryID string) error

	// CancelQuery asks the warehouse to stop an async statement. Best effort.
	CancelQuery(ctx context.Context, queryID string) error

	Close() error
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

var EQueryState = QueryState(0)

// QueryState is the client-side view of an async statement's lifecycle.
type QueryState uint8

func (QueryState) Running() QueryState { return QueryState(0) }
func (QueryState) Success() QueryState { return QueryState(1) }
func (QueryState) Failed() QueryState  { return QueryState(2) }

func (qs QueryState) String() string {
	return enum.StringInt(qs, reflect.TypeOf(qs))
}

func (qs QueryState) IsTerminal() bool {
	return qs != EQueryState.Running()
}

// QueryStatus pairs a state with the warehouse-side error text, when failed.
type QueryStatus struct {
	State        QueryState
	ErrorMessage string
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// Drivers differ in what Go types they return for dates and numbers, and the
// in-memory fake scripts values as plain strings. These coercions give the
// client code one tolerant view.

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC), true
	case string:
		t, err := time.Parse("2006-01-02", x)
		return t, err == nil
	case []byte:
		t, err := time.Parse("2006-01-02", string(x))
		return t, err == nil
	default:
		return time.Time{}, false
	}
}
