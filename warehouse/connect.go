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
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/snowflakedb/gosnowflake"

	"github.com/wastore/sfcopy/common"
	"github.com/wastore/sfcopy/manifest"
)

// ConnectError distinguishes retryable connection failures from hopeless
// ones. Transient failures have already been retried by the time callers see
// this.
type ConnectError struct {
	Transient bool
	Err       error
}

func (e *ConnectError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("connecting to warehouse (%s): %v", kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

const (
	connectAttempts        = 3
	connectInitialInterval = time.Second
)

// Connect opens a session for the given connection descriptor. Transient
// failures (network, login timeout) are retried with exponential backoff
// (1s/2s between the three attempts); auth and missing-object failures fail
// immediately.
func Connect(ctx context.Context, conn manifest.Connection) (Session, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = connectInitialInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	var session Session
	operation := func() error {
		s, err := connectOnce(ctx, conn)
		if err != nil {
			if !isTransientConnectErr(err) {
				return backoff.Permanent(&ConnectError{Transient: false, Err: err})
			}
			return &ConnectError{Transient: true, Err: err}
		}
		session = s
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, connectAttempts-1), ctx))
	if err != nil {
		return nil, err
	}
	return session, nil
}

func connectOnce(ctx context.Context, conn manifest.Connection) (Session, error) {
	// async statements must survive the driver's connection checkpoints,
	// otherwise a multi-hour COPY dies with its TCP connection
	abortDetached := "FALSE"

	cfg := &gosnowflake.Config{
		Account:     conn.Account,
		User:        conn.User,
		Password:    conn.Password,
		Warehouse:   conn.Warehouse,
		Database:    conn.Database,
		Schema:      conn.Schema,
		Role:        conn.Role,
		Application: common.AddUserAgentPrefix(common.UserAgent),
		Params: map[string]*string{
			"ABORT_DETACHED_QUERY": &abortDetached,
		},
	}

	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, err
	}
	// one pipeline run, one connection: the session parameter set above and
	// the async query id below are connection-scoped state
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqlSession{db: db}, nil
}

// Auth failures and missing objects will not heal on retry.
var permanentConnectCodes = map[int]bool{
	390100: true, // incorrect username or password
	390102: true, // user access disabled
	390201: true, // warehouse does not exist or not authorized
	390422: true, // role not granted to user
	2003:   true, // object does not exist or not authorized
}

func isTransientConnectErr(err error) bool {
	var snowErr *gosnowflake.SnowflakeError
	if errors.As(err, &snowErr) {
		return !permanentConnectCodes[snowErr.Number]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// unknown shapes get the benefit of the retry
	return true
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

// sqlSession is the production Session, a thin adapter over database/sql with
// the gosnowflake driver.
type sqlSession struct {
	db *sql.DB
}

var _ Session = &sqlSession{}

func (s *sqlSession) Exec(ctx context.Context, query string, binds ...any) error {
	_, err := s.db.ExecContext(ctx, query, binds...)
	return err
}

func (s *sqlSession) Query(ctx context.Context, query string, binds ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, binds...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make(Row, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

func (s *sqlSession) SubmitAsync(ctx context.Context, query string) (string, error) {
	qidChan := make(chan string, 1)
	ctx = gosnowflake.WithAsyncMode(ctx)
	ctx = gosnowflake.WithQueryIDChan(ctx, qidChan)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return "", err
	}

	select {
	case qid := <-qidChan:
		return qid, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *sqlSession) QueryStatus(ctx context.Context, queryID string) (QueryStatus, error) {
	rows, err := s.Query(ctx,
		`SELECT execution_status, COALESCE(error_message, '')
		 FROM TABLE(INFORMATION_SCHEMA.QUERY_HISTORY_BY_SESSION())
		 WHERE query_id = ?`, queryID)
	if err != nil {
		return QueryStatus{}, err
	}
	if len(rows) == 0 {
		// not in history yet; still queueing
		return QueryStatus{State: EQueryState.Running()}, nil
	}

	switch asString(rows[0][0]) {
	case "SUCCESS":
		return QueryStatus{State: EQueryState.Success()}, nil
	case "FAILED_WITH_ERROR", "FAILED_WITH_INCIDENT":
		return QueryStatus{State: EQueryState.Failed(), ErrorMessage: asString(rows[0][1])}, nil
	default: // RUNNING, QUEUED, RESUMING_WAREHOUSE, BLOCKED
		return QueryStatus{State: EQueryState.Running()}, nil
	}
}

// KeepAlive issues a trivial fetch so the connection shows activity while the
// async statement referenced by queryID runs server-side. The id itself is
// not needed by this implementation, only by fakes that count pings per query.
func (s *sqlSession) KeepAlive(ctx context.Context, queryID string) error {
	_, err := s.Query(ctx, "SELECT 1")
	return err
}

func (s *sqlSession) CancelQuery(ctx context.Context, queryID string) error {
	return s.Exec(ctx, "SELECT SYSTEM$CANCEL_QUERY(?)", queryID)
}

func (s *sqlSession) Close() error {
	return s.db.Close()
}
