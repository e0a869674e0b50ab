// Package testutil registers a stub database/sql driver so the postgres
// store can be exercised without a running server. The stub understands just
// the statements the store issues: creating the state table, upserting a
// bucket row, and selecting all bucket rows.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// DriverName is the registered name of the stub driver.
const DriverName = "panelstub"

func init() {
	sql.Register(DriverName, stubDriver{})
}

var (
	registryMu sync.Mutex
	registry   = map[string]*StubConn{}
)

// StubConn is the shared state behind every connection opened with the same
// DSN, so a close-and-reopen sequence sees previously written buckets.
// Failure toggles make specific statements misbehave.
type StubConn struct {
	mu     sync.Mutex
	Tables map[string][]byte
	Execs  []string

	FailPing   bool
	FailQuery  bool
	FailBegin  bool
	FailCommit bool
	FailExec   string
}

// Connection returns the stub state for a DSN, creating it on first use.
func Connection(dsn string) *StubConn {
	registryMu.Lock()
	defer registryMu.Unlock()
	if c, ok := registry[dsn]; ok {
		return c
	}
	c := &StubConn{Tables: map[string][]byte{}}
	registry[dsn] = c
	return c
}

// Reset drops the stub state for a DSN.
func Reset(dsn string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, dsn)
}

type stubDriver struct{}

func (stubDriver) Open(dsn string) (driver.Conn, error) {
	return &conn{state: Connection(dsn)}, nil
}

type conn struct {
	state *StubConn
}

var (
	_ driver.Conn   = (*conn)(nil)
	_ driver.Pinger = (*conn)(nil)
)

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{state: c.state, query: query}, nil
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	if c.state.FailBegin {
		return nil, fmt.Errorf("stub: begin refused")
	}
	return &tx{state: c.state}, nil
}

func (c *conn) Ping(context.Context) error {
	if c.state.FailPing {
		return fmt.Errorf("stub: ping refused")
	}
	return nil
}

type tx struct {
	state *StubConn
}

func (t *tx) Commit() error {
	if t.state.FailCommit {
		return fmt.Errorf("stub: commit refused")
	}
	return nil
}

func (t *tx) Rollback() error { return nil }

type stmt struct {
	state *StubConn
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.Execs = append(s.state.Execs, s.query)
	if s.state.FailExec != "" && strings.Contains(s.query, s.state.FailExec) {
		return nil, fmt.Errorf("stub: exec refused for %q", s.state.FailExec)
	}
	switch {
	// The DDL bundle ships with a comment header, so match anywhere in the
	// statement rather than on a prefix.
	case strings.Contains(s.query, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(s.query, "INSERT INTO state"):
		if len(args) != 2 {
			return nil, fmt.Errorf("stub: insert wants 2 args, got %d", len(args))
		}
		bucket, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("stub: bucket arg is %T", args[0])
		}
		payload, ok := args[1].([]byte)
		if !ok {
			return nil, fmt.Errorf("stub: payload arg is %T", args[1])
		}
		s.state.Tables[bucket] = append([]byte(nil), payload...)
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("stub: unsupported exec %q", s.query)
}

func (s *stmt) Query(_ []driver.Value) (driver.Rows, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if s.state.FailQuery {
		return nil, fmt.Errorf("stub: query refused")
	}
	if !strings.HasPrefix(s.query, "SELECT bucket, payload FROM state") {
		return nil, fmt.Errorf("stub: unsupported query %q", s.query)
	}
	buckets := make([]string, 0, len(s.state.Tables))
	for bucket := range s.state.Tables {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)
	r := &rows{}
	for _, bucket := range buckets {
		r.data = append(r.data, [2]driver.Value{bucket, append([]byte(nil), s.state.Tables[bucket]...)})
	}
	return r, nil
}

type rows struct {
	data [][2]driver.Value
	pos  int
}

func (r *rows) Columns() []string { return []string{"bucket", "payload"} }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	dest[0] = r.data[r.pos][0]
	dest[1] = r.data[r.pos][1]
	r.pos++
	return nil
}
