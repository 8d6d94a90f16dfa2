package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type opKind int

const (
	opExec opKind = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

// step is one expected driver call, matched in order.
type step struct {
	kind    opKind
	query   string
	columns []string
	rows    [][]driver.Value
	err     error
}

func execStep(query string) step { return step{kind: opExec, query: query} }

func queryStep(query string, columns []string, rows ...[]driver.Value) step {
	return step{kind: opQuery, query: query, columns: columns, rows: rows}
}

func beginStep() step    { return step{kind: opBegin} }
func commitStep() step   { return step{kind: opCommit} }
func rollbackStep() step { return step{kind: opRollback} }

type scriptDriver struct {
	mu    sync.Mutex
	steps []step
	pos   int
	args  [][]driver.Value
}

var driverSeq atomic.Int32

func newScriptDB(t *testing.T, steps ...step) (*sql.DB, *scriptDriver) {
	t.Helper()
	drv := &scriptDriver{steps: steps}
	name := fmt.Sprintf("script-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open script db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db, drv
}

func (d *scriptDriver) assertDone(t *testing.T) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos != len(d.steps) {
		t.Fatalf("consumed %d of %d steps", d.pos, len(d.steps))
	}
}

func (d *scriptDriver) next(kind opKind, query string, args []driver.NamedValue) (*step, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.steps) {
		return nil, fmt.Errorf("unexpected call %d: %s", kind, query)
	}
	s := &d.steps[d.pos]
	if s.kind != kind {
		return nil, fmt.Errorf("step %d: want kind %d got %d", d.pos, s.kind, kind)
	}
	if s.query != "" && squash(s.query) != squash(query) {
		return nil, fmt.Errorf("step %d: want %q got %q", d.pos, squash(s.query), squash(query))
	}
	d.pos++
	if kind == opExec || kind == opQuery {
		values := make([]driver.Value, len(args))
		for i, a := range args {
			values[i] = a.Value
		}
		d.args = append(d.args, values)
	}
	return s, s.err
}

func (d *scriptDriver) Open(string) (driver.Conn, error) { return &scriptConn{d: d}, nil }

type scriptConn struct{ d *scriptDriver }

func (c *scriptConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *scriptConn) Close() error { return nil }

func (c *scriptConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *scriptConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if _, err := c.d.next(opBegin, "", nil); err != nil {
		return nil, err
	}
	return &scriptTx{d: c.d}, nil
}

func (c *scriptConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if _, err := c.d.next(opExec, query, args); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

func (c *scriptConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	s, err := c.d.next(opQuery, query, args)
	if err != nil {
		return nil, err
	}
	return &scriptRows{columns: s.columns, values: s.rows}, nil
}

type scriptTx struct{ d *scriptDriver }

func (t *scriptTx) Commit() error {
	_, err := t.d.next(opCommit, "", nil)
	return err
}

func (t *scriptTx) Rollback() error {
	_, err := t.d.next(opRollback, "", nil)
	return err
}

type scriptRows struct {
	columns []string
	values  [][]driver.Value
	i       int
}

func (r *scriptRows) Columns() []string { return r.columns }
func (r *scriptRows) Close() error      { return nil }

func (r *scriptRows) Next(dest []driver.Value) error {
	if r.i >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.i])
	r.i++
	return nil
}

func squash(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
