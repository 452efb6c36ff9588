package odbcscan

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
)

// ErrTransactionsUnsupported is returned by Begin. Commit and rollback are
// left to the driver's autocommit mode.
var ErrTransactionsUnsupported = errors.New("odbcscan: transactions are not supported")

// Conn implements driver.Conn and represents a connection to a database
type Conn struct {
	conn   *Connection
	mu     sync.Mutex
	closed bool
}

// Connection returns the underlying scanner connection.
func (c *Conn) Connection() *Connection { return c.conn }

// Prepare prepares a statement for execution
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext prepares a statement with context support
func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, driver.ErrBadConn
	}

	np := ParseNamedParams(query)
	prepared := query
	if np != nil {
		prepared = np.Query
	}
	st, err := c.conn.Prepare(prepared, nil)
	if err != nil {
		if IsConnectionError(err) {
			return nil, driver.ErrBadConn
		}
		return nil, err
	}
	return &Stmt{conn: c, stmt: st, named: np}, nil
}

// Close closes the connection
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Begin refuses: transactions are not managed by this driver.
func (c *Conn) Begin() (driver.Tx, error) {
	return nil, ErrTransactionsUnsupported
}

// BeginTx refuses: transactions are not managed by this driver.
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return nil, ErrTransactionsUnsupported
}

// Ping verifies the connection is still alive by asking the driver for
// its name.
func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return driver.ErrBadConn
	}
	if _, err := c.conn.DriverName(); err != nil {
		if IsConnectionError(err) {
			return driver.ErrBadConn
		}
		return err
	}
	return nil
}

// ExecContext executes a query without returning rows
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	stmt, err := c.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	return stmt.(*Stmt).ExecContext(ctx, args)
}

// QueryContext executes a query that returns rows
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	stmt, err := c.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.(*Stmt).QueryContext(ctx, args)
	if err != nil {
		stmt.Close()
		return nil, err
	}
	// Set closeStmt on rows so statement is closed when rows are closed
	rows.(*Rows).closeStmt = true
	return rows, nil
}

// ResetSession is called before a connection is reused
func (c *Conn) ResetSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return driver.ErrBadConn
	}
	return nil
}

// IsValid returns true if the connection is valid
func (c *Conn) IsValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// CheckNamedValue accepts every value ValueOf can convert and leaves the
// rest to the default converter.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	if _, err := ValueOf(nv.Value); err != nil {
		return driver.ErrSkip
	}
	return nil
}

// Ensure Conn implements the required interfaces
var (
	_ driver.Conn               = (*Conn)(nil)
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
	_ driver.SessionResetter    = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
)
