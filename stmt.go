package odbcscan

import (
	"context"
	"database/sql/driver"
	"sync"
)

// Stmt implements driver.Stmt for prepared statements
type Stmt struct {
	conn   *Conn
	stmt   *Statement
	named  *NamedParams
	mu     sync.Mutex
	closed bool
}

// Close closes the statement
func (s *Stmt) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.stmt.Close()
}

// NumInput returns the number of placeholder parameters, or -1 when the
// query uses named parameters.
func (s *Stmt) NumInput() int {
	if s.named != nil {
		return -1
	}
	return s.stmt.NumParams()
}

// Exec executes a prepared statement (deprecated, use ExecContext)
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

// ExecContext executes a prepared statement with context
func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.run(ctx, args); err != nil {
		return nil, err
	}
	return &Result{rowsAffected: s.stmt.RowsAffected()}, nil
}

// Query executes a prepared query (deprecated, use QueryContext)
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

// QueryContext executes a prepared query with context
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.run(ctx, args); err != nil {
		return nil, err
	}
	return newRows(s), nil
}

func (s *Stmt) run(ctx context.Context, args []driver.NamedValue) error {
	if s.closed {
		return driver.ErrBadConn
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	values, err := s.bindValues(args)
	if err != nil {
		return err
	}
	if err := s.stmt.Bind(values); err != nil {
		return err
	}
	return s.stmt.Execute()
}

// bindValues converts args to positional values, resolving names through
// the rewritten query.
func (s *Stmt) bindValues(args []driver.NamedValue) ([]Value, error) {
	set := &ParamSet{}
	for _, arg := range args {
		v, err := ValueOf(arg.Value)
		if err != nil {
			return nil, &ParameterError{Name: arg.Name, Message: err.Error()}
		}
		if arg.Name != "" {
			set.SetNamed(arg.Name, v)
			continue
		}
		if arg.Ordinal < 1 {
			return nil, &ParameterError{Message: "parameter ordinal must be positive"}
		}
		if err := set.Set(arg.Ordinal-1, v); err != nil {
			return nil, err
		}
	}
	if s.named == nil {
		return set.values, nil
	}
	if set.Named() {
		return set.Resolve(s.named)
	}
	// positional args for a named query: one per distinct name, in order
	byName := &ParamSet{}
	for i, name := range s.named.Names {
		if i >= len(set.values) {
			return nil, &ParameterError{Name: name, Message: "no value supplied"}
		}
		byName.SetNamed(name, set.values[i])
	}
	return byName.Resolve(s.named)
}

func namedValues(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: arg}
	}
	return out
}

// Ensure Stmt implements the required interfaces
var (
	_ driver.Stmt             = (*Stmt)(nil)
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)
