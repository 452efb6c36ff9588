package odbcscan

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/slingdata-io/odbcscan/chunk"
)

// Scanner is the process-wide context for a host engine: it loads the
// driver manager once and parks connections and parameter sets between
// independent calls under opaque handles.
type Scanner struct {
	cfg    Config
	api    API
	conns  *Registry[*Connection]
	params *Registry[*ParamSet]
}

// NewScanner loads the driver manager and returns a ready Scanner.
func NewScanner(opts ...Option) (*Scanner, error) {
	cfg := newConfig(opts...)
	api, err := cfg.load()
	if err != nil {
		return nil, err
	}
	return &Scanner{
		cfg:    cfg,
		api:    api,
		conns:  NewRegistry[*Connection](),
		params: NewRegistry[*ParamSet](),
	}, nil
}

// API returns the driver interface in use.
func (s *Scanner) API() API { return s.api }

// Connect opens a connection and returns its handle.
func (s *Scanner) Connect(connStr, user, password string) (Handle, error) {
	c, err := Open(s.api, connStr, user, password, s.cfg.Overrides)
	if err != nil {
		return 0, err
	}
	c.textUnits, c.binBytes = s.cfg.TextBufferUnits, s.cfg.BinaryBufferBytes
	return s.conns.Put(c), nil
}

// Disconnect closes the connection behind h. It fails while a query result
// on the connection is still open.
func (s *Scanner) Disconnect(h Handle) error {
	c, err := s.conns.Borrow(h)
	if err != nil {
		return err
	}
	if _, _, err := s.conns.Remove(h); err != nil {
		return err
	}
	return c.Close()
}

// CreateParams parks a positional parameter set built from Go scalars.
func (s *Scanner) CreateParams(args ...any) (Handle, error) {
	p, err := ParamSetOf(args...)
	if err != nil {
		return 0, err
	}
	return s.params.Put(p), nil
}

// CreateNamedParams parks a named parameter set.
func (s *Scanner) CreateNamedParams(args map[string]any) (Handle, error) {
	p := &ParamSet{}
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := ValueOf(args[name])
		if err != nil {
			return 0, &ParameterError{Name: name, Message: err.Error()}
		}
		p.SetNamed(name, v)
	}
	return s.params.Put(p), nil
}

// BindParams replaces the leading values of the parameter set h.
func (s *Scanner) BindParams(h Handle, args ...any) error {
	p, err := s.params.Borrow(h)
	if err != nil {
		return err
	}
	defer s.params.Return(h, p)
	for i, a := range args {
		v, err := ValueOf(a)
		if err != nil {
			return &ParameterError{Message: fmt.Sprintf("value %d: %v", i+1, err)}
		}
		if err := p.Set(i, v); err != nil {
			return err
		}
	}
	return nil
}

// DropParams discards the parameter set h.
func (s *Scanner) DropParams(h Handle) error {
	_, _, err := s.params.Remove(h)
	return err
}

// Query prepares and executes query on the connection conn. params may be
// nil. Named parameters (:name, @name, $name) are rewritten to markers and
// must come from a named set. overrides apply to this query only.
//
// The connection stays borrowed until the QueryResult is closed; a second query
// on the same connection fails with ErrHandleBorrowed meanwhile.
func (s *Scanner) Query(ctx context.Context, conn Handle, query string, params *ParamSet, overrides *QuirkOverrides) (*QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := s.conns.Borrow(conn)
	if err != nil {
		return nil, err
	}
	r, err := s.run(c, query, params, overrides)
	if err != nil {
		s.conns.Return(conn, c)
		return nil, err
	}
	r.scanner, r.connHandle, r.conn = s, conn, c
	if !r.HasRows() {
		r.release()
	}
	return r, nil
}

// QueryParams is Query with a parked parameter set.
func (s *Scanner) QueryParams(ctx context.Context, conn Handle, query string, params Handle, overrides *QuirkOverrides) (*QueryResult, error) {
	p, err := s.params.Borrow(params)
	if err != nil {
		return nil, err
	}
	defer s.params.Return(params, p)
	return s.Query(ctx, conn, query, p, overrides)
}

func (s *Scanner) run(c *Connection, query string, params *ParamSet, overrides *QuirkOverrides) (*QueryResult, error) {
	np := ParseNamedParams(query)
	prepared := query
	if np != nil {
		prepared = np.Query
	}

	var values []Value
	if params != nil {
		var err error
		if values, err = params.Resolve(np); err != nil {
			return nil, err
		}
	}

	st, err := c.Prepare(prepared, overrides)
	if err != nil {
		return nil, err
	}
	if err := st.Bind(values); err != nil {
		st.Close()
		return nil, err
	}
	if err := st.Execute(); err != nil {
		st.Close()
		return nil, err
	}
	types, _ := st.ResultTypes()
	return &QueryResult{
		stmt:     st,
		types:    types,
		names:    st.ColumnNames(),
		capacity: s.cfg.ChunkCapacity,
	}, nil
}

// ListDrivers returns the installed drivers as a (description, attributes)
// table.
func (s *Scanner) ListDrivers() (*chunk.Chunk, error) {
	drivers, err := ListDrivers(s.api)
	if err != nil {
		return nil, err
	}
	return DriversChunk(drivers), nil
}

// ListDataSources returns the configured data sources as a (name,
// description) table.
func (s *Scanner) ListDataSources() (*chunk.Chunk, error) {
	sources, err := ListDataSources(s.api)
	if err != nil {
		return nil, err
	}
	return DataSourcesChunk(sources), nil
}

// Close closes every parked connection and drops every parameter set.
// Connections borrowed by open results are closed when those results are.
func (s *Scanner) Close() error {
	var errs []error
	for _, c := range s.conns.Drain() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.params.Drain()
	return errors.Join(errs...)
}

// QueryResult is the outcome of Scanner.Query: either a result set read chunk
// by chunk, or an affected row count.
type QueryResult struct {
	stmt     *Statement
	types    []chunk.Type
	names    []string
	capacity int

	scanner    *Scanner
	connHandle Handle
	conn       *Connection
	closed     bool
}

// Types returns the host column types.
func (r *QueryResult) Types() []chunk.Type { return r.types }

// Names returns the column names.
func (r *QueryResult) Names() []string { return r.names }

// HasRows reports whether the query produced a result set.
func (r *QueryResult) HasRows() bool { return len(r.types) > 0 }

// RowsAffected returns the affected row count of a query without a result
// set, or -1.
func (r *QueryResult) RowsAffected() int64 { return r.stmt.RowsAffected() }

// Schema returns the arrow schema of the result set.
func (r *QueryResult) Schema() (*arrow.Schema, error) { return chunk.Schema(r.names, r.types) }

// Next returns the next chunk of rows, or nil once the result set is
// exhausted. Each call returns a fresh chunk.
func (r *QueryResult) Next() (*chunk.Chunk, error) {
	if r.closed || !r.HasRows() {
		return nil, nil
	}
	c := chunk.NewWithCapacity(r.types, r.capacity)
	n, err := r.stmt.Fetch(c)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return c, nil
}

// NextRecord is Next exported as an arrow record. The caller releases it.
func (r *QueryResult) NextRecord(mem memory.Allocator) (arrow.Record, error) {
	c, err := r.Next()
	if err != nil || c == nil {
		return nil, err
	}
	return c.Record(mem, r.names)
}

// Close releases the statement and hands the connection back.
func (r *QueryResult) Close() error {
	if r.closed {
		return nil
	}
	err := r.stmt.Close()
	r.release()
	return err
}

func (r *QueryResult) release() {
	if r.closed {
		return
	}
	r.closed = true
	if r.stmt.State() != StateClosed {
		r.stmt.Close()
	}
	if r.scanner != nil {
		if err := r.scanner.conns.Return(r.connHandle, r.conn); err != nil {
			// the scanner was closed underneath us
			Logger().Debug("closing orphaned connection", zap.Error(err))
			r.conn.Close()
		}
	}
}
