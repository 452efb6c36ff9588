package odbcscan

import (
	"go.uber.org/zap"

	"github.com/slingdata-io/odbcscan/chunk"
)

// StatementState is the lifecycle position of a Statement.
type StatementState uint8

const (
	StateUninitialized StatementState = iota
	StatePrepared                     // prepared, or reset and bound for another execution
	StateExecuted                     // cursor open, rows may remain
	StateExhausted                    // cursor drained or no result set
	StateClosed
)

func (s StatementState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StatePrepared:
		return "PREPARED"
	case StateExecuted:
		return "EXECUTED"
	case StateExhausted:
		return "EXHAUSTED"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Statement drives one prepared query through prepare, bind, execute and
// fetch. It is not safe for concurrent use.
//
// Bound parameter values are owned by the statement from Bind until the
// next Bind or Close, since the driver reads their buffers at Execute.
type Statement struct {
	api    API
	dbc    SQLHDBC
	stmt   SQLHSTMT
	query  string
	quirks Quirks
	state  StatementState

	columns []ColumnDescriptor
	types   []chunk.Type
	params  []ParamDescriptor
	bound   []Value
	unbound bool // a Bind failed; Execute refuses until one succeeds

	rowsAffected int64
	fetch        fetcher
	log          *zap.Logger
}

// NewStatement returns an unprepared statement on dbc.
func NewStatement(api API, dbc SQLHDBC, quirks Quirks) *Statement {
	return &Statement{
		api:    api,
		dbc:    dbc,
		quirks: quirks,
		fetch:  fetcher{api: api, quirks: quirks},
		log:    Logger(),
	}
}

// SetBufferSizes overrides the initial SQLGetData buffer sizes used for
// text (UTF-16 code units) and binary (bytes) columns. Zero keeps the
// default.
func (s *Statement) SetBufferSizes(textUnits, binaryBytes int) {
	s.fetch.textUnits = textUnits
	s.fetch.binBytes = binaryBytes
}

func (s *Statement) sequenceError(op string) error {
	return &OpError{Op: op, Query: s.query, Err: protocolError(KindSequence, "cannot %s a statement in state %s", op, s.state)}
}

func (s *Statement) stmtError(op string, ret SQLRETURN) error {
	return &OpError{Op: op, Query: s.query, Return: ret, Err: NewError(s.api, SQL_HANDLE_STMT, SQLHANDLE(s.stmt))}
}

// Prepare allocates the statement handle, prepares query and collects the
// column and parameter metadata. The statement moves to PREPARED.
func (s *Statement) Prepare(query string) error {
	if s.state != StateUninitialized {
		return s.sequenceError("prepare")
	}
	s.query = query

	h, ret := s.api.AllocHandle(SQL_HANDLE_STMT, SQLHANDLE(s.dbc))
	if !IsSuccess(ret) {
		return &OpError{Op: "SQLAllocHandle(STMT)", Query: query, Return: ret, Err: NewError(s.api, SQL_HANDLE_DBC, SQLHANDLE(s.dbc))}
	}
	s.stmt = SQLHSTMT(h)
	s.fetch.stmt = s.stmt

	if ret := s.api.Prepare(s.stmt, stringToUTF16z(query)); !IsSuccess(ret) {
		err := s.stmtError("SQLPrepare", ret)
		s.release()
		return err
	}

	cols, err := describeColumns(s.api, s.stmt)
	if err != nil {
		s.release()
		return withQuery(err, query)
	}
	types := make([]chunk.Type, len(cols))
	for i := range cols {
		if types[i], err = resolveColumnType(&cols[i], s.quirks); err != nil {
			s.release()
			return &OpError{Op: "prepare", Query: query, Column: i + 1, Err: err}
		}
	}
	params, err := describeParams(s.api, s.stmt)
	if err != nil {
		s.release()
		return withQuery(err, query)
	}

	s.columns, s.types, s.params = cols, types, params
	s.state = StatePrepared
	s.log.Debug("statement prepared",
		zap.String("query", query),
		zap.Int("columns", len(cols)),
		zap.Int("params", len(params)),
	)
	return nil
}

// withQuery fills in the query text of an OpError lacking one.
func withQuery(err error, query string) error {
	if oe, ok := err.(*OpError); ok && oe.Query == "" {
		oe.Query = query
	}
	return err
}

// State returns the lifecycle position.
func (s *Statement) State() StatementState { return s.state }

// Query returns the prepared query text.
func (s *Statement) Query() string { return s.query }

// Quirks returns the quirks the statement runs with.
func (s *Statement) Quirks() Quirks { return s.quirks }

// Columns returns the result column metadata collected at prepare time.
func (s *Statement) Columns() []ColumnDescriptor { return s.columns }

// ColumnNames returns the result column names.
func (s *Statement) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i := range s.columns {
		names[i] = s.columns[i].Name
	}
	return names
}

// NumParams returns the number of parameter markers the driver reported.
func (s *Statement) NumParams() int { return len(s.params) }

// Params returns the parameter marker metadata.
func (s *Statement) Params() []ParamDescriptor { return s.params }

// ResultTypes returns the host types the result columns materialize as.
// It is available once the statement is prepared, before execution.
func (s *Statement) ResultTypes() ([]chunk.Type, error) {
	if s.state == StateUninitialized || s.state == StateClosed {
		return nil, s.sequenceError("describe")
	}
	return s.types, nil
}

// Bind moves params into the statement and binds them to the markers in
// order. On a statement that already ran, the open cursor is closed first,
// so Bind is also how a statement is readied for re-execution. The caller's
// values are left NULL.
func (s *Statement) Bind(params []Value) error {
	switch s.state {
	case StatePrepared:
	case StateExecuted, StateExhausted:
		if ret := s.api.FreeStmt(s.stmt, SQL_CLOSE); !IsSuccess(ret) {
			return s.stmtError("SQLFreeStmt(CLOSE)", ret)
		}
		s.state = StatePrepared
	default:
		return s.sequenceError("bind")
	}

	if err := s.bind(params); err != nil {
		s.unbind()
		return err
	}
	s.unbound = false
	return nil
}

func (s *Statement) bind(params []Value) error {
	if s.params != nil && len(params) != len(s.params) {
		return &OpError{Op: "bind", Query: s.query, Err: protocolError(KindInvalidValue, "query has %d parameter markers, got %d values", len(s.params), len(params))}
	}

	if s.quirks.ResetStmtBeforeExecute {
		if ret := s.api.FreeStmt(s.stmt, SQL_RESET_PARAMS); !IsSuccess(ret) {
			return s.stmtError("SQLFreeStmt(RESET_PARAMS)", ret)
		}
	}

	s.bound = make([]Value, len(params))
	for i := range params {
		s.bound[i] = params[i].Take()
	}
	b := &binder{api: s.api, stmt: s.stmt, quirks: s.quirks, params: s.params}
	for i := range s.bound {
		if err := b.bindValue(i+1, &s.bound[i]); err != nil {
			return withQuery(err, s.query)
		}
	}
	return nil
}

// unbind drops every driver binding after a failed Bind. Markers the failed
// bind never reached would otherwise still point at released buffers.
func (s *Statement) unbind() {
	s.api.FreeStmt(s.stmt, SQL_RESET_PARAMS)
	s.bound = nil
	s.unbound = true
}

// Execute runs the prepared statement with the parameters from the last
// Bind. The execute-time column layout must match the prepare-time one.
// Statements without a result set record their affected row count and go
// straight to EXHAUSTED.
func (s *Statement) Execute() error {
	if s.state != StatePrepared {
		return s.sequenceError("execute")
	}
	if s.unbound {
		return &OpError{Op: "execute", Query: s.query, Err: protocolError(KindSequence, "cannot execute after a failed bind")}
	}

	ret := s.api.Execute(s.stmt)
	if !IsSuccess(ret) && ret != SQL_NO_DATA {
		return s.stmtError("SQLExecute", ret)
	}

	cols, err := describeColumns(s.api, s.stmt)
	if err != nil {
		return withQuery(err, s.query)
	}
	if err := checkShape(s.columns, cols); err != nil {
		return &OpError{Op: "execute", Query: s.query, Err: err}
	}

	if len(cols) == 0 {
		n, ret := s.api.RowCount(s.stmt)
		if !IsSuccess(ret) {
			return s.stmtError("SQLRowCount", ret)
		}
		s.rowsAffected = int64(n)
		s.state = StateExhausted
	} else {
		s.rowsAffected = -1
		s.state = StateExecuted
	}
	s.log.Debug("statement executed",
		zap.String("query", s.query),
		zap.Int("params", len(s.bound)),
		zap.Int64("rows_affected", s.rowsAffected),
	)
	return nil
}

// RowsAffected returns the affected row count of a statement without a
// result set, or -1.
func (s *Statement) RowsAffected() int64 { return s.rowsAffected }

// next advances the cursor. It reports false and moves to EXHAUSTED when no
// rows remain; the cursor is closed but the handle kept for re-execution.
func (s *Statement) next() (bool, error) {
	ret := s.api.Fetch(s.stmt)
	if ret == SQL_NO_DATA {
		if ret := s.api.FreeStmt(s.stmt, SQL_CLOSE); !IsSuccess(ret) {
			return false, s.stmtError("SQLFreeStmt(CLOSE)", ret)
		}
		s.state = StateExhausted
		return false, nil
	}
	if !IsSuccess(ret) {
		return false, s.stmtError("SQLFetch", ret)
	}
	return true, nil
}

// Fetch fills c with up to c.Capacity() rows and returns the number
// written. Zero rows with a nil error means the result set is exhausted.
// c must have been created from ResultTypes.
func (s *Statement) Fetch(c *chunk.Chunk) (int, error) {
	switch s.state {
	case StateExhausted:
		c.Reset()
		return 0, nil
	case StateExecuted:
	default:
		return 0, s.sequenceError("fetch")
	}
	if c.ColumnCount() != len(s.types) {
		return 0, &OpError{Op: "fetch", Query: s.query, Err: protocolError(KindShapeMismatch, "chunk has %d columns, result has %d", c.ColumnCount(), len(s.types))}
	}

	c.Reset()
	rows := 0
	for rows < c.Capacity() {
		ok, err := s.next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		for i := range s.columns {
			if err := fetchCell(&s.fetch, i+1, &s.columns[i], c.Vector(i), rows); err != nil {
				return 0, s.cellError(err, i+1)
			}
		}
		rows++
	}
	c.SetSize(rows)
	s.log.Debug("chunk fetched", zap.String("query", s.query), zap.Int("rows", rows))
	return rows, nil
}

// FetchRow reads the next row into dst, which must hold one Value per
// column. It reports false once the result set is exhausted.
func (s *Statement) FetchRow(dst []Value) (bool, error) {
	switch s.state {
	case StateExhausted:
		return false, nil
	case StateExecuted:
	default:
		return false, s.sequenceError("fetch")
	}
	if len(dst) != len(s.types) {
		return false, &OpError{Op: "fetch", Query: s.query, Err: protocolError(KindShapeMismatch, "row has %d slots, result has %d columns", len(dst), len(s.types))}
	}

	ok, err := s.next()
	if err != nil || !ok {
		return false, err
	}
	for i := range s.columns {
		h, err := handlerFor(s.types[i].ID)
		if err != nil {
			return false, s.cellError(err, i+1)
		}
		v, err := h.fetch(&s.fetch, i+1, &s.columns[i], s.types[i])
		if err != nil {
			return false, s.cellError(err, i+1)
		}
		dst[i] = v
	}
	return true, nil
}

func (s *Statement) cellError(err error, col int) error {
	if oe, ok := err.(*OpError); ok {
		if oe.Query == "" {
			oe.Query = s.query
		}
		if oe.Column == 0 {
			oe.Column = col
		}
		return oe
	}
	return &OpError{Op: "fetch", Query: s.query, Column: col, Err: err}
}

// Close releases the statement handle and the bound parameter buffers.
// Closing twice is a no-op.
func (s *Statement) Close() error {
	if s.state == StateClosed {
		return nil
	}
	var err error
	if s.stmt != 0 {
		if ret := s.api.FreeHandle(SQL_HANDLE_STMT, SQLHANDLE(s.stmt)); !IsSuccess(ret) {
			err = &OpError{Op: "SQLFreeHandle(STMT)", Query: s.query, Return: ret}
		}
		s.stmt = 0
	}
	s.bound = nil
	s.state = StateClosed
	return err
}

func (s *Statement) release() {
	if s.stmt != 0 {
		s.api.FreeHandle(SQL_HANDLE_STMT, SQLHANDLE(s.stmt))
		s.stmt = 0
	}
	s.state = StateClosed
}
