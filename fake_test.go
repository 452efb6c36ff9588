package odbcscan

import (
	"sync"
	"unsafe"
)

// =============================================================================
// Scripted driver
// =============================================================================

// fakeCol is one result column as the scripted driver describes it.
type fakeCol struct {
	name     string
	sqlType  SQLSMALLINT
	size     SQLULEN
	scale    SQLSMALLINT
	typeName string
	unsigned bool
	nullable SQLSMALLINT
}

// fakeParam is one parameter marker description. A zero sqlType makes
// SQLDescribeParam fail for that marker.
type fakeParam struct {
	sqlType SQLSMALLINT
	size    SQLULEN
	digits  SQLSMALLINT
}

type fakeDiag struct {
	state   string
	native  int32
	message string
}

// fakeQuery scripts the driver's answers for one query text. Cells hold the
// Go value the driver hands out: nil for NULL, string for text and decimal
// columns, []byte for binary, the exact Go type of the C buffer for fixed
// types, and the ODBC structs for temporal, GUID and numeric values.
type fakeQuery struct {
	cols        []fakeCol
	execCols    []fakeCol // layout after execute, when it differs
	params      []fakeParam
	noNumParams bool
	rows        [][]any
	rowCount    SQLLEN
	execErr     *fakeDiag
	fetchErr    *fakeDiag // raised by SQLFetch on the first row
	echo        bool      // each execution returns its bound parameters as the only row
}

// varlenMode selects how the driver reports lengths on truncated reads.
type varlenMode int

const (
	varlenTail       varlenMode = iota // remaining length on every part
	varlenNoTotal                      // SQL_NO_TOTAL while truncated
	varlenSinglePart                   // full length again on the tail read
	varlenShortTail                    // tail read under-reports by one unit
)

type fakeBinding struct {
	cType   SQLSMALLINT
	sqlType SQLSMALLINT
	colSize SQLULEN
	digits  SQLSMALLINT
	ptr     unsafe.Pointer
	bufLen  SQLLEN
	ind     *SQLLEN
}

// boundParam is a parameter as the driver read it at execute time.
type boundParam struct {
	cType   SQLSMALLINT
	sqlType SQLSMALLINT
	colSize SQLULEN
	digits  SQLSMALLINT
	ind     SQLLEN
	data    []byte
}

func (p boundParam) text() string {
	units := unsafe.Slice((*uint16)(unsafe.Pointer(unsafe.SliceData(p.data))), len(p.data)/2)
	return utf16ToString(units)
}

func boundAs[T any](p boundParam) T {
	var zero T
	if len(p.data) < int(unsafe.Sizeof(zero)) {
		return zero
	}
	return *(*T)(unsafe.Pointer(&p.data[0]))
}

type fakeStmt struct {
	query    *fakeQuery
	text     string
	executed bool
	row      int
	offsets  map[int]int
	started  map[int]bool
	bindings map[int]fakeBinding
}

type fakeCatalogEntry struct {
	first  string
	second []string
}

type fakeDriver struct {
	mu sync.Mutex

	next    SQLHANDLE
	handles map[SQLHANDLE]SQLSMALLINT
	stmts   map[SQLHSTMT]*fakeStmt
	diags   map[SQLHANDLE][]fakeDiag
	desc    map[SQLHDESC]map[[2]int]uintptr

	dbmsName   string
	driverName string
	connectErr *fakeDiag
	queries    map[string]*fakeQuery
	varlen     varlenMode

	drivers []fakeCatalogEntry
	sources []fakeCatalogEntry
	catPos  int

	connStrs     []string
	prepared     []string
	executions   [][]boundParam
	freeStmt     []SQLUSMALLINT
	descWrites   [][3]uintptr // desc, field, value
	getDataCalls int
}

func newFakeDriver(dbmsName string) *fakeDriver {
	return &fakeDriver{
		handles:    make(map[SQLHANDLE]SQLSMALLINT),
		stmts:      make(map[SQLHSTMT]*fakeStmt),
		diags:      make(map[SQLHANDLE][]fakeDiag),
		desc:       make(map[SQLHDESC]map[[2]int]uintptr),
		dbmsName:   dbmsName,
		driverName: "libfake.so",
		queries:    make(map[string]*fakeQuery),
	}
}

func (f *fakeDriver) addQuery(text string, q *fakeQuery) *fakeQuery {
	f.queries[text] = q
	return q
}

// live returns the number of handles not yet freed.
func (f *fakeDriver) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles)
}

func (f *fakeDriver) lastExecution() []boundParam {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.executions) == 0 {
		return nil
	}
	return f.executions[len(f.executions)-1]
}

func (f *fakeDriver) fail(h SQLHANDLE, d fakeDiag) SQLRETURN {
	f.diags[h] = []fakeDiag{d}
	return SQL_ERROR
}

func (f *fakeDriver) stmt(h SQLHSTMT) *fakeStmt {
	delete(f.diags, SQLHANDLE(h))
	return f.stmts[h]
}

func (f *fakeDriver) AllocHandle(handleType SQLSMALLINT, input SQLHANDLE) (SQLHANDLE, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	h := f.next
	f.handles[h] = handleType
	if handleType == SQL_HANDLE_STMT {
		f.stmts[SQLHSTMT(h)] = &fakeStmt{row: -1, bindings: make(map[int]fakeBinding)}
	}
	return h, SQL_SUCCESS
}

func (f *fakeDriver) FreeHandle(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handles[handle] != handleType {
		return SQL_INVALID_HANDLE
	}
	delete(f.handles, handle)
	delete(f.stmts, SQLHSTMT(handle))
	delete(f.diags, handle)
	return SQL_SUCCESS
}

func (f *fakeDriver) SetEnvAttr(env SQLHENV, attribute SQLINTEGER, value uintptr) SQLRETURN {
	if attribute == SQL_ATTR_ODBC_VERSION && value != SQL_OV_ODBC3 {
		return SQL_ERROR
	}
	return SQL_SUCCESS
}

func (f *fakeDriver) DriverConnect(dbc SQLHDBC, connStr []uint16) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connStrs = append(f.connStrs, utf16zToString(connStr))
	if f.connectErr != nil {
		return f.fail(SQLHANDLE(dbc), *f.connectErr)
	}
	return SQL_SUCCESS
}

func (f *fakeDriver) Disconnect(dbc SQLHDBC) SQLRETURN { return SQL_SUCCESS }

func (f *fakeDriver) GetInfo(dbc SQLHDBC, infoType SQLUSMALLINT, buf []uint16) (SQLSMALLINT, SQLRETURN) {
	var s string
	switch infoType {
	case SQL_DBMS_NAME:
		s = f.dbmsName
	case SQL_DRIVER_NAME:
		s = f.driverName
	default:
		return 0, SQL_ERROR
	}
	units := stringToUTF16(s)
	n := copy(buf, units)
	if n < len(buf) {
		buf[n] = 0
	}
	return SQLSMALLINT(len(units) * 2), SQL_SUCCESS
}

func (f *fakeDriver) Prepare(stmt SQLHSTMT, query []uint16) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stmt(stmt)
	text := utf16zToString(query)
	f.prepared = append(f.prepared, text)
	q, ok := f.queries[text]
	if !ok {
		return f.fail(SQLHANDLE(stmt), fakeDiag{state: "42000", native: 102, message: "Incorrect syntax near '" + text + "'"})
	}
	s.query, s.text = q, text
	return SQL_SUCCESS
}

func (s *fakeStmt) columns() []fakeCol {
	if s.executed && s.query.execCols != nil {
		return s.query.execCols
	}
	return s.query.cols
}

func (f *fakeDriver) NumResultCols(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stmt(stmt)
	return SQLSMALLINT(len(s.columns())), SQL_SUCCESS
}

func (f *fakeDriver) DescribeCol(stmt SQLHSTMT, colNum SQLUSMALLINT, colName []uint16) (SQLSMALLINT, SQLSMALLINT, SQLULEN, SQLSMALLINT, SQLSMALLINT, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cols := f.stmt(stmt).columns()
	if int(colNum) < 1 || int(colNum) > len(cols) {
		return 0, 0, 0, 0, 0, f.fail(SQLHANDLE(stmt), fakeDiag{state: "07009", message: "Invalid descriptor index"})
	}
	c := cols[colNum-1]
	units := stringToUTF16(c.name)
	n := copy(colName, units)
	if n < len(colName) {
		colName[n] = 0
	}
	return SQLSMALLINT(len(units)), c.sqlType, c.size, c.scale, c.nullable, SQL_SUCCESS
}

func (f *fakeDriver) ColAttribute(stmt SQLHSTMT, colNum SQLUSMALLINT, field SQLSMALLINT, charAttr []uint16) (SQLSMALLINT, SQLLEN, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cols := f.stmt(stmt).columns()
	c := cols[colNum-1]
	switch field {
	case SQL_DESC_CONCISE_TYPE:
		return 0, SQLLEN(c.sqlType), SQL_SUCCESS
	case SQL_DESC_TYPE_NAME:
		units := stringToUTF16(c.typeName)
		n := copy(charAttr, units)
		if n < len(charAttr) {
			charAttr[n] = 0
		}
		return SQLSMALLINT(len(units) * 2), 0, SQL_SUCCESS
	case SQL_DESC_UNSIGNED:
		if c.unsigned {
			return 0, 1, SQL_SUCCESS
		}
		return 0, 0, SQL_SUCCESS
	case SQL_DESC_PRECISION:
		return 0, SQLLEN(c.size), SQL_SUCCESS
	case SQL_DESC_SCALE:
		return 0, SQLLEN(c.scale), SQL_SUCCESS
	}
	return 0, 0, f.fail(SQLHANDLE(stmt), fakeDiag{state: "HY091", message: "Invalid descriptor field identifier"})
}

func (f *fakeDriver) NumParams(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stmt(stmt)
	if s.query.noNumParams {
		return 0, f.fail(SQLHANDLE(stmt), fakeDiag{state: "IM001", message: "Driver does not support this function"})
	}
	return SQLSMALLINT(len(s.query.params)), SQL_SUCCESS
}

func (f *fakeDriver) DescribeParam(stmt SQLHSTMT, paramNum SQLUSMALLINT) (SQLSMALLINT, SQLULEN, SQLSMALLINT, SQLSMALLINT, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stmt(stmt)
	p := s.query.params[paramNum-1]
	if p.sqlType == 0 {
		return 0, 0, 0, 0, f.fail(SQLHANDLE(stmt), fakeDiag{state: "HYC00", message: "Optional feature not implemented"})
	}
	return p.sqlType, p.size, p.digits, SQL_NULLABLE, SQL_SUCCESS
}

func (f *fakeDriver) BindParameter(stmt SQLHSTMT, paramNum SQLUSMALLINT, ioType SQLSMALLINT, valueType SQLSMALLINT, paramType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, value unsafe.Pointer, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stmt(stmt)
	if ioType != SQL_PARAM_INPUT || strLenOrInd == nil {
		return f.fail(SQLHANDLE(stmt), fakeDiag{state: "HY105", message: "Invalid parameter type"})
	}
	s.bindings[int(paramNum)] = fakeBinding{
		cType:   valueType,
		sqlType: paramType,
		colSize: colSize,
		digits:  decDigits,
		ptr:     value,
		bufLen:  bufferLen,
		ind:     strLenOrInd,
	}
	return SQL_SUCCESS
}

func (f *fakeDriver) Execute(stmt SQLHSTMT) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stmt(stmt)
	if s.executed {
		return f.fail(SQLHANDLE(stmt), fakeDiag{state: "24000", message: "Invalid cursor state"})
	}
	if n := len(s.query.params); !s.query.noNumParams && len(s.bindings) < n {
		return f.fail(SQLHANDLE(stmt), fakeDiag{state: "07002", message: "COUNT field incorrect"})
	}
	params := make([]boundParam, len(s.bindings))
	for i := range params {
		b, ok := s.bindings[i+1]
		if !ok {
			return f.fail(SQLHANDLE(stmt), fakeDiag{state: "07002", message: "COUNT field incorrect"})
		}
		p := boundParam{cType: b.cType, sqlType: b.sqlType, colSize: b.colSize, digits: b.digits, ind: *b.ind}
		if p.ind != SQL_NULL_DATA && b.ptr != nil {
			n := int(b.bufLen)
			if b.cType == SQL_C_WCHAR || b.cType == SQL_C_BINARY {
				n = int(p.ind)
			}
			p.data = append([]byte(nil), unsafe.Slice((*byte)(b.ptr), n)...)
		}
		params[i] = p
	}
	f.executions = append(f.executions, params)
	if s.query.echo {
		row := make([]any, len(params))
		for i, p := range params {
			switch {
			case p.ind == SQL_NULL_DATA:
			case p.cType == SQL_C_WCHAR:
				row[i] = p.text()
			default:
				row[i] = p.data
			}
		}
		s.query.rows = [][]any{row}
	}
	if s.query.execErr != nil {
		return f.fail(SQLHANDLE(stmt), *s.query.execErr)
	}
	s.executed = true
	s.row = -1
	return SQL_SUCCESS
}

func (f *fakeDriver) RowCount(stmt SQLHSTMT) (SQLLEN, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stmt(stmt).query.rowCount, SQL_SUCCESS
}

func (f *fakeDriver) Fetch(stmt SQLHSTMT) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stmt(stmt)
	if !s.executed {
		return f.fail(SQLHANDLE(stmt), fakeDiag{state: "24000", message: "Invalid cursor state"})
	}
	if s.query.fetchErr != nil {
		return f.fail(SQLHANDLE(stmt), *s.query.fetchErr)
	}
	s.row++
	s.offsets = make(map[int]int)
	s.started = make(map[int]bool)
	if s.row >= len(s.query.rows) {
		return SQL_NO_DATA
	}
	return SQL_SUCCESS
}

// put writes v into the driver buffer p of bufLen bytes.
func put[T any](p unsafe.Pointer, bufLen SQLLEN, ind *SQLLEN, v T) bool {
	size := unsafe.Sizeof(v)
	if bufLen < SQLLEN(size) {
		return false
	}
	*(*T)(p) = v
	*ind = SQLLEN(size)
	return true
}

func (f *fakeDriver) GetData(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, value unsafe.Pointer, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getDataCalls++
	s := f.stmt(stmt)
	if !s.executed || s.row < 0 || s.row >= len(s.query.rows) {
		return f.fail(SQLHANDLE(stmt), fakeDiag{state: "24000", message: "Invalid cursor state"})
	}
	col := int(colNum)
	cell := s.query.rows[s.row][col-1]
	if cell == nil {
		*strLenOrInd = SQL_NULL_DATA
		return SQL_SUCCESS
	}

	switch targetType {
	case SQL_C_WCHAR:
		text, ok := cell.(string)
		if !ok {
			break
		}
		units := stringToUTF16(text)
		data := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(units))), len(units)*2)
		return f.getVarLen(s, stmt, col, data, 2, value, bufferLen, strLenOrInd)
	case SQL_C_BINARY:
		data, ok := cell.([]byte)
		if !ok {
			break
		}
		return f.getVarLen(s, stmt, col, data, 0, value, bufferLen, strLenOrInd)
	case SQL_C_NUMERIC, SQL_ARD_TYPE:
		text, ok := cell.(string)
		if !ok {
			break
		}
		c := s.columns()[col-1]
		precision, scale := int(c.size), int(c.scale)
		if targetType == SQL_ARD_TYPE {
			ard := f.desc[SQLHDESC(uintptr(stmt)*16+2)]
			if ard == nil || ard[[2]int{col, int(SQL_DESC_DATA_PTR)}] == 0 {
				return f.fail(SQLHANDLE(stmt), fakeDiag{state: "07009", message: "ARD record not bound"})
			}
			precision = int(ard[[2]int{col, int(SQL_DESC_PRECISION)}])
			scale = int(ard[[2]int{col, int(SQL_DESC_SCALE)}])
		}
		unscaled, from := ParseDecimalText(text)
		unscaled, err := Rescale(unscaled, from, scale)
		if err != nil {
			return f.fail(SQLHANDLE(stmt), fakeDiag{state: "22003", message: "Numeric value out of range"})
		}
		if !put(value, bufferLen, strLenOrInd, EncodeNumericStruct(unscaled, precision, scale)) {
			break
		}
		return SQL_SUCCESS
	default:
		if f.putFixed(cell, value, bufferLen, strLenOrInd) {
			return SQL_SUCCESS
		}
	}
	return f.fail(SQLHANDLE(stmt), fakeDiag{state: "07006", message: "Restricted data type attribute violation"})
}

func (f *fakeDriver) putFixed(cell any, p unsafe.Pointer, bufLen SQLLEN, ind *SQLLEN) bool {
	switch c := cell.(type) {
	case bool:
		var b byte
		if c {
			b = 1
		}
		return put(p, bufLen, ind, b)
	case int8:
		return put(p, bufLen, ind, c)
	case int16:
		return put(p, bufLen, ind, c)
	case int32:
		return put(p, bufLen, ind, c)
	case int64:
		return put(p, bufLen, ind, c)
	case uint8:
		return put(p, bufLen, ind, c)
	case uint16:
		return put(p, bufLen, ind, c)
	case uint32:
		return put(p, bufLen, ind, c)
	case uint64:
		return put(p, bufLen, ind, c)
	case float32:
		return put(p, bufLen, ind, c)
	case float64:
		return put(p, bufLen, ind, c)
	case SQL_DATE_STRUCT:
		return put(p, bufLen, ind, c)
	case SQL_TIME_STRUCT:
		return put(p, bufLen, ind, c)
	case SQL_SS_TIME2_STRUCT:
		return put(p, bufLen, ind, c)
	case SQL_TIMESTAMP_STRUCT:
		return put(p, bufLen, ind, c)
	case SQL_GUID_STRUCT:
		return put(p, bufLen, ind, c)
	}
	return false
}

// getVarLen serves one part of a variable-length cell. term is the
// terminator size in bytes.
func (f *fakeDriver) getVarLen(s *fakeStmt, stmt SQLHSTMT, col int, data []byte, term int, value unsafe.Pointer, bufLen SQLLEN, ind *SQLLEN) SQLRETURN {
	off := s.offsets[col]
	first := !s.started[col]
	if !first && off >= len(data) {
		return SQL_NO_DATA
	}
	s.started[col] = true

	remaining := len(data) - off
	room := max(int(bufLen)-term, 0)
	n := min(remaining, room)
	buf := unsafe.Slice((*byte)(value), int(bufLen))
	copy(buf, data[off:off+n])
	for i := 0; i < term && n+i < len(buf); i++ {
		buf[n+i] = 0
	}
	s.offsets[col] = off + n
	truncated := n < remaining

	switch {
	case f.varlen == varlenNoTotal && truncated:
		*ind = SQL_NO_TOTAL
	case f.varlen == varlenSinglePart && !first:
		*ind = SQLLEN(len(data))
	case f.varlen == varlenShortTail && !first:
		*ind = SQLLEN(remaining - 2)
	default:
		*ind = SQLLEN(remaining)
	}
	if truncated {
		f.diags[SQLHANDLE(stmt)] = []fakeDiag{{state: "01004", message: "String data, right truncated"}}
		return SQL_SUCCESS_WITH_INFO
	}
	return SQL_SUCCESS
}

func (f *fakeDriver) FreeStmt(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stmt(stmt)
	f.freeStmt = append(f.freeStmt, option)
	switch option {
	case SQL_CLOSE:
		s.executed = false
		s.row = -1
	case SQL_RESET_PARAMS:
		s.bindings = make(map[int]fakeBinding)
	}
	return SQL_SUCCESS
}

func (f *fakeDriver) GetStmtAttr(stmt SQLHSTMT, attribute SQLINTEGER) (uintptr, SQLRETURN) {
	switch attribute {
	case SQL_ATTR_APP_PARAM_DESC:
		return uintptr(stmt)*16 + 1, SQL_SUCCESS
	case SQL_ATTR_APP_ROW_DESC:
		return uintptr(stmt)*16 + 2, SQL_SUCCESS
	}
	return 0, SQL_ERROR
}

func (f *fakeDriver) SetDescField(desc SQLHDESC, recNum SQLSMALLINT, field SQLSMALLINT, value uintptr, bufferLen SQLINTEGER) SQLRETURN {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.desc[desc] == nil {
		f.desc[desc] = make(map[[2]int]uintptr)
	}
	f.desc[desc][[2]int{int(recNum), int(field)}] = value
	f.descWrites = append(f.descWrites, [3]uintptr{uintptr(desc), uintptr(field), value})
	return SQL_SUCCESS
}

func (f *fakeDriver) GetDiagRec(handleType SQLSMALLINT, handle SQLHANDLE, recNum SQLSMALLINT, sqlState []uint16, message []uint16) (SQLINTEGER, SQLSMALLINT, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := f.diags[handle]
	if int(recNum) > len(recs) {
		return 0, 0, SQL_NO_DATA
	}
	d := recs[recNum-1]
	copy(sqlState, stringToUTF16z(d.state))
	units := stringToUTF16(d.message)
	n := copy(message, units)
	if n < len(message) {
		message[n] = 0
	}
	return SQLINTEGER(d.native), SQLSMALLINT(len(units)), SQL_SUCCESS
}

func (f *fakeDriver) catalog(entries []fakeCatalogEntry, direction SQLUSMALLINT, a, b []uint16) (SQLSMALLINT, SQLSMALLINT, SQLRETURN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if direction == SQL_FETCH_FIRST {
		f.catPos = 0
	}
	if f.catPos >= len(entries) {
		return 0, 0, SQL_NO_DATA
	}
	e := entries[f.catPos]
	f.catPos++

	first := stringToUTF16(e.first)
	var second []uint16
	for _, s := range e.second {
		second = append(second, stringToUTF16(s)...)
		second = append(second, 0)
	}
	copy(a, first)
	copy(b, second)
	return SQLSMALLINT(len(first)), SQLSMALLINT(len(second)), SQL_SUCCESS
}

func (f *fakeDriver) Drivers(env SQLHENV, direction SQLUSMALLINT, description []uint16, attributes []uint16) (SQLSMALLINT, SQLSMALLINT, SQLRETURN) {
	return f.catalog(f.drivers, direction, description, attributes)
}

func (f *fakeDriver) DataSources(env SQLHENV, direction SQLUSMALLINT, name []uint16, description []uint16) (SQLSMALLINT, SQLSMALLINT, SQLRETURN) {
	return f.catalog(f.sources, direction, name, description)
}

var _ API = (*fakeDriver)(nil)
