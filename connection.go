package odbcscan

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Connection owns an ODBC environment and connection handle pair and the
// quirks resolved for the connected DBMS.
type Connection struct {
	api       API
	env       SQLHENV
	dbc       SQLHDBC
	dbmsName  string
	overrides *QuirkOverrides
	quirks    Quirks

	textUnits int
	binBytes  int

	mu     sync.Mutex
	closed bool
}

// Open connects with connStr. Non-empty user and password are appended as
// UID and PWD. overrides are kept for every statement of the connection.
func Open(api API, connStr, user, password string, overrides *QuirkOverrides) (*Connection, error) {
	h, ret := api.AllocHandle(SQL_HANDLE_ENV, SQL_NULL_HANDLE)
	if !IsSuccess(ret) {
		return nil, &OpError{Op: "SQLAllocHandle(ENV)", Return: ret}
	}
	env := SQLHENV(h)

	if ret := api.SetEnvAttr(env, SQL_ATTR_ODBC_VERSION, uintptr(SQL_OV_ODBC3)); !IsSuccess(ret) {
		err := &OpError{Op: "SQLSetEnvAttr(ODBC_VERSION)", Return: ret, Err: NewError(api, SQL_HANDLE_ENV, SQLHANDLE(env))}
		api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))
		return nil, err
	}

	h, ret = api.AllocHandle(SQL_HANDLE_DBC, SQLHANDLE(env))
	if !IsSuccess(ret) {
		err := &OpError{Op: "SQLAllocHandle(DBC)", Return: ret, Err: NewError(api, SQL_HANDLE_ENV, SQLHANDLE(env))}
		api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))
		return nil, err
	}
	dbc := SQLHDBC(h)

	full := withCredentials(connStr, user, password)
	if ret := api.DriverConnect(dbc, stringToUTF16z(full)); !IsSuccess(ret) {
		err := &OpError{Op: "SQLDriverConnect", Return: ret, Err: NewError(api, SQL_HANDLE_DBC, SQLHANDLE(dbc))}
		api.FreeHandle(SQL_HANDLE_DBC, SQLHANDLE(dbc))
		api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))
		return nil, err
	}

	c := &Connection{
		api:       api,
		env:       env,
		dbc:       dbc,
		overrides: overrides,
	}
	// An unknown vendor just means default quirks.
	c.dbmsName, _ = c.info(SQL_DBMS_NAME)
	c.quirks = ResolveQuirks(c.dbmsName, overrides)

	Logger().Debug("connected",
		zap.String("dbms", c.dbmsName),
		zap.Stringer("quirks", c.quirks),
	)
	return c, nil
}

// withCredentials appends UID/PWD attributes, braced when the value would
// otherwise break the attribute syntax.
func withCredentials(connStr, user, password string) string {
	var b strings.Builder
	b.WriteString(connStr)
	add := func(key, value string) {
		if value == "" {
			return
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), ";") {
			b.WriteByte(';')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(quoteAttribute(value))
		b.WriteByte(';')
	}
	add("UID", user)
	add("PWD", password)
	return b.String()
}

func quoteAttribute(v string) string {
	if !strings.ContainsAny(v, ";{}= ") {
		return v
	}
	return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
}

// info reads a string SQLGetInfo attribute.
func (c *Connection) info(infoType SQLUSMALLINT) (string, error) {
	buf := make([]uint16, 256)
	n, ret := c.api.GetInfo(c.dbc, infoType, buf)
	if !IsSuccess(ret) {
		return "", &OpError{Op: "SQLGetInfo", Return: ret, Err: NewError(c.api, SQL_HANDLE_DBC, SQLHANDLE(c.dbc))}
	}
	// length is in bytes
	if units := int(n) / 2; units >= len(buf) {
		buf = make([]uint16, units+1)
		if n, ret = c.api.GetInfo(c.dbc, infoType, buf); !IsSuccess(ret) {
			return "", &OpError{Op: "SQLGetInfo", Return: ret, Err: NewError(c.api, SQL_HANDLE_DBC, SQLHANDLE(c.dbc))}
		}
	}
	return utf16nToString(buf, int(n)/2), nil
}

// DBMSName returns the product name the driver reported.
func (c *Connection) DBMSName() string { return c.dbmsName }

// DriverName returns the driver's file name as reported by SQLGetInfo.
func (c *Connection) DriverName() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", errConnClosed
	}
	return c.info(SQL_DRIVER_NAME)
}

// Quirks returns the quirks resolved at connect time.
func (c *Connection) Quirks() Quirks { return c.quirks }

var errConnClosed = &OpError{Op: "use", Err: protocolError(KindSequence, "connection is closed")}

// Prepare prepares query with the connection quirks, plus overrides for
// this statement only.
func (c *Connection) Prepare(query string, overrides *QuirkOverrides) (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errConnClosed
	}

	q := c.quirks
	if overrides != nil {
		q = ResolveQuirks(c.dbmsName, overrides.Merge(c.overrides))
	}
	s := NewStatement(c.api, c.dbc, q)
	s.SetBufferSizes(c.textUnits, c.binBytes)
	if err := s.Prepare(query); err != nil {
		return nil, err
	}
	return s, nil
}

// Close disconnects and frees the handles. Closing twice is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.dbc != 0 {
		if ret := c.api.Disconnect(c.dbc); !IsSuccess(ret) {
			err = &OpError{Op: "SQLDisconnect", Return: ret, Err: NewError(c.api, SQL_HANDLE_DBC, SQLHANDLE(c.dbc))}
		}
		c.api.FreeHandle(SQL_HANDLE_DBC, SQLHANDLE(c.dbc))
		c.dbc = 0
	}
	if c.env != 0 {
		c.api.FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(c.env))
		c.env = 0
	}
	return err
}
