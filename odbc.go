package odbcscan

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// LibraryPathEnv overrides the driver manager library location.
const LibraryPathEnv = "ODBCSCAN_LIBRARY_PATH"

var (
	libMu     sync.Mutex
	libLoaded = map[string]*libraryAPI{}
)

// libraryAPI implements API on top of a dlopen'ed driver manager.
// The function pointers are populated by purego.
type libraryAPI struct {
	handle uintptr

	sqlAllocHandle   func(handleType SQLSMALLINT, inputHandle SQLHANDLE, outputHandle *SQLHANDLE) SQLRETURN
	sqlFreeHandle    func(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN
	sqlSetEnvAttr    func(env SQLHENV, attribute SQLINTEGER, value uintptr, stringLength SQLINTEGER) SQLRETURN
	sqlDriverConnect func(dbc SQLHDBC, hwnd uintptr, inConnStr *uint16, inConnStrLen SQLSMALLINT, outConnStr *uint16, outConnStrMax SQLSMALLINT, outConnStrLen *SQLSMALLINT, driverCompletion SQLUSMALLINT) SQLRETURN
	sqlDisconnect    func(dbc SQLHDBC) SQLRETURN
	sqlGetInfo       func(dbc SQLHDBC, infoType SQLUSMALLINT, infoValue *uint16, bufferLength SQLSMALLINT, stringLength *SQLSMALLINT) SQLRETURN
	sqlPrepare       func(stmt SQLHSTMT, stmtText *uint16, textLength SQLINTEGER) SQLRETURN
	sqlNumResultCols func(stmt SQLHSTMT, columnCount *SQLSMALLINT) SQLRETURN
	sqlDescribeCol   func(stmt SQLHSTMT, colNum SQLUSMALLINT, colName *uint16, bufferLen SQLSMALLINT, nameLen *SQLSMALLINT, dataType *SQLSMALLINT, colSize *SQLULEN, decDigits *SQLSMALLINT, nullable *SQLSMALLINT) SQLRETURN
	sqlColAttribute  func(stmt SQLHSTMT, colNum SQLUSMALLINT, fieldId SQLUSMALLINT, charAttr *uint16, bufferLen SQLSMALLINT, strLen *SQLSMALLINT, numAttr *SQLLEN) SQLRETURN
	sqlNumParams     func(stmt SQLHSTMT, paramCount *SQLSMALLINT) SQLRETURN
	sqlDescribeParam func(stmt SQLHSTMT, paramNum SQLUSMALLINT, dataType *SQLSMALLINT, paramSize *SQLULEN, decDigits *SQLSMALLINT, nullable *SQLSMALLINT) SQLRETURN
	sqlBindParameter func(stmt SQLHSTMT, paramNum SQLUSMALLINT, ioType SQLSMALLINT, valueType SQLSMALLINT, paramType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, paramValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	sqlExecute       func(stmt SQLHSTMT) SQLRETURN
	sqlRowCount      func(stmt SQLHSTMT, rowCount *SQLLEN) SQLRETURN
	sqlFetch         func(stmt SQLHSTMT) SQLRETURN
	sqlGetData       func(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, targetValue uintptr, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	sqlFreeStmt      func(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN
	sqlGetStmtAttr   func(stmt SQLHSTMT, attribute SQLINTEGER, value *uintptr, bufferLength SQLINTEGER, stringLength *SQLINTEGER) SQLRETURN
	sqlSetDescField  func(desc SQLHDESC, recNum SQLSMALLINT, fieldId SQLSMALLINT, value uintptr, bufferLength SQLINTEGER) SQLRETURN
	sqlGetDiagRec    func(handleType SQLSMALLINT, handle SQLHANDLE, recNum SQLSMALLINT, sqlState *uint16, nativeError *SQLINTEGER, msgText *uint16, bufferLen SQLSMALLINT, textLen *SQLSMALLINT) SQLRETURN
	sqlDrivers       func(env SQLHENV, direction SQLUSMALLINT, desc *uint16, descMax SQLSMALLINT, descLen *SQLSMALLINT, attrs *uint16, attrsMax SQLSMALLINT, attrsLen *SQLSMALLINT) SQLRETURN
	sqlDataSources   func(env SQLHENV, direction SQLUSMALLINT, name *uint16, nameMax SQLSMALLINT, nameLen *SQLSMALLINT, desc *uint16, descMax SQLSMALLINT, descLen *SQLSMALLINT) SQLRETURN
}

// defaultLibraryPath returns the platform-specific ODBC library path.
// The ODBCSCAN_LIBRARY_PATH environment variable can override the default path.
func defaultLibraryPath() string {
	if path := os.Getenv(LibraryPathEnv); path != "" {
		return path
	}

	switch runtime.GOOS {
	case "windows":
		return "odbc32.dll"
	case "darwin":
		// Check common macOS locations for unixODBC
		paths := []string{
			"/opt/homebrew/lib/libodbc.2.dylib", // Apple Silicon Homebrew
			"/usr/local/lib/libodbc.2.dylib",    // Intel Homebrew
			"/opt/homebrew/lib/libodbc.dylib",
			"/usr/local/lib/libodbc.dylib",
		}
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
		return "libodbc.2.dylib" // Let purego search standard paths
	default:
		return "libodbc.so.2"
	}
}

// LoadLibrary loads the driver manager at path (or the platform default when
// path is empty) and registers the wide-character entry points.
// A library is loaded at most once per process.
func LoadLibrary(path string) (API, error) {
	if path == "" {
		path = defaultLibraryPath()
	}

	libMu.Lock()
	defer libMu.Unlock()

	if lib, ok := libLoaded[path]; ok {
		return lib, nil
	}

	handle, err := loadODBCLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ODBC library %q: %w (set %s to override)", path, err, LibraryPathEnv)
	}

	lib := &libraryAPI{handle: handle}
	lib.register()
	libLoaded[path] = lib

	Logger().Debug("loaded ODBC driver manager")
	return lib, nil
}

func (l *libraryAPI) register() {
	h := l.handle

	// Core handle management
	purego.RegisterLibFunc(&l.sqlAllocHandle, h, "SQLAllocHandle")
	purego.RegisterLibFunc(&l.sqlFreeHandle, h, "SQLFreeHandle")
	purego.RegisterLibFunc(&l.sqlSetEnvAttr, h, "SQLSetEnvAttr")

	// Unicode entry points: every string exchanged with the driver is UTF-16
	purego.RegisterLibFunc(&l.sqlDriverConnect, h, "SQLDriverConnectW")
	purego.RegisterLibFunc(&l.sqlGetInfo, h, "SQLGetInfoW")
	purego.RegisterLibFunc(&l.sqlPrepare, h, "SQLPrepareW")
	purego.RegisterLibFunc(&l.sqlDescribeCol, h, "SQLDescribeColW")
	purego.RegisterLibFunc(&l.sqlColAttribute, h, "SQLColAttributeW")
	purego.RegisterLibFunc(&l.sqlGetDiagRec, h, "SQLGetDiagRecW")
	purego.RegisterLibFunc(&l.sqlDrivers, h, "SQLDriversW")
	purego.RegisterLibFunc(&l.sqlDataSources, h, "SQLDataSourcesW")
	purego.RegisterLibFunc(&l.sqlGetStmtAttr, h, "SQLGetStmtAttrW")
	purego.RegisterLibFunc(&l.sqlSetDescField, h, "SQLSetDescFieldW")

	purego.RegisterLibFunc(&l.sqlDisconnect, h, "SQLDisconnect")
	purego.RegisterLibFunc(&l.sqlNumResultCols, h, "SQLNumResultCols")
	purego.RegisterLibFunc(&l.sqlNumParams, h, "SQLNumParams")
	purego.RegisterLibFunc(&l.sqlDescribeParam, h, "SQLDescribeParam")
	purego.RegisterLibFunc(&l.sqlBindParameter, h, "SQLBindParameter")
	purego.RegisterLibFunc(&l.sqlExecute, h, "SQLExecute")
	purego.RegisterLibFunc(&l.sqlRowCount, h, "SQLRowCount")
	purego.RegisterLibFunc(&l.sqlFetch, h, "SQLFetch")
	purego.RegisterLibFunc(&l.sqlGetData, h, "SQLGetData")
	purego.RegisterLibFunc(&l.sqlFreeStmt, h, "SQLFreeStmt")
}

// wptr returns a pointer to the first code unit of b, or nil for an empty buffer.
func wptr(b []uint16) *uint16 {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

// AllocHandle allocates an ODBC handle
func (l *libraryAPI) AllocHandle(handleType SQLSMALLINT, input SQLHANDLE) (SQLHANDLE, SQLRETURN) {
	var out SQLHANDLE
	ret := l.sqlAllocHandle(handleType, input, &out)
	return out, ret
}

// FreeHandle frees an ODBC handle
func (l *libraryAPI) FreeHandle(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN {
	return l.sqlFreeHandle(handleType, handle)
}

// SetEnvAttr sets an environment attribute
func (l *libraryAPI) SetEnvAttr(env SQLHENV, attribute SQLINTEGER, value uintptr) SQLRETURN {
	return l.sqlSetEnvAttr(env, attribute, value, 0)
}

// DriverConnect connects to a data source using a NUL-terminated UTF-16 connection string
func (l *libraryAPI) DriverConnect(dbc SQLHDBC, connStr []uint16) SQLRETURN {
	var outLen SQLSMALLINT
	return l.sqlDriverConnect(dbc, 0, wptr(connStr), SQLSMALLINT(SQL_NTS), nil, 0, &outLen, SQL_DRIVER_NOPROMPT)
}

// Disconnect disconnects from a data source
func (l *libraryAPI) Disconnect(dbc SQLHDBC) SQLRETURN {
	return l.sqlDisconnect(dbc)
}

// GetInfo retrieves driver/data source information; the returned length is in bytes
func (l *libraryAPI) GetInfo(dbc SQLHDBC, infoType SQLUSMALLINT, buf []uint16) (SQLSMALLINT, SQLRETURN) {
	var strLen SQLSMALLINT
	ret := l.sqlGetInfo(dbc, infoType, wptr(buf), SQLSMALLINT(len(buf)*2), &strLen)
	return strLen, ret
}

// Prepare prepares an SQL statement for execution
func (l *libraryAPI) Prepare(stmt SQLHSTMT, query []uint16) SQLRETURN {
	return l.sqlPrepare(stmt, wptr(query), SQL_NTS)
}

// NumResultCols returns the number of columns in a result set
func (l *libraryAPI) NumResultCols(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN) {
	var n SQLSMALLINT
	ret := l.sqlNumResultCols(stmt, &n)
	return n, ret
}

// DescribeCol describes a column in a result set
func (l *libraryAPI) DescribeCol(stmt SQLHSTMT, colNum SQLUSMALLINT, colName []uint16) (nameLen SQLSMALLINT, dataType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, nullable SQLSMALLINT, ret SQLRETURN) {
	ret = l.sqlDescribeCol(stmt, colNum, wptr(colName), SQLSMALLINT(len(colName)), &nameLen, &dataType, &colSize, &decDigits, &nullable)
	return
}

// ColAttribute returns a column attribute; strLen is in bytes as reported by the driver
func (l *libraryAPI) ColAttribute(stmt SQLHSTMT, colNum SQLUSMALLINT, field SQLSMALLINT, charAttr []uint16) (strLen SQLSMALLINT, numAttr SQLLEN, ret SQLRETURN) {
	ret = l.sqlColAttribute(stmt, colNum, SQLUSMALLINT(field), wptr(charAttr), SQLSMALLINT(len(charAttr)*2), &strLen, &numAttr)
	return
}

// NumParams returns the number of parameters in a prepared statement
func (l *libraryAPI) NumParams(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN) {
	var n SQLSMALLINT
	ret := l.sqlNumParams(stmt, &n)
	return n, ret
}

// DescribeParam describes a parameter marker of a prepared statement
func (l *libraryAPI) DescribeParam(stmt SQLHSTMT, paramNum SQLUSMALLINT) (dataType SQLSMALLINT, paramSize SQLULEN, decDigits SQLSMALLINT, nullable SQLSMALLINT, ret SQLRETURN) {
	ret = l.sqlDescribeParam(stmt, paramNum, &dataType, &paramSize, &decDigits, &nullable)
	return
}

// BindParameter binds a parameter to a statement
func (l *libraryAPI) BindParameter(stmt SQLHSTMT, paramNum SQLUSMALLINT, ioType SQLSMALLINT, valueType SQLSMALLINT, paramType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, value unsafe.Pointer, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN {
	return l.sqlBindParameter(stmt, paramNum, ioType, valueType, paramType, colSize, decDigits, uintptr(value), bufferLen, strLenOrInd)
}

// Execute executes a prepared statement
func (l *libraryAPI) Execute(stmt SQLHSTMT) SQLRETURN {
	return l.sqlExecute(stmt)
}

// RowCount returns the number of rows affected by an UPDATE, INSERT, or DELETE
func (l *libraryAPI) RowCount(stmt SQLHSTMT) (SQLLEN, SQLRETURN) {
	var n SQLLEN
	ret := l.sqlRowCount(stmt, &n)
	return n, ret
}

// Fetch fetches the next row from the result set
func (l *libraryAPI) Fetch(stmt SQLHSTMT) SQLRETURN {
	return l.sqlFetch(stmt)
}

// GetData retrieves data for a single column
func (l *libraryAPI) GetData(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, value unsafe.Pointer, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN {
	return l.sqlGetData(stmt, colNum, targetType, uintptr(value), bufferLen, strLenOrInd)
}

// FreeStmt frees resources associated with a statement
func (l *libraryAPI) FreeStmt(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN {
	return l.sqlFreeStmt(stmt, option)
}

// GetStmtAttr reads a pointer-sized statement attribute (descriptor handles)
func (l *libraryAPI) GetStmtAttr(stmt SQLHSTMT, attribute SQLINTEGER) (uintptr, SQLRETURN) {
	var value uintptr
	var strLen SQLINTEGER
	ret := l.sqlGetStmtAttr(stmt, attribute, &value, 0, &strLen)
	return value, ret
}

// SetDescField sets a single descriptor record field
func (l *libraryAPI) SetDescField(desc SQLHDESC, recNum SQLSMALLINT, field SQLSMALLINT, value uintptr, bufferLen SQLINTEGER) SQLRETURN {
	return l.sqlSetDescField(desc, recNum, field, value, bufferLen)
}

// GetDiagRec retrieves diagnostic records
func (l *libraryAPI) GetDiagRec(handleType SQLSMALLINT, handle SQLHANDLE, recNum SQLSMALLINT, sqlState []uint16, message []uint16) (nativeError SQLINTEGER, msgLen SQLSMALLINT, ret SQLRETURN) {
	ret = l.sqlGetDiagRec(handleType, handle, recNum, wptr(sqlState), &nativeError, wptr(message), SQLSMALLINT(len(message)), &msgLen)
	return
}

// Drivers enumerates installed drivers
func (l *libraryAPI) Drivers(env SQLHENV, direction SQLUSMALLINT, description []uint16, attributes []uint16) (descLen SQLSMALLINT, attrLen SQLSMALLINT, ret SQLRETURN) {
	ret = l.sqlDrivers(env, direction, wptr(description), SQLSMALLINT(len(description)), &descLen, wptr(attributes), SQLSMALLINT(len(attributes)), &attrLen)
	return
}

// DataSources enumerates configured data source names
func (l *libraryAPI) DataSources(env SQLHENV, direction SQLUSMALLINT, name []uint16, description []uint16) (nameLen SQLSMALLINT, descLen SQLSMALLINT, ret SQLRETURN) {
	ret = l.sqlDataSources(env, direction, wptr(name), SQLSMALLINT(len(name)), &nameLen, wptr(description), SQLSMALLINT(len(description)), &descLen)
	return
}

// Ensure libraryAPI implements API
var _ API = (*libraryAPI)(nil)
