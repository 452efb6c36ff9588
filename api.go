package odbcscan

import "unsafe"

// API is the slice of the ODBC call-level interface the scanner talks to.
//
// Every string crossing this boundary is UTF-16 (SQLWCHAR). Lengths returned
// for wide-string outputs follow the ODBC convention of the entry point they
// wrap: GetInfo reports bytes, the describe/diag/catalog calls report
// characters.
//
// LoadLibrary returns the implementation backed by the platform driver
// manager; tests substitute a scripted driver.
type API interface {
	AllocHandle(handleType SQLSMALLINT, input SQLHANDLE) (SQLHANDLE, SQLRETURN)
	FreeHandle(handleType SQLSMALLINT, handle SQLHANDLE) SQLRETURN
	SetEnvAttr(env SQLHENV, attribute SQLINTEGER, value uintptr) SQLRETURN

	DriverConnect(dbc SQLHDBC, connStr []uint16) SQLRETURN
	Disconnect(dbc SQLHDBC) SQLRETURN
	GetInfo(dbc SQLHDBC, infoType SQLUSMALLINT, buf []uint16) (SQLSMALLINT, SQLRETURN)

	Prepare(stmt SQLHSTMT, query []uint16) SQLRETURN
	NumResultCols(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN)
	DescribeCol(stmt SQLHSTMT, colNum SQLUSMALLINT, colName []uint16) (nameLen SQLSMALLINT, dataType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, nullable SQLSMALLINT, ret SQLRETURN)
	ColAttribute(stmt SQLHSTMT, colNum SQLUSMALLINT, field SQLSMALLINT, charAttr []uint16) (strLen SQLSMALLINT, numAttr SQLLEN, ret SQLRETURN)
	NumParams(stmt SQLHSTMT) (SQLSMALLINT, SQLRETURN)
	DescribeParam(stmt SQLHSTMT, paramNum SQLUSMALLINT) (dataType SQLSMALLINT, paramSize SQLULEN, decDigits SQLSMALLINT, nullable SQLSMALLINT, ret SQLRETURN)

	BindParameter(stmt SQLHSTMT, paramNum SQLUSMALLINT, ioType SQLSMALLINT, valueType SQLSMALLINT, paramType SQLSMALLINT, colSize SQLULEN, decDigits SQLSMALLINT, value unsafe.Pointer, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	Execute(stmt SQLHSTMT) SQLRETURN
	RowCount(stmt SQLHSTMT) (SQLLEN, SQLRETURN)
	Fetch(stmt SQLHSTMT) SQLRETURN
	GetData(stmt SQLHSTMT, colNum SQLUSMALLINT, targetType SQLSMALLINT, value unsafe.Pointer, bufferLen SQLLEN, strLenOrInd *SQLLEN) SQLRETURN
	FreeStmt(stmt SQLHSTMT, option SQLUSMALLINT) SQLRETURN

	GetStmtAttr(stmt SQLHSTMT, attribute SQLINTEGER) (uintptr, SQLRETURN)
	SetDescField(desc SQLHDESC, recNum SQLSMALLINT, field SQLSMALLINT, value uintptr, bufferLen SQLINTEGER) SQLRETURN

	GetDiagRec(handleType SQLSMALLINT, handle SQLHANDLE, recNum SQLSMALLINT, sqlState []uint16, message []uint16) (nativeError SQLINTEGER, msgLen SQLSMALLINT, ret SQLRETURN)

	Drivers(env SQLHENV, direction SQLUSMALLINT, description []uint16, attributes []uint16) (descLen SQLSMALLINT, attrLen SQLSMALLINT, ret SQLRETURN)
	DataSources(env SQLHENV, direction SQLUSMALLINT, name []uint16, description []uint16) (nameLen SQLSMALLINT, descLen SQLSMALLINT, ret SQLRETURN)
}
