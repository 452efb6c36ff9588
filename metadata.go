package odbcscan

import (
	"fmt"
)

// ColumnDescriptor describes one result column as reported by the driver.
type ColumnDescriptor struct {
	Name        string
	SQLType     SQLSMALLINT // from SQLDescribeCol
	ConciseType SQLSMALLINT // SQL_DESC_CONCISE_TYPE
	TypeName    string      // SQL_DESC_TYPE_NAME, vendor spelling
	Size        SQLULEN
	Precision   int
	Scale       int
	Nullable    SQLSMALLINT
	Unsigned    bool
}

// Type returns the concise type when the driver reported one.
func (c *ColumnDescriptor) Type() SQLSMALLINT {
	if c.ConciseType != 0 {
		return c.ConciseType
	}
	return c.SQLType
}

// Equal reports whether two descriptors agree on name and type.
func (c *ColumnDescriptor) Equal(o *ColumnDescriptor) bool {
	return c.Name == o.Name &&
		c.SQLType == o.SQLType &&
		c.ConciseType == o.ConciseType &&
		c.TypeName == o.TypeName
}

func (c *ColumnDescriptor) String() string {
	return fmt.Sprintf("%s %s(%d,%d)", c.Name, c.typeLabel(), c.Precision, c.Scale)
}

func (c *ColumnDescriptor) typeLabel() string {
	if c.TypeName != "" {
		return c.TypeName
	}
	return SQLTypeName(c.Type())
}

// ParamDescriptor describes one parameter marker. Known is false when the
// driver does not implement SQLDescribeParam.
type ParamDescriptor struct {
	SQLType       SQLSMALLINT
	Size          SQLULEN
	DecimalDigits SQLSMALLINT
	Nullable      SQLSMALLINT
	Known         bool
}

// describeColumns collects result column metadata of a prepared or executed
// statement. A statement without a result set yields an empty slice.
func describeColumns(api API, stmt SQLHSTMT) ([]ColumnDescriptor, error) {
	n, ret := api.NumResultCols(stmt)
	if !IsSuccess(ret) {
		return nil, &OpError{Op: "SQLNumResultCols", Return: ret, Err: NewError(api, SQL_HANDLE_STMT, SQLHANDLE(stmt))}
	}

	cols := make([]ColumnDescriptor, n)
	nameBuf := make([]uint16, 256)
	for i := range cols {
		colNum := SQLUSMALLINT(i + 1)

		nameLen, dataType, colSize, decDigits, nullable, ret := api.DescribeCol(stmt, colNum, nameBuf)
		if !IsSuccess(ret) {
			return nil, &OpError{Op: "SQLDescribeCol", Column: i + 1, Return: ret, Err: NewError(api, SQL_HANDLE_STMT, SQLHANDLE(stmt))}
		}
		if int(nameLen) >= len(nameBuf) {
			// Name was truncated, retry with a larger buffer
			nameBuf = make([]uint16, int(nameLen)+1)
			nameLen, dataType, colSize, decDigits, nullable, ret = api.DescribeCol(stmt, colNum, nameBuf)
			if !IsSuccess(ret) {
				return nil, &OpError{Op: "SQLDescribeCol", Column: i + 1, Return: ret, Err: NewError(api, SQL_HANDLE_STMT, SQLHANDLE(stmt))}
			}
		}

		col := ColumnDescriptor{
			Name:      utf16nToString(nameBuf, int(nameLen)),
			SQLType:   dataType,
			Size:      colSize,
			Precision: int(colSize),
			Scale:     int(decDigits),
			Nullable:  nullable,
		}

		// Attributes below are advisory; a driver refusing one keeps the
		// SQLDescribeCol values.
		if v, ok := colAttrNum(api, stmt, colNum, SQL_DESC_CONCISE_TYPE); ok {
			col.ConciseType = SQLSMALLINT(v)
		}
		if s, ok := colAttrString(api, stmt, colNum, SQL_DESC_TYPE_NAME); ok {
			col.TypeName = s
		}
		if v, ok := colAttrNum(api, stmt, colNum, SQL_DESC_UNSIGNED); ok {
			col.Unsigned = v != 0
		}
		if isDecimalType(col.Type()) {
			if v, ok := colAttrNum(api, stmt, colNum, SQL_DESC_PRECISION); ok && v > 0 {
				col.Precision = int(v)
			}
			if v, ok := colAttrNum(api, stmt, colNum, SQL_DESC_SCALE); ok {
				col.Scale = int(v)
			}
		}
		cols[i] = col
	}
	return cols, nil
}

func colAttrNum(api API, stmt SQLHSTMT, colNum SQLUSMALLINT, field SQLSMALLINT) (SQLLEN, bool) {
	_, num, ret := api.ColAttribute(stmt, colNum, field, nil)
	return num, IsSuccess(ret)
}

func colAttrString(api API, stmt SQLHSTMT, colNum SQLUSMALLINT, field SQLSMALLINT) (string, bool) {
	buf := make([]uint16, 128)
	strLen, _, ret := api.ColAttribute(stmt, colNum, field, buf)
	if !IsSuccess(ret) {
		return "", false
	}
	// strLen is in bytes
	return utf16nToString(buf, int(strLen)/2), true
}

// describeParams collects parameter metadata. Drivers that do not implement
// SQLDescribeParam leave the descriptors unknown; binding then falls back
// to the value's own type.
func describeParams(api API, stmt SQLHSTMT) ([]ParamDescriptor, error) {
	n, ret := api.NumParams(stmt)
	if !IsSuccess(ret) {
		// Non-fatal: some drivers don't support NumParams
		return nil, nil
	}
	params := make([]ParamDescriptor, n)
	for i := range params {
		dataType, size, digits, nullable, ret := api.DescribeParam(stmt, SQLUSMALLINT(i+1))
		if !IsSuccess(ret) {
			continue
		}
		params[i] = ParamDescriptor{
			SQLType:       dataType,
			Size:          size,
			DecimalDigits: digits,
			Nullable:      nullable,
			Known:         true,
		}
	}
	return params, nil
}

// checkShape compares prepare-time and execute-time column lists.
func checkShape(prepared, executed []ColumnDescriptor) error {
	if len(prepared) != len(executed) {
		return protocolError(KindShapeMismatch, "prepare reported %d columns, execute reported %d", len(prepared), len(executed))
	}
	for i := range prepared {
		if !prepared[i].Equal(&executed[i]) {
			return protocolError(KindShapeMismatch, "column %d changed from %s to %s", i+1, prepared[i].String(), executed[i].String())
		}
	}
	return nil
}

func isDecimalType(t SQLSMALLINT) bool {
	return t == SQL_DECIMAL || t == SQL_NUMERIC
}

// SQLTypeName returns a human-readable name for an SQL type
func SQLTypeName(sqlType SQLSMALLINT) string {
	switch sqlType {
	case SQL_CHAR:
		return "CHAR"
	case SQL_VARCHAR:
		return "VARCHAR"
	case SQL_LONGVARCHAR:
		return "LONGVARCHAR"
	case SQL_WCHAR:
		return "WCHAR"
	case SQL_WVARCHAR:
		return "WVARCHAR"
	case SQL_WLONGVARCHAR:
		return "WLONGVARCHAR"
	case SQL_DECIMAL:
		return "DECIMAL"
	case SQL_NUMERIC:
		return "NUMERIC"
	case SQL_SMALLINT:
		return "SMALLINT"
	case SQL_INTEGER:
		return "INTEGER"
	case SQL_REAL:
		return "REAL"
	case SQL_FLOAT:
		return "FLOAT"
	case SQL_DOUBLE:
		return "DOUBLE"
	case SQL_BIT:
		return "BIT"
	case SQL_BOOLEAN:
		return "BOOLEAN"
	case SQL_TINYINT:
		return "TINYINT"
	case SQL_BIGINT:
		return "BIGINT"
	case SQL_BINARY:
		return "BINARY"
	case SQL_VARBINARY:
		return "VARBINARY"
	case SQL_LONGVARBINARY:
		return "LONGVARBINARY"
	case SQL_TYPE_DATE:
		return "DATE"
	case SQL_TYPE_TIME:
		return "TIME"
	case SQL_TYPE_TIMESTAMP:
		return "TIMESTAMP"
	case SQL_DATETIME:
		return "DATETIME"
	case SQL_GUID:
		return "GUID"
	case SQL_SS_TIME2:
		return "SS_TIME2"
	case SQL_SS_TIMESTAMPOFFSET:
		return "SS_TIMESTAMPOFFSET"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", sqlType)
	}
}
