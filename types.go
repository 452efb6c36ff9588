package odbcscan

// ODBC Handle types (opaque pointers)
type SQLHANDLE uintptr
type SQLHENV SQLHANDLE
type SQLHDBC SQLHANDLE
type SQLHSTMT SQLHANDLE
type SQLHDESC SQLHANDLE

// ODBC Integer types
type SQLSMALLINT int16
type SQLUSMALLINT uint16
type SQLINTEGER int32
type SQLUINTEGER uint32
type SQLLEN int64   // 64-bit for portability across platforms
type SQLULEN uint64 // 64-bit for portability across platforms
type SQLRETURN SQLSMALLINT

// ODBC Character types
type SQLCHAR byte
type SQLSCHAR int8
type SQLWCHAR uint16

// Handle type identifiers
const (
	SQL_HANDLE_ENV  SQLSMALLINT = 1
	SQL_HANDLE_DBC  SQLSMALLINT = 2
	SQL_HANDLE_STMT SQLSMALLINT = 3
	SQL_HANDLE_DESC SQLSMALLINT = 4
)

// Return codes
const (
	SQL_SUCCESS           SQLRETURN = 0
	SQL_SUCCESS_WITH_INFO SQLRETURN = 1
	SQL_ERROR             SQLRETURN = -1
	SQL_INVALID_HANDLE    SQLRETURN = -2
	SQL_NO_DATA           SQLRETURN = 100
	SQL_NEED_DATA         SQLRETURN = 99
	SQL_STILL_EXECUTING   SQLRETURN = 2
)

// Null handle constant
const SQL_NULL_HANDLE SQLHANDLE = 0

// ODBC version constants
const (
	SQL_OV_ODBC3    = 3
	SQL_OV_ODBC3_80 = 380
)

// Environment attributes
const (
	SQL_ATTR_ODBC_VERSION SQLINTEGER = 200
)

// Statement attributes
const (
	SQL_ATTR_APP_ROW_DESC   SQLINTEGER = 10010
	SQL_ATTR_APP_PARAM_DESC SQLINTEGER = 10011
	SQL_ATTR_IMP_ROW_DESC   SQLINTEGER = 10012
)

// String terminator
const SQL_NTS SQLINTEGER = -3

// Length/indicator sentinels
const (
	SQL_NULL_DATA SQLLEN = -1
	SQL_NO_TOTAL  SQLLEN = -4
)

// SQLDriverConnect options
const (
	SQL_DRIVER_NOPROMPT SQLUSMALLINT = 0
)

// SQLDrivers / SQLDataSources direction
const (
	SQL_FETCH_NEXT  SQLUSMALLINT = 1
	SQL_FETCH_FIRST SQLUSMALLINT = 2
)

// SQL data types
const (
	SQL_UNKNOWN_TYPE   SQLSMALLINT = 0
	SQL_CHAR           SQLSMALLINT = 1
	SQL_NUMERIC        SQLSMALLINT = 2
	SQL_DECIMAL        SQLSMALLINT = 3
	SQL_INTEGER        SQLSMALLINT = 4
	SQL_SMALLINT       SQLSMALLINT = 5
	SQL_FLOAT          SQLSMALLINT = 6
	SQL_REAL           SQLSMALLINT = 7
	SQL_DOUBLE         SQLSMALLINT = 8
	SQL_DATETIME       SQLSMALLINT = 9
	SQL_VARCHAR        SQLSMALLINT = 12
	SQL_BOOLEAN        SQLSMALLINT = 16 // DB2 BOOLEAN type
	SQL_TYPE_DATE      SQLSMALLINT = 91
	SQL_TYPE_TIME      SQLSMALLINT = 92
	SQL_TYPE_TIMESTAMP SQLSMALLINT = 93
	SQL_LONGVARCHAR    SQLSMALLINT = -1
	SQL_BINARY         SQLSMALLINT = -2
	SQL_VARBINARY      SQLSMALLINT = -3
	SQL_LONGVARBINARY  SQLSMALLINT = -4
	SQL_BIGINT         SQLSMALLINT = -5
	SQL_TINYINT        SQLSMALLINT = -6
	SQL_BIT            SQLSMALLINT = -7
	SQL_WCHAR          SQLSMALLINT = -8
	SQL_WVARCHAR       SQLSMALLINT = -9
	SQL_WLONGVARCHAR   SQLSMALLINT = -10
	SQL_GUID           SQLSMALLINT = -11

	// SQL Server extensions
	SQL_SS_TIME2           SQLSMALLINT = -154
	SQL_SS_TIMESTAMPOFFSET SQLSMALLINT = -155
)

// C data type identifiers for binding
const (
	SQL_SIGNED_OFFSET   SQLSMALLINT = -20
	SQL_UNSIGNED_OFFSET SQLSMALLINT = -22
)

const (
	SQL_C_CHAR      = SQL_CHAR
	SQL_C_LONG      = SQL_INTEGER
	SQL_C_SHORT     = SQL_SMALLINT
	SQL_C_FLOAT     = SQL_REAL
	SQL_C_DOUBLE    = SQL_DOUBLE
	SQL_C_NUMERIC   = SQL_NUMERIC
	SQL_C_DATE      = SQL_TYPE_DATE
	SQL_C_TIME      = SQL_TYPE_TIME
	SQL_C_TIMESTAMP = SQL_TYPE_TIMESTAMP
	SQL_C_BINARY    = SQL_BINARY
	SQL_C_BIT       = SQL_BIT
	SQL_C_WCHAR     = SQL_WCHAR
	SQL_C_SBIGINT   = SQL_BIGINT + SQL_SIGNED_OFFSET    // -25
	SQL_C_UBIGINT   = SQL_BIGINT + SQL_UNSIGNED_OFFSET  // -27
	SQL_C_SLONG     = SQL_C_LONG + SQL_SIGNED_OFFSET    // -16
	SQL_C_SSHORT    = SQL_C_SHORT + SQL_SIGNED_OFFSET   // -15
	SQL_C_STINYINT  = SQL_TINYINT + SQL_SIGNED_OFFSET   // -26
	SQL_C_ULONG     = SQL_C_LONG + SQL_UNSIGNED_OFFSET  // -18
	SQL_C_USHORT    = SQL_C_SHORT + SQL_UNSIGNED_OFFSET // -17
	SQL_C_UTINYINT  = SQL_TINYINT + SQL_UNSIGNED_OFFSET // -28
	SQL_C_GUID      = SQL_GUID

	// SQL_C_SS_TIME2 is SQL Server's C type for SQL_SS_TIME2_STRUCT.
	SQL_C_SS_TIME2 SQLSMALLINT = 0x4000

	// SQL_ARD_TYPE tells SQLGetData to use the type stored in the application row descriptor.
	SQL_ARD_TYPE SQLSMALLINT = -99
)

// Parameter input/output type
const (
	SQL_PARAM_INPUT SQLSMALLINT = 1
)

// Free statement options
const (
	SQL_CLOSE        SQLUSMALLINT = 0
	SQL_DROP         SQLUSMALLINT = 1
	SQL_UNBIND       SQLUSMALLINT = 2
	SQL_RESET_PARAMS SQLUSMALLINT = 3
)

// Nullable field values
const (
	SQL_NO_NULLS         SQLSMALLINT = 0
	SQL_NULLABLE         SQLSMALLINT = 1
	SQL_NULLABLE_UNKNOWN SQLSMALLINT = 2
)

// Descriptor field identifiers (SQLColAttribute / SQLSetDescField)
const (
	SQL_DESC_TYPE          SQLSMALLINT = 1002
	SQL_DESC_PRECISION     SQLSMALLINT = 1005
	SQL_DESC_SCALE         SQLSMALLINT = 1006
	SQL_DESC_DATA_PTR      SQLSMALLINT = 1010
	SQL_DESC_NAME          SQLSMALLINT = 1011
	SQL_DESC_OCTET_LENGTH  SQLSMALLINT = 1013
	SQL_DESC_CONCISE_TYPE  SQLSMALLINT = 2
	SQL_DESC_UNSIGNED      SQLSMALLINT = 8
	SQL_DESC_TYPE_NAME     SQLSMALLINT = 14
	SQL_DESC_LENGTH        SQLSMALLINT = 1003
	SQL_DESC_DISPLAY_SIZE  SQLSMALLINT = 6
	SQL_DESC_NULLABLE      SQLSMALLINT = 1008
	SQL_DESC_AUTO_UNIQUE   SQLSMALLINT = 11
	SQL_DESC_UNNAMED       SQLSMALLINT = 1012
	SQL_DESC_BASE_COLUMN   SQLSMALLINT = 22
	SQL_DESC_INDICATOR_PTR SQLSMALLINT = 1009
)

// SQLGetInfo information types
const (
	SQL_DRIVER_NAME SQLUSMALLINT = 6
	SQL_DRIVER_VER  SQLUSMALLINT = 7
	SQL_DBMS_NAME   SQLUSMALLINT = 17
	SQL_DBMS_VER    SQLUSMALLINT = 18
)

// SQLSTATE values the codec reacts to
const (
	sqlStateStringTruncated = "01004"
)

// Timestamp struct for date/time binding
type SQL_TIMESTAMP_STRUCT struct {
	Year     SQLSMALLINT
	Month    SQLUSMALLINT
	Day      SQLUSMALLINT
	Hour     SQLUSMALLINT
	Minute   SQLUSMALLINT
	Second   SQLUSMALLINT
	Fraction SQLUINTEGER // billionths of a second
}

// Date struct
type SQL_DATE_STRUCT struct {
	Year  SQLSMALLINT
	Month SQLUSMALLINT
	Day   SQLUSMALLINT
}

// Time struct
type SQL_TIME_STRUCT struct {
	Hour   SQLUSMALLINT
	Minute SQLUSMALLINT
	Second SQLUSMALLINT
}

// SQL_SS_TIME2_STRUCT is SQL Server's time with fractional seconds.
type SQL_SS_TIME2_STRUCT struct {
	Hour     SQLUSMALLINT
	Minute   SQLUSMALLINT
	Second   SQLUSMALLINT
	_        uint16
	Fraction SQLUINTEGER // billionths of a second
}

// SQL_NUMERIC_STRUCT is the driver's fixed-layout decimal.
// Val holds the magnitude little-endian.
type SQL_NUMERIC_STRUCT struct {
	Precision SQLCHAR
	Scale     SQLSCHAR
	Sign      SQLCHAR // 1 = positive, 0 = negative
	Val       [16]SQLCHAR
}

// GUID struct for uniqueidentifier types
type SQL_GUID_STRUCT struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// IsSuccess checks if the return code indicates success
func IsSuccess(ret SQLRETURN) bool {
	return ret == SQL_SUCCESS || ret == SQL_SUCCESS_WITH_INFO
}
