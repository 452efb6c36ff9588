package odbcscan

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents an ODBC error with diagnostic information from the driver.
// It implements the error interface and provides SQLState, native error code,
// and a human-readable message.
type Error struct {
	SQLState    string
	NativeError int32
	Message     string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s (native error: %d)", e.SQLState, e.Message, e.NativeError)
}

// Unwrap returns nil as Error is a terminal error type.
func (e *Error) Unwrap() error {
	return nil
}

// Is reports whether target matches this error's SQLState.
// This allows using errors.Is to check for specific ODBC errors.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.SQLState == t.SQLState
	}
	return false
}

// DiagRecord represents a single diagnostic record from ODBC
type DiagRecord struct {
	SQLState    string
	NativeError int32
	Message     string
}

// Errors represents multiple ODBC errors
type Errors []Error

// Error implements the error interface for multiple errors
func (e Errors) Error() string {
	if len(e) == 0 {
		return "unknown ODBC error"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	for i, err := range e {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Is reports whether any record matches target's SQLState.
func (e Errors) Is(target error) bool {
	for i := range e {
		if e[i].Is(target) {
			return true
		}
	}
	return false
}

// maxDiagRecords bounds the diagnostic loop against drivers that never
// report SQL_NO_DATA.
const maxDiagRecords = 64

// GetDiagRecords retrieves all diagnostic records for a handle
func GetDiagRecords(api API, handleType SQLSMALLINT, handle SQLHANDLE) []DiagRecord {
	var records []DiagRecord
	sqlState := make([]uint16, 6)
	message := make([]uint16, 1024)

	for i := SQLSMALLINT(1); i <= maxDiagRecords; i++ {
		nativeError, msgLen, ret := api.GetDiagRec(handleType, handle, i, sqlState, message)
		if ret == SQL_NO_DATA || !IsSuccess(ret) {
			break
		}
		n := int(msgLen)
		if n >= len(message) {
			// Message was truncated; grow once and re-read the same record
			message = make([]uint16, n+1)
			nativeError, msgLen, ret = api.GetDiagRec(handleType, handle, i, sqlState, message)
			if !IsSuccess(ret) {
				break
			}
			n = int(msgLen)
		}
		records = append(records, DiagRecord{
			SQLState:    utf16nToString(sqlState, 5),
			NativeError: int32(nativeError),
			Message:     utf16nToString(message, n),
		})
	}
	return records
}

// NewError creates an Error from diagnostic records
func NewError(api API, handleType SQLSMALLINT, handle SQLHANDLE) error {
	records := GetDiagRecords(api, handleType, handle)
	if len(records) == 0 {
		return &Error{
			SQLState: SQLStateGeneralError,
			Message:  "unknown ODBC error",
		}
	}
	if len(records) == 1 {
		return &Error{
			SQLState:    records[0].SQLState,
			NativeError: records[0].NativeError,
			Message:     records[0].Message,
		}
	}
	errs := make(Errors, len(records))
	for i, rec := range records {
		errs[i] = Error{
			SQLState:    rec.SQLState,
			NativeError: rec.NativeError,
			Message:     rec.Message,
		}
	}
	return errs
}

// hasDiagState reports whether any diagnostic record on handle carries state.
func hasDiagState(api API, handleType SQLSMALLINT, handle SQLHANDLE, state string) bool {
	for _, rec := range GetDiagRecords(api, handleType, handle) {
		if rec.SQLState == state {
			return true
		}
	}
	return false
}

// OpError records a failed driver call together with the context needed to
// diagnose it: the operation, the query, the column or parameter ordinal and
// the driver return code. Err is the driver diagnostic (usually *Error or
// Errors) or a *ProtocolError.
type OpError struct {
	Op     string
	Query  string
	Column int // 1-based, 0 when not column specific
	Param  int // 1-based, 0 when not parameter specific
	Return SQLRETURN
	Err    error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString("odbcscan: ")
	b.WriteString(e.Op)
	if e.Column > 0 {
		fmt.Fprintf(&b, " column %d", e.Column)
	}
	if e.Param > 0 {
		fmt.Fprintf(&b, " parameter %d", e.Param)
	}
	if e.Return != SQL_SUCCESS {
		b.WriteString(" returned ")
		b.WriteString(FormatReturnCode(e.Return))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Query != "" {
		b.WriteString(", query: ")
		b.WriteString(e.Query)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *OpError) Unwrap() error {
	return e.Err
}

// Kind categorizes a protocol invariant violation
type Kind string

const (
	KindShapeMismatch   Kind = "shape_mismatch"
	KindLengthMismatch  Kind = "length_mismatch"
	KindUnsupportedType Kind = "unsupported_type"
	KindTypeMismatch    Kind = "type_mismatch"
	KindSequence        Kind = "sequence"
	KindPrecision       Kind = "precision"
	KindInvalidValue    Kind = "invalid_value"
)

// ProtocolError reports a violated protocol invariant. These are fatal for the
// statement and never retried.
type ProtocolError struct {
	Kind   Kind
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

// Is reports whether target is a ProtocolError of the same kind.
func (e *ProtocolError) Is(target error) bool {
	if t, ok := target.(*ProtocolError); ok {
		return e.Kind == t.Kind
	}
	return false
}

func protocolError(kind Kind, format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err wraps a ProtocolError of kind.
func IsKind(err error, kind Kind) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Kind == kind
}

// SQLState constants for common errors.
// These follow the ODBC specification and can be used with errors.Is.
const (
	// Connection errors (08xxx)
	SQLStateConnectionFailure  = "08001" // Unable to connect
	SQLStateConnectionNotOpen  = "08003" // Connection not open
	SQLStateConnectionRejected = "08004" // Connection rejected by server
	SQLStateConnectionError    = "08S01" // Communication link failure

	// Warning states (01xxx)
	SQLStateDataTruncation = sqlStateStringTruncated // Data truncated
	SQLStateOptionChanged  = "01S02"                 // Option value changed

	// Data errors (22xxx)
	SQLStateStringTruncation = "22001" // String data right truncation
	SQLStateNumericOverflow  = "22003" // Numeric value out of range
	SQLStateInvalidDatetime  = "22007" // Invalid datetime format

	// Syntax/access errors (42xxx)
	SQLStateSyntaxError   = "42000" // Syntax error or access violation
	SQLStateTableNotFound = "42S02" // Table not found

	// General errors (HYxxx)
	SQLStateGeneralError          = "HY000" // General error
	SQLStateFunctionSequenceError = "HY010" // Function sequence error
	SQLStateOptionalFeature       = "HYC00" // Optional feature not implemented
	SQLStateFunctionNotSupported  = "IM001" // Driver does not support this function
	SQLStateTimeout               = "HYT00" // Timeout expired
	SQLStateConnectionTimeout     = "HYT01" // Connection timeout expired
)

// firstSQLState returns the SQLState of the first driver record inside err.
func firstSQLState(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.SQLState
	}
	var es Errors
	if errors.As(err, &es) && len(es) > 0 {
		return es[0].SQLState
	}
	return ""
}

// IsConnectionError reports whether err indicates a connection problem.
// Connection errors have SQLState codes starting with "08".
func IsConnectionError(err error) bool {
	return strings.HasPrefix(firstSQLState(err), "08")
}

// IsRetryable classifies err for callers that run their own retry policy:
// timeouts and connection-class (08xxx) states are transient. Nothing in
// this package retries; a failed statement or connection is left aborted
// and a retry means a new Connect or Query.
func IsRetryable(err error) bool {
	sqlState := firstSQLState(err)
	if sqlState == "" {
		return false
	}
	switch sqlState {
	case SQLStateTimeout, SQLStateConnectionTimeout:
		return true
	}
	return strings.HasPrefix(sqlState, "08")
}

// FormatReturnCode returns a string representation of an ODBC return code
func FormatReturnCode(ret SQLRETURN) string {
	switch ret {
	case SQL_SUCCESS:
		return "SQL_SUCCESS"
	case SQL_SUCCESS_WITH_INFO:
		return "SQL_SUCCESS_WITH_INFO"
	case SQL_ERROR:
		return "SQL_ERROR"
	case SQL_INVALID_HANDLE:
		return "SQL_INVALID_HANDLE"
	case SQL_NO_DATA:
		return "SQL_NO_DATA"
	case SQL_NEED_DATA:
		return "SQL_NEED_DATA"
	case SQL_STILL_EXECUTING:
		return "SQL_STILL_EXECUTING"
	default:
		return fmt.Sprintf("SQLRETURN(%d)", ret)
	}
}
