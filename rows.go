package odbcscan

import (
	"database/sql/driver"
	"io"
	"math"
	"reflect"
	"time"

	"github.com/slingdata-io/odbcscan/chunk"
)

// Rows implements driver.Rows for result set iteration
type Rows struct {
	stmt      *Stmt
	columns   []string
	cols      []ColumnDescriptor
	types     []chunk.Type
	row       []Value
	closed    bool
	closeStmt bool // Whether to close the statement when rows are closed
}

// newRows wraps an executed statement.
func newRows(stmt *Stmt) *Rows {
	types, _ := stmt.stmt.ResultTypes()
	return &Rows{
		stmt:    stmt,
		columns: stmt.stmt.ColumnNames(),
		cols:    stmt.stmt.Columns(),
		types:   types,
		row:     make([]Value, len(types)),
	}
}

// Columns returns the column names
func (r *Rows) Columns() []string {
	return r.columns
}

// Close closes the rows iterator
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	// Close statement if we own it; otherwise the cursor is closed by the
	// next execution.
	if r.closeStmt && r.stmt != nil {
		return r.stmt.Close()
	}
	return nil
}

// Next fetches the next row
func (r *Rows) Next(dest []driver.Value) error {
	if r.closed {
		return io.EOF
	}
	ok, err := r.stmt.stmt.FetchRow(r.row)
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}
	for i := range dest {
		dest[i] = driverValue(&r.row[i])
	}
	return nil
}

// driverValue converts v to one of the types database/sql scans from.
// Decimals and UUIDs travel as strings to keep precision and formatting.
func driverValue(v *Value) driver.Value {
	switch v.kind {
	case ValueNull:
		return nil
	case ValueBool:
		return v.num != 0
	case ValueInt8, ValueInt16, ValueInt32, ValueInt64:
		return int64(v.num)
	case ValueUint8, ValueUint16, ValueUint32:
		return int64(v.num)
	case ValueUint64:
		if v.num > math.MaxInt64 {
			return v.String()
		}
		return int64(v.num)
	case ValueFloat32:
		return float64(math.Float32frombits(uint32(v.num)))
	case ValueFloat64:
		return math.Float64frombits(v.num)
	case ValueDecimal, ValueDecimalText, ValueUUID:
		return v.String()
	case ValueText:
		return utf16ToString(v.wide)
	case ValueBlob:
		return v.blob
	case ValueDate, ValueTime, ValueTimestamp:
		return v.Interface().(time.Time)
	}
	return nil
}

// ColumnTypeScanType returns the Go type suitable for scanning into
func (r *Rows) ColumnTypeScanType(index int) reflect.Type {
	if index < 0 || index >= len(r.types) {
		return reflect.TypeOf(new(interface{})).Elem()
	}

	switch r.types[index].ID {
	case chunk.TypeBoolean:
		return reflect.TypeOf(false)
	case chunk.TypeTinyInt, chunk.TypeSmallInt, chunk.TypeInteger, chunk.TypeBigInt,
		chunk.TypeUTinyInt, chunk.TypeUSmallInt, chunk.TypeUInteger, chunk.TypeUBigInt:
		return reflect.TypeOf(int64(0))
	case chunk.TypeFloat, chunk.TypeDouble:
		return reflect.TypeOf(float64(0))
	case chunk.TypeDecimal, chunk.TypeVarchar, chunk.TypeUUID:
		return reflect.TypeOf("") // String preserves decimal precision
	case chunk.TypeBlob:
		return reflect.TypeOf([]byte{})
	case chunk.TypeDate, chunk.TypeTime, chunk.TypeTimestamp, chunk.TypeTimestampNS:
		return reflect.TypeOf(time.Time{})
	default:
		return reflect.TypeOf(new(interface{})).Elem()
	}
}

// ColumnTypeDatabaseTypeName returns the vendor type name, or the ODBC
// name when the driver did not report one.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	if index < 0 || index >= len(r.cols) {
		return ""
	}
	return r.cols[index].typeLabel()
}

// ColumnTypeLength returns the length of a column
func (r *Rows) ColumnTypeLength(index int) (length int64, ok bool) {
	if index < 0 || index >= len(r.cols) {
		return 0, false
	}
	// Only return length for variable-length types
	switch r.types[index].ID {
	case chunk.TypeVarchar, chunk.TypeBlob:
		return int64(r.cols[index].Size), true
	}
	return 0, false
}

// ColumnTypeNullable returns whether a column is nullable
func (r *Rows) ColumnTypeNullable(index int) (nullable, ok bool) {
	if index < 0 || index >= len(r.cols) {
		return false, false
	}
	switch r.cols[index].Nullable {
	case SQL_NO_NULLS:
		return false, true
	case SQL_NULLABLE:
		return true, true
	default:
		return false, false // Unknown
	}
}

// ColumnTypePrecisionScale returns the precision and scale for NUMERIC/DECIMAL types
func (r *Rows) ColumnTypePrecisionScale(index int) (precision, scale int64, ok bool) {
	if index < 0 || index >= len(r.types) {
		return 0, 0, false
	}
	if t := r.types[index]; t.ID == chunk.TypeDecimal {
		return int64(t.Width), int64(t.Scale), true
	}
	return 0, 0, false
}

// Ensure Rows implements the required interfaces
var (
	_ driver.Rows                           = (*Rows)(nil)
	_ driver.RowsColumnTypeScanType         = (*Rows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*Rows)(nil)
	_ driver.RowsColumnTypeLength           = (*Rows)(nil)
	_ driver.RowsColumnTypeNullable         = (*Rows)(nil)
	_ driver.RowsColumnTypePrecisionScale   = (*Rows)(nil)
)
