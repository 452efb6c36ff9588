package odbcscan

import (
	"strings"
	"unsafe"

	"github.com/slingdata-io/odbcscan/chunk"
)

// typeHandler marshals one host type in both directions.
type typeHandler interface {
	// extract reads a non-null cell of vec as a parameter value.
	extract(vec *chunk.Vector, row int) Value
	// store writes v into vec at row.
	store(vec *chunk.Vector, row int, v *Value) error
	// bind attaches v to the 1-based parameter ordinal.
	bind(b *binder, ordinal int, v *Value) error
	// fetch reads the cell at the 1-based column ordinal of the current row
	// as a value of host type t. NULL cells yield a null Value.
	fetch(f *fetcher, ordinal int, col *ColumnDescriptor, t chunk.Type) (Value, error)
}

// handlers is the dispatch table, keyed by host type.
var handlers = map[chunk.TypeID]typeHandler{
	chunk.TypeBoolean:     boolHandler{},
	chunk.TypeTinyInt:     intHandlerOf[int8](ValueInt8, SQL_C_STINYINT, SQL_TINYINT, 3),
	chunk.TypeSmallInt:    intHandlerOf[int16](ValueInt16, SQL_C_SSHORT, SQL_SMALLINT, 5),
	chunk.TypeInteger:     intHandlerOf[int32](ValueInt32, SQL_C_SLONG, SQL_INTEGER, 10),
	chunk.TypeBigInt:      intHandlerOf[int64](ValueInt64, SQL_C_SBIGINT, SQL_BIGINT, 19),
	chunk.TypeUTinyInt:    intHandlerOf[uint8](ValueUint8, SQL_C_UTINYINT, SQL_TINYINT, 3),
	chunk.TypeUSmallInt:   intHandlerOf[uint16](ValueUint16, SQL_C_USHORT, SQL_SMALLINT, 5),
	chunk.TypeUInteger:    intHandlerOf[uint32](ValueUint32, SQL_C_ULONG, SQL_INTEGER, 10),
	chunk.TypeUBigInt:     intHandlerOf[uint64](ValueUint64, SQL_C_UBIGINT, SQL_BIGINT, 20),
	chunk.TypeFloat:       floatHandlerOf(ValueFloat32, SQL_C_FLOAT, SQL_REAL, 7, NewFloat32, (*Value).Float32),
	chunk.TypeDouble:      floatHandlerOf(ValueFloat64, SQL_C_DOUBLE, SQL_DOUBLE, 15, NewFloat64, (*Value).Float64),
	chunk.TypeDecimal:     decimalHandler{},
	chunk.TypeVarchar:     textHandler{},
	chunk.TypeBlob:        blobHandler{},
	chunk.TypeUUID:        uuidHandler{},
	chunk.TypeDate:        dateHandler{},
	chunk.TypeTime:        timeHandler{},
	chunk.TypeTimestamp:   timestampHandler{},
	chunk.TypeTimestampNS: timestampHandler{nanos: true},
}

// kindTypes maps a parameter value kind to the host type whose handler binds it.
var kindTypes = [...]chunk.TypeID{
	ValueBool:        chunk.TypeBoolean,
	ValueInt8:        chunk.TypeTinyInt,
	ValueInt16:       chunk.TypeSmallInt,
	ValueInt32:       chunk.TypeInteger,
	ValueInt64:       chunk.TypeBigInt,
	ValueUint8:       chunk.TypeUTinyInt,
	ValueUint16:      chunk.TypeUSmallInt,
	ValueUint32:      chunk.TypeUInteger,
	ValueUint64:      chunk.TypeUBigInt,
	ValueFloat32:     chunk.TypeFloat,
	ValueFloat64:     chunk.TypeDouble,
	ValueDecimal:     chunk.TypeDecimal,
	ValueDecimalText: chunk.TypeDecimal,
	ValueText:        chunk.TypeVarchar,
	ValueBlob:        chunk.TypeBlob,
	ValueUUID:        chunk.TypeUUID,
	ValueDate:        chunk.TypeDate,
	ValueTime:        chunk.TypeTime,
	ValueTimestamp:   chunk.TypeTimestamp,
}

func handlerFor(id chunk.TypeID) (typeHandler, error) {
	h, ok := handlers[id]
	if !ok {
		return nil, protocolError(KindUnsupportedType, "no handler for host type %s", id)
	}
	return h, nil
}

// resolveColumnType picks the host type a result column materializes as.
func resolveColumnType(col *ColumnDescriptor, q Quirks) (chunk.Type, error) {
	switch t := col.Type(); t {
	case SQL_BIT, SQL_BOOLEAN:
		return chunk.Of(chunk.TypeBoolean), nil
	case SQL_TINYINT:
		return signedOrNot(col, chunk.TypeTinyInt, chunk.TypeUTinyInt), nil
	case SQL_SMALLINT:
		return signedOrNot(col, chunk.TypeSmallInt, chunk.TypeUSmallInt), nil
	case SQL_INTEGER:
		return signedOrNot(col, chunk.TypeInteger, chunk.TypeUInteger), nil
	case SQL_BIGINT:
		return signedOrNot(col, chunk.TypeBigInt, chunk.TypeUBigInt), nil
	case SQL_REAL:
		return chunk.Of(chunk.TypeFloat), nil
	case SQL_FLOAT, SQL_DOUBLE:
		return chunk.Of(chunk.TypeDouble), nil
	case SQL_DECIMAL, SQL_NUMERIC:
		width := col.Precision
		if width == 0 {
			width = MaxDecimalWidth
		}
		if _, err := DecimalStorage(width); err != nil {
			return chunk.Type{}, err
		}
		scale := col.Scale
		if scale < 0 {
			scale = 0
		}
		if scale > width {
			return chunk.Type{}, protocolError(KindPrecision, "column %q has scale %d above precision %d", col.Name, scale, width)
		}
		return chunk.Decimal(uint8(width), uint8(scale)), nil
	case SQL_CHAR, SQL_VARCHAR, SQL_LONGVARCHAR, SQL_WCHAR, SQL_WVARCHAR, SQL_WLONGVARCHAR, SQL_SS_TIMESTAMPOFFSET:
		return chunk.Of(chunk.TypeVarchar), nil
	case SQL_BINARY, SQL_VARBINARY, SQL_LONGVARBINARY:
		return chunk.Of(chunk.TypeBlob), nil
	case SQL_GUID:
		return chunk.Of(chunk.TypeUUID), nil
	case SQL_TYPE_DATE, SQL_DATETIME: // 9 is SQL_DATE to ODBC 2.x drivers
		return chunk.Of(chunk.TypeDate), nil
	case SQL_TYPE_TIME, SQL_SS_TIME2:
		return chunk.Of(chunk.TypeTime), nil
	case SQL_TYPE_TIMESTAMP:
		if q.TimestampNS && q.TimestampNSTypeName != "" && strings.EqualFold(col.TypeName, q.TimestampNSTypeName) {
			return chunk.Of(chunk.TypeTimestampNS), nil
		}
		return chunk.Of(chunk.TypeTimestamp), nil
	default:
		return chunk.Type{}, protocolError(KindUnsupportedType, "column %q has unsupported SQL type %d (%s)", col.Name, t, col.typeLabel())
	}
}

func signedOrNot(col *ColumnDescriptor, signed, unsigned chunk.TypeID) chunk.Type {
	if col.Unsigned {
		return chunk.Of(unsigned)
	}
	return chunk.Of(signed)
}

// ExtractValue reads row of vec as a parameter value.
func ExtractValue(vec *chunk.Vector, row int) (Value, error) {
	if !vec.IsValid(row) {
		return NullValue(), nil
	}
	h, err := handlerFor(vec.Type().ID)
	if err != nil {
		return Value{}, err
	}
	return h.extract(vec, row), nil
}

// RowValues extracts every column of row in c as parameter values.
func RowValues(c *chunk.Chunk, row int) ([]Value, error) {
	out := make([]Value, c.ColumnCount())
	for i := range out {
		v, err := ExtractValue(c.Vector(i), row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// StoreValue writes v into vec at row, marking nulls in the validity bitmap.
func StoreValue(vec *chunk.Vector, row int, v *Value) error {
	if v.IsNull() {
		vec.SetNull(row)
		return nil
	}
	h, err := handlerFor(vec.Type().ID)
	if err != nil {
		return err
	}
	return h.store(vec, row, v)
}

// binder attaches values to the parameter markers of one statement.
type binder struct {
	api    API
	stmt   SQLHSTMT
	quirks Quirks
	params []ParamDescriptor
}

// describe returns the driver's description of ordinal, if it gave one.
func (b *binder) describe(ordinal int) ParamDescriptor {
	if ordinal-1 < len(b.params) {
		return b.params[ordinal-1]
	}
	return ParamDescriptor{}
}

// bindValue dispatches v to the handler of its kind.
func (b *binder) bindValue(ordinal int, v *Value) error {
	if v.IsNull() {
		return b.bindNull(ordinal, v)
	}
	h, err := handlerFor(kindTypes[v.kind])
	if err != nil {
		return err
	}
	return h.bind(b, ordinal, v)
}

// bindNull binds NULL using the described parameter type, falling back to
// VARCHAR for drivers without SQLDescribeParam.
func (b *binder) bindNull(ordinal int, v *Value) error {
	sqlType, colSize, digits := SQL_VARCHAR, SQLULEN(1), SQLSMALLINT(0)
	if d := b.describe(ordinal); d.Known {
		sqlType, colSize, digits = d.SQLType, d.Size, d.DecimalDigits
	}
	v.stage(nil, nil, SQL_NULL_DATA)
	return b.bind(ordinal, v, SQL_C_WCHAR, sqlType, colSize, digits, 0)
}

// bind issues SQLBindParameter for a staged value.
func (b *binder) bind(ordinal int, v *Value, cType, sqlType SQLSMALLINT, colSize SQLULEN, digits SQLSMALLINT, bufLen SQLLEN) error {
	if err := v.SetExpectedCType(cType); err != nil {
		return &OpError{Op: "bind", Param: ordinal, Err: err}
	}
	ret := b.api.BindParameter(b.stmt, SQLUSMALLINT(ordinal), SQL_PARAM_INPUT, cType, sqlType, colSize, digits, v.ptr, bufLen, &v.ind)
	if !IsSuccess(ret) {
		return &OpError{Op: "SQLBindParameter", Param: ordinal, Return: ret, Err: NewError(b.api, SQL_HANDLE_STMT, SQLHANDLE(b.stmt))}
	}
	return nil
}

// bindFixed stages a pointer-sized-or-smaller C value held in *p.
func bindFixed[T any](b *binder, ordinal int, v *Value, p *T, cType, sqlType SQLSMALLINT, colSize SQLULEN, digits SQLSMALLINT) error {
	size := SQLLEN(unsafe.Sizeof(*p))
	v.stage(p, unsafe.Pointer(p), size)
	return b.bind(ordinal, v, cType, sqlType, colSize, digits, size)
}

// bindWide stages UTF-16 text, NUL-terminated, against sqlType.
func bindWide(b *binder, ordinal int, v *Value, units []uint16, sqlType SQLSMALLINT, colSize SQLULEN, digits SQLSMALLINT) error {
	buf := make([]uint16, len(units)+1)
	copy(buf, units)
	n := SQLLEN(len(units) * 2)
	v.stage(buf, unsafe.Pointer(&buf[0]), n)
	if colSize == 0 {
		colSize = 1
	}
	return b.bind(ordinal, v, SQL_C_WCHAR, sqlType, colSize, digits, SQLLEN(len(buf)*2))
}

// fetchCell reads one cell into vec at row.
func fetchCell(f *fetcher, ordinal int, col *ColumnDescriptor, vec *chunk.Vector, row int) error {
	h, err := handlerFor(vec.Type().ID)
	if err != nil {
		return err
	}
	v, err := h.fetch(f, ordinal, col, vec.Type())
	if err != nil {
		return err
	}
	return StoreValue(vec, row, &v)
}
