package odbcscan

import (
	"fmt"
	"math"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/slingdata-io/odbcscan/chunk"
)

// ValueKind discriminates the payload of a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt8
	ValueInt16
	ValueInt32
	ValueInt64
	ValueUint8
	ValueUint16
	ValueUint32
	ValueUint64
	ValueFloat32
	ValueFloat64
	ValueDecimal     // binary decimal: Int128 with width and scale
	ValueDecimalText // decimal kept as text
	ValueText        // UTF-16 code units
	ValueBlob
	ValueUUID      // flipped 128-bit host representation
	ValueDate      // days since epoch
	ValueTime      // microseconds since midnight, plus nanosecond remainder
	ValueTimestamp // microseconds since epoch, plus nanosecond remainder
)

var valueKindNames = [...]string{
	ValueNull:        "NULL",
	ValueBool:        "BOOL",
	ValueInt8:        "INT8",
	ValueInt16:       "INT16",
	ValueInt32:       "INT32",
	ValueInt64:       "INT64",
	ValueUint8:       "UINT8",
	ValueUint16:      "UINT16",
	ValueUint32:      "UINT32",
	ValueUint64:      "UINT64",
	ValueFloat32:     "FLOAT32",
	ValueFloat64:     "FLOAT64",
	ValueDecimal:     "DECIMAL",
	ValueDecimalText: "DECIMAL_TEXT",
	ValueText:        "TEXT",
	ValueBlob:        "BLOB",
	ValueUUID:        "UUID",
	ValueDate:        "DATE",
	ValueTime:        "TIME",
	ValueTimestamp:   "TIMESTAMP",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// Value is a single tagged cell or parameter. Only the payload matching the
// kind is meaningful; accessors for any other kind fail.
//
// A Value also carries its transport state: the C type negotiated for the
// driver (settable once), the length/indicator word and the buffer the
// driver reads from. Values handed to a Statement are moved with Take and
// must not be reused by the caller.
type Value struct {
	kind  ValueKind
	num   uint64 // bool, integers, float bits, date days, time/timestamp micros
	nanos int32  // sub-microsecond remainder, 0..999
	dec   Decimal
	str   string
	wide  []uint16
	blob  []byte
	uuid  chunk.Hugeint

	cType    SQLSMALLINT
	cTypeSet bool
	ind      SQLLEN
	keep     any
	ptr      unsafe.Pointer
}

// NullValue returns a NULL value.
func NullValue() Value { return Value{kind: ValueNull, ind: SQL_NULL_DATA} }

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	v := Value{kind: ValueBool}
	if b {
		v.num = 1
	}
	return v
}

func newInteger[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64](kind ValueKind, x T) Value {
	return Value{kind: kind, num: uint64(int64(x))}
}

func NewInt8(x int8) Value     { return newInteger(ValueInt8, x) }
func NewInt16(x int16) Value   { return newInteger(ValueInt16, x) }
func NewInt32(x int32) Value   { return newInteger(ValueInt32, x) }
func NewInt64(x int64) Value   { return newInteger(ValueInt64, x) }
func NewUint8(x uint8) Value   { return newInteger(ValueUint8, x) }
func NewUint16(x uint16) Value { return newInteger(ValueUint16, x) }
func NewUint32(x uint32) Value { return newInteger(ValueUint32, x) }
func NewUint64(x uint64) Value { return newInteger(ValueUint64, x) }

// NewFloat32 returns a single precision value.
func NewFloat32(f float32) Value {
	return Value{kind: ValueFloat32, num: uint64(math.Float32bits(f))}
}

// NewFloat64 returns a double precision value.
func NewFloat64(f float64) Value {
	return Value{kind: ValueFloat64, num: math.Float64bits(f)}
}

// NewDecimal returns a binary decimal value.
func NewDecimal(d Decimal) Value {
	return Value{kind: ValueDecimal, dec: d}
}

// NewDecimalText returns a decimal carried as text.
func NewDecimalText(s string) Value {
	return Value{kind: ValueDecimalText, str: s}
}

// NewText returns a text value, transcoding s to UTF-16.
func NewText(s string) Value {
	return Value{kind: ValueText, wide: stringToUTF16(s)}
}

// NewWideText returns a text value that takes ownership of units.
func NewWideText(units []uint16) Value {
	return Value{kind: ValueText, wide: units}
}

// NewBlob returns a binary value that takes ownership of b.
func NewBlob(b []byte) Value {
	return Value{kind: ValueBlob, blob: b}
}

// NewUUID returns a UUID value from its host representation.
func NewUUID(h chunk.Hugeint) Value {
	return Value{kind: ValueUUID, uuid: h}
}

// NewUUIDFromBytes returns a UUID value from the 16 big-endian bytes.
func NewUUIDFromBytes(u uuid.UUID) Value {
	return NewUUID(chunk.UUIDFromBytes(u))
}

// NewDate returns a date value, days since 1970-01-01.
func NewDate(days int32) Value {
	return Value{kind: ValueDate, num: uint64(int64(days))}
}

// NewTime returns a time of day, microseconds since midnight plus a
// nanosecond remainder.
func NewTime(micros int64, nanos int32) Value {
	return Value{kind: ValueTime, num: uint64(micros), nanos: nanos}
}

// NewTimestamp returns a timestamp, microseconds since epoch plus a
// nanosecond remainder.
func NewTimestamp(micros int64, nanos int32) Value {
	return Value{kind: ValueTimestamp, num: uint64(micros), nanos: nanos}
}

// NewTimestampFromTime splits t into micros and the nanosecond remainder.
func NewTimestampFromTime(t time.Time) Value {
	ns := t.Nanosecond()
	return NewTimestamp(t.Unix()*chunk.MicrosPerSecond+int64(ns/1000), int32(ns%1000))
}

// Kind returns the discriminant.
func (v *Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is NULL.
func (v *Value) IsNull() bool { return v.kind == ValueNull }

// Take moves v out, leaving NULL behind.
func (v *Value) Take() Value {
	out := *v
	*v = NullValue()
	return out
}

// Clone copies the payload of v with fresh transport state, so the copy can
// be bound to another statement.
func (v *Value) Clone() Value {
	out := Value{kind: v.kind, num: v.num, nanos: v.nanos, dec: v.dec, str: v.str, uuid: v.uuid}
	if v.wide != nil {
		out.wide = append([]uint16(nil), v.wide...)
	}
	if v.blob != nil {
		out.blob = append([]byte(nil), v.blob...)
	}
	if v.kind == ValueNull {
		out.ind = SQL_NULL_DATA
	}
	return out
}

// SetExpectedCType records the C type the value will travel as. It can be
// set once; a second call fails.
func (v *Value) SetExpectedCType(t SQLSMALLINT) error {
	if v.cTypeSet {
		return protocolError(KindTypeMismatch, "expected C type already set to %d, cannot set %d", v.cType, t)
	}
	v.cType = t
	v.cTypeSet = true
	return nil
}

// ExpectedCType returns the negotiated C type, if any.
func (v *Value) ExpectedCType() (SQLSMALLINT, bool) {
	return v.cType, v.cTypeSet
}

// TransportLength returns the length/indicator word the driver sees.
func (v *Value) TransportLength() SQLLEN { return v.ind }

// stage points the transport at buf. keep must own the memory p points to
// so that it stays reachable until the statement is executed.
func (v *Value) stage(keep any, p unsafe.Pointer, length SQLLEN) {
	v.keep = keep
	v.ptr = p
	v.ind = length
}

func (v *Value) expect(k ValueKind) error {
	if v.kind != k {
		return protocolError(KindTypeMismatch, "value is %s, not %s", v.kind, k)
	}
	return nil
}

// Bool returns the boolean payload.
func (v *Value) Bool() (bool, error) {
	if err := v.expect(ValueBool); err != nil {
		return false, err
	}
	return v.num != 0, nil
}

func (v *Value) Int8() (int8, error)     { return intPayload[int8](v, ValueInt8) }
func (v *Value) Int16() (int16, error)   { return intPayload[int16](v, ValueInt16) }
func (v *Value) Int32() (int32, error)   { return intPayload[int32](v, ValueInt32) }
func (v *Value) Int64() (int64, error)   { return intPayload[int64](v, ValueInt64) }
func (v *Value) Uint8() (uint8, error)   { return intPayload[uint8](v, ValueUint8) }
func (v *Value) Uint16() (uint16, error) { return intPayload[uint16](v, ValueUint16) }
func (v *Value) Uint32() (uint32, error) { return intPayload[uint32](v, ValueUint32) }
func (v *Value) Uint64() (uint64, error) { return intPayload[uint64](v, ValueUint64) }

func intPayload[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64](v *Value, k ValueKind) (T, error) {
	if err := v.expect(k); err != nil {
		return 0, err
	}
	return T(int64(v.num)), nil
}

// Float32 returns the single precision payload.
func (v *Value) Float32() (float32, error) {
	if err := v.expect(ValueFloat32); err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v.num)), nil
}

// Float64 returns the double precision payload.
func (v *Value) Float64() (float64, error) {
	if err := v.expect(ValueFloat64); err != nil {
		return 0, err
	}
	return math.Float64frombits(v.num), nil
}

// Decimal returns the binary decimal payload.
func (v *Value) Decimal() (Decimal, error) {
	if err := v.expect(ValueDecimal); err != nil {
		return Decimal{}, err
	}
	return v.dec, nil
}

// DecimalText returns the textual decimal payload.
func (v *Value) DecimalText() (string, error) {
	if err := v.expect(ValueDecimalText); err != nil {
		return "", err
	}
	return v.str, nil
}

// WideText returns the UTF-16 payload without copying.
func (v *Value) WideText() ([]uint16, error) {
	if err := v.expect(ValueText); err != nil {
		return nil, err
	}
	return v.wide, nil
}

// Text returns the text payload transcoded to UTF-8.
func (v *Value) Text() (string, error) {
	if err := v.expect(ValueText); err != nil {
		return "", err
	}
	return utf16ToString(v.wide), nil
}

// Blob returns the binary payload without copying.
func (v *Value) Blob() ([]byte, error) {
	if err := v.expect(ValueBlob); err != nil {
		return nil, err
	}
	return v.blob, nil
}

// UUID returns the host representation of the UUID payload.
func (v *Value) UUID() (chunk.Hugeint, error) {
	if err := v.expect(ValueUUID); err != nil {
		return chunk.Hugeint{}, err
	}
	return v.uuid, nil
}

// Date returns days since epoch.
func (v *Value) Date() (int32, error) {
	if err := v.expect(ValueDate); err != nil {
		return 0, err
	}
	return int32(int64(v.num)), nil
}

// Time returns microseconds since midnight and the nanosecond remainder.
func (v *Value) Time() (int64, int32, error) {
	if err := v.expect(ValueTime); err != nil {
		return 0, 0, err
	}
	return int64(v.num), v.nanos, nil
}

// Timestamp returns microseconds since epoch and the nanosecond remainder.
func (v *Value) Timestamp() (int64, int32, error) {
	if err := v.expect(ValueTimestamp); err != nil {
		return 0, 0, err
	}
	return int64(v.num), v.nanos, nil
}

// Interface returns the payload as a plain Go value: nil, bool, the sized
// integer and float types, decimal.Decimal, string, []byte, uuid.UUID or
// time.Time. TIME values are returned on 0001-01-01 UTC.
func (v *Value) Interface() any {
	switch v.kind {
	case ValueNull:
		return nil
	case ValueBool:
		return v.num != 0
	case ValueInt8:
		return int8(int64(v.num))
	case ValueInt16:
		return int16(int64(v.num))
	case ValueInt32:
		return int32(int64(v.num))
	case ValueInt64:
		return int64(v.num)
	case ValueUint8:
		return uint8(v.num)
	case ValueUint16:
		return uint16(v.num)
	case ValueUint32:
		return uint32(v.num)
	case ValueUint64:
		return v.num
	case ValueFloat32:
		return math.Float32frombits(uint32(v.num))
	case ValueFloat64:
		return math.Float64frombits(v.num)
	case ValueDecimal:
		return decimal.NewFromBigInt(v.dec.Value.Big(), -int32(v.dec.Scale))
	case ValueDecimalText:
		d, err := decimal.NewFromString(v.str)
		if err != nil {
			return v.str
		}
		return d
	case ValueText:
		return utf16ToString(v.wide)
	case ValueBlob:
		return v.blob
	case ValueUUID:
		return uuid.UUID(chunk.UUIDBytes(v.uuid))
	case ValueDate:
		return time.Unix(int64(v.num)*86400, 0).UTC()
	case ValueTime:
		return time.Time{}.Add(time.Duration(int64(v.num))*time.Microsecond + time.Duration(v.nanos))
	case ValueTimestamp:
		return time.UnixMicro(int64(v.num)).Add(time.Duration(v.nanos)).UTC()
	}
	return nil
}

// String renders the payload for logs and the query CLI.
func (v *Value) String() string {
	switch v.kind {
	case ValueNull:
		return "NULL"
	case ValueDecimal:
		return v.dec.String()
	case ValueUUID:
		return uuid.UUID(chunk.UUIDBytes(v.uuid)).String()
	case ValueDate:
		return time.Unix(int64(v.num)*86400, 0).UTC().Format(time.DateOnly)
	case ValueTime:
		return v.Interface().(time.Time).Format("15:04:05.999999999")
	case ValueTimestamp:
		return v.Interface().(time.Time).Format("2006-01-02 15:04:05.999999999")
	}
	return fmt.Sprint(v.Interface())
}

// ValueOf converts a Go scalar to a Value. Supported: nil, bool, all sized
// and unsized integers, float32/64, string, []byte, time.Time,
// decimal.Decimal, uuid.UUID, Decimal, Int128 and Value itself.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case bool:
		return NewBool(t), nil
	case int:
		return NewInt64(int64(t)), nil
	case int8:
		return NewInt8(t), nil
	case int16:
		return NewInt16(t), nil
	case int32:
		return NewInt32(t), nil
	case int64:
		return NewInt64(t), nil
	case uint:
		return NewUint64(uint64(t)), nil
	case uint8:
		return NewUint8(t), nil
	case uint16:
		return NewUint16(t), nil
	case uint32:
		return NewUint32(t), nil
	case uint64:
		return NewUint64(t), nil
	case float32:
		return NewFloat32(t), nil
	case float64:
		return NewFloat64(t), nil
	case string:
		return NewText(t), nil
	case []byte:
		return NewBlob(t), nil
	case time.Time:
		return NewTimestampFromTime(t), nil
	case uuid.UUID:
		return NewUUIDFromBytes(t), nil
	case Decimal:
		return NewDecimal(t), nil
	case Int128:
		return NewDecimal(Decimal{Value: t, Width: MaxDecimalWidth}), nil
	case decimal.Decimal:
		return decimalValueOf(t)
	}
	return Value{}, protocolError(KindUnsupportedType, "cannot convert %T to a parameter value", x)
}

func decimalValueOf(d decimal.Decimal) (Value, error) {
	scale := 0
	if exp := d.Exponent(); exp < 0 {
		scale = int(-exp)
	}
	if scale > MaxDecimalWidth {
		return Value{}, protocolError(KindPrecision, "decimal %s has scale %d", d, scale)
	}
	unscaled, err := DecimalFromShopspring(d, scale)
	if err != nil {
		return Value{}, err
	}
	width := decimalWidthOf(unscaled, scale)
	if width > MaxDecimalWidth {
		return Value{}, protocolError(KindPrecision, "decimal %s needs %d digits", d, width)
	}
	return NewDecimal(Decimal{Value: unscaled, Width: uint8(width), Scale: uint8(scale)}), nil
}
