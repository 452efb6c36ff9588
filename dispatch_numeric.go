package odbcscan

import (
	"unsafe"

	"github.com/slingdata-io/odbcscan/chunk"
)

// boolHandler moves BOOLEAN through SQL_C_BIT.
type boolHandler struct{}

func (boolHandler) extract(vec *chunk.Vector, row int) Value {
	return NewBool(chunk.Data[bool](vec)[row])
}

func (boolHandler) store(vec *chunk.Vector, row int, v *Value) error {
	b, err := v.Bool()
	if err != nil {
		return err
	}
	chunk.Set(vec, row, b)
	return nil
}

func (boolHandler) bind(b *binder, ordinal int, v *Value) error {
	p := new(byte)
	if v.num != 0 {
		*p = 1
	}
	return bindFixed(b, ordinal, v, p, SQL_C_BIT, SQL_BIT, 1, 0)
}

func (boolHandler) fetch(f *fetcher, ordinal int, _ *ColumnDescriptor, _ chunk.Type) (Value, error) {
	var bit byte
	null, err := f.getFixed(ordinal, SQL_C_BIT, unsafe.Pointer(&bit), 1)
	if err != nil || null {
		return NullValue(), err
	}
	// drivers may hand back any non-zero byte; only 1 counts as true
	return NewBool(bit == 1), nil
}

type integer interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

// fixedHandler marshals integer and floating point types whose C and host
// representations are identical.
type fixedHandler[T integer | float32 | float64] struct {
	kind    ValueKind
	cType   SQLSMALLINT
	sqlType SQLSMALLINT
	colSize SQLULEN

	toValue   func(T) Value
	fromValue func(*Value) (T, error)
	// promote widens integers to a decimal for DECIMAL/NUMERIC markers;
	// nil for floats.
	promote func(T) Decimal
}

func intHandlerOf[T integer](kind ValueKind, cType, sqlType SQLSMALLINT, colSize SQLULEN) *fixedHandler[T] {
	return &fixedHandler[T]{
		kind:      kind,
		cType:     cType,
		sqlType:   sqlType,
		colSize:   colSize,
		toValue:   func(x T) Value { return newInteger(kind, x) },
		fromValue: func(v *Value) (T, error) { return intPayload[T](v, kind) },
		promote:   func(x T) Decimal { return PromoteInteger(x) },
	}
}

func floatHandlerOf[T float32 | float64](kind ValueKind, cType, sqlType SQLSMALLINT, colSize SQLULEN, toValue func(T) Value, fromValue func(*Value) (T, error)) *fixedHandler[T] {
	return &fixedHandler[T]{
		kind:      kind,
		cType:     cType,
		sqlType:   sqlType,
		colSize:   colSize,
		toValue:   toValue,
		fromValue: fromValue,
	}
}

func (h *fixedHandler[T]) extract(vec *chunk.Vector, row int) Value {
	return h.toValue(chunk.Data[T](vec)[row])
}

func (h *fixedHandler[T]) store(vec *chunk.Vector, row int, v *Value) error {
	x, err := h.fromValue(v)
	if err != nil {
		return err
	}
	chunk.Set(vec, row, x)
	return nil
}

func (h *fixedHandler[T]) bind(b *binder, ordinal int, v *Value) error {
	x, err := h.fromValue(v)
	if err != nil {
		return &OpError{Op: "bind", Param: ordinal, Err: err}
	}
	if d := b.describe(ordinal); h.promote != nil && d.Known && isDecimalType(d.SQLType) {
		return bindDecimal(b, ordinal, v, h.promote(x), "")
	}
	p := new(T)
	*p = x
	return bindFixed(b, ordinal, v, p, h.cType, h.sqlType, h.colSize, 0)
}

func (h *fixedHandler[T]) fetch(f *fetcher, ordinal int, _ *ColumnDescriptor, _ chunk.Type) (Value, error) {
	var x T
	null, err := f.getFixed(ordinal, h.cType, unsafe.Pointer(&x), int(unsafe.Sizeof(x)))
	if err != nil || null {
		return NullValue(), err
	}
	return h.toValue(x), nil
}
