package odbcscan

import (
	"unsafe"

	"github.com/slingdata-io/odbcscan/chunk"
)

// textHandler moves VARCHAR as UTF-16 in both directions. Narrow character
// transport is never used so that the driver manager does the code page
// work.
type textHandler struct{}

func (textHandler) extract(vec *chunk.Vector, row int) Value {
	return NewText(chunk.Data[string](vec)[row])
}

func (textHandler) store(vec *chunk.Vector, row int, v *Value) error {
	var s string
	switch v.kind {
	case ValueText:
		s = utf16ToString(v.wide)
	case ValueDecimalText:
		s = v.str
	default:
		return protocolError(KindTypeMismatch, "value is %s, not %s", v.kind, ValueText)
	}
	chunk.Set(vec, row, s)
	return nil
}

func (textHandler) bind(b *binder, ordinal int, v *Value) error {
	units, err := v.WideText()
	if err != nil {
		return &OpError{Op: "bind", Param: ordinal, Err: err}
	}
	sqlType := SQL_WVARCHAR
	if longParam(b.quirks, len(units)*2) {
		sqlType = SQL_WLONGVARCHAR
	}
	return bindWide(b, ordinal, v, units, sqlType, SQLULEN(len(units)), 0)
}

func (textHandler) fetch(f *fetcher, ordinal int, _ *ColumnDescriptor, _ chunk.Type) (Value, error) {
	units, null, err := f.fetchWideText(ordinal)
	if err != nil || null {
		return NullValue(), err
	}
	return NewWideText(units), nil
}

// blobHandler moves BLOB as SQL_C_BINARY.
type blobHandler struct{}

func (blobHandler) extract(vec *chunk.Vector, row int) Value {
	return NewBlob(chunk.Data[[]byte](vec)[row])
}

func (blobHandler) store(vec *chunk.Vector, row int, v *Value) error {
	b, err := v.Blob()
	if err != nil {
		return err
	}
	chunk.Set(vec, row, b)
	return nil
}

func (blobHandler) bind(b *binder, ordinal int, v *Value) error {
	data, err := v.Blob()
	if err != nil {
		return &OpError{Op: "bind", Param: ordinal, Err: err}
	}
	sqlType := SQL_VARBINARY
	if longParam(b.quirks, len(data)) {
		sqlType = SQL_LONGVARBINARY
	}
	// the driver needs a valid pointer even for zero bytes
	buf := data
	if len(buf) == 0 {
		buf = make([]byte, 1)
	}
	v.stage(buf, unsafe.Pointer(&buf[0]), SQLLEN(len(data)))
	colSize := SQLULEN(len(data))
	if colSize == 0 {
		colSize = 1
	}
	return b.bind(ordinal, v, SQL_C_BINARY, sqlType, colSize, 0, SQLLEN(len(buf)))
}

func (blobHandler) fetch(f *fetcher, ordinal int, _ *ColumnDescriptor, _ chunk.Type) (Value, error) {
	data, null, err := f.fetchBinary(ordinal)
	if err != nil || null {
		return NullValue(), err
	}
	return NewBlob(data), nil
}

// longParam reports whether a variable-length parameter of n bytes must be
// declared as a LONG type for this vendor.
func longParam(q Quirks, n int) bool {
	return q.VarLenParamsLongThresholdBytes > 0 && n > q.VarLenParamsLongThresholdBytes
}
