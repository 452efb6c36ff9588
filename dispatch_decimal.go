package odbcscan

import (
	"unsafe"

	"github.com/slingdata-io/odbcscan/chunk"
)

// decimalHandler marshals DECIMAL(width, scale). Parameters travel as
// SQL_NUMERIC_STRUCT with precision/scale written into the parameter
// descriptor, or as text for vendors that mishandle binary numerics.
// Columns are read as binary numerics, binary numerics with precision/scale
// forced through the row descriptor, or text, per quirks.
type decimalHandler struct{}

func (decimalHandler) extract(vec *chunk.Vector, row int) Value {
	t := vec.Type()
	return NewDecimal(Decimal{Value: decimalCell(vec, row), Width: t.Width, Scale: t.Scale})
}

// decimalCell widens the stored decimal at row to 128 bits.
func decimalCell(vec *chunk.Vector, row int) Int128 {
	class, _ := DecimalStorage(int(vec.Type().Width))
	switch class {
	case StorageInt16:
		return Int128FromInt64(int64(chunk.Data[int16](vec)[row]))
	case StorageInt32:
		return Int128FromInt64(int64(chunk.Data[int32](vec)[row]))
	case StorageInt64:
		return Int128FromInt64(chunk.Data[int64](vec)[row])
	default:
		h := chunk.Data[chunk.Hugeint](vec)[row]
		return Int128{Lo: h.Lower, Hi: h.Upper}
	}
}

func (decimalHandler) store(vec *chunk.Vector, row int, v *Value) error {
	t := vec.Type()
	var unscaled Int128
	var scale int
	switch v.kind {
	case ValueDecimal:
		unscaled, scale = v.dec.Value, int(v.dec.Scale)
	case ValueDecimalText:
		unscaled, scale = ParseDecimalText(v.str)
	default:
		return protocolError(KindTypeMismatch, "value is %s, not %s", v.kind, ValueDecimal)
	}
	unscaled, err := Rescale(unscaled, scale, int(t.Scale))
	if err != nil {
		return err
	}
	narrowed, err := narrowDecimal(unscaled, int(t.Width))
	if err != nil {
		return err
	}
	switch x := narrowed.(type) {
	case int16:
		chunk.Set(vec, row, x)
	case int32:
		chunk.Set(vec, row, x)
	case int64:
		chunk.Set(vec, row, x)
	case Int128:
		chunk.Set(vec, row, chunk.Hugeint{Lower: x.Lo, Upper: x.Hi})
	}
	return nil
}

func (decimalHandler) bind(b *binder, ordinal int, v *Value) error {
	switch v.kind {
	case ValueDecimal:
		return bindDecimal(b, ordinal, v, v.dec, "")
	case ValueDecimalText:
		unscaled, scale := ParseDecimalText(v.str)
		d := Decimal{Value: unscaled, Scale: uint8(scale), Width: uint8(min(decimalWidthOf(unscaled, scale), MaxDecimalWidth))}
		return bindDecimal(b, ordinal, v, d, v.str)
	}
	return &OpError{Op: "bind", Param: ordinal, Err: protocolError(KindTypeMismatch, "value is %s, not %s", v.kind, ValueDecimal)}
}

// bindDecimal binds d, as text when the vendor wants decimal parameters as
// characters. text, when set, is the caller's original spelling.
func bindDecimal(b *binder, ordinal int, v *Value, d Decimal, text string) error {
	width, scale := int(d.Width), int(d.Scale)
	if width == 0 {
		width = MaxDecimalWidth
	}
	if width > MaxDecimalWidth {
		return &OpError{Op: "bind", Param: ordinal, Err: protocolError(KindPrecision, "decimal width %d exceeds maximum %d", width, MaxDecimalWidth)}
	}

	if b.quirks.DecimalParamsAsChars {
		if text == "" {
			text = FormatDecimal(d.Value, scale)
		}
		return bindWide(b, ordinal, v, stringToUTF16(text), SQL_DECIMAL, SQLULEN(width), SQLSMALLINT(scale))
	}

	ns := new(SQL_NUMERIC_STRUCT)
	*ns = EncodeNumericStruct(d.Value, width, scale)
	if err := bindFixed(b, ordinal, v, ns, SQL_C_NUMERIC, SQL_NUMERIC, SQLULEN(width), SQLSMALLINT(scale)); err != nil {
		return err
	}

	// SQLBindParameter leaves the APD with the driver's default precision
	// and scale for SQL_C_NUMERIC; set them explicitly. DATA_PTR goes last
	// since changing the other fields unbinds the record.
	desc, ret := b.api.GetStmtAttr(b.stmt, SQL_ATTR_APP_PARAM_DESC)
	if !IsSuccess(ret) {
		return &OpError{Op: "SQLGetStmtAttr(APP_PARAM_DESC)", Param: ordinal, Return: ret, Err: NewError(b.api, SQL_HANDLE_STMT, SQLHANDLE(b.stmt))}
	}
	return setNumericDesc(b.api, SQLHDESC(desc), ordinal, width, scale, v.ptr)
}

// setNumericDesc configures descriptor record rec as SQL_C_NUMERIC with the
// given precision and scale, pointing at p.
func setNumericDesc(api API, desc SQLHDESC, rec, precision, scale int, p unsafe.Pointer) error {
	fields := []struct {
		id    SQLSMALLINT
		value uintptr
		name  string
	}{
		{SQL_DESC_TYPE, uintptr(SQL_C_NUMERIC), "SQL_DESC_TYPE"},
		{SQL_DESC_PRECISION, uintptr(precision), "SQL_DESC_PRECISION"},
		{SQL_DESC_SCALE, uintptr(scale), "SQL_DESC_SCALE"},
		{SQL_DESC_DATA_PTR, uintptr(p), "SQL_DESC_DATA_PTR"},
	}
	for _, fld := range fields {
		if ret := api.SetDescField(desc, SQLSMALLINT(rec), fld.id, fld.value, 0); !IsSuccess(ret) {
			return &OpError{
				Op:     "SQLSetDescField(" + fld.name + ")",
				Param:  rec,
				Return: ret,
				Err:    NewError(api, SQL_HANDLE_DESC, SQLHANDLE(desc)),
			}
		}
	}
	return nil
}

func (decimalHandler) fetch(f *fetcher, ordinal int, col *ColumnDescriptor, t chunk.Type) (Value, error) {
	var (
		unscaled Int128
		scale    int
	)
	switch {
	case f.quirks.DecimalColumnsAsChars:
		units, null, err := f.fetchWideText(ordinal)
		if err != nil || null {
			return NullValue(), err
		}
		unscaled, scale = ParseDecimalText(utf16ToString(units))

	case f.quirks.DecimalColumnsPrecisionThroughARD:
		var ns SQL_NUMERIC_STRUCT
		null, err := f.fetchNumericThroughARD(ordinal, t, &ns)
		if err != nil || null {
			return NullValue(), err
		}
		unscaled, scale = DecodeNumericStruct(&ns), int(ns.Scale)

	default:
		var ns SQL_NUMERIC_STRUCT
		null, err := f.getFixed(ordinal, SQL_C_NUMERIC, unsafe.Pointer(&ns), int(unsafe.Sizeof(ns)))
		if err != nil || null {
			return NullValue(), err
		}
		unscaled, scale = DecodeNumericStruct(&ns), int(ns.Scale)
	}

	unscaled, err := Rescale(unscaled, scale, int(t.Scale))
	if err != nil {
		return Value{}, &OpError{Op: "fetch decimal", Column: ordinal, Err: err}
	}
	return NewDecimal(Decimal{Value: unscaled, Width: t.Width, Scale: t.Scale}), nil
}

// fetchNumericThroughARD writes the column's precision and scale into the
// application row descriptor and reads the cell with SQL_ARD_TYPE. The
// record is unbound again afterwards so later fetches do not write into ns.
func (f *fetcher) fetchNumericThroughARD(ordinal int, t chunk.Type, ns *SQL_NUMERIC_STRUCT) (bool, error) {
	desc, ret := f.api.GetStmtAttr(f.stmt, SQL_ATTR_APP_ROW_DESC)
	if !IsSuccess(ret) {
		return false, f.fail("SQLGetStmtAttr(APP_ROW_DESC)", ordinal, ret)
	}
	ard := SQLHDESC(desc)
	if err := setNumericDesc(f.api, ard, ordinal, int(t.Width), int(t.Scale), unsafe.Pointer(ns)); err != nil {
		return false, err
	}
	defer f.api.SetDescField(ard, SQLSMALLINT(ordinal), SQL_DESC_DATA_PTR, 0, 0)

	return f.getFixed(ordinal, SQL_ARD_TYPE, unsafe.Pointer(ns), int(unsafe.Sizeof(*ns)))
}
