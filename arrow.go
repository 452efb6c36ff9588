package odbcscan

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"

	"github.com/slingdata-io/odbcscan/chunk"
)

// ValueFromArrow reads row of arr as a parameter value.
func ValueFromArrow(arr arrow.Array, row int) (Value, error) {
	if row < 0 || row >= arr.Len() {
		return Value{}, protocolError(KindShapeMismatch, "row %d out of range for array of length %d", row, arr.Len())
	}
	if arr.IsNull(row) {
		return NullValue(), nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return NewBool(a.Value(row)), nil
	case *array.Int8:
		return NewInt8(a.Value(row)), nil
	case *array.Int16:
		return NewInt16(a.Value(row)), nil
	case *array.Int32:
		return NewInt32(a.Value(row)), nil
	case *array.Int64:
		return NewInt64(a.Value(row)), nil
	case *array.Uint8:
		return NewUint8(a.Value(row)), nil
	case *array.Uint16:
		return NewUint16(a.Value(row)), nil
	case *array.Uint32:
		return NewUint32(a.Value(row)), nil
	case *array.Uint64:
		return NewUint64(a.Value(row)), nil
	case *array.Float32:
		return NewFloat32(a.Value(row)), nil
	case *array.Float64:
		return NewFloat64(a.Value(row)), nil
	case *array.String:
		return NewText(a.Value(row)), nil
	case *array.LargeString:
		return NewText(a.Value(row)), nil
	case *array.Binary:
		return NewBlob(append([]byte(nil), a.Value(row)...)), nil
	case *array.LargeBinary:
		return NewBlob(append([]byte(nil), a.Value(row)...)), nil
	case *array.FixedSizeBinary:
		b := a.Value(row)
		if len(b) != 16 {
			return Value{}, protocolError(KindUnsupportedType, "fixed size binary of width %d", len(b))
		}
		return NewUUIDFromBytes(uuid.UUID(b)), nil
	case *array.Decimal128:
		dt := a.DataType().(*arrow.Decimal128Type)
		n := a.Value(row)
		return NewDecimal(Decimal{
			Value: Int128{Lo: n.LowBits(), Hi: n.HighBits()},
			Width: uint8(dt.Precision),
			Scale: uint8(dt.Scale),
		}), nil
	case *array.Date32:
		return NewDate(int32(a.Value(row))), nil
	case *array.Date64:
		return NewDate(int32(int64(a.Value(row)) / (chunk.MicrosPerDay / 1000))), nil
	case *array.Time64:
		v := int64(a.Value(row))
		if a.DataType().(*arrow.Time64Type).Unit == arrow.Nanosecond {
			return NewTime(v/1000, int32(v%1000)), nil
		}
		return NewTime(v, 0), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return NewTimestampFromTime(a.Value(row).ToTime(unit)), nil
	}
	return Value{}, protocolError(KindUnsupportedType, "cannot convert arrow %s to a parameter value", arr.DataType())
}

// RecordValues extracts every column of row in rec as parameter values.
func RecordValues(rec arrow.Record, row int) ([]Value, error) {
	out := make([]Value, rec.NumCols())
	for i := range out {
		v, err := ValueFromArrow(rec.Column(i), row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
