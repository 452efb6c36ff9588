package chunk

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// uuidExtensionName tags FixedSizeBinary(16) fields that carry UUIDs.
const uuidExtensionName = "arrow.uuid"

// ArrowType maps a host type to its arrow equivalent.
func ArrowType(t Type) (arrow.DataType, error) {
	switch t.ID {
	case TypeBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case TypeTinyInt:
		return arrow.PrimitiveTypes.Int8, nil
	case TypeSmallInt:
		return arrow.PrimitiveTypes.Int16, nil
	case TypeInteger:
		return arrow.PrimitiveTypes.Int32, nil
	case TypeBigInt:
		return arrow.PrimitiveTypes.Int64, nil
	case TypeUTinyInt:
		return arrow.PrimitiveTypes.Uint8, nil
	case TypeUSmallInt:
		return arrow.PrimitiveTypes.Uint16, nil
	case TypeUInteger:
		return arrow.PrimitiveTypes.Uint32, nil
	case TypeUBigInt:
		return arrow.PrimitiveTypes.Uint64, nil
	case TypeFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case TypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case TypeDecimal:
		return &arrow.Decimal128Type{Precision: int32(t.Width), Scale: int32(t.Scale)}, nil
	case TypeVarchar:
		return arrow.BinaryTypes.String, nil
	case TypeBlob:
		return arrow.BinaryTypes.Binary, nil
	case TypeUUID:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}, nil
	case TypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	case TypeTime:
		return arrow.FixedWidthTypes.Time64us, nil
	case TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}, nil
	case TypeTimestampNS:
		return &arrow.TimestampType{Unit: arrow.Nanosecond}, nil
	}
	return nil, fmt.Errorf("chunk: type %s has no arrow equivalent", t)
}

// Schema builds the arrow schema for columns named names with types.
func Schema(names []string, types []Type) (*arrow.Schema, error) {
	if len(names) != len(types) {
		return nil, fmt.Errorf("chunk: %d names for %d columns", len(names), len(types))
	}
	fields := make([]arrow.Field, len(types))
	for i, t := range types {
		dt, err := ArrowType(t)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: names[i], Type: dt, Nullable: true}
		if t.ID == TypeUUID {
			fields[i].Metadata = arrow.MetadataFrom(map[string]string{
				"ARROW:extension:name": uuidExtensionName,
			})
		}
	}
	return arrow.NewSchema(fields, nil), nil
}

// Record exports the first Size() rows of c as an arrow record. The caller
// owns the returned record and must Release it.
func (c *Chunk) Record(mem memory.Allocator, names []string) (arrow.Record, error) {
	schema, err := Schema(names, c.Types())
	if err != nil {
		return nil, err
	}
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for i, v := range c.vectors {
		if err := appendVector(b.Field(i), v, c.size); err != nil {
			return nil, fmt.Errorf("chunk: column %q: %w", names[i], err)
		}
	}
	return b.NewRecord(), nil
}

func appendVector(fb array.Builder, v *Vector, n int) error {
	fb.Reserve(n)
	for row := 0; row < n; row++ {
		if !v.IsValid(row) {
			fb.AppendNull()
			continue
		}
		switch b := fb.(type) {
		case *array.BooleanBuilder:
			b.Append(Data[bool](v)[row])
		case *array.Int8Builder:
			b.Append(Data[int8](v)[row])
		case *array.Int16Builder:
			b.Append(Data[int16](v)[row])
		case *array.Int32Builder:
			b.Append(Data[int32](v)[row])
		case *array.Int64Builder:
			b.Append(Data[int64](v)[row])
		case *array.Uint8Builder:
			b.Append(Data[uint8](v)[row])
		case *array.Uint16Builder:
			b.Append(Data[uint16](v)[row])
		case *array.Uint32Builder:
			b.Append(Data[uint32](v)[row])
		case *array.Uint64Builder:
			b.Append(Data[uint64](v)[row])
		case *array.Float32Builder:
			b.Append(Data[float32](v)[row])
		case *array.Float64Builder:
			b.Append(Data[float64](v)[row])
		case *array.Decimal128Builder:
			b.Append(decimalAt(v, row))
		case *array.StringBuilder:
			b.Append(Data[string](v)[row])
		case *array.BinaryBuilder:
			b.Append(Data[[]byte](v)[row])
		case *array.FixedSizeBinaryBuilder:
			u := UUIDBytes(Data[Hugeint](v)[row])
			b.Append(u[:])
		case *array.Date32Builder:
			b.Append(arrow.Date32(Data[int32](v)[row]))
		case *array.Time64Builder:
			b.Append(arrow.Time64(Data[int64](v)[row]))
		case *array.TimestampBuilder:
			b.Append(arrow.Timestamp(Data[int64](v)[row]))
		default:
			return fmt.Errorf("unsupported builder %T", fb)
		}
	}
	return nil
}

func decimalAt(v *Vector, row int) decimal128.Num {
	switch d := v.data.(type) {
	case []int16:
		return decimal128.FromI64(int64(d[row]))
	case []int32:
		return decimal128.FromI64(int64(d[row]))
	case []int64:
		return decimal128.FromI64(d[row])
	case []Hugeint:
		return decimal128.New(d[row].Upper, d[row].Lower)
	}
	return decimal128.Num{}
}
