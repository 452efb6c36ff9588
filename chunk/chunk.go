// Package chunk is the columnar host representation the scanner reads
// parameters from and writes results into: typed column vectors with a
// validity bitmap, grouped into fixed-capacity chunks.
package chunk

import (
	"fmt"
	"time"
)

// DefaultCapacity is the number of rows a chunk holds unless told otherwise.
const DefaultCapacity = 2048

// TypeID identifies a host logical type.
type TypeID uint8

const (
	TypeInvalid TypeID = iota
	TypeBoolean
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeUTinyInt
	TypeUSmallInt
	TypeUInteger
	TypeUBigInt
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeVarchar
	TypeBlob
	TypeUUID
	TypeDate
	TypeTime
	TypeTimestamp
	TypeTimestampNS
)

var typeNames = [...]string{
	TypeInvalid:     "INVALID",
	TypeBoolean:     "BOOLEAN",
	TypeTinyInt:     "TINYINT",
	TypeSmallInt:    "SMALLINT",
	TypeInteger:     "INTEGER",
	TypeBigInt:      "BIGINT",
	TypeUTinyInt:    "UTINYINT",
	TypeUSmallInt:   "USMALLINT",
	TypeUInteger:    "UINTEGER",
	TypeUBigInt:     "UBIGINT",
	TypeFloat:       "FLOAT",
	TypeDouble:      "DOUBLE",
	TypeDecimal:     "DECIMAL",
	TypeVarchar:     "VARCHAR",
	TypeBlob:        "BLOB",
	TypeUUID:        "UUID",
	TypeDate:        "DATE",
	TypeTime:        "TIME",
	TypeTimestamp:   "TIMESTAMP",
	TypeTimestampNS: "TIMESTAMP_NS",
}

func (id TypeID) String() string {
	if int(id) < len(typeNames) {
		return typeNames[id]
	}
	return fmt.Sprintf("TypeID(%d)", id)
}

// Type is a host logical type. Width and Scale are only meaningful for
// TypeDecimal.
type Type struct {
	ID    TypeID
	Width uint8
	Scale uint8
}

// Decimal returns a DECIMAL(width, scale) type.
func Decimal(width, scale uint8) Type {
	return Type{ID: TypeDecimal, Width: width, Scale: scale}
}

// Of returns the non-decimal type with id.
func Of(id TypeID) Type {
	return Type{ID: id}
}

func (t Type) String() string {
	if t.ID == TypeDecimal {
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Width, t.Scale)
	}
	return t.ID.String()
}

// Hugeint is a two's-complement 128-bit integer, used for DECIMAL(19..38)
// storage and for UUIDs (with the top bit flipped so that ordering of the
// signed value matches byte ordering of the UUID).
type Hugeint struct {
	Lower uint64
	Upper int64
}

// Interval bounds used for temporal storage.
const (
	MicrosPerSecond = int64(time.Second / time.Microsecond)
	MicrosPerDay    = 86400 * MicrosPerSecond
)

// Vector is one column of a chunk: typed storage plus a validity bitmap.
// Storage per type:
//
//	BOOLEAN          []bool
//	TINYINT..BIGINT  []int8 .. []int64
//	UTINYINT..UBIGINT []uint8 .. []uint64
//	FLOAT, DOUBLE    []float32, []float64
//	DECIMAL          []int16 / []int32 / []int64 / []Hugeint by width
//	VARCHAR          []string
//	BLOB             [][]byte
//	UUID             []Hugeint
//	DATE             []int32 days since epoch
//	TIME             []int64 microseconds since midnight
//	TIMESTAMP        []int64 microseconds since epoch
//	TIMESTAMP_NS     []int64 nanoseconds since epoch
type Vector struct {
	typ      Type
	validity []uint64
	data     any
	capacity int
}

// NewVector allocates a vector for capacity rows, all valid.
func NewVector(t Type, capacity int) *Vector {
	v := &Vector{
		typ:      t,
		validity: make([]uint64, (capacity+63)/64),
		data:     newStorage(t, capacity),
		capacity: capacity,
	}
	v.resetValidity()
	return v
}

func newStorage(t Type, n int) any {
	switch t.ID {
	case TypeBoolean:
		return make([]bool, n)
	case TypeTinyInt:
		return make([]int8, n)
	case TypeSmallInt:
		return make([]int16, n)
	case TypeInteger:
		return make([]int32, n)
	case TypeBigInt:
		return make([]int64, n)
	case TypeUTinyInt:
		return make([]uint8, n)
	case TypeUSmallInt:
		return make([]uint16, n)
	case TypeUInteger:
		return make([]uint32, n)
	case TypeUBigInt:
		return make([]uint64, n)
	case TypeFloat:
		return make([]float32, n)
	case TypeDouble:
		return make([]float64, n)
	case TypeDecimal:
		switch {
		case t.Width <= 4:
			return make([]int16, n)
		case t.Width <= 9:
			return make([]int32, n)
		case t.Width <= 18:
			return make([]int64, n)
		default:
			return make([]Hugeint, n)
		}
	case TypeVarchar:
		return make([]string, n)
	case TypeBlob:
		return make([][]byte, n)
	case TypeUUID:
		return make([]Hugeint, n)
	case TypeDate:
		return make([]int32, n)
	case TypeTime, TypeTimestamp, TypeTimestampNS:
		return make([]int64, n)
	}
	panic(fmt.Sprintf("chunk: no storage for type %s", t))
}

// Type returns the vector's logical type.
func (v *Vector) Type() Type { return v.typ }

// Capacity returns the number of rows the vector can hold.
func (v *Vector) Capacity() int { return v.capacity }

// SetNull marks row invalid.
func (v *Vector) SetNull(row int) {
	v.validity[row>>6] &^= 1 << (uint(row) & 63)
}

// SetValid marks row valid.
func (v *Vector) SetValid(row int) {
	v.validity[row>>6] |= 1 << (uint(row) & 63)
}

// IsValid reports whether row holds a value.
func (v *Vector) IsValid(row int) bool {
	return v.validity[row>>6]&(1<<(uint(row)&63)) != 0
}

// Validity returns the raw bitmap, one bit per row, least significant first.
func (v *Vector) Validity() []uint64 { return v.validity }

func (v *Vector) resetValidity() {
	for i := range v.validity {
		v.validity[i] = ^uint64(0)
	}
}

// Data returns the typed storage of v. It panics when T does not match the
// vector's physical type.
func Data[T any](v *Vector) []T {
	d, ok := v.data.([]T)
	if !ok {
		panic(fmt.Sprintf("chunk: vector of type %s does not store %T", v.typ, *new(T)))
	}
	return d
}

// Set stores val at row and marks it valid.
func Set[T any](v *Vector, row int, val T) {
	Data[T](v)[row] = val
	v.SetValid(row)
}

// Value returns the Go value at row, or nil when the row is null. Temporal
// types are returned as time.Time in UTC (TIME on 0001-01-01), UUIDs in their
// unflipped 16-byte big-endian form.
func (v *Vector) Value(row int) any {
	if !v.IsValid(row) {
		return nil
	}
	switch d := v.data.(type) {
	case []int32:
		if v.typ.ID == TypeDate {
			return time.Unix(int64(d[row])*86400, 0).UTC()
		}
		return d[row]
	case []int64:
		switch v.typ.ID {
		case TypeTime:
			return time.Time{}.Add(time.Duration(d[row]) * time.Microsecond)
		case TypeTimestamp:
			return time.UnixMicro(d[row]).UTC()
		case TypeTimestampNS:
			return time.Unix(0, d[row]).UTC()
		}
		return d[row]
	case []Hugeint:
		if v.typ.ID == TypeUUID {
			return UUIDBytes(d[row])
		}
		return d[row]
	case []bool:
		return d[row]
	case []int8:
		return d[row]
	case []int16:
		return d[row]
	case []uint8:
		return d[row]
	case []uint16:
		return d[row]
	case []uint32:
		return d[row]
	case []uint64:
		return d[row]
	case []float32:
		return d[row]
	case []float64:
		return d[row]
	case []string:
		return d[row]
	case [][]byte:
		return d[row]
	}
	return nil
}

// UUIDBytes converts the flipped host representation of a UUID back to its
// 16 big-endian bytes.
func UUIDBytes(h Hugeint) [16]byte {
	var b [16]byte
	upper := uint64(h.Upper) ^ (1 << 63)
	for i := 0; i < 8; i++ {
		b[i] = byte(upper >> (56 - 8*i))
		b[8+i] = byte(h.Lower >> (56 - 8*i))
	}
	return b
}

// UUIDFromBytes builds the flipped host representation of a UUID.
func UUIDFromBytes(b [16]byte) Hugeint {
	var upper, lower uint64
	for i := 0; i < 8; i++ {
		upper = upper<<8 | uint64(b[i])
		lower = lower<<8 | uint64(b[8+i])
	}
	return Hugeint{Lower: lower, Upper: int64(upper ^ (1 << 63))}
}

// Chunk is a set of equally sized column vectors.
type Chunk struct {
	vectors  []*Vector
	size     int
	capacity int
}

// New allocates a chunk with DefaultCapacity rows for types.
func New(types []Type) *Chunk {
	return NewWithCapacity(types, DefaultCapacity)
}

// NewWithCapacity allocates a chunk with room for capacity rows.
func NewWithCapacity(types []Type, capacity int) *Chunk {
	c := &Chunk{
		vectors:  make([]*Vector, len(types)),
		capacity: capacity,
	}
	for i, t := range types {
		c.vectors[i] = NewVector(t, capacity)
	}
	return c
}

// ColumnCount returns the number of vectors.
func (c *Chunk) ColumnCount() int { return len(c.vectors) }

// Vector returns column i.
func (c *Chunk) Vector(i int) *Vector { return c.vectors[i] }

// Types returns the column types.
func (c *Chunk) Types() []Type {
	out := make([]Type, len(c.vectors))
	for i, v := range c.vectors {
		out[i] = v.typ
	}
	return out
}

// Size returns the number of rows in use.
func (c *Chunk) Size() int { return c.size }

// SetSize sets the number of rows in use.
func (c *Chunk) SetSize(n int) {
	if n > c.capacity {
		panic(fmt.Sprintf("chunk: size %d exceeds capacity %d", n, c.capacity))
	}
	c.size = n
}

// Capacity returns the maximum number of rows.
func (c *Chunk) Capacity() int { return c.capacity }

// Reset empties the chunk and marks every row valid again.
func (c *Chunk) Reset() {
	c.size = 0
	for _, v := range c.vectors {
		v.resetValidity()
	}
}
