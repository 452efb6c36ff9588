package odbcscan

import (
	"encoding/binary"
	"math"
	"strings"
	"unsafe"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"
)

// MaxDecimalWidth is the widest decimal the host can store.
const MaxDecimalWidth = 38

// Decimal is an unscaled 128-bit value with its width (precision) and scale.
type Decimal struct {
	Value Int128
	Width uint8
	Scale uint8
}

// String formats d with its scale applied.
func (d Decimal) String() string {
	return FormatDecimal(d.Value, int(d.Scale))
}

// StorageClass is the host integer size used for a given decimal width.
type StorageClass uint8

const (
	StorageInt16 StorageClass = iota
	StorageInt32
	StorageInt64
	StorageInt128
)

func (c StorageClass) String() string {
	switch c {
	case StorageInt16:
		return "int16"
	case StorageInt32:
		return "int32"
	case StorageInt64:
		return "int64"
	default:
		return "int128"
	}
}

// DecimalStorage routes a decimal width to its host storage class:
// up to 4 digits int16, 9 int32, 18 int64, 38 Int128. Wider is an error.
func DecimalStorage(width int) (StorageClass, error) {
	switch {
	case width <= 4:
		return StorageInt16, nil
	case width <= 9:
		return StorageInt32, nil
	case width <= 18:
		return StorageInt64, nil
	case width <= MaxDecimalWidth:
		return StorageInt128, nil
	}
	return 0, protocolError(KindPrecision, "decimal width %d exceeds maximum %d", width, MaxDecimalWidth)
}

// PromoteInteger converts any integer to a scale-0 decimal whose width holds
// the full range of the integer's size class: 8-bit -> 4, 16-bit -> 9,
// 32-bit -> 18, 64-bit -> 38.
func PromoteInteger[T constraints.Integer](v T) Decimal {
	var width uint8
	switch unsafe.Sizeof(v) {
	case 1:
		width = 4
	case 2:
		width = 9
	case 4:
		width = 18
	default:
		width = 38
	}
	var val Int128
	if v < 0 {
		val = Int128FromInt64(int64(v))
	} else {
		val = Int128FromUint64(uint64(v))
	}
	return Decimal{Value: val, Width: width}
}

// DecodeNumericStruct reads the driver's SQL_NUMERIC_STRUCT. The 16-byte
// magnitude is little-endian; a sign byte of 0 means negative.
func DecodeNumericStruct(ns *SQL_NUMERIC_STRUCT) Int128 {
	b := (*[16]byte)(unsafe.Pointer(&ns.Val[0]))
	v := Int128{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
	if ns.Sign == 0 {
		v = v.Neg()
	}
	return v
}

// EncodeNumericStruct fills a SQL_NUMERIC_STRUCT from an unscaled value.
func EncodeNumericStruct(v Int128, precision, scale int) SQL_NUMERIC_STRUCT {
	ns := SQL_NUMERIC_STRUCT{
		Precision: SQLCHAR(precision),
		Scale:     SQLSCHAR(scale),
		Sign:      1,
	}
	if v.Sign() < 0 {
		ns.Sign = 0
		v = v.Neg()
	}
	b := (*[16]byte)(unsafe.Pointer(&ns.Val[0]))
	binary.LittleEndian.PutUint64(b[0:8], v.Lo)
	binary.LittleEndian.PutUint64(b[8:16], uint64(v.Hi))
	return ns
}

// ParseDecimalText parses decimal text into an unscaled value and the scale
// implied by the position of the separator. The sign and a single '.' are
// stripped first; any other non-digit, or a value beyond 38 digits, yields
// zero. Drivers are trusted to produce well-formed text.
func ParseDecimalText(s string) (Int128, int) {
	s = strings.TrimSpace(s)
	negative := false
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}

	scale := 0
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		scale = len(s) - dot - 1
		s = s[:dot] + s[dot+1:]
	}
	if s == "" {
		return Int128{}, 0
	}

	var hi, lo uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return Int128{}, 0
		}
		var ok bool
		hi, lo, ok = mulAdd10(hi, lo, uint64(c-'0'))
		if !ok {
			return Int128{}, 0
		}
	}
	return fromMagnitude(hi, lo, negative), scale
}

// Rescale aligns v from scale from to scale to. Increasing the scale can
// overflow; decreasing truncates toward zero.
func Rescale(v Int128, from, to int) (Int128, error) {
	switch {
	case from == to:
		return v, nil
	case from < to:
		out, ok := v.MulPow10(to - from)
		if !ok {
			return Int128{}, protocolError(KindPrecision, "value %s does not fit at scale %d", FormatDecimal(v, from), to)
		}
		return out, nil
	default:
		return v.QuoPow10(from - to), nil
	}
}

// FormatDecimal renders an unscaled value with scale fractional digits.
func FormatDecimal(v Int128, scale int) string {
	d := decimal.NewFromBigInt(v.Big(), int32(-scale))
	return d.StringFixed(int32(scale))
}

// DecimalFromShopspring converts d to an unscaled value at scale.
func DecimalFromShopspring(d decimal.Decimal, scale int) (Int128, error) {
	scaled := d.Shift(int32(scale)).Truncate(0)
	v, ok := Int128FromBig(scaled.BigInt())
	if !ok {
		return Int128{}, protocolError(KindPrecision, "decimal %s does not fit in 38 digits", d.String())
	}
	return v, nil
}

// decimalWidthOf returns the number of digits needed for v, at least scale+1.
func decimalWidthOf(v Int128, scale int) int {
	hi, lo := v.abs()
	n := 0
	for hi != 0 || lo != 0 {
		hi, lo, _ = divMod10(hi, lo)
		n++
	}
	if n <= scale {
		n = scale + 1
	}
	return n
}

// narrowDecimal stores an unscaled value in the storage class for width.
func narrowDecimal(v Int128, width int) (any, error) {
	class, err := DecimalStorage(width)
	if err != nil {
		return nil, err
	}
	if class == StorageInt128 {
		return v, nil
	}
	i, ok := v.Int64()
	switch class {
	case StorageInt16:
		ok = ok && i >= math.MinInt16 && i <= math.MaxInt16
	case StorageInt32:
		ok = ok && i >= math.MinInt32 && i <= math.MaxInt32
	}
	if !ok {
		return nil, protocolError(KindPrecision, "value %s overflows %s storage", v, class)
	}
	switch class {
	case StorageInt16:
		return int16(i), nil
	case StorageInt32:
		return int32(i), nil
	default:
		return i, nil
	}
}
