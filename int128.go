package odbcscan

import (
	"math"
	"math/big"
	"math/bits"
	"strconv"
)

// Int128 is a two's-complement 128-bit signed integer, the host's native
// storage for DECIMAL(38) values and the unscaled form of every decimal the
// codec handles.
type Int128 struct {
	Lo uint64
	Hi int64
}

var (
	// MaxInt128 is 2^127 - 1.
	MaxInt128 = Int128{Lo: math.MaxUint64, Hi: math.MaxInt64}
	// MinInt128 is -2^127.
	MinInt128 = Int128{Lo: 0, Hi: math.MinInt64}
)

// Int128FromInt64 sign-extends v.
func Int128FromInt64(v int64) Int128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Int128{Lo: uint64(v), Hi: hi}
}

// Int128FromUint64 zero-extends v.
func Int128FromUint64(v uint64) Int128 {
	return Int128{Lo: v}
}

// Neg returns -x using bitwise-not plus one, carrying from the low word into
// the high word. Neg(MinInt128) wraps to MinInt128.
func (x Int128) Neg() Int128 {
	lo, carry := bits.Add64(^x.Lo, 1, 0)
	return Int128{Lo: lo, Hi: int64(uint64(^x.Hi) + carry)}
}

// Add returns x + y, wrapping on overflow.
func (x Int128) Add(y Int128) Int128 {
	lo, carry := bits.Add64(x.Lo, y.Lo, 0)
	hi, _ := bits.Add64(uint64(x.Hi), uint64(y.Hi), carry)
	return Int128{Lo: lo, Hi: int64(hi)}
}

// Sub returns x - y, wrapping on overflow.
func (x Int128) Sub(y Int128) Int128 {
	lo, borrow := bits.Sub64(x.Lo, y.Lo, 0)
	hi, _ := bits.Sub64(uint64(x.Hi), uint64(y.Hi), borrow)
	return Int128{Lo: lo, Hi: int64(hi)}
}

// Sign returns -1, 0 or +1.
func (x Int128) Sign() int {
	switch {
	case x.Hi < 0:
		return -1
	case x.Hi == 0 && x.Lo == 0:
		return 0
	default:
		return 1
	}
}

// IsZero reports whether x == 0.
func (x Int128) IsZero() bool {
	return x.Hi == 0 && x.Lo == 0
}

// Cmp compares x and y and returns -1, 0 or +1.
func (x Int128) Cmp(y Int128) int {
	switch {
	case x.Hi < y.Hi:
		return -1
	case x.Hi > y.Hi:
		return 1
	case x.Lo < y.Lo:
		return -1
	case x.Lo > y.Lo:
		return 1
	}
	return 0
}

// Int64 returns x as int64 and whether it fits.
func (x Int128) Int64() (int64, bool) {
	v := int64(x.Lo)
	return v, (x.Hi == 0 && v >= 0) || (x.Hi == -1 && v < 0)
}

// abs returns the magnitude of x as an unsigned 128-bit pair.
func (x Int128) abs() (hi, lo uint64) {
	if x.Hi < 0 {
		x = x.Neg()
	}
	return uint64(x.Hi), x.Lo
}

// mulAdd10 computes (hi:lo)*10 + d on an unsigned 128-bit magnitude.
// ok is false when the result does not fit in 127 bits.
func mulAdd10(hi, lo uint64, d uint64) (uint64, uint64, bool) {
	pHi, pLo := bits.Mul64(lo, 10)
	hHi, hLo := bits.Mul64(hi, 10)
	if hHi != 0 {
		return 0, 0, false
	}
	newHi, carry := bits.Add64(hLo, pHi, 0)
	if carry != 0 {
		return 0, 0, false
	}
	newLo, carry := bits.Add64(pLo, d, 0)
	newHi, carry = bits.Add64(newHi, 0, carry)
	if carry != 0 || newHi > math.MaxInt64 {
		return 0, 0, false
	}
	return newHi, newLo, true
}

// divMod10 divides the unsigned magnitude (hi:lo) by 10.
func divMod10(hi, lo uint64) (qHi, qLo, rem uint64) {
	qHi, r := bits.Div64(0, hi, 10)
	qLo, rem = bits.Div64(r, lo, 10)
	return qHi, qLo, rem
}

// fromMagnitude rebuilds a signed value from an unsigned magnitude.
func fromMagnitude(hi, lo uint64, negative bool) Int128 {
	v := Int128{Lo: lo, Hi: int64(hi)}
	if negative {
		return v.Neg()
	}
	return v
}

// MulPow10 returns x * 10^n and false on overflow.
func (x Int128) MulPow10(n int) (Int128, bool) {
	neg := x.Sign() < 0
	hi, lo := x.abs()
	for i := 0; i < n; i++ {
		var ok bool
		hi, lo, ok = mulAdd10(hi, lo, 0)
		if !ok {
			return Int128{}, false
		}
	}
	return fromMagnitude(hi, lo, neg), true
}

// QuoPow10 returns x / 10^n truncated toward zero.
func (x Int128) QuoPow10(n int) Int128 {
	neg := x.Sign() < 0
	hi, lo := x.abs()
	for i := 0; i < n && (hi != 0 || lo != 0); i++ {
		hi, lo, _ = divMod10(hi, lo)
	}
	return fromMagnitude(hi, lo, neg)
}

// Big converts x to a big.Int.
func (x Int128) Big() *big.Int {
	b := new(big.Int).SetInt64(x.Hi)
	b.Lsh(b, 64)
	return b.Add(b, new(big.Int).SetUint64(x.Lo))
}

// Int128FromBig converts b, reporting false when it does not fit.
func Int128FromBig(b *big.Int) (Int128, bool) {
	if b.BitLen() > 127 {
		// -2^127 has BitLen 128 but still fits
		if b.Sign() >= 0 || b.BitLen() > 128 || new(big.Int).Neg(b).TrailingZeroBits() != 127 {
			return Int128{}, false
		}
		return MinInt128, true
	}
	neg := b.Sign() < 0
	m := new(big.Int).Abs(b)
	lo := m.Uint64()
	hi := new(big.Int).Rsh(m, 64).Uint64()
	return fromMagnitude(hi, lo, neg), true
}

// String formats x in base 10.
func (x Int128) String() string {
	if v, ok := x.Int64(); ok {
		return strconv.FormatInt(v, 10)
	}
	return x.Big().String()
}

// Float64 converts x to the nearest float64.
func (x Int128) Float64() float64 {
	if x.Hi < 0 {
		hi, lo := x.abs()
		return -(float64(hi)*(1<<64) + float64(lo))
	}
	return float64(uint64(x.Hi))*(1<<64) + float64(x.Lo)
}
