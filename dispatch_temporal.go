package odbcscan

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/slingdata-io/odbcscan/chunk"
)

const (
	nanosPerMicro  = 1000
	nanosPerSecond = 1_000_000_000
	secondsPerDay  = 86400
	timeTextLayout = "15:04:05.999999999"
)

var pow10Nanos = [...]uint32{1, 10, 100, 1000, 10000, 100000, 1000000, 10000000, 100000000, 1000000000}

// truncateFraction drops the fractional-second digits beyond precision
// from ns (nanoseconds, 0..999999999).
func truncateFraction(ns uint32, precision int) uint32 {
	precision = max(0, min(9, precision))
	div := pow10Nanos[9-precision]
	return ns / div * div
}

// temporalColumnSize returns the character width of a time (base 8) or
// timestamp (base 19) literal with precision fractional digits.
func temporalColumnSize(base, precision int) SQLULEN {
	if precision <= 0 {
		return SQLULEN(base)
	}
	return SQLULEN(base + 1 + precision)
}

func floorDiv(a, b int64) (int64, int64) {
	q, r := a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

// dateHandler moves DATE through SQL_DATE_STRUCT.
type dateHandler struct{}

func (dateHandler) extract(vec *chunk.Vector, row int) Value {
	return NewDate(chunk.Data[int32](vec)[row])
}

func (dateHandler) store(vec *chunk.Vector, row int, v *Value) error {
	d, err := v.Date()
	if err != nil {
		return err
	}
	chunk.Set(vec, row, d)
	return nil
}

func (dateHandler) bind(b *binder, ordinal int, v *Value) error {
	days, err := v.Date()
	if err != nil {
		return &OpError{Op: "bind", Param: ordinal, Err: err}
	}
	t := time.Unix(int64(days)*secondsPerDay, 0).UTC()
	ds := &SQL_DATE_STRUCT{
		Year:  SQLSMALLINT(t.Year()),
		Month: SQLUSMALLINT(t.Month()),
		Day:   SQLUSMALLINT(t.Day()),
	}
	return bindFixed(b, ordinal, v, ds, SQL_C_DATE, SQL_TYPE_DATE, 10, 0)
}

func (dateHandler) fetch(f *fetcher, ordinal int, _ *ColumnDescriptor, _ chunk.Type) (Value, error) {
	var ds SQL_DATE_STRUCT
	null, err := f.getFixed(ordinal, SQL_C_DATE, unsafe.Pointer(&ds), int(unsafe.Sizeof(ds)))
	if err != nil || null {
		return NullValue(), err
	}
	t := time.Date(int(ds.Year), time.Month(ds.Month), int(ds.Day), 0, 0, 0, 0, time.UTC)
	return NewDate(int32(t.Unix() / secondsPerDay)), nil
}

// timeHandler moves TIME. Parameters travel as SQL_SS_TIME2_STRUCT when the
// vendor asks for it, as SQL_TIME_STRUCT when there is no fraction, and as
// text otherwise since SQL_TIME_STRUCT cannot carry one.
type timeHandler struct{}

func (timeHandler) extract(vec *chunk.Vector, row int) Value {
	return NewTime(chunk.Data[int64](vec)[row], 0)
}

func (timeHandler) store(vec *chunk.Vector, row int, v *Value) error {
	micros, _, err := v.Time()
	if err != nil {
		return err
	}
	chunk.Set(vec, row, micros)
	return nil
}

// splitTime breaks micros+nanos since midnight into clock fields and
// nanoseconds within the second.
func splitTime(micros int64, nanos int32) (h, m, s int, frac uint32) {
	secs, rem := floorDiv(micros, chunk.MicrosPerSecond)
	secs %= secondsPerDay
	h = int(secs / 3600)
	m = int(secs % 3600 / 60)
	s = int(secs % 60)
	frac = uint32(rem*nanosPerMicro) + uint32(nanos)
	return
}

func (timeHandler) bind(b *binder, ordinal int, v *Value) error {
	micros, nanos, err := v.Time()
	if err != nil {
		return &OpError{Op: "bind", Param: ordinal, Err: err}
	}
	p := b.quirks.TimestampMaxFractionPrecision
	h, m, s, frac := splitTime(micros, nanos)
	frac = truncateFraction(frac, p)

	switch {
	case b.quirks.TimeParamsAsSSTime2:
		ts := &SQL_SS_TIME2_STRUCT{
			Hour:     SQLUSMALLINT(h),
			Minute:   SQLUSMALLINT(m),
			Second:   SQLUSMALLINT(s),
			Fraction: SQLUINTEGER(frac),
		}
		return bindFixed(b, ordinal, v, ts, SQL_C_SS_TIME2, SQL_SS_TIME2, temporalColumnSize(8, p), SQLSMALLINT(p))
	case frac == 0:
		ts := &SQL_TIME_STRUCT{Hour: SQLUSMALLINT(h), Minute: SQLUSMALLINT(m), Second: SQLUSMALLINT(s)}
		return bindFixed(b, ordinal, v, ts, SQL_C_TIME, SQL_TYPE_TIME, 8, 0)
	default:
		text := formatTimeOfDay(h, m, s, frac, p)
		return bindWide(b, ordinal, v, stringToUTF16(text), SQL_TYPE_TIME, temporalColumnSize(8, p), SQLSMALLINT(p))
	}
}

// formatTimeOfDay renders hh:mm:ss[.fff...] with exactly precision digits.
func formatTimeOfDay(h, m, s int, frac uint32, precision int) string {
	out := fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	if precision <= 0 {
		return out
	}
	digits := fmt.Sprintf("%09d", frac)
	return out + "." + digits[:min(precision, 9)]
}

func (timeHandler) fetch(f *fetcher, ordinal int, col *ColumnDescriptor, _ chunk.Type) (Value, error) {
	switch {
	case col.Type() == SQL_SS_TIME2 && f.quirks.TimeColumnsAsSSTime2:
		var ts SQL_SS_TIME2_STRUCT
		null, err := f.getFixed(ordinal, SQL_C_SS_TIME2, unsafe.Pointer(&ts), int(unsafe.Sizeof(ts)))
		if err != nil || null {
			return NullValue(), err
		}
		return timeValue(int(ts.Hour), int(ts.Minute), int(ts.Second), uint32(ts.Fraction)), nil

	case col.Scale > 0:
		units, null, err := f.fetchWideText(ordinal)
		if err != nil || null {
			return NullValue(), err
		}
		text := strings.TrimSpace(utf16ToString(units))
		t, err := time.Parse(timeTextLayout, text)
		if err != nil {
			return Value{}, &OpError{Op: "fetch time", Column: ordinal, Err: protocolError(KindInvalidValue, "cannot parse time %q", text)}
		}
		return timeValue(t.Hour(), t.Minute(), t.Second(), uint32(t.Nanosecond())), nil

	default:
		var ts SQL_TIME_STRUCT
		null, err := f.getFixed(ordinal, SQL_C_TIME, unsafe.Pointer(&ts), int(unsafe.Sizeof(ts)))
		if err != nil || null {
			return NullValue(), err
		}
		return timeValue(int(ts.Hour), int(ts.Minute), int(ts.Second), 0), nil
	}
}

func timeValue(h, m, s int, frac uint32) Value {
	micros := int64(h*3600+m*60+s)*chunk.MicrosPerSecond + int64(frac/nanosPerMicro)
	return NewTime(micros, int32(frac%nanosPerMicro))
}

// timestampHandler moves TIMESTAMP through SQL_TIMESTAMP_STRUCT. With nanos
// set it fills a nanosecond-precision host column.
type timestampHandler struct {
	nanos bool
}

func (h timestampHandler) extract(vec *chunk.Vector, row int) Value {
	x := chunk.Data[int64](vec)[row]
	if !h.nanos {
		return NewTimestamp(x, 0)
	}
	micros, rem := floorDiv(x, nanosPerMicro)
	return NewTimestamp(micros, int32(rem))
}

func (h timestampHandler) store(vec *chunk.Vector, row int, v *Value) error {
	micros, nanos, err := v.Timestamp()
	if err != nil {
		return err
	}
	if h.nanos {
		chunk.Set(vec, row, micros*nanosPerMicro+int64(nanos))
	} else {
		chunk.Set(vec, row, micros)
	}
	return nil
}

// timestampTime converts micros+nanos since epoch to a UTC time.
func timestampTime(micros int64, nanos int32) time.Time {
	secs, rem := floorDiv(micros, chunk.MicrosPerSecond)
	return time.Unix(secs, rem*nanosPerMicro+int64(nanos)).UTC()
}

func (timestampHandler) bind(b *binder, ordinal int, v *Value) error {
	micros, nanos, err := v.Timestamp()
	if err != nil {
		return &OpError{Op: "bind", Param: ordinal, Err: err}
	}
	p := b.quirks.TimestampMaxFractionPrecision
	t := timestampTime(micros, nanos)
	ts := &SQL_TIMESTAMP_STRUCT{
		Year:     SQLSMALLINT(t.Year()),
		Month:    SQLUSMALLINT(t.Month()),
		Day:      SQLUSMALLINT(t.Day()),
		Hour:     SQLUSMALLINT(t.Hour()),
		Minute:   SQLUSMALLINT(t.Minute()),
		Second:   SQLUSMALLINT(t.Second()),
		Fraction: SQLUINTEGER(truncateFraction(uint32(t.Nanosecond()), p)),
	}
	return bindFixed(b, ordinal, v, ts, SQL_C_TIMESTAMP, SQL_TYPE_TIMESTAMP, temporalColumnSize(19, p), SQLSMALLINT(p))
}

func (timestampHandler) fetch(f *fetcher, ordinal int, _ *ColumnDescriptor, _ chunk.Type) (Value, error) {
	var ts SQL_TIMESTAMP_STRUCT
	null, err := f.getFixed(ordinal, SQL_C_TIMESTAMP, unsafe.Pointer(&ts), int(unsafe.Sizeof(ts)))
	if err != nil || null {
		return NullValue(), err
	}
	if ts.Fraction >= nanosPerSecond {
		return Value{}, &OpError{Op: "fetch timestamp", Column: ordinal, Err: protocolError(KindInvalidValue, "fraction %d out of range", ts.Fraction)}
	}
	t := time.Date(int(ts.Year), time.Month(ts.Month), int(ts.Day),
		int(ts.Hour), int(ts.Minute), int(ts.Second), 0, time.UTC)
	frac := int64(ts.Fraction)
	return NewTimestamp(t.Unix()*chunk.MicrosPerSecond+frac/nanosPerMicro, int32(frac%nanosPerMicro)), nil
}
