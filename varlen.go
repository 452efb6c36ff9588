package odbcscan

import (
	"unsafe"
)

// Initial SQLGetData buffer sizes for variable-length columns.
const (
	initialTextBufferUnits   = 4096 // UTF-16 code units, terminator included
	initialBinaryBufferBytes = 8192
)

// chunkedState tracks where a multi-part SQLGetData read stands.
type chunkedState uint8

const (
	chunkComplete        chunkedState = iota
	chunkNeedMoreKnown                // truncated, driver reported the total
	chunkNeedMoreUnknown              // truncated, driver reported SQL_NO_TOTAL
)

func (s chunkedState) String() string {
	switch s {
	case chunkComplete:
		return "complete"
	case chunkNeedMoreKnown:
		return "need more (known total)"
	default:
		return "need more (unknown total)"
	}
}

// chunkedFetch is the per (row, column) state of a variable-length read.
// buf holds units of T; confirmed counts the units known to hold data.
type chunkedFetch[T byte | uint16] struct {
	buf       []T
	confirmed int
	state     chunkedState
}

// fetcher reads cells of the current row of a statement.
type fetcher struct {
	api    API
	stmt   SQLHSTMT
	quirks Quirks

	// initial buffer sizes; zero means the package defaults
	textUnits int
	binBytes  int
}

// getData issues one SQLGetData into p and reports the driver status.
func (f *fetcher) getData(col int, cType SQLSMALLINT, p unsafe.Pointer, size int) (SQLLEN, SQLRETURN) {
	var ind SQLLEN
	ret := f.api.GetData(f.stmt, SQLUSMALLINT(col), cType, p, SQLLEN(size), &ind)
	return ind, ret
}

// getFixed reads a fixed-size C value into p. It reports null for
// SQL_NULL_DATA.
func (f *fetcher) getFixed(col int, cType SQLSMALLINT, p unsafe.Pointer, size int) (bool, error) {
	ind, ret := f.getData(col, cType, p, size)
	if !IsSuccess(ret) {
		return false, f.fail("SQLGetData", col, ret)
	}
	return ind == SQL_NULL_DATA, nil
}

func (f *fetcher) fail(op string, col int, ret SQLRETURN) error {
	return &OpError{
		Op:     op,
		Column: col,
		Return: ret,
		Err:    NewError(f.api, SQL_HANDLE_STMT, SQLHANDLE(f.stmt)),
	}
}

// truncated reports whether a SQLGetData status means more data remains:
// success with info carrying SQLSTATE 01004.
func (f *fetcher) truncated(ret SQLRETURN) bool {
	return ret == SQL_SUCCESS_WITH_INFO && hasDiagState(f.api, SQL_HANDLE_STMT, SQLHANDLE(f.stmt), sqlStateStringTruncated)
}

// fetchWideText reads a text column as UTF-16 code units.
func (f *fetcher) fetchWideText(col int) ([]uint16, bool, error) {
	initial := f.textUnits
	if initial <= 0 {
		initial = initialTextBufferUnits
	}
	return readVarLen[uint16](f, col, SQL_C_WCHAR, initial, 1)
}

// fetchBinary reads a binary column.
func (f *fetcher) fetchBinary(col int) ([]byte, bool, error) {
	initial := f.binBytes
	if initial <= 0 {
		initial = initialBinaryBufferBytes
	}
	return readVarLen[byte](f, col, SQL_C_BINARY, initial, 0)
}

// readVarLen runs the chunked SQLGetData protocol for one cell. term is the
// number of terminator units the driver appends to every part (1 for wide
// text, 0 for binary). Lengths reported by the driver are in bytes.
//
// The first read goes into a buffer of initial units. If the driver signals
// truncation, the remainder is read one of three ways:
//   - single part: the vendor hands over everything in one more call, so
//     resize to the reported total and read once without checking the length;
//   - tail: the driver reported the total, so resize and read the remainder
//     once, requiring the reported remainder to match exactly;
//   - multi read: no total was reported, so double the buffer and append
//     until the driver stops reporting truncation.
func readVarLen[T byte | uint16](f *fetcher, col int, cType SQLSMALLINT, initial, term int) ([]T, bool, error) {
	unit := int(unsafe.Sizeof(T(0)))
	cf := chunkedFetch[T]{buf: make([]T, initial)}

	ind, ret := f.getData(col, cType, unsafe.Pointer(&cf.buf[0]), len(cf.buf)*unit)
	switch {
	case ret == SQL_NO_DATA:
		// column already consumed by an earlier call
		return cf.buf[:0], false, nil
	case !IsSuccess(ret):
		return nil, false, f.fail("SQLGetData", col, ret)
	case ind == SQL_NULL_DATA:
		return nil, true, nil
	}

	capUnits := len(cf.buf) - term
	if !f.truncated(ret) {
		n := capUnits
		if ind >= 0 && int(ind)/unit < n {
			n = int(ind) / unit
		}
		return cf.buf[:n], false, nil
	}

	cf.confirmed = capUnits
	if ind == SQL_NO_TOTAL {
		cf.state = chunkNeedMoreUnknown
	} else {
		cf.state = chunkNeedMoreKnown
	}

	if cf.state == chunkNeedMoreKnown {
		total := int(ind) / unit
		if total <= cf.confirmed {
			return nil, false, &OpError{
				Op:     "SQLGetData",
				Column: col,
				Return: ret,
				Err:    protocolError(KindLengthMismatch, "truncated read reported total %d units, already have %d", total, cf.confirmed),
			}
		}
		cf.grow(total + term)
		remaining := total - cf.confirmed

		ind, ret = f.getData(col, cType, unsafe.Pointer(&cf.buf[cf.confirmed]), (len(cf.buf)-cf.confirmed)*unit)
		if !IsSuccess(ret) {
			return nil, false, f.fail("SQLGetData", col, ret)
		}
		if !f.quirks.VarLenDataSinglePart && int(ind) != remaining*unit {
			return nil, false, &OpError{
				Op:     "SQLGetData",
				Column: col,
				Return: ret,
				Err:    protocolError(KindLengthMismatch, "tail read returned %d bytes, expected %d", ind, remaining*unit),
			}
		}
		cf.confirmed = total
		cf.state = chunkComplete
		return cf.buf[:cf.confirmed], false, nil
	}

	for cf.state != chunkComplete {
		cf.grow(len(cf.buf) * 2)
		avail := len(cf.buf) - cf.confirmed

		ind, ret = f.getData(col, cType, unsafe.Pointer(&cf.buf[cf.confirmed]), avail*unit)
		switch {
		case ret == SQL_NO_DATA:
			cf.state = chunkComplete
		case !IsSuccess(ret):
			return nil, false, f.fail("SQLGetData", col, ret)
		case f.truncated(ret):
			cf.confirmed += avail - term
		default:
			n := avail - term
			if ind >= 0 && int(ind)/unit < n {
				n = int(ind) / unit
			}
			cf.confirmed += n
			cf.state = chunkComplete
		}
	}
	return cf.buf[:cf.confirmed], false, nil
}

// grow resizes the buffer to n units keeping the confirmed prefix.
func (c *chunkedFetch[T]) grow(n int) {
	if n <= len(c.buf) {
		return
	}
	buf := make([]T, n)
	copy(buf, c.buf[:c.confirmed])
	c.buf = buf
}
