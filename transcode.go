package odbcscan

import (
	"unicode/utf16"
	"unicode/utf8"
)

// utf16ToString converts a UTF-16 encoded slice to a UTF-8 string.
// Lone or out-of-order surrogates are replaced with U+FFFD; valid pairs are
// decoded into a single code point.
func utf16ToString(u []uint16) string {
	buf := make([]byte, 0, len(u)+len(u)/2)
	for i := 0; i < len(u); i++ {
		c := rune(u[i])
		switch {
		case !utf16.IsSurrogate(c):
			buf = utf8.AppendRune(buf, c)
		case c < 0xDC00 && i+1 < len(u):
			// High surrogate - check for low surrogate
			if r := utf16.DecodeRune(c, rune(u[i+1])); r != utf8.RuneError {
				buf = utf8.AppendRune(buf, r)
				i++
				continue
			}
			buf = utf8.AppendRune(buf, utf8.RuneError)
		default:
			buf = utf8.AppendRune(buf, utf8.RuneError)
		}
	}
	return string(buf)
}

// utf16zToString converts a NUL-terminated UTF-16 buffer, ignoring everything
// after the first NUL.
func utf16zToString(u []uint16) string {
	for i, c := range u {
		if c == 0 {
			return utf16ToString(u[:i])
		}
	}
	return utf16ToString(u)
}

// utf16nToString converts the first n code units of buf, clamped to the buffer.
func utf16nToString(buf []uint16, n int) string {
	if n < 0 {
		n = 0
	}
	if n > len(buf) {
		n = len(buf)
	}
	return utf16zToString(buf[:n])
}

// stringToUTF16 converts a UTF-8 string to UTF-16 code units without a
// terminator. Invalid UTF-8 bytes become U+FFFD.
func stringToUTF16(s string) []uint16 {
	out := make([]uint16, 0, len(s)+1)
	return appendUTF16(out, s)
}

// stringToUTF16z is stringToUTF16 with a trailing NUL, as expected by the
// SQL_NTS entry points.
func stringToUTF16z(s string) []uint16 {
	out := make([]uint16, 0, len(s)+1)
	return append(appendUTF16(out, s), 0)
}

func appendUTF16(out []uint16, s string) []uint16 {
	for _, r := range s {
		// range over a string already yields RuneError for invalid bytes
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			out = append(out, uint16(r1), uint16(r2))
			continue
		}
		out = append(out, uint16(r))
	}
	return out
}

// UTF16ToString is the exported form of the lenient decoder, for hosts that
// keep wide text around.
func UTF16ToString(u []uint16) string {
	return utf16ToString(u)
}

// StringToUTF16 is the exported form of the encoder.
func StringToUTF16(s string) []uint16 {
	return stringToUTF16(s)
}
