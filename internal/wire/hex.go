package wire

const hexDigits = "0123456789abcdef"

// ParseHex reads a hexadecimal integer from the leading bytes of b,
// skipping leading spaces. It stops at the first non-hex byte. The boolean
// is false when no digits were consumed or the value would not fit in 64
// bits; the returned value is 0 in that case, never a partial result.
func ParseHex(b []byte) (uint64, bool) {
	i := 0
	for i < len(b) && b[i] == ' ' {
		i++
	}
	var v uint64
	digits := 0
	for ; i < len(b); i++ {
		d, ok := hexVal(b[i])
		if !ok {
			break
		}
		if digits >= 16 {
			return 0, false
		}
		v = v<<4 | uint64(d)
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	return v, true
}

// ParseHexByte decodes exactly two hex characters into one byte.
func ParseHexByte(b []byte) (byte, bool) {
	if len(b) < 2 {
		return 0, false
	}
	hi, ok1 := hexVal(b[0])
	lo, ok2 := hexVal(b[1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

// ParseUint64Hex decodes exactly 16 hex characters holding a 64-bit value
// in little-endian byte order, the register encoding used on the wire.
func ParseUint64Hex(b []byte) (uint64, bool) {
	if len(b) < 16 {
		return 0, false
	}
	var v uint64
	for i := 0; i < 8; i++ {
		hi, ok1 := hexVal(b[2*i])
		lo, ok2 := hexVal(b[2*i+1])
		if !ok1 || !ok2 {
			return 0, false
		}
		v |= uint64(hi<<4|lo) << (8 * i)
	}
	return v, true
}

// AppendUint64Hex appends a 64-bit value as 16 hex characters in
// little-endian byte order.
func AppendUint64Hex(dst *Buffer, v uint64) {
	for i := 0; i < 8; i++ {
		c := byte(v >> (8 * i))
		dst.AppendByte(hexDigits[c>>4])
		dst.AppendByte(hexDigits[c&0x0f])
	}
}

// Uint64Hex returns the 16-character little-endian hex encoding of v.
func Uint64Hex(v uint64) string {
	var b [16]byte
	for i := 0; i < 8; i++ {
		c := byte(v >> (8 * i))
		b[2*i] = hexDigits[c>>4]
		b[2*i+1] = hexDigits[c&0x0f]
	}
	return string(b[:])
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
