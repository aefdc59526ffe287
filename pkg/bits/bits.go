// Package bits holds the small bit helpers shared by the APDU layer and the
// MIFARE access-condition codec. Bit positions are numbered 1 to 8, least
// significant first, as ISO/IEC 7816 tables do.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Value returns the n-th bit (1 to 8) as 0 or 1.
func Value(b byte, n uint) byte {
	if IsSet(b, n) {
		return 1
	}
	return 0
}

// Set raises bit n.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Clear lowers bit n.
func Clear(b byte, n uint) byte {
	return b &^ Bit(n)
}

// Assign sets bit n to v.
func Assign(b byte, n uint, v bool) byte {
	if v {
		return Set(b, n)
	}
	return Clear(b, n)
}

// LowNibble returns bits 4-1.
func LowNibble(b byte) byte {
	return b & 0x0F
}

// HighNibble returns bits 8-5 shifted down.
func HighNibble(b byte) byte {
	return b >> 4
}
