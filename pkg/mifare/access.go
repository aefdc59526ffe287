package mifare

import (
	"fmt"

	"github.com/gregLibert/mifare-session/pkg/bits"
)

// ACCESS CONDITIONS:
// Bytes 6 and 7 of a sector trailer carry the access-condition bits of the four
// blocks of the sector, each stored complemented. After inversion, the code of
// block i (0..3) is assembled from three non-contiguous positions:
//
//	bit 2 (high)   bit i of byte 6
//	bit 1 (middle) bit i of byte 7 (low nibble)
//	bit 0 (low)    bit i+4 of byte 7 (high nibble)
//
// Byte 8 duplicates information present in bytes 6 and 7 and is not decoded.
// Decoding is total: an inconsistent trailer still yields a code per block.

// AccessCode is the 3-bit access condition of one block.
type AccessCode uint8

var accessDescriptors = [8]string{
	0: "R(A,B) W(A,B) I(A,B) D(A,B)",
	1: "R(A,B) W(B,B) I(-) D(-)",
	2: "R(A,B) W(B) I(A,B) D(A,B)",
	3: "R(B) W(B) I(-) D(-)",
	4: "R(A,B) W(B) I(A,B) D(A,B)",
	5: "R(B) W(-) I(-,B) D(-,B)",
	6: "R(A,B) W(-,B) I(-) D(-)",
	7: "R(A,B) W(-) I(-) D(-)",
}

// Describe returns the read/write/increment/decrement conditions of the code.
func (c AccessCode) Describe() string {
	return accessDescriptors[c&0x07]
}

func (c AccessCode) String() string {
	return fmt.Sprintf("%03b", uint8(c&0x07))
}

// DecodeAccessBits extracts the access code of each block of a sector from
// trailer bytes 6 and 7.
func DecodeAccessBits(b6, b7 byte) [BlocksPerSector]AccessCode {
	b6 ^= 0xFF
	b7 ^= 0xFF

	var codes [BlocksPerSector]AccessCode
	for i := uint(0); i < BlocksPerSector; i++ {
		codes[i] = AccessCode(bits.Value(b6, i+1)<<2 |
			bits.Value(b7, i+1)<<1 |
			bits.Value(b7, i+5))
	}
	return codes
}
