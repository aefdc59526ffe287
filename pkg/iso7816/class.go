package iso7816

import (
	"fmt"

	"github.com/gregLibert/mifare-session/pkg/bits"
)

// Class is a CLA byte with its ISO/IEC 7816-4 §5.4.1 fields.
//
// Bit 8 set marks a proprietary class. Otherwise bit 5 is command chaining and
// the logical channel sits in bits 2-1 (first interindustry, 00xx xxxx) or in
// bits 4-1 plus 4 (further interindustry, 01xx xxxx). Secure messaging bits are
// carried in Raw but not decoded: reader pseudo-APDUs never use them.
type Class struct {
	Raw           byte
	IsProprietary bool
	IsChained     bool
	Channel       uint8 // 0-19
}

// PCSCClass is CLA 0xFF. ISO reserves it, so PC/SC readers use it to mark
// pseudo-APDUs they execute themselves (LOAD KEYS, GENERAL AUTHENTICATE, storage
// card READ/UPDATE BINARY).
var PCSCClass = Class{Raw: 0xFF, IsProprietary: true}

// Encode returns the CLA byte with the chaining bit taken from IsChained.
// Proprietary classes are returned untouched.
func (c Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}
	if c.Channel > 19 {
		return 0, fmt.Errorf("channel %d out of range (max 19)", c.Channel)
	}
	return bits.Assign(c.Raw, 5, c.IsChained), nil
}

// IsPCSC reports whether the class addresses the reader rather than the card.
func (c Class) IsPCSC() bool {
	return c.IsProprietary && c.Raw == PCSCClass.Raw
}

func (c Class) String() string {
	switch {
	case c.IsPCSC():
		return "PC/SC (0xFF)"
	case c.IsProprietary:
		return fmt.Sprintf("proprietary (0x%02X)", c.Raw)
	}
	return fmt.Sprintf("interindustry (0x%02X) channel %d chained %t", c.Raw, c.Channel, c.IsChained)
}
