package mifare

import (
	"fmt"
	"strings"

	"github.com/gregLibert/mifare-session/pkg/iso7816"
	"github.com/gregLibert/mifare-session/pkg/tlv"
)

// KeyType selects which sector key authenticates a sector. Its value is the
// key-type byte of the authenticate command.
type KeyType byte

const (
	KeyA KeyType = 0x00
	KeyB KeyType = 0x01
)

func (k KeyType) String() string {
	switch k {
	case KeyA:
		return "A"
	case KeyB:
		return "B"
	default:
		return fmt.Sprintf("KeyType(0x%02X)", byte(k))
	}
}

// ParseKeyType accepts "A", "B", "a" or "b".
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return KeyA, nil
	case "B":
		return KeyB, nil
	default:
		return 0, fmt.Errorf("invalid key type %q: expected A or B", s)
	}
}

// Key is a 6-byte sector key tagged with its type.
type Key struct {
	Type KeyType
	Data [KeySize]byte
}

// DefaultKey is the transport key of blank cards, used as key B.
var DefaultKey = Key{Type: KeyB, Data: [KeySize]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}}

// ParseKey builds a key from 12 hex digits, separators allowed.
func ParseKey(kt KeyType, s string) (Key, error) {
	raw, err := tlv.ParseHex(s)
	if err != nil {
		return Key{}, fmt.Errorf("parse key: %w", err)
	}
	if len(raw) != KeySize {
		return Key{}, fmt.Errorf("parse key: expected %d bytes, got %d", KeySize, len(raw))
	}
	k := Key{Type: kt}
	copy(k.Data[:], raw)
	return k, nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Type, iso7816.HexString(k.Data[:]))
}
