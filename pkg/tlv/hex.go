package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// hexSeparators are accepted between digits so operators can paste
// "FF FF FF", "FF:FF:FF" or "FFFF_FFFF".
var hexSeparators = strings.NewReplacer(" ", "", ":", "", "_", "", "\t", "")

// ParseHex decodes a hex string, ignoring common separators.
func ParseHex(parts ...string) ([]byte, error) {
	clean := hexSeparators.Replace(strings.Join(parts, ""))
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", clean, err)
	}
	return data, nil
}

// Hex is ParseHex for fixtures and constants: it panics on malformed input.
func Hex(parts ...string) []byte {
	data, err := ParseHex(parts...)
	if err != nil {
		panic(err.Error())
	}
	return data
}
