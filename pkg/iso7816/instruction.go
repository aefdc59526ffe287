package iso7816

import (
	"fmt"

	"github.com/gregLibert/mifare-session/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// Bit 1 of an interindustry INS selects the data format: 0 standard, 1 BER-TLV
// (READ BINARY 0xB0 vs 0xB1). INS values whose upper nibble is '6' or '9' are
// reserved for transport procedure bytes and are invalid.
//
// PC/SC Part 3 reuses a handful of ISO codes for reader pseudo-APDUs under CLA 0xFF:
// 0x82 LOAD KEYS, 0x86 GENERAL AUTHENTICATE, 0xB0/0xD6 block read/update, 0xCA GET DATA (UID).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes used by this module.
const (
	INS_VERIFY               InsCode = 0x20
	INS_LOAD_KEYS            InsCode = 0x82 // EXTERNAL AUTHENTICATE in ISO 7816-4
	INS_GET_CHALLENGE        InsCode = 0x84
	INS_GENERAL_AUTHENTICATE InsCode = 0x86
	INS_SELECT               InsCode = 0xA4
	INS_READ_BINARY          InsCode = 0xB0
	INS_READ_BINARY_BER      InsCode = 0xB1
	INS_GET_RESPONSE         InsCode = 0xC0
	INS_GET_DATA             InsCode = 0xCA
	INS_UPDATE_BINARY        InsCode = 0xD6
	INS_UPDATE_BINARY_BER    InsCode = 0xD7
	INS_TERMINATE_CARD_USAGE InsCode = 0xFE
)

var insNames = map[InsCode]string{
	INS_VERIFY:               "INS_VERIFY",
	INS_LOAD_KEYS:            "INS_LOAD_KEYS",
	INS_GET_CHALLENGE:        "INS_GET_CHALLENGE",
	INS_GENERAL_AUTHENTICATE: "INS_GENERAL_AUTHENTICATE",
	INS_SELECT:               "INS_SELECT",
	INS_READ_BINARY:          "INS_READ_BINARY",
	INS_READ_BINARY_BER:      "INS_READ_BINARY_BER",
	INS_GET_RESPONSE:         "INS_GET_RESPONSE",
	INS_GET_DATA:             "INS_GET_DATA",
	INS_UPDATE_BINARY:        "INS_UPDATE_BINARY",
	INS_UPDATE_BINARY_BER:    "INS_UPDATE_BINARY_BER",
	INS_TERMINATE_CARD_USAGE: "INS_TERMINATE_CARD_USAGE",
}

func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("InsCode(0x%02X)", byte(i))
}

// Instruction represents the parsed ISO 7816-4 Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction creates an Instruction object with validation.
// It rejects '6X' and '9X' values as they are invalid according to ISO 7816-3.
func NewInstruction(ins InsCode) (Instruction, error) {
	highNibble := bits.HighNibble(byte(ins))
	if highNibble == 0x6 || highNibble == 0x9 {
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1),
	}, nil
}

// MustInstruction is NewInstruction for codes known to be valid at compile time.
func MustInstruction(ins InsCode) Instruction {
	i, err := NewInstruction(ins)
	if err != nil {
		panic(err)
	}
	return i
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw.String(), format)
}
