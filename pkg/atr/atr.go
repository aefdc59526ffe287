// Package atr decodes the Answer To Reset returned by a contactless card through a
// PC/SC reader.
//
// Contactless cards have no electrical ATR: the reader synthesizes one following
// PC/SC Part 3. For storage cards (MIFARE Classic, Ultralight...) the historical
// bytes are
//
//	80 4F 0C <RID:5> <SS> <NN NN> 00 00 00 00
//
// where SS names the standard (03 = ISO 14443 A part 3) and NN the card type.
package atr

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gregLibert/mifare-session/pkg/bits"
	"github.com/gregLibert/mifare-session/pkg/iso7816"
	"github.com/gregLibert/mifare-session/pkg/tlv"
	"github.com/moov-io/bertlv"
)

var (
	// ErrMalformed is returned for ATRs whose structure does not match their T0/TDi indicators.
	ErrMalformed = errors.New("malformed ATR")

	// ErrChecksum is returned when the TCK byte does not verify.
	ErrChecksum = errors.New("ATR checksum mismatch")
)

// PCSCRegisteredID is the RID of the PC/SC workgroup used in storage-card ATRs.
var PCSCRegisteredID = []byte{0xA0, 0x00, 0x00, 0x03, 0x06}

// categoryStatusIndicator starts historical bytes made of TLV objects.
const categoryStatusIndicator = 0x80

// ATR is a parsed Answer To Reset.
type ATR struct {
	Raw        []byte
	TS         byte
	Protocols  []int // protocols announced in TD1..TDn, T=0 when no TD1
	GuardTime  int   // TC1 extra guard time, -1 when absent
	Historical []byte
	TCK        byte
	HasTCK     bool

	// Card is set when the historical bytes follow the PC/SC storage-card format.
	Card *StorageCard
}

// Parse decodes raw ATR bytes. The storage-card section is optional: an ATR with
// other historical bytes parses fine and leaves Card nil.
func Parse(raw []byte) (*ATR, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(raw))
	}
	if raw[0] != 0x3B && raw[0] != 0x3F {
		return nil, fmt.Errorf("%w: unknown convention TS=%02X", ErrMalformed, raw[0])
	}

	a := &ATR{Raw: append([]byte(nil), raw...), TS: raw[0], GuardTime: -1}

	t0 := raw[1]
	histLen := int(bits.LowNibble(t0))
	y := t0
	pos := 2
	needTCK := false

	for i := 1; ; i++ {
		// TAi, TBi, TCi, TDi presence is flagged by bits 5..8 of the previous Y byte.
		for n := uint(5); n <= 8; n++ {
			if !bits.IsSet(y, n) {
				continue
			}
			if pos >= len(raw) {
				return nil, fmt.Errorf("%w: interface bytes truncated", ErrMalformed)
			}
			if n == 7 && i == 1 {
				a.GuardTime = int(raw[pos])
			}
			pos++
		}
		if !bits.IsSet(y, 8) {
			break
		}
		td := raw[pos-1]
		proto := int(bits.LowNibble(td))
		a.Protocols = append(a.Protocols, proto)
		if proto != 0 {
			needTCK = true
		}
		y = td
	}
	if len(a.Protocols) == 0 {
		a.Protocols = []int{0}
	}

	if pos+histLen > len(raw) {
		return nil, fmt.Errorf("%w: expected %d historical bytes", ErrMalformed, histLen)
	}
	a.Historical = raw[pos : pos+histLen : pos+histLen]
	pos += histLen

	if needTCK {
		if pos >= len(raw) {
			return nil, fmt.Errorf("%w: missing TCK", ErrMalformed)
		}
		a.TCK, a.HasTCK = raw[pos], true
		var sum byte
		for _, b := range raw[1 : pos+1] {
			sum ^= b
		}
		if sum != 0 {
			return nil, fmt.Errorf("%w: xor=%02X", ErrChecksum, sum)
		}
		pos++
	}
	if pos != len(raw) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(raw)-pos)
	}

	a.Card = parseStorageCard(a.Historical)
	return a, nil
}

// Supports reports whether protocol T=t is announced.
func (a *ATR) Supports(t int) bool {
	for _, p := range a.Protocols {
		if p == t {
			return true
		}
	}
	return false
}

// IsMifareClassic1K reports whether the reader identified a MIFARE Classic 1K.
func (a *ATR) IsMifareClassic1K() bool {
	return a.Card != nil && a.Card.AID.Name == CardMifareClassic1K
}

// Describe renders the ATR in the console report format.
func (a *ATR) Describe() string {
	var sb strings.Builder

	guard := "none"
	if a.GuardTime >= 0 {
		guard = fmt.Sprintf("%d", a.GuardTime)
	}
	fmt.Fprintf(&sb, "ATR: %s\n", iso7816.HexString(a.Raw))
	fmt.Fprintf(&sb, "    T0:%t T1:%t T15:%t GuardTime:%s Hist bytes %s",
		a.Supports(0), a.Supports(1), a.Supports(15), guard, iso7816.HexString(a.Historical))

	if a.Card != nil {
		fmt.Fprintf(&sb, "\n    Card: %s (standard: %s)", a.Card.AID.Name, a.Card.AID.Standard)
		tlv.WriteStructFields(&sb, "Historical", a.Card)
	}
	return sb.String()
}

// StorageCard is the TLV content of PC/SC storage-card historical bytes.
type StorageCard struct {
	AID     StorageCardAID `tlv:"4F"`
	Unknown []bertlv.TLV   `tlv:",unknown"`
}

// StorageCardAID is the 12-byte application identifier of tag 4F.
type StorageCardAID struct {
	RID      []byte
	Standard Standard
	Name     CardName
}

// UnmarshalTLV implements tlv.Unmarshaler.
func (s *StorageCardAID) UnmarshalTLV(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("storage card AID too short: %d bytes", len(data))
	}
	s.RID = append([]byte(nil), data[:5]...)
	s.Standard = Standard(data[5])
	s.Name = CardName(uint16(data[6])<<8 | uint16(data[7]))
	return nil
}

func parseStorageCard(hist []byte) *StorageCard {
	if len(hist) < 2 || hist[0] != categoryStatusIndicator {
		return nil
	}
	var card StorageCard
	if err := tlv.Unmarshal(hist[1:], &card); err != nil {
		return nil
	}
	if !bytes.Equal(card.AID.RID, PCSCRegisteredID) {
		return nil
	}
	return &card
}
