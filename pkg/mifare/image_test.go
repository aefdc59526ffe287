package mifare

import (
	"testing"

	"github.com/gregLibert/mifare-session/pkg/tlv"
)

func toBlock(b []byte) [BlockSize]byte {
	var out [BlockSize]byte
	copy(out[:], b)
	return out
}

func TestTrailerDecode(t *testing.T) {
	var tr Trailer
	tr.decode(toBlock(tlv.Hex("000000000000 FF0780 69 A1A2A3A4A5A6")))

	if tr.AccessBits != [3]byte{0xFF, 0x07, 0x80} {
		t.Errorf("AccessBits = % X", tr.AccessBits)
	}
	if tr.GPB != 0x69 {
		t.Errorf("GPB = %02X", tr.GPB)
	}
	if tr.KeyB.Data != [6]byte{0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6} || tr.KeyB.Type != KeyB {
		t.Errorf("KeyB = %s", tr.KeyB)
	}
	if tr.KeyA.Data != [6]byte{} {
		t.Errorf("KeyA must never be populated, got %s", tr.KeyA)
	}
	if tr.Status != StatusOK {
		t.Errorf("Status = %s", tr.Status)
	}
}

func TestHeadDecode(t *testing.T) {
	var h Head
	h.decode(toBlock(tlv.Hex("DEADBEEF 22 880400 C1C2C3C4C5C6C7C8")))

	if !h.Valid {
		t.Fatal("head should be valid after decode")
	}
	if h.UID != [4]byte{0xDE, 0xAD, 0xBE, 0xEF} || h.BCC != 0x22 {
		t.Errorf("UID/BCC = % X / %02X", h.UID, h.BCC)
	}
	if h.Manufacturer != [3]byte{0x88, 0x04, 0x00} {
		t.Errorf("Manufacturer = % X", h.Manufacturer)
	}
	if h.Signature[0] != 0xC1 || h.Signature[7] != 0xC8 {
		t.Errorf("Signature = % X", h.Signature)
	}
	if !h.BCCValid() {
		t.Errorf("BCC %02X should verify for UID % X", h.BCC, h.UID)
	}
	h.BCC ^= 0x01
	if h.BCCValid() {
		t.Error("corrupted BCC should not verify")
	}
}

func TestCardImageAddressing(t *testing.T) {
	img := NewCardImage()
	for i, s := range img.Sectors {
		if s.Index != i {
			t.Fatalf("sector %d has index %d", i, s.Index)
		}
	}

	img.Block(AbsoluteBlock(5, 2)).Data[0] = 0x42
	if img.Sectors[5].Blocks[2].Data[0] != 0x42 {
		t.Error("Block() does not address sector 5 block 2")
	}
	if !IsTrailer(23) || IsTrailer(24) {
		t.Error("IsTrailer wrong around sector 5/6 boundary")
	}

	img.ATR = []byte{0x3B}
	cp := img.Clone()
	cp.Sectors[5].Blocks[2].Data[0] = 0
	cp.ATR[0] = 0
	if img.Sectors[5].Blocks[2].Data[0] != 0x42 || img.ATR[0] != 0x3B {
		t.Error("Clone shares state with the original")
	}
}
