package mifare

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/mifare-session/pkg/tlv"
)

func sampleImage() *CardImage {
	img := NewCardImage()
	img.Head.decode(toBlock(tlv.Hex("DEADBEEF 22 880400 C1C2C3C4C5C6C7C8")))

	s := &img.Sectors[2]
	s.Status = StatusReadError
	s.Blocks[0] = Block{Data: toBlock([]byte("Hello, MIFARE!\x00\x01")), Status: StatusOK}
	s.Blocks[1].Status = StatusReadError
	trailer := toBlock(tlv.Hex("000000000000 FF0780 69 A0A1A2A3A4A5"))
	s.Blocks[3] = Block{Data: trailer, Status: StatusOK}
	s.Trailer.decode(trailer)
	return img
}

func TestWriteSector(t *testing.T) {
	var sb strings.Builder
	if err := WriteSector(&sb, &sampleImage().Sectors[2]); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"sector 02 READ ERROR; B:[A0 A1 A2 A3 A4 A5] GPB:69 AccessBits:[FF 07 80] -----------------------------------------------",
		" 00 OK  [[48 65 6C 6C 6F 2C 20 4D 49 46 41 52 45 21 00 01]]  'Hello, MIFARE!  '  access: R(A,B) W(B,B) I(-) D(-)",
		" 01 READ ERROR  access: R(A,B) W(B,B) I(-) D(-)",
		" 02 NO INIT  access: R(A,B) W(B,B) I(-) D(-)",
		" 03 OK  [[00 00 00 00 00 00 FF 07 80 69 A0 A1 A2 A3 A4 A5]]  " + strings.Repeat(" ", 18) + "  access: R(B) W(B) I(-) D(-)",
		"",
	}
	if diff := cmp.Diff(want, strings.Split(sb.String(), "\n")); diff != "" {
		t.Errorf("WriteSector() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteSectorUnread(t *testing.T) {
	var sb strings.Builder
	if err := WriteSector(&sb, &NewCardImage().Sectors[15]); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(sb.String(), "\n")
	if want := "sector 15 NO INIT; trailer not processed " + sectorRule; lines[0] != want {
		t.Errorf("header = %q, want %q", lines[0], want)
	}
	// Zeroed access bits decode to code 7 everywhere.
	if want := " 00 NO INIT  access: R(A,B) W(-) I(-) D(-)"; lines[1] != want {
		t.Errorf("block line = %q, want %q", lines[1], want)
	}
}

func TestWriteDump(t *testing.T) {
	var sb strings.Builder
	if err := WriteDump(&sb, sampleImage(), 2, 99, -1); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")

	wantHead := "UID:[DE AD BE EF] BCC[0x22] SAK:[88 04 00] SIGN:[C1 C2 C3 C4 C5 C6 C7 C8]"
	if lines[0] != wantHead {
		t.Errorf("head = %q, want %q", lines[0], wantHead)
	}
	// Head plus one sector: out of range indexes are skipped.
	if len(lines) != 1+1+BlocksPerSector {
		t.Errorf("got %d lines:\n%s", len(lines), sb.String())
	}

	sb.Reset()
	if err := WriteDump(&sb, NewCardImage(), AllSectors()...); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(sb.String(), "\nsector "); n != Sectors {
		t.Errorf("full dump has %d sectors", n)
	}
}

func TestWriteATR(t *testing.T) {
	tests := []struct {
		name string
		atr  []byte
		want string
	}{
		{"none", nil, "ATR: none\n"},
		{"malformed", []byte{0x3B, 0x80}, "ATR: [3B 80] ("},
		{"mifare 1k", tlv.Hex("3B 8F 80 01 80 4F 0C A0 00 00 03 06 03 00 01 00 00 00 00 6A"), "Card: MIFARE Classic 1K"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := NewCardImage()
			img.ATR = tt.atr
			var sb strings.Builder
			if err := WriteATR(&sb, img); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(sb.String(), tt.want) {
				t.Errorf("WriteATR() = %q, want containing %q", sb.String(), tt.want)
			}
		})
	}
}

func TestHeadBadBCC(t *testing.T) {
	var h Head
	h.decode(toBlock(tlv.Hex("DEADBEEF 23 880400 C1C2C3C4C5C6C7C8")))
	want := "UID:[DE AD BE EF] BCC[0x23] SAK:[88 04 00] SIGN:[C1 C2 C3 C4 C5 C6 C7 C8] (bad BCC)"
	if got := h.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if got := (Head{BCC: 0x01}).String(); strings.Contains(got, "bad BCC") {
		t.Errorf("undecoded head flagged: %q", got)
	}
}
