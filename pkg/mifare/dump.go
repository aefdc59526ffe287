package mifare

import (
	"fmt"
	"io"
	"strings"

	"github.com/gregLibert/mifare-session/pkg/atr"
	"github.com/gregLibert/mifare-session/pkg/iso7816"
)

const sectorRule = "-----------------------------------------------"

// String renders the head line of a dump. A decoded head whose BCC does not
// match its UID is flagged.
func (h Head) String() string {
	s := fmt.Sprintf("UID:%s BCC[0x%02X] SAK:%s SIGN:%s",
		iso7816.HexString(h.UID[:]), h.BCC, iso7816.HexString(h.Manufacturer[:]), iso7816.HexString(h.Signature[:]))
	if h.Valid && !h.BCCValid() {
		s += " (bad BCC)"
	}
	return s
}

// String summarizes the trailer, or says it was never decoded.
func (t Trailer) String() string {
	if t.Status != StatusOK {
		return "trailer not processed"
	}
	return fmt.Sprintf("%s GPB:%02X AccessBits:%s", t.KeyB, t.GPB, iso7816.HexString(t.AccessBits[:]))
}

// render formats a block as status, hex payload and, when withText is set, its
// printable characters. Blocks that are not OK render as their status only.
func (b Block) render(withText bool) string {
	if b.Status != StatusOK {
		return b.Status.String()
	}
	text := strings.Repeat(" ", BlockSize+2)
	if withText {
		text = "'" + printable(b.Data[:]) + "'"
	}
	return strings.Join([]string{b.Status.String(), "[" + iso7816.HexString(b.Data[:]) + "]", text}, "  ")
}

// printable replaces non-printable bytes with spaces.
func printable(data []byte) string {
	out := make([]byte, len(data))
	for i, c := range data {
		if c < 32 || c > 126 {
			c = ' '
		}
		out[i] = c
	}
	return string(out)
}

// WriteSector prints the sector header line followed by one line per block.
func WriteSector(w io.Writer, s *Sector) error {
	if _, err := fmt.Fprintf(w, "sector %02d %s; %s %s\n", s.Index, s.Status, s.Trailer, sectorRule); err != nil {
		return err
	}
	access := s.Descriptors()
	for i, b := range s.Blocks {
		if _, err := fmt.Fprintf(w, " %02d %s  access: %s\n", i, b.render(i != TrailerIndex), access[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteHead prints the head line.
func WriteHead(w io.Writer, img *CardImage) error {
	_, err := fmt.Fprintln(w, img.Head)
	return err
}

// WriteDump prints the head line then the selected sectors. Indexes outside
// 0..15 are skipped.
func WriteDump(w io.Writer, img *CardImage, sectors ...int) error {
	if err := WriteHead(w, img); err != nil {
		return err
	}
	for _, n := range sectors {
		if n < 0 || n >= Sectors {
			continue
		}
		if err := WriteSector(w, &img.Sectors[n]); err != nil {
			return err
		}
	}
	return nil
}

// AllSectors lists every sector index, for WriteDump.
func AllSectors() []int {
	out := make([]int, Sectors)
	for i := range out {
		out[i] = i
	}
	return out
}

// WriteATR prints the decoded ATR of the image, or the raw bytes when they do
// not parse.
func WriteATR(w io.Writer, img *CardImage) error {
	if len(img.ATR) == 0 {
		_, err := fmt.Fprintln(w, "ATR: none")
		return err
	}
	a, err := atr.Parse(img.ATR)
	if err != nil {
		_, werr := fmt.Fprintf(w, "ATR: %s (%v)\n", iso7816.HexString(img.ATR), err)
		return werr
	}
	_, err = fmt.Fprintln(w, a.Describe())
	return err
}
