package mifare

import (
	"fmt"
	"log/slog"
)

var quiet = slog.New(slog.DiscardHandler)

// simCard emulates a MIFARE Classic 1K behind a PC/SC reader, at the APDU level.
type simCard struct {
	mem        [TotalBlocks][BlockSize]byte
	keyLoaded  bool
	authSector int

	failKeyLoad bool
	failAuth    map[int]bool // by sector
	failRead    map[int]bool // by absolute block
	failWrite   map[int]bool // by absolute block

	ops []string
}

func newSimCard() *simCard {
	c := &simCard{
		authSector: -1,
		failAuth:   map[int]bool{},
		failRead:   map[int]bool{},
		failWrite:  map[int]bool{},
	}
	for b := range c.mem {
		for i := range c.mem[b] {
			c.mem[b][i] = byte(b)
		}
	}
	return c
}

var (
	swOK     = []byte{0x90, 0x00}
	swFailed = []byte{0x63, 0x00}
)

func (c *simCard) Transmit(cmd []byte) ([]byte, error) {
	if len(cmd) < 5 || cmd[0] != 0xFF {
		return []byte{0x6E, 0x00}, nil
	}
	switch cmd[1] {
	case 0x82:
		c.ops = append(c.ops, "load")
		if c.failKeyLoad {
			return swFailed, nil
		}
		c.keyLoaded = true
		return swOK, nil
	case 0x86:
		block := int(cmd[7])
		c.ops = append(c.ops, fmt.Sprintf("auth %d", block))
		if !c.keyLoaded || c.failAuth[SectorOf(block)] {
			c.authSector = -1
			return swFailed, nil
		}
		c.authSector = SectorOf(block)
		return swOK, nil
	case 0xB0:
		block := int(cmd[3])
		c.ops = append(c.ops, fmt.Sprintf("read %d", block))
		if c.authSector != SectorOf(block) || c.failRead[block] {
			return swFailed, nil
		}
		out := append([]byte(nil), c.mem[block][:]...)
		if IsTrailer(block) {
			// Key A always reads back as zeroes.
			copy(out[:KeySize], make([]byte, KeySize))
		}
		return append(out, swOK...), nil
	case 0xD6:
		block := int(cmd[3])
		c.ops = append(c.ops, fmt.Sprintf("write %d", block))
		if c.authSector != SectorOf(block) || c.failWrite[block] {
			return swFailed, nil
		}
		copy(c.mem[block][:], cmd[5:5+BlockSize])
		return swOK, nil
	}
	return []byte{0x6D, 0x00}, nil
}

// authOps filters the recorded operations down to authentications.
func (c *simCard) authOps() []string {
	var out []string
	for _, op := range c.ops {
		if len(op) > 4 && op[:4] == "auth" {
			out = append(out, op)
		}
	}
	return out
}

func newSimSequencer(card *simCard) *Sequencer {
	return NewSequencer(NewTransport(card, quiet), DefaultKey, quiet)
}
