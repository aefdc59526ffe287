/*
Package mifare implements the card-side logic for MIFARE Classic 1K cards accessed
through a PC/SC reader.

# Memory Layout

A 1K card holds 16 sectors of 4 blocks of 16 bytes. Blocks are addressed either
absolutely (0..63) or as sector:block. The last block of every sector is the
sector trailer:

	bytes  0..5   Key A (write-only, reads back as zeroes)
	bytes  6..8   access bits
	byte   9      general purpose byte (GPB)
	bytes 10..15  Key B

Block 0 of sector 0 is the manufacturer block (UID, BCC, SAK/ATQA, signature).

# Operations

Every data operation goes through the reader's pseudo-APDUs: the key is loaded in
the reader, the sector is authenticated once, then any of its 4 blocks can be read
or written until the next authentication. Sequencer drives full-card reads and
streaming writes on top of Transport and records the outcome in a CardImage.
*/
package mifare

// Card geometry.
const (
	BlocksPerSector = 4
	Sectors         = 16
	BlockSize       = 16
	KeySize         = 6
	TotalBlocks     = Sectors * BlocksPerSector

	// TrailerIndex is the in-sector index of the sector trailer.
	TrailerIndex = BlocksPerSector - 1
)

// SectorOf returns the sector holding absolute block n.
func SectorOf(n int) int { return n / BlocksPerSector }

// BlockInSector returns the in-sector index of absolute block n.
func BlockInSector(n int) int { return n % BlocksPerSector }

// AbsoluteBlock converts a sector:block pair to an absolute block number.
func AbsoluteBlock(sector, block int) int { return sector*BlocksPerSector + block }

// IsTrailer reports whether absolute block n is a sector trailer.
func IsTrailer(n int) bool { return BlockInSector(n) == TrailerIndex }
