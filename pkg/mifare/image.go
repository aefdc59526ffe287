package mifare

// Block is one 16-byte block and the status of its last operation.
type Block struct {
	Data   [BlockSize]byte
	Status Status
}

// Trailer is the decoded sector trailer. KeyA is never populated from a read:
// the card always returns it as zeroes.
type Trailer struct {
	KeyA       Key
	AccessBits [3]byte
	GPB        byte
	KeyB       Key
	Status     Status
}

// decode fills the trailer from a trailer block payload.
func (t *Trailer) decode(data [BlockSize]byte) {
	copy(t.AccessBits[:], data[6:9])
	t.GPB = data[9]
	t.KeyB.Type = KeyB
	copy(t.KeyB.Data[:], data[10:16])
	t.Status = StatusOK
}

// Sector groups the 4 blocks of a sector with its decoded trailer.
type Sector struct {
	Index   int
	Blocks  [BlocksPerSector]Block
	Trailer Trailer
	Status  Status
}

// Access recomputes the access code of each block from the trailer.
func (s *Sector) Access() [BlocksPerSector]AccessCode {
	return DecodeAccessBits(s.Trailer.AccessBits[0], s.Trailer.AccessBits[1])
}

// Descriptors recomputes the permission text of each block from the trailer.
func (s *Sector) Descriptors() [BlocksPerSector]string {
	var out [BlocksPerSector]string
	for i, c := range s.Access() {
		out[i] = c.Describe()
	}
	return out
}

// Head is the manufacturer block (sector 0, block 0) reinterpreted.
type Head struct {
	UID          [4]byte
	BCC          byte
	Manufacturer [3]byte
	Signature    [8]byte
	Valid        bool
}

func (h *Head) decode(data [BlockSize]byte) {
	copy(h.UID[:], data[0:4])
	h.BCC = data[4]
	copy(h.Manufacturer[:], data[5:8])
	copy(h.Signature[:], data[8:16])
	h.Valid = true
}

// BCCValid reports whether BCC is the XOR of the 4 UID bytes.
func (h Head) BCCValid() bool {
	return h.UID[0]^h.UID[1]^h.UID[2]^h.UID[3] == h.BCC
}

// CardImage is the in-memory dump of one card. It lives for the whole session:
// each read pass overwrites it sector by sector, and sectors that fail keep the
// payloads of the previous pass.
type CardImage struct {
	Head    Head
	Sectors [Sectors]Sector
	ATR     []byte
	Status  Status
}

// NewCardImage returns an empty image with sector indexes assigned.
func NewCardImage() *CardImage {
	img := &CardImage{}
	for i := range img.Sectors {
		img.Sectors[i].Index = i
		img.Sectors[i].Trailer.KeyA.Type = KeyA
		img.Sectors[i].Trailer.KeyB.Type = KeyB
	}
	return img
}

// Block returns the block at absolute address n. It panics when n is out of range.
func (c *CardImage) Block(n int) *Block {
	return &c.Sectors[SectorOf(n)].Blocks[BlockInSector(n)]
}

// Clone returns a deep copy for inspection outside the session worker.
func (c *CardImage) Clone() *CardImage {
	cp := *c
	cp.ATR = append([]byte(nil), c.ATR...)
	return &cp
}
