package mifare

import (
	"errors"
	"fmt"
	"log/slog"
)

// CardOps is the card operation surface driven by Sequencer. *Transport implements it.
type CardOps interface {
	LoadKey(key [KeySize]byte) bool
	Authenticate(block int, kt KeyType) bool
	ReadBlock(block int) ([BlockSize]byte, bool)
	WriteBlock(block int, data [BlockSize]byte) bool
}

// Sequencer runs full-card reads and streaming writes with a single key.
type Sequencer struct {
	ops    CardOps
	key    Key
	logger *slog.Logger
}

// NewSequencer returns a sequencer authenticating every sector with key.
func NewSequencer(ops CardOps, key Key, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{ops: ops, key: key, logger: logger}
}

// ReadSummary counts the outcome of a read pass. Failures counts failed blocks
// plus one per sector that could not be authenticated.
type ReadSummary struct {
	BlocksRead int
	Failures   int
}

// ReadCard reads every sector into img. A failing sector is marked and skipped;
// the pass never aborts. ok reports whether at least one block was read.
func (s *Sequencer) ReadCard(img *CardImage) (ReadSummary, bool) {
	var sum ReadSummary

	for i := range img.Sectors {
		sector := &img.Sectors[i]
		first := AbsoluteBlock(i, 0)

		if !s.ops.LoadKey(s.key.Data) {
			s.logger.Warn("sector skipped, key not loaded", "sector", i)
			sector.Status = StatusKeyError
			sum.Failures++
			continue
		}
		if !s.ops.Authenticate(first, s.key.Type) {
			sector.Status = StatusAuthError
			sum.Failures++
			continue
		}

		sector.Status = StatusOK
		for b := range sector.Blocks {
			block := &sector.Blocks[b]
			data, ok := s.ops.ReadBlock(first + b)
			if !ok {
				block.Status = StatusReadError
				sector.Status = StatusReadError
				sum.Failures++
				continue
			}
			block.Data = data
			block.Status = StatusOK
			sum.BlocksRead++
			if b == TrailerIndex {
				sector.Trailer.decode(data)
			}
		}
	}

	if b0 := img.Sectors[0].Blocks[0]; b0.Status == StatusOK {
		img.Head.decode(b0.Data)
		if !img.Head.BCCValid() {
			s.logger.Warn("manufacturer block BCC mismatch",
				"uid", fmt.Sprintf("%X", img.Head.UID[:]), "bcc", fmt.Sprintf("%02X", img.Head.BCC))
		}
	}

	ok := sum.BlocksRead > 0
	if ok {
		img.Status = StatusOK
	} else {
		img.Status = StatusReadError
	}
	s.logger.Info("card read", "blocks_read", sum.BlocksRead, "failures", sum.Failures)
	return sum, ok
}

// BlockOutcome is the result of writing one block.
type BlockOutcome struct {
	Block  int
	Status Status
}

// WriteReport lists the outcome of every block of a write, in order.
type WriteReport struct {
	Blocks []BlockOutcome
}

// Written counts the blocks written successfully.
func (r WriteReport) Written() int {
	n := 0
	for _, b := range r.Blocks {
		if b.Status == StatusOK {
			n++
		}
	}
	return n
}

// OK reports whether at least one block was attempted and every block succeeded.
func (r WriteReport) OK() bool {
	return len(r.Blocks) > 0 && r.Written() == len(r.Blocks)
}

// checkStream validates a write before any card operation.
func checkStream(start int, payload []byte) error {
	if len(payload) == 0 || len(payload)%BlockSize != 0 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidPayloadLength, len(payload))
	}
	end := start + len(payload)/BlockSize
	if start < 0 || end > TotalBlocks {
		return fmt.Errorf("%w: blocks %d..%d", ErrBlockOutOfRange, start, end-1)
	}
	return nil
}

// WriteStream writes payload to consecutive blocks from start. The sector of the
// first block is authenticated, then a new authentication happens only after a
// trailer block, when the stream enters the next sector. Blocks of a sector that
// failed to authenticate are not written. The returned error joins one
// *BlockError per failed block and is nil only when every block was written.
//
// img mirrors the outcome when not nil. Callers are expected to keep block 0 and
// trailers out of payloads; the sequencer does not check.
func (s *Sequencer) WriteStream(img *CardImage, start int, payload []byte) (WriteReport, error) {
	if err := checkStream(start, payload); err != nil {
		return WriteReport{}, err
	}
	return s.writeStream(img, start, payload)
}

func (s *Sequencer) writeStream(img *CardImage, start int, payload []byte) (WriteReport, error) {
	var (
		report     WriteReport
		errs       []error
		newSector  = true
		authed     bool
		authStatus Status
		authErr    error
	)

	for off := 0; off < len(payload); off += BlockSize {
		block := start + off/BlockSize
		var data [BlockSize]byte
		copy(data[:], payload[off:off+BlockSize])

		if newSector {
			authed, authStatus, authErr = s.unlock(block)
		}

		outcome := BlockOutcome{Block: block, Status: StatusOK}
		switch {
		case !authed:
			outcome.Status = authStatus
			errs = append(errs, &BlockError{Op: "write", Block: block, Err: fmt.Errorf("%w: %w", ErrBlockWrite, authErr)})
		case !s.ops.WriteBlock(block, data):
			outcome.Status = StatusWriteError
			errs = append(errs, &BlockError{Op: "write", Block: block, Err: ErrBlockWrite})
		}
		report.Blocks = append(report.Blocks, outcome)
		s.mirror(img, block, data, outcome.Status == StatusOK)

		newSector = IsTrailer(block)
	}

	s.logger.Info("card write", "start", start, "blocks", len(report.Blocks), "written", report.Written())
	return report, errors.Join(errs...)
}

// unlock loads the key and authenticates the sector of block.
func (s *Sequencer) unlock(block int) (bool, Status, error) {
	if !s.ops.LoadKey(s.key.Data) {
		s.logger.Warn("sector locked, key not loaded", "sector", SectorOf(block))
		return false, StatusKeyError, ErrKeyLoad
	}
	if !s.ops.Authenticate(block, s.key.Type) {
		return false, StatusAuthError, ErrAuth
	}
	return true, StatusOK, nil
}

func (s *Sequencer) mirror(img *CardImage, block int, data [BlockSize]byte, ok bool) {
	if img == nil {
		return
	}
	b := img.Block(block)
	if !ok {
		b.Status = StatusWriteError
		return
	}
	b.Data = data
	b.Status = StatusOK
	if IsTrailer(block) {
		img.Sectors[SectorOf(block)].Trailer.decode(data)
	}
	if block == 0 {
		img.Head.decode(data)
	}
}

// Segment is one contiguous write stream.
type Segment struct {
	Start int
	Data  []byte
}

// Blocks returns the number of blocks covered by the segment.
func (s Segment) Blocks() int { return len(s.Data) / BlockSize }

// WritePlan is an ordered list of streams, usually split around trailers.
type WritePlan struct {
	Segments []Segment
}

// Blocks returns the number of blocks the plan writes.
func (p WritePlan) Blocks() int {
	n := 0
	for _, s := range p.Segments {
		n += s.Blocks()
	}
	return n
}

// Validate checks every segment without touching the card.
func (p WritePlan) Validate() error {
	if len(p.Segments) == 0 {
		return fmt.Errorf("%w: empty plan", ErrInvalidPayloadLength)
	}
	for _, seg := range p.Segments {
		if err := checkStream(seg.Start, seg.Data); err != nil {
			return err
		}
	}
	return nil
}

// ApplyPlan validates the plan, then streams its segments in order. Validation
// failures abort before any card operation.
func (s *Sequencer) ApplyPlan(img *CardImage, plan WritePlan) (WriteReport, error) {
	if err := plan.Validate(); err != nil {
		return WriteReport{}, err
	}

	var (
		report WriteReport
		errs   []error
	)
	for _, seg := range plan.Segments {
		r, err := s.writeStream(img, seg.Start, seg.Data)
		report.Blocks = append(report.Blocks, r.Blocks...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}
