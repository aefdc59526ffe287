package mifare

import "fmt"

// Plans built here never touch block 0 (manufacturer block) nor any sector
// trailer: those are excluded from generic writes.

// Writable reports whether absolute block n may be targeted by a generic write.
func Writable(n int) bool {
	return n > 0 && n < TotalBlocks && !IsTrailer(n)
}

// PadBlocks returns data zero-padded to a whole number of blocks. Empty input
// yields one zero block.
func PadBlocks(data []byte) []byte {
	n := (len(data) + BlockSize - 1) / BlockSize
	if n == 0 {
		n = 1
	}
	out := make([]byte, n*BlockSize)
	copy(out, data)
	return out
}

// PlanData lays data out from block start onwards, zero-padding the last block
// and skipping trailers. It fails when start is not writable or the card ends
// before the data does.
func PlanData(start int, data []byte) (WritePlan, error) {
	if !Writable(start) {
		return WritePlan{}, fmt.Errorf("%w: block %d is not writable", ErrBlockOutOfRange, start)
	}
	padded := PadBlocks(data)

	var (
		plan  WritePlan
		seg   *Segment
		block = start
	)
	for off := 0; off < len(padded); off += BlockSize {
		for block < TotalBlocks && !Writable(block) {
			block++
			seg = nil
		}
		if block >= TotalBlocks {
			return WritePlan{}, fmt.Errorf("%w: %d bytes do not fit from block %d", ErrBlockOutOfRange, len(data), start)
		}
		if seg == nil {
			plan.Segments = append(plan.Segments, Segment{Start: block})
			seg = &plan.Segments[len(plan.Segments)-1]
		}
		seg.Data = append(seg.Data, padded[off:off+BlockSize]...)
		block++
	}
	return plan, nil
}

// PlanSector covers every writable block of sector with content from fill.
func PlanSector(sector int, fill func([]byte)) (WritePlan, error) {
	if sector < 0 || sector >= Sectors {
		return WritePlan{}, fmt.Errorf("%w: sector %d", ErrBlockOutOfRange, sector)
	}
	first := AbsoluteBlock(sector, 0)
	if !Writable(first) {
		first++
	}
	n := AbsoluteBlock(sector, TrailerIndex) - first
	data := make([]byte, n*BlockSize)
	if fill != nil {
		fill(data)
	}
	return WritePlan{Segments: []Segment{{Start: first, Data: data}}}, nil
}

// PlanCard covers every writable block of the card, one segment per sector.
func PlanCard(fill func([]byte)) WritePlan {
	var plan WritePlan
	for i := 0; i < Sectors; i++ {
		p, _ := PlanSector(i, fill)
		plan.Segments = append(plan.Segments, p.Segments...)
	}
	return plan
}
