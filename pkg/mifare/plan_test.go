package mifare

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func segmentStarts(p WritePlan) []int {
	var out []int
	for _, s := range p.Segments {
		out = append(out, s.Start)
	}
	return out
}

func TestPadBlocks(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 16}, {1, 16}, {16, 16}, {17, 32}, {40, 48},
	}
	for _, tt := range tests {
		if got := len(PadBlocks(make([]byte, tt.in))); got != tt.want {
			t.Errorf("PadBlocks(%d bytes) = %d bytes, want %d", tt.in, got, tt.want)
		}
	}
	if got := PadBlocks([]byte("hello")); !bytes.Equal(got[:5], []byte("hello")) || got[5] != 0 {
		t.Errorf("PadBlocks(hello) = %q", got)
	}
}

func TestPlanData(t *testing.T) {
	tests := []struct {
		name   string
		start  int
		size   int
		starts []int
		blocks int
	}{
		{"single block", 4, 5, []int{4}, 1},
		{"fills the sector", 4, 48, []int{4}, 3},
		{"skips a trailer", 6, 32, []int{6, 8}, 2},
		{"spans three sectors", 2, 16 * 5, []int{2, 4, 8}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanData(tt.start, bytes.Repeat([]byte{1}, tt.size))
			if err != nil {
				t.Fatalf("PlanData() error = %v", err)
			}
			if diff := cmp.Diff(tt.starts, segmentStarts(plan)); diff != "" {
				t.Errorf("segment starts mismatch (-want +got):\n%s", diff)
			}
			if plan.Blocks() != tt.blocks {
				t.Errorf("Blocks() = %d, want %d", plan.Blocks(), tt.blocks)
			}
			for _, s := range plan.Segments {
				for b := s.Start; b < s.Start+s.Blocks(); b++ {
					if !Writable(b) {
						t.Errorf("segment %+v covers protected block %d", s.Start, b)
					}
				}
			}
		})
	}
}

func TestPlanDataRejects(t *testing.T) {
	for _, start := range []int{0, 3, 7, 64, -1} {
		if _, err := PlanData(start, []byte{1}); !errors.Is(err, ErrBlockOutOfRange) {
			t.Errorf("PlanData(%d) error = %v", start, err)
		}
	}
	if _, err := PlanData(62, make([]byte, 2*BlockSize)); !errors.Is(err, ErrBlockOutOfRange) {
		t.Errorf("overflowing plan error = %v", err)
	}
}

func TestPlanSector(t *testing.T) {
	zero, err := PlanSector(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{1}, segmentStarts(zero)); diff != "" {
		t.Errorf("sector 0 must skip block 0 (-want +got):\n%s", diff)
	}
	if zero.Blocks() != 2 {
		t.Errorf("sector 0 blocks = %d, want 2", zero.Blocks())
	}

	filled, err := PlanSector(9, func(p []byte) {
		for i := range p {
			p[i] = 0xAA
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if filled.Segments[0].Start != 36 || filled.Blocks() != 3 || filled.Segments[0].Data[47] != 0xAA {
		t.Errorf("sector 9 plan = %+v", filled.Segments[0].Start)
	}

	if _, err := PlanSector(16, nil); !errors.Is(err, ErrBlockOutOfRange) {
		t.Errorf("PlanSector(16) error = %v", err)
	}
}

func TestPlanCard(t *testing.T) {
	plan := PlanCard(nil)
	if len(plan.Segments) != Sectors {
		t.Fatalf("segments = %d", len(plan.Segments))
	}
	// 16 sectors x 3 data blocks, minus the manufacturer block.
	if plan.Blocks() != 47 {
		t.Errorf("Blocks() = %d, want 47", plan.Blocks())
	}
}
