package mifare

import (
	"errors"
	"fmt"
)

var (
	ErrKeyLoad              = errors.New("key load failed")
	ErrAuth                 = errors.New("authentication failed")
	ErrBlockRead            = errors.New("block read failed")
	ErrBlockWrite           = errors.New("block write failed")
	ErrInvalidPayloadLength = errors.New("payload length is not a multiple of the block size")
	ErrBlockOutOfRange      = errors.New("block out of range")
)

// BlockError locates a failure on one absolute block.
type BlockError struct {
	Op    string
	Block int
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("%s %02d:%d: %v", e.Op, SectorOf(e.Block), BlockInSector(e.Block), e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }
