package mifare

import (
	"log/slog"

	"github.com/gregLibert/mifare-session/pkg/iso7816"
)

// PC/SC Part 3 storage-card commands. The key always goes to volatile slot 0.
const (
	keyStructureVolatile = 0x00
	keySlot              = 0x00
	authVersion          = 0x60
)

// LoadKeyAPDU builds FF 82 00 00 06 <key>.
func LoadKeyAPDU(key [KeySize]byte) *iso7816.CommandAPDU {
	return iso7816.NewCommandAPDU(iso7816.PCSCClass, iso7816.MustInstruction(iso7816.INS_LOAD_KEYS),
		keyStructureVolatile, keySlot, append([]byte(nil), key[:]...), 0)
}

// AuthenticateAPDU builds FF 86 00 00 05 <00|01> 00 <block> 60 00.
func AuthenticateAPDU(block byte, kt KeyType) *iso7816.CommandAPDU {
	data := []byte{byte(kt), 0x00, block, authVersion, keySlot}
	return iso7816.NewCommandAPDU(iso7816.PCSCClass, iso7816.MustInstruction(iso7816.INS_GENERAL_AUTHENTICATE),
		0x00, 0x00, data, 0)
}

// ReadBlockAPDU builds FF B0 00 <block> 10.
func ReadBlockAPDU(block byte) *iso7816.CommandAPDU {
	return iso7816.NewCommandAPDU(iso7816.PCSCClass, iso7816.MustInstruction(iso7816.INS_READ_BINARY),
		0x00, block, nil, BlockSize)
}

// WriteBlockAPDU builds FF D6 00 <block> 10 <data>.
func WriteBlockAPDU(block byte, data [BlockSize]byte) *iso7816.CommandAPDU {
	return iso7816.NewCommandAPDU(iso7816.PCSCClass, iso7816.MustInstruction(iso7816.INS_UPDATE_BINARY),
		0x00, block, append([]byte(nil), data[:]...), 0)
}

// Transport runs the four card operations over a raw transmit capability.
// Failures are logged with their sector:block position and reported as false;
// nothing is retried.
type Transport struct {
	client *iso7816.Client
	logger *slog.Logger
}

// NewTransport wraps tx. A nil logger means slog.Default().
func NewTransport(tx iso7816.Transmitter, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	client := iso7816.NewClient(tx)
	client.Logger = logger
	return &Transport{client: client, logger: logger}
}

// exchange sends cmd and returns the data and status of the final response.
func (t *Transport) exchange(cmd *iso7816.CommandAPDU) (data []byte, sw iso7816.StatusWord, err error) {
	trace, err := t.client.Send(cmd)
	if err != nil {
		return nil, 0, err
	}
	return trace.Data(), trace.Status(), nil
}

// failure logs a failed operation on block (-1 when not block-scoped).
func (t *Transport) failure(msg string, block int, sw iso7816.StatusWord, err error, attrs ...any) {
	if block >= 0 {
		attrs = append(attrs, "sector", SectorOf(block), "block", BlockInSector(block))
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	} else {
		attrs = append(attrs, "sw", sw.Verbose())
	}
	t.logger.Warn(msg, attrs...)
}

// LoadKey stores key in the reader's volatile key slot. The key is never logged.
func (t *Transport) LoadKey(key [KeySize]byte) bool {
	_, sw, err := t.exchange(LoadKeyAPDU(key))
	if err != nil || !sw.IsOK() {
		t.failure("fail to load key", -1, sw, err)
		return false
	}
	return true
}

// Authenticate unlocks the sector holding block with the loaded key.
func (t *Transport) Authenticate(block int, kt KeyType) bool {
	if !t.inRange("authenticate", block) {
		return false
	}
	_, sw, err := t.exchange(AuthenticateAPDU(byte(block), kt))
	if err != nil || !sw.IsOK() {
		t.failure("authentication failed", block, sw, err, "key", kt.String())
		return false
	}
	return true
}

func (t *Transport) ReadBlock(block int) ([BlockSize]byte, bool) {
	var out [BlockSize]byte
	if !t.inRange("read", block) {
		return out, false
	}
	data, sw, err := t.exchange(ReadBlockAPDU(byte(block)))
	if err != nil || !sw.IsOK() {
		t.failure("fail to read block", block, sw, err)
		return out, false
	}
	if len(data) != BlockSize {
		t.failure("short block read", block, sw, nil, "len", len(data))
		return out, false
	}
	copy(out[:], data)
	return out, true
}

func (t *Transport) WriteBlock(block int, data [BlockSize]byte) bool {
	if !t.inRange("write", block) {
		return false
	}
	_, sw, err := t.exchange(WriteBlockAPDU(byte(block), data))
	if err != nil || !sw.IsOK() {
		t.failure("fail to write block", block, sw, err)
		return false
	}
	return true
}

func (t *Transport) inRange(op string, block int) bool {
	if block < 0 || block >= TotalBlocks {
		t.logger.Warn("block out of range", "op", op, "block", block)
		return false
	}
	return true
}
