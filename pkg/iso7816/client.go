package iso7816

import (
	"fmt"
	"log/slog"
)

// CLIENT & PROTOCOL LOGIC:
// The Client acts as a high-level driver over the physical connection.
// It implements the automatic handling of ISO 7816-3 transport behaviors that are
// often exposed to the application layer in T=0 protocols:
//
// 1. "61 XX" (Response Available):
//    The card indicates that XX bytes are waiting. The client automatically generates
//    and sends a GET RESPONSE command to retrieve them.
//
// 2. "6C XX" (Wrong Length):
//    The card indicates that the expected length (Le) was incorrect and suggests XX.
//    The client automatically re-sends the original command with Le = XX.
//
// The Send() method returns a Trace, which is a log of all atomic transactions
// occurred to fulfill the logical request.

// maxFollowUps bounds the 61XX/6CXX chain a misbehaving reader can trigger.
const maxFollowUps = 8

// Transmitter abstracts the physical card connection.
// *scard.Card satisfies it.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card   Transmitter
	Logger *slog.Logger
}

// NewClient creates a new Client instance. Exchanges are logged at debug level
// on slog.Default() unless Logger is replaced.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card, Logger: slog.Default()}
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	return c.send(cmd, 0)
}

func (c *Client) send(cmd *CommandAPDU, depth int) (Trace, error) {
	if depth > maxFollowUps {
		return nil, fmt.Errorf("too many chained responses for %s", cmd.Instruction.Raw)
	}

	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	c.logger().Debug("apdu exchange",
		"cla", cmd.Class.String(),
		"ins", cmd.Instruction.Raw.String(),
		"p1", cmd.P1,
		"p2", cmd.P2,
		"lc", len(cmd.Data),
		"le", cmd.Ne,
		"sw", fmt.Sprintf("%04X", uint16(resp.Status)),
		"data_len", len(resp.Data),
	)

	trace := Trace{{Command: cmd, Response: resp}}

	sw1 := resp.Status.SW1()
	sw2 := resp.Status.SW2()

	// Case 61XX: More data available -> Issue GET RESPONSE
	if sw1 == 0x61 {
		// ISO 7816-4: GET RESPONSE must use the same logical channel as the original command.
		respCls := cmd.Class
		respCls.IsChained = false

		// Le = sw2 (number of bytes available, 00 means 256)
		ne := int(sw2)
		if ne == 0 {
			ne = MaxShortLe
		}
		getRespCmd := NewCommandAPDU(respCls, MustInstruction(INS_GET_RESPONSE), 0x00, 0x00, nil, ne)

		subTrace, err := c.send(getRespCmd, depth+1)
		trace = append(trace, subTrace...)
		return trace, err
	}

	// Case 6CXX: Wrong Length -> Re-issue original command with correct Le
	if sw1 == 0x6C {
		// Clone command to update Le without mutating the original pointer
		newCmd := *cmd
		newCmd.Ne = int(sw2)
		if newCmd.Ne == 0 {
			newCmd.Ne = MaxShortLe
		}

		subTrace, err := c.send(&newCmd, depth+1)
		trace = append(trace, subTrace...)
		return trace, err
	}

	return trace, nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
