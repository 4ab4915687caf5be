package iso7816

import (
	"fmt"
	"log/slog"
)

// CLIENT & PROTOCOL LOGIC:
// The Client is the transport driver over the physical connection. It hides the
// ISO 7816-3 behaviours T=0 readers leak to the application layer:
//
// 1. "61 XX" (Response Available): a GET RESPONSE with Le = XX is sent automatically.
// 2. "6C XX" (Wrong Length): the original command is re-sent with Le = XX.
//
// Send returns a Trace with every atomic exchange made for the logical request.

// maxProtocolSteps bounds the 61XX/6CXX follow-ups of a single Send.
const maxProtocolSteps = 16

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with the card.
// It is not safe for concurrent use; callers serialise access per card.
type Client struct {
	Card Transmitter
	Log  *slog.Logger
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card, Log: slog.New(slog.DiscardHandler)}
}

// WithLogger sets the logger used for APDU-level debug records.
func (c *Client) WithLogger(log *slog.Logger) *Client {
	c.Log = log
	return c
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	return c.send(cmd, 0)
}

func (c *Client) send(cmd *CommandAPDU, depth int) (Trace, error) {
	if depth > maxProtocolSteps {
		return nil, fmt.Errorf("protocol loop: more than %d GET RESPONSE/Le corrections", maxProtocolSteps)
	}

	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	c.logger().Debug("apdu >>", "cmd", fmt.Sprintf("%X", rawCmd))

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	c.logger().Debug("apdu <<", "data_len", len(resp.Data), "sw", fmt.Sprintf("%04X", uint16(resp.Status)))

	trace := Trace{{Command: cmd, Response: resp}}

	var next *CommandAPDU
	switch resp.Status.SW1() {
	case 0x61:
		// GET RESPONSE stays on the logical channel of the original command.
		respCls := cmd.Class
		respCls.IsChained = false
		next = NewCommandAPDU(respCls, MustInstruction(INS_GET_RESPONSE), 0x00, 0x00, nil, shortLe(resp.Status.SW2()))
	case 0x6C:
		retry := *cmd
		retry.Ne = shortLe(resp.Status.SW2())
		next = &retry
	default:
		return trace, nil
	}

	subTrace, err := c.send(next, depth+1)
	if err != nil {
		return trace, err
	}
	return append(trace, subTrace...), nil
}

func (c *Client) logger() *slog.Logger {
	if c.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Log
}
