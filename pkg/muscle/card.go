package muscle

import (
	"fmt"
	"log/slog"

	"github.com/gregLibert/musclecard/pkg/iso7816"
)

// Transport sends one logical command and returns every exchange it took.
// *iso7816.Client satisfies it.
type Transport interface {
	Send(cmd *iso7816.CommandAPDU) (iso7816.Trace, error)
}

// Card drives the MUSCLE applet over a Transport.
//
// A Card holds no lock. Commands are strictly request/response and callers
// must serialise access to one Card themselves.
type Card struct {
	tr      Transport
	cla     iso7816.Class
	log     *slog.Logger
	generic GenericClassifier
}

// Option configures a Card.
type Option func(*Card)

// WithLogger sets the logger used for debug records. The default discards.
func WithLogger(log *slog.Logger) Option {
	return func(c *Card) {
		if log != nil {
			c.log = log
		}
	}
}

// WithGenericClassifier replaces the fallback for status words the applet
// tables do not cover. The default is ISOClassifier.
func WithGenericClassifier(g GenericClassifier) Option {
	return func(c *Card) {
		if g != nil {
			c.generic = g
		}
	}
}

// WithClass overrides the CLA byte of applet commands.
func WithClass(cla iso7816.Class) Option {
	return func(c *Card) {
		c.cla = cla
	}
}

// New returns a Card bound to tr.
func New(tr Transport, opts ...Option) *Card {
	c := &Card{
		tr:      tr,
		cla:     iso7816.MustClass(AppletClass),
		log:     slog.New(slog.DiscardHandler),
		generic: ISOClassifier,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// transmit sends one applet command and returns the final response. Only
// transport failures are reported here, status words are left to the caller.
func (c *Card) transmit(op string, ins iso7816.InsCode, p1, p2 byte, data []byte, ne int) (*iso7816.ResponseAPDU, error) {
	return c.send(op, iso7816.NewCommandAPDU(c.cla, iso7816.MustInstruction(ins), p1, p2, data, ne))
}

func (c *Card) send(op string, cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	trace, err := c.tr.Send(cmd)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindTransport, Tries: -1, Err: fmt.Errorf("INS %02X: %w", byte(cmd.Instruction.Raw), err)}
	}

	last := trace.Last()
	if last == nil || last.Response == nil {
		return nil, unknownData(op, "transport returned no response")
	}

	c.log.Debug("muscle exchange",
		"op", op,
		"ins", fmt.Sprintf("%02X", byte(cmd.Instruction.Raw)),
		"p1p2", fmt.Sprintf("%02X%02X", cmd.P1, cmd.P2),
		"lc", len(cmd.Data),
		"sw", fmt.Sprintf("%04X", uint16(last.Response.Status)),
		"resp_len", len(last.Response.Data),
	)
	return last.Response, nil
}
