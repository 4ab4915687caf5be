// Package musclesim is an in-memory MUSCLE applet. It answers raw command
// APDUs the way a card behind a PC/SC reader would, so it can sit behind an
// iso7816.Client wherever a real card is expected.
package musclesim

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gregLibert/musclecard/pkg/iso7816"
	"github.com/gregLibert/musclecard/pkg/tlv"
)

// Applet status words.
const (
	swOK              iso7816.StatusWord = 0x9000
	swNoMemory        iso7816.StatusWord = 0x9C01
	swAuthFailed      iso7816.StatusWord = 0x9C02
	swOperationDenied iso7816.StatusWord = 0x9C03
	swUnauthorized    iso7816.StatusWord = 0x9C06
	swNotFound        iso7816.StatusWord = 0x9C07
	swExists          iso7816.StatusWord = 0x9C08
	swIncorrectAlg    iso7816.StatusWord = 0x9C09
	swInvalidParam    iso7816.StatusWord = 0x9C0F
	swBadKeyNum       iso7816.StatusWord = 0x9C11
	swEndOfList       iso7816.StatusWord = 0x9C12
	swBlocked         iso7816.StatusWord = iso7816.SW_ERR_AUTH_METHOD_BLOCKED
	swINSNotSupported iso7816.StatusWord = iso7816.SW_ERR_INS_INVALID
	swCLANotSupported iso7816.StatusWord = iso7816.SW_ERR_CLA_NOT_SUPPORTED
)

const (
	appletCLA byte = 0xB0

	stagingID uint32 = 0xFFFFFFFE
	outputID  uint32 = 0xFFFFFFFF

	defaultMemory = 16 * 1024
	maxSlots      = 16
)

// AID is the identifier the emulator answers to.
var AID = []byte{0xA0, 0x00, 0x00, 0x00, 0x01, 0x01}

// Label is returned in the FCI on selection.
const Label = "MUSCLE"

// Applet is the emulated card. It is safe for concurrent use, but like a real
// card it processes one command at a time.
type Applet struct {
	mu sync.Mutex

	log      *slog.Logger
	rand     io.Reader
	memory   int
	emptyEnd bool

	selected bool
	pending  []byte

	objects  map[uint32]*object
	listing  []uint32
	cursor   int
	pins     map[byte]*pin
	loggedIn uint16
	keys     [maxSlots]*key
	ciphers  [maxSlots]*cipherState

	history [][]byte
	faults  map[byte][]fault
	table   map[byte]handler
}

type handler func(*iso7816.CommandAPDU) *iso7816.ResponseAPDU

type fault struct {
	sw  iso7816.StatusWord
	err error
}

// Option configures an Applet.
type Option func(*Applet)

// WithLogger sets the logger for per-command debug records.
func WithLogger(log *slog.Logger) Option {
	return func(a *Applet) { a.log = log }
}

// WithRandom replaces crypto/rand as the challenge source.
func WithRandom(r io.Reader) Option {
	return func(a *Applet) { a.rand = r }
}

// WithMemory sets the object store capacity in bytes.
func WithMemory(n int) Option {
	return func(a *Applet) { a.memory = n }
}

// WithEmptyListEnd ends listings with an empty 9000 instead of 9C12, as some
// applet builds do.
func WithEmptyListEnd() Option {
	return func(a *Applet) { a.emptyEnd = true }
}

// WithPIN provisions PIN ref with its unblock code and retry budget.
func WithPIN(ref byte, value, unblock []byte, tries int) Option {
	return func(a *Applet) { a.SetPIN(ref, value, unblock, tries) }
}

// New returns an empty applet.
func New(opts ...Option) *Applet {
	a := &Applet{
		log:     slog.New(slog.DiscardHandler),
		rand:    rand.Reader,
		memory:  defaultMemory,
		objects: make(map[uint32]*object),
		pins:    make(map[byte]*pin),
		faults:  make(map[byte][]fault),
	}
	a.table = map[byte]handler{
		0x58: a.listObjects,
		0x56: a.readObject,
		0x5A: a.createObject,
		0x54: a.updateObject,
		0x52: a.deleteObject,
		0x42: a.verifyPIN,
		0x46: a.unblockPIN,
		0x44: a.changePIN,
		0x72: a.getChallenge,
		0x30: a.generateKeyPair,
		0x34: a.exportKey,
		0x32: a.importKey,
		0x36: a.computeCrypt,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fail makes the next command with instruction ins answer sw without being
// executed. Calls queue up per instruction.
func (a *Applet) Fail(ins byte, sw uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faults[ins] = append(a.faults[ins], fault{sw: iso7816.StatusWord(sw)})
}

// FailTransmit makes the next command with instruction ins fail at the
// transport level with err.
func (a *Applet) FailTransmit(ins byte, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faults[ins] = append(a.faults[ins], fault{err: err})
}

// History returns a copy of every raw command received so far.
func (a *Applet) History() [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([][]byte, len(a.history))
	for i, h := range a.history {
		out[i] = bytes.Clone(h)
	}
	return out
}

// ResetHistory forgets recorded commands.
func (a *Applet) ResetHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// Transmit implements iso7816.Transmitter.
func (a *Applet) Transmit(raw []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history, bytes.Clone(raw))

	cmd, err := iso7816.ParseCommandAPDU(raw)
	if err != nil {
		a.log.Debug("malformed command", "raw", fmt.Sprintf("%X", raw), "err", err)
		return iso7816.SW_ERR_WRONG_LENGTH.Bytes(), nil
	}

	ins := byte(cmd.Instruction.Raw)
	if q := a.faults[ins]; len(q) > 0 {
		f := q[0]
		a.faults[ins] = q[1:]
		if f.err != nil {
			return nil, f.err
		}
		a.log.Debug("injected fault", "ins", fmt.Sprintf("%02X", ins), "sw", fmt.Sprintf("%04X", uint16(f.sw)))
		return f.sw.Bytes(), nil
	}

	resp := a.dispatch(cmd)
	a.log.Debug("command",
		"ins", fmt.Sprintf("%02X", ins),
		"p1p2", fmt.Sprintf("%02X%02X", cmd.P1, cmd.P2),
		"lc", len(cmd.Data),
		"sw", fmt.Sprintf("%04X", uint16(resp.Status)),
	)
	return resp.Bytes(), nil
}

func (a *Applet) dispatch(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	ins := cmd.Instruction.Raw

	switch {
	case ins == iso7816.INS_SELECT && !cmd.Class.IsProprietary:
		return a.selectApplet(cmd)
	case ins == iso7816.INS_GET_RESPONSE:
		return a.getResponse(cmd)
	case cmd.Class.Raw != appletCLA:
		return status(swCLANotSupported)
	}

	h, ok := a.table[byte(ins)]
	if !ok {
		return status(swINSNotSupported)
	}
	return h(cmd)
}

// selectApplet answers 61XX and leaves the FCI for GET RESPONSE, as a T=0
// card does for a case 3 SELECT.
func (a *Applet) selectApplet(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	if cmd.P1 != byte(iso7816.SelectByDFName) || !bytes.Equal(cmd.Data, AID) {
		return status(iso7816.SW_ERR_FILE_NOT_FOUND)
	}

	fci, err := tlv.Encode(tlv.Composite("6F",
		tlv.Primitive("84", AID),
		tlv.Primitive("50", []byte(Label)),
	))
	if err != nil {
		return status(iso7816.SW_ERR_UNKNOWN)
	}

	a.selected = true
	a.loggedIn = 0
	a.ciphers = [maxSlots]*cipherState{}
	a.pending = fci
	return status(iso7816.NewStatusWord(0x61, byte(len(fci))))
}

func (a *Applet) getResponse(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	if len(a.pending) == 0 {
		return status(iso7816.SW_ERR_COND_OF_USE_NOT_SAT)
	}
	n := min(len(a.pending), cmd.Ne)
	out := a.pending[:n]
	a.pending = a.pending[n:]
	if len(a.pending) > 0 {
		return iso7816.NewResponseAPDU(out, iso7816.NewStatusWord(0x61, byte(min(len(a.pending), 0xFF))))
	}
	return iso7816.NewResponseAPDU(out, swOK)
}

// Selected reports whether the applet has been selected since creation.
func (a *Applet) Selected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

func status(sw iso7816.StatusWord) *iso7816.ResponseAPDU {
	return iso7816.NewResponseAPDU(nil, sw)
}

func success(data []byte) *iso7816.ResponseAPDU {
	return iso7816.NewResponseAPDU(data, swOK)
}
