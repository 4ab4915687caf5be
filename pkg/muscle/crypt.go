package muscle

import (
	"fmt"

	"github.com/gregLibert/musclecard/pkg/iso7816"
)

// STREAMING CIPHER:
// One logical operation is Init, zero or more Process, then exactly one Final,
// all against the same key slot. Every phase answers len(2) ‖ output. Data is
// always carried inside the command (location APDU), at most MaxCryptChunk
// bytes per Process or Final. A failed phase leaves the card-side state
// undefined and nothing here tries to recover it.

// CipherMode selects padding and algorithm for ComputeCrypt.
type CipherMode byte

const (
	ModeRSANoPad    CipherMode = 0x00
	ModeRSAPKCS1    CipherMode = 0x01
	ModeDSASHA      CipherMode = 0x10
	ModeDESCBCNoPad CipherMode = 0x20
	ModeDESECBNoPad CipherMode = 0x21
)

// Direction selects the key operation.
type Direction byte

const (
	DirSign    Direction = 0x01
	DirVerify  Direction = 0x02
	DirEncrypt Direction = 0x03
	DirDecrypt Direction = 0x04
)

// Phase is the P2 of a compute command.
type Phase byte

const (
	PhaseInit    Phase = 0x01
	PhaseProcess Phase = 0x02
	PhaseFinal   Phase = 0x03
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseProcess:
		return "process"
	case PhaseFinal:
		return "final"
	}
	return fmt.Sprintf("Phase(%d)", byte(p))
}

// CryptInit opens a cipher operation on slot. The seed may be empty.
func (c *Card) CryptInit(slot byte, mode CipherMode, dir Direction, seed []byte) ([]byte, error) {
	const op = "crypt init"

	if err := checkSlot(op, "key", slot); err != nil {
		return nil, err
	}
	if len(seed) > MaxCryptSeed {
		return nil, invalidArgs(op, "seed of %d bytes (max %d)", len(seed), MaxCryptSeed)
	}
	return c.cryptPhase(op, slot, PhaseInit, encodeCryptInit(mode, dir, seed))
}

// CryptProcess feeds one chunk to an open operation.
func (c *Card) CryptProcess(slot byte, chunk []byte) ([]byte, error) {
	return c.cryptData("crypt process", slot, PhaseProcess, chunk)
}

// CryptFinal feeds the last chunk, possibly empty, and closes the operation.
func (c *Card) CryptFinal(slot byte, chunk []byte) ([]byte, error) {
	return c.cryptData("crypt final", slot, PhaseFinal, chunk)
}

func (c *Card) cryptData(op string, slot byte, phase Phase, chunk []byte) ([]byte, error) {
	if err := checkSlot(op, "key", slot); err != nil {
		return nil, err
	}
	if len(chunk) > MaxCryptChunk {
		return nil, invalidArgs(op, "chunk of %d bytes (max %d)", len(chunk), MaxCryptChunk)
	}
	return c.cryptPhase(op, slot, phase, encodeCryptData(chunk))
}

func (c *Card) cryptPhase(op string, slot byte, phase Phase, body []byte) ([]byte, error) {
	resp, err := c.transmit(op, insComputeCrypt, slot, byte(phase), body, iso7816.MaxShortLe)
	if err != nil {
		return nil, err
	}
	if err := c.classify(op, cryptTable, resp.Status); err != nil {
		return nil, err
	}

	out, err := decodeLengthPrefixed(resp.Data)
	if err != nil {
		return nil, unknownData(op, "%w", err)
	}
	return out, nil
}

// ComputeCrypt runs a whole operation over input: Init with an empty seed,
// Process while more than MaxCryptChunk bytes remain, then one Final with the
// rest. The outputs of every phase are concatenated.
func (c *Card) ComputeCrypt(slot byte, mode CipherMode, dir Direction, input []byte) ([]byte, error) {
	s := c.NewCipherSession(slot, mode, dir)

	out, err := s.Init(nil)
	if err != nil {
		return nil, err
	}

	for len(input) > MaxCryptChunk {
		part, err := s.Process(input[:MaxCryptChunk])
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
		input = input[MaxCryptChunk:]
	}

	part, err := s.Final(input)
	if err != nil {
		return nil, err
	}
	return append(out, part...), nil
}

// CipherSession tracks the phase of one cipher operation and refuses calls
// out of order. After a failure or after Final it refuses everything.
type CipherSession struct {
	card *Card
	slot byte
	mode CipherMode
	dir  Direction

	last   Phase
	closed bool
}

// NewCipherSession prepares an operation on slot. Nothing is sent until Init.
func (c *Card) NewCipherSession(slot byte, mode CipherMode, dir Direction) *CipherSession {
	return &CipherSession{card: c, slot: slot, mode: mode, dir: dir}
}

// Init sends the Init phase.
func (s *CipherSession) Init(seed []byte) ([]byte, error) {
	if err := s.enter(PhaseInit); err != nil {
		return nil, err
	}
	return s.done(s.card.CryptInit(s.slot, s.mode, s.dir, seed))
}

// Process sends one Process phase.
func (s *CipherSession) Process(chunk []byte) ([]byte, error) {
	if err := s.enter(PhaseProcess); err != nil {
		return nil, err
	}
	return s.done(s.card.CryptProcess(s.slot, chunk))
}

// Final sends the Final phase and closes the session.
func (s *CipherSession) Final(chunk []byte) ([]byte, error) {
	if err := s.enter(PhaseFinal); err != nil {
		return nil, err
	}
	out, err := s.done(s.card.CryptFinal(s.slot, chunk))
	s.closed = true
	return out, err
}

// Phase returns the last phase sent, zero before Init.
func (s *CipherSession) Phase() Phase {
	return s.last
}

func (s *CipherSession) enter(next Phase) error {
	const op = "cipher session"

	if s.closed {
		return invalidArgs(op, "%s on a closed session", next)
	}
	switch next {
	case PhaseInit:
		if s.last != 0 {
			return invalidArgs(op, "init after %s", s.last)
		}
	default:
		if s.last == 0 {
			return invalidArgs(op, "%s before init", next)
		}
	}
	s.last = next
	return nil
}

func (s *CipherSession) done(out []byte, err error) ([]byte, error) {
	if err != nil {
		s.closed = true
	}
	return out, err
}
