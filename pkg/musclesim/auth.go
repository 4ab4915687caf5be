package musclesim

import (
	"bytes"
	"crypto/subtle"

	"github.com/gregLibert/musclecard/pkg/iso7816"
)

type pin struct {
	value, unblock []byte
	max, left      int
}

// SetPIN provisions or replaces PIN ref. ref must be 0..7.
func (a *Applet) SetPIN(ref byte, value, unblock []byte, tries int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if tries > 0x0F {
		tries = 0x0F
	}
	a.pins[ref] = &pin{
		value:   bytes.Clone(value),
		unblock: bytes.Clone(unblock),
		max:     tries,
		left:    tries,
	}
}

// LoggedIn reports whether PIN ref has been verified since selection.
func (a *Applet) LoggedIn(ref byte) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loggedIn&(1<<ref) != 0
}

// check compares candidate with the PIN and updates its retry counter.
func (a *Applet) check(ref byte, p *pin, candidate []byte) iso7816.StatusWord {
	if p.left == 0 {
		return swBlocked
	}
	if subtle.ConstantTimeCompare(p.value, candidate) == 1 {
		p.left = p.max
		a.loggedIn |= 1 << ref
		return swOK
	}

	p.left--
	a.loggedIn &^= 1 << ref
	if p.left == 0 {
		return swBlocked
	}
	return iso7816.NewStatusWord(0x63, 0xC0|byte(p.left))
}

func (a *Applet) lookupPIN(ref byte) (*pin, iso7816.StatusWord) {
	if ref > 7 {
		return nil, swInvalidParam
	}
	p, ok := a.pins[ref]
	if !ok {
		return nil, swInvalidParam
	}
	return p, swOK
}

func (a *Applet) verifyPIN(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	p, sw := a.lookupPIN(cmd.P1)
	if sw != swOK {
		return status(sw)
	}
	return status(a.check(cmd.P1, p, cmd.Data))
}

func (a *Applet) unblockPIN(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	p, sw := a.lookupPIN(cmd.P1)
	if sw != swOK {
		return status(sw)
	}
	if subtle.ConstantTimeCompare(p.unblock, cmd.Data) != 1 {
		return status(swAuthFailed)
	}
	p.left = p.max
	return success(nil)
}

func (a *Applet) changePIN(cmd *iso7816.CommandAPDU) *iso7816.ResponseAPDU {
	p, sw := a.lookupPIN(cmd.P1)
	if sw != swOK {
		return status(sw)
	}

	d := cmd.Data
	if len(d) < 1 || len(d) < 1+int(d[0])+1 {
		return status(swInvalidParam)
	}
	oldPIN := d[1 : 1+int(d[0])]
	rest := d[1+int(d[0]):]
	if len(rest) != 1+int(rest[0]) {
		return status(swInvalidParam)
	}
	newPIN := rest[1:]

	if sw := a.check(cmd.P1, p, oldPIN); sw != swOK {
		return status(sw)
	}
	p.value = bytes.Clone(newPIN)
	return success(nil)
}
