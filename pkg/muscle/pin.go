package muscle

import (
	"bytes"

	"github.com/gregLibert/musclecard/pkg/iso7816"
)

// VerifyPIN presents pin for reference ref. Trailing zero bytes are padding
// and are not sent. A wrong PIN yields KindPinIncorrect, see RemainingTries.
func (c *Card) VerifyPIN(ref byte, pin []byte) error {
	const op = "verify pin"

	pin = trimPadding(pin)
	if len(pin) > iso7816.MaxShortLc {
		return invalidArgs(op, "pin of %d bytes", len(pin))
	}
	return c.pinCommand(op, insVerifyPIN, ref, pin)
}

// UnblockPIN resets the retry counter of ref with its unblock code.
func (c *Card) UnblockPIN(ref byte, code []byte) error {
	const op = "unblock pin"

	if len(code) > iso7816.MaxShortLc {
		return invalidArgs(op, "unblock code of %d bytes", len(code))
	}
	return c.pinCommand(op, insUnblockPIN, ref, code)
}

// ChangePIN replaces the value of ref. The body is len(old) ‖ old ‖ len(new) ‖ new.
func (c *Card) ChangePIN(ref byte, oldPIN, newPIN []byte) error {
	const op = "change pin"

	if len(oldPIN)+len(newPIN)+2 > iso7816.MaxShortLc {
		return invalidArgs(op, "pins of %d and %d bytes do not fit one command", len(oldPIN), len(newPIN))
	}

	body := make([]byte, 0, len(oldPIN)+len(newPIN)+2)
	body = append(body, byte(len(oldPIN)))
	body = append(body, oldPIN...)
	body = append(body, byte(len(newPIN)))
	body = append(body, newPIN...)
	return c.pinCommand(op, insChangePIN, ref, body)
}

func (c *Card) pinCommand(op string, ins iso7816.InsCode, ref byte, body []byte) error {
	resp, err := c.transmit(op, ins, ref, 0x00, body, 0)
	if err != nil {
		return err
	}
	return classifyPIN(op, resp.Status)
}

// trimPadding drops the zero bytes at the tail of pin only.
func trimPadding(pin []byte) []byte {
	return bytes.TrimRight(pin, "\x00")
}
