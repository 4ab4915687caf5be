package muscle

import "github.com/gregLibert/musclecard/pkg/iso7816"

// STATUS CLASSIFICATION:
// Every operation owns a small table of the applet codes it expects. A code
// missing from that table goes to the GenericClassifier, and whatever the
// GenericClassifier does not know either becomes KindGeneric with the raw
// status attached. 9000 is the only success; no other code is ever accepted.

type statusTable map[iso7816.StatusWord]ErrorKind

var (
	readTable = statusTable{
		SWObjectNotFound:   KindFileNotFound,
		SWUnauthorized:     KindNotAllowed,
		SWInvalidParameter: KindInvalidArguments,
	}

	updateTable = readTable

	createTable = statusTable{
		SWNoMemoryLeft: KindMemoryFailure,
		SWObjectExists: KindFileAlreadyExists,
		SWUnauthorized: KindNotAllowed,
	}

	deleteTable = statusTable{
		SWObjectNotFound: KindFileNotFound,
		SWUnauthorized:   KindNotAllowed,
	}

	keyTable = statusTable{
		SWNoMemoryLeft:     KindMemoryFailure,
		SWOperationDenied:  KindNotAllowed,
		SWUnauthorized:     KindNotAllowed,
		SWObjectNotFound:   KindFileNotFound,
		SWIncorrectAlg:     KindInvalidArguments,
		SWInvalidParameter: KindInvalidArguments,
		SWBadPrivateKeyNum: KindInvalidArguments,
		SWBadParameter:     KindInvalidArguments,
	}

	cryptTable = statusTable{
		SWOperationDenied:  KindNotAllowed,
		SWUnauthorized:     KindNotAllowed,
		SWIncorrectAlg:     KindInvalidArguments,
		SWInvalidParameter: KindInvalidArguments,
		SWBadPrivateKeyNum: KindInvalidArguments,
		SWBadParameter:     KindInvalidArguments,
	}

	challengeTable = statusTable{
		SWNoMemoryLeft:     KindMemoryFailure,
		SWInvalidParameter: KindInvalidArguments,
	}
)

// classify turns a status word into nil or an *Error for op.
func (c *Card) classify(op string, table statusTable, sw iso7816.StatusWord) error {
	if sw == iso7816.SW_NO_ERROR {
		return nil
	}

	e := &Error{Op: op, Status: sw, Tries: -1}
	if kind, ok := table[sw]; ok {
		e.Kind = kind
		return e
	}

	if kind, ok := c.generic(sw); ok {
		e.Kind = kind
		if kind == KindPinIncorrect && sw.IsCounter() {
			e.Tries = sw.Counter()
		}
		return e
	}

	c.log.Debug("unrecognised status", "op", op, "sw", sw.Verbose())
	e.Kind = KindGeneric
	return e
}

// classifyPIN applies the PIN result mapping. Unknown codes are reported as
// PinIncorrect without a count rather than as success.
func classifyPIN(op string, sw iso7816.StatusWord) error {
	switch {
	case sw == iso7816.SW_NO_ERROR:
		return nil
	case sw.SW1() == 0x63:
		return &Error{Op: op, Kind: KindPinIncorrect, Status: sw, Tries: sw.Counter()}
	case sw == SWAuthFailed:
		return &Error{Op: op, Kind: KindPinIncorrect, Status: sw, Tries: -1}
	case sw == SWIdentityBlocked:
		return &Error{Op: op, Kind: KindAuthMethodBlocked, Status: sw, Tries: -1}
	}
	return &Error{Op: op, Kind: KindPinIncorrect, Status: sw, Tries: -1}
}
