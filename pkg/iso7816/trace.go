package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/musclecard/pkg/tlv"
)

// TRANSACTION:
// One Command APDU followed by its Response APDU (ISO 7816-3).
//
// TRACE:
// The chronological list of transactions needed to fulfil one logical command. A single
// SELECT may take several exchanges when the card answers '61XX' (GET RESPONSE follows)
// or '6CXX' (the command is replayed with the corrected Le). IsSuccess evaluates the
// final outcome only.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions (Command-Response pairs).
type Trace []Transaction

// Last returns the final transaction of the trace, or nil for an empty trace.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the FINAL transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Describe renders every exchange of the trace, one block per transaction.
func (t Trace) Describe() string {
	var sb strings.Builder

	for i, tx := range t {
		fmt.Fprintf(&sb, "[%d] >> %s\n", i+1, tx.Command)
		if len(tx.Command.Data) > 0 {
			fmt.Fprintf(&sb, "       Data:  %X\n", tx.Command.Data)
		}
		if tx.Response == nil {
			sb.WriteString("    << (no response)\n")
			continue
		}
		fmt.Fprintf(&sb, "    << %s\n", tx.Response)
		if len(tx.Response.Data) > 0 {
			fmt.Fprintf(&sb, "       Dump:  %X\n", tx.Response.Data)
			fmt.Fprintf(&sb, "       ASCII: %q\n", tlv.MakeSafeASCII(tx.Response.Data))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}
