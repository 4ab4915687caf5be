package muscle

import (
	"errors"
	"fmt"

	"github.com/gregLibert/musclecard/pkg/iso7816"
)

// ErrorKind is the semantic outcome of a failed operation.
type ErrorKind int

const (
	// KindGeneric carries a status word nobody recognised.
	KindGeneric ErrorKind = iota
	// KindTransport is a failure of the underlying card connection.
	KindTransport
	KindPinIncorrect
	KindAuthMethodBlocked
	KindNotAllowed
	KindFileNotFound
	KindFileAlreadyExists
	KindMemoryFailure
	// KindInvalidArguments is raised by the card or locally, before anything is sent.
	KindInvalidArguments
	// KindUnknownDataReceived flags a response whose shape does not match the command.
	KindUnknownDataReceived
	// KindResourceExhausted is a card-declared length beyond what the host accepts.
	KindResourceExhausted
)

var kindNames = map[ErrorKind]string{
	KindGeneric:             "card command failed",
	KindTransport:           "transport failure",
	KindPinIncorrect:        "pin incorrect",
	KindAuthMethodBlocked:   "authentication method blocked",
	KindNotAllowed:          "not allowed",
	KindFileNotFound:        "object not found",
	KindFileAlreadyExists:   "object already exists",
	KindMemoryFailure:       "card memory failure",
	KindInvalidArguments:    "invalid arguments",
	KindUnknownDataReceived: "unknown data received",
	KindResourceExhausted:   "resource exhausted",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error describes a failed driver operation.
//
// Status is zero when no card response was involved (local validation,
// transport failure). Tries is only meaningful for KindPinIncorrect, where -1
// means the card did not report a count.
type Error struct {
	Op     string
	Kind   ErrorKind
	Status iso7816.StatusWord
	Tries  int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("muscle: %s: %s", e.Op, e.Kind)
	if e.Kind == KindPinIncorrect && e.Tries >= 0 {
		msg += fmt.Sprintf(" (%d tries left)", e.Tries)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" [SW %04X]", uint16(e.Status))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrFileNotFound)
// holds for any *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" {
		return false
	}
	return e.Kind == t.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrGeneric             = &Error{Kind: KindGeneric}
	ErrTransport           = &Error{Kind: KindTransport}
	ErrPinIncorrect        = &Error{Kind: KindPinIncorrect}
	ErrAuthMethodBlocked   = &Error{Kind: KindAuthMethodBlocked}
	ErrNotAllowed          = &Error{Kind: KindNotAllowed}
	ErrFileNotFound        = &Error{Kind: KindFileNotFound}
	ErrFileAlreadyExists   = &Error{Kind: KindFileAlreadyExists}
	ErrMemoryFailure       = &Error{Kind: KindMemoryFailure}
	ErrInvalidArguments    = &Error{Kind: KindInvalidArguments}
	ErrUnknownDataReceived = &Error{Kind: KindUnknownDataReceived}
	ErrResourceExhausted   = &Error{Kind: KindResourceExhausted}
)

// KindOf returns the kind of a driver error and false for foreign errors.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Kind, true
}

// RemainingTries extracts the PIN retry counter from a PIN error.
// It returns -1 when the card did not report one, and false when err is not a
// PinIncorrect error.
func RemainingTries(err error) (int, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindPinIncorrect {
		return 0, false
	}
	return e.Tries, true
}

func invalidArgs(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindInvalidArguments, Tries: -1, Err: fmt.Errorf(format, args...)}
}

func unknownData(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindUnknownDataReceived, Tries: -1, Err: fmt.Errorf(format, args...)}
}
