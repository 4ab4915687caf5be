package iso7816

import (
	"fmt"

	"github.com/gregLibert/musclecard/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// Bit 1 of an interindustry INS flags a BER-TLV data field (READ BINARY 0xB0 vs 0xB1).
// INS values with a high nibble of '6' or '9' are reserved for SW1 and transport
// procedure bytes (ISO/IEC 7816-3) and can never be sent.

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Interindustry instruction codes used by this module.
const (
	INS_VERIFY                       InsCode = 0x20
	INS_CHANGE_REFERENCE_DATA        InsCode = 0x24
	INS_RESET_RETRY_COUNTER          InsCode = 0x2C
	INS_GENERATE_ASYMMETRIC_KEY_PAIR InsCode = 0x46
	INS_GET_CHALLENGE                InsCode = 0x84
	INS_SELECT                       InsCode = 0xA4
	INS_READ_BINARY                  InsCode = 0xB0
	INS_READ_BINARY_BER              InsCode = 0xB1
	INS_GET_RESPONSE                 InsCode = 0xC0
	INS_GET_DATA                     InsCode = 0xCA
	INS_UPDATE_BINARY                InsCode = 0xD6
	INS_CREATE_FILE                  InsCode = 0xE0
	INS_DELETE_FILE                  InsCode = 0xE4
)

var insNames = map[InsCode]string{
	INS_VERIFY:                       "INS_VERIFY",
	INS_CHANGE_REFERENCE_DATA:        "INS_CHANGE_REFERENCE_DATA",
	INS_RESET_RETRY_COUNTER:          "INS_RESET_RETRY_COUNTER",
	INS_GENERATE_ASYMMETRIC_KEY_PAIR: "INS_GENERATE_ASYMMETRIC_KEY_PAIR",
	INS_GET_CHALLENGE:                "INS_GET_CHALLENGE",
	INS_SELECT:                       "INS_SELECT",
	INS_READ_BINARY:                  "INS_READ_BINARY",
	INS_READ_BINARY_BER:              "INS_READ_BINARY_BER",
	INS_GET_RESPONSE:                 "INS_GET_RESPONSE",
	INS_GET_DATA:                     "INS_GET_DATA",
	INS_UPDATE_BINARY:                "INS_UPDATE_BINARY",
	INS_CREATE_FILE:                  "INS_CREATE_FILE",
	INS_DELETE_FILE:                  "INS_DELETE_FILE",
}

func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("InsCode(0x%02X)", byte(i))
}

// Instruction represents a validated INS byte.
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction validates an INS byte, rejecting the reserved '6X' and '9X' values.
func NewInstruction(ins InsCode) (Instruction, error) {
	highNibble := bits.Field(byte(ins), 8, 5)
	if highNibble == 0x6 || highNibble == 0x9 {
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1),
	}, nil
}

// MustInstruction is NewInstruction for constant codes. It panics on reserved values.
func MustInstruction(ins InsCode) Instruction {
	i, err := NewInstruction(ins)
	if err != nil {
		panic(err)
	}
	return i
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw, format)
}
