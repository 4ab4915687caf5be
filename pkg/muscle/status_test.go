package muscle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gregLibert/musclecard/pkg/iso7816"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	card := New(nil)

	tests := []struct {
		name  string
		table statusTable
		sw    iso7816.StatusWord
		want  ErrorKind
		noErr bool
		tries int
	}{
		{name: "Success", sw: 0x9000, noErr: true},
		{name: "Table", table: readTable, sw: 0x9C07, want: KindFileNotFound, tries: -1},
		{name: "GuessedInvalidArgs", table: updateTable, sw: 0x9C0F, want: KindInvalidArguments, tries: -1},
		{name: "KeyBadParameter", table: keyTable, sw: 0x9C0E, want: KindInvalidArguments, tries: -1},
		{name: "CryptBadParameter", table: cryptTable, sw: 0x9C0E, want: KindInvalidArguments, tries: -1},
		{name: "TableMissFallsBackToISO", table: readTable, sw: 0x6A82, want: KindFileNotFound, tries: -1},
		{name: "ISOCounter", sw: 0x63C2, want: KindPinIncorrect, tries: 2},
		{name: "Unknown", table: createTable, sw: 0x9C55, want: KindGeneric, tries: -1},
		{name: "WarningIsNotSuccess", sw: 0x6282, want: KindGeneric, tries: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := card.classify("op", tt.table, tt.sw)
			if tt.noErr {
				require.NoError(t, err)
				return
			}

			var e *Error
			require.True(t, errors.As(err, &e))
			require.Equal(t, tt.want, e.Kind)
			require.Equal(t, tt.sw, e.Status)
			require.Equal(t, tt.tries, e.Tries)
		})
	}
}

func TestClassify_CustomGeneric(t *testing.T) {
	card := New(nil, WithGenericClassifier(func(sw iso7816.StatusWord) (ErrorKind, bool) {
		if sw == 0x6F00 {
			return KindMemoryFailure, true
		}
		return 0, false
	}))

	require.ErrorIs(t, card.classify("op", nil, 0x6F00), ErrMemoryFailure)
	// The ISO table is replaced, not extended.
	require.ErrorIs(t, card.classify("op", nil, 0x6A82), ErrGeneric)
}

func TestClassifyPIN(t *testing.T) {
	tests := []struct {
		sw    iso7816.StatusWord
		kind  ErrorKind
		tries int
	}{
		{sw: 0x63C3, kind: KindPinIncorrect, tries: 3},
		{sw: 0x6302, kind: KindPinIncorrect, tries: 2},
		{sw: 0x63CF, kind: KindPinIncorrect, tries: 15},
		{sw: 0x9C02, kind: KindPinIncorrect, tries: -1},
		{sw: 0x6983, kind: KindAuthMethodBlocked, tries: -1},
		{sw: 0x6F00, kind: KindPinIncorrect, tries: -1},
		{sw: 0x9C07, kind: KindPinIncorrect, tries: -1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%04X", uint16(tt.sw)), func(t *testing.T) {
			err := classifyPIN("verify pin", tt.sw)
			requireKind(t, err, tt.kind)

			tries, isPIN := RemainingTries(err)
			require.Equal(t, tt.kind == KindPinIncorrect, isPIN)
			if isPIN {
				require.Equal(t, tt.tries, tries)
			}
		})
	}

	require.NoError(t, classifyPIN("verify pin", 0x9000))
}

func TestError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Op: "verify pin", Kind: KindPinIncorrect, Status: 0x63C1, Tries: 1})

	require.ErrorIs(t, err, ErrPinIncorrect)
	require.NotErrorIs(t, err, ErrAuthMethodBlocked)
	require.Equal(t, "wrapped: muscle: verify pin: pin incorrect (1 tries left) [SW 63C1]", err.Error())

	_, isPIN := RemainingTries(errors.New("plain"))
	require.False(t, isPIN)

	_, isDriver := KindOf(errors.New("plain"))
	require.False(t, isDriver)

	require.Equal(t, "ErrorKind(99)", ErrorKind(99).String())
}

func TestISOClassifier(t *testing.T) {
	tests := map[iso7816.StatusWord]ErrorKind{
		0x6A82: KindFileNotFound,
		0x6A89: KindFileAlreadyExists,
		0x6982: KindNotAllowed,
		0x6983: KindAuthMethodBlocked,
		0x6A84: KindMemoryFailure,
		0x6700: KindInvalidArguments,
		0x63C0: KindPinIncorrect,
	}
	for sw, want := range tests {
		got, known := ISOClassifier(sw)
		require.True(t, known, "%04X", uint16(sw))
		require.Equal(t, want, got, "%04X", uint16(sw))
	}

	_, known := ISOClassifier(0x6D00)
	require.False(t, known)
}
