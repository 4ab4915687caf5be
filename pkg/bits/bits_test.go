package bits

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBit(t *testing.T) {
	for n, want := range map[uint]byte{0: 0x00, 1: 0x01, 5: 0x10, 8: 0x80, 9: 0x00} {
		require.Equal(t, want, Bit(n), "bit %d", n)
	}
}

func TestIsSetAndSet(t *testing.T) {
	cla := byte(0xB0) // MUSCLE class: b8, b6 and b5 set
	require.True(t, IsSet(cla, 8))
	require.False(t, IsSet(cla, 7))
	require.True(t, IsSet(cla, 5))
	require.False(t, IsSet(cla, 0))

	require.Equal(t, byte(0xB4), Set(cla, 3))
	require.Equal(t, cla, Set(cla, 6))
	require.Equal(t, cla, Set(cla, 9))
}

func TestField(t *testing.T) {
	tests := []struct {
		name      string
		in        byte
		high, low uint
		want      byte
	}{
		{"secure messaging bits", 0b0000_1100, 4, 3, 3},
		{"basic channel", 0b0000_0011, 2, 1, 3},
		{"63C2 retries", 0xC2, 4, 1, 2},
		{"63Cx marker", 0xC2, 8, 5, 0x0C},
		{"whole byte", 0x9C, 8, 1, 0x9C},
		{"reversed range", 0xFF, 1, 4, 0},
		{"zero low bit", 0xFF, 4, 0, 0},
		{"beyond b8", 0xFF, 9, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Field(tt.in, tt.high, tt.low))
		})
	}
}

func TestLowNibble(t *testing.T) {
	require.Equal(t, byte(0x0F), LowNibble(0xCF))
	require.Equal(t, byte(0x00), LowNibble(0xC0))
	require.Equal(t, byte(0x0C), LowNibble(0x9C))
}
