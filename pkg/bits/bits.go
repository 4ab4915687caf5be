// Package bits reads and sets bits in the 1-based numbering of ISO/IEC 7816,
// where b8 is the most significant bit of a byte and b1 the least.
package bits

// Bit returns the mask of bit n, or 0 when n is outside 1..8.
func Bit(n uint) byte {
	if n == 0 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet reports whether bit n of b is 1.
func IsSet(b byte, n uint) bool { return b&Bit(n) != 0 }

// Set returns b with bit n raised.
func Set(b byte, n uint) byte { return b | Bit(n) }

// Field returns bits high..low of b shifted down to b1, for example
// Field(0b0000_1100, 4, 3) == 3. Invalid ranges yield 0.
func Field(b byte, high, low uint) byte {
	if low == 0 || high < low || high > 8 {
		return 0
	}
	return b >> (low - 1) & byte(1<<(high-low+1)-1)
}

// LowNibble returns b4..b1, where SW2 carries the retry counter of a 63Cx status.
func LowNibble(b byte) byte { return Field(b, 4, 1) }
