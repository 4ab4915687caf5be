package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex joins hex fragments such as "B0 58", "00 00" and decodes them, ignoring
// spaces. It panics on malformed input and is meant for fixtures.
func Hex(parts ...string) []byte {
	s := strings.ReplaceAll(strings.Join(parts, ""), " ", "")
	data, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("tlv.Hex(%q): %v", s, err))
	}
	return data
}
