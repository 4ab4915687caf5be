package tlv

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// Primitive builds a TLV carrying a raw value.
func Primitive(tag string, value []byte) bertlv.TLV {
	return bertlv.TLV{Tag: strings.ToUpper(tag), Value: value}
}

// Composite builds a constructed TLV from its children.
func Composite(tag string, children ...bertlv.TLV) bertlv.TLV {
	return bertlv.TLV{Tag: strings.ToUpper(tag), TLVs: children}
}

// Encode serialises the packets in order.
func Encode(packets ...bertlv.TLV) ([]byte, error) {
	out, err := bertlv.Encode(packets)
	if err != nil {
		return nil, fmt.Errorf("bertlv encode failed: %w", err)
	}
	return out, nil
}
