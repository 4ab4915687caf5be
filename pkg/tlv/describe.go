package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// WriteStructFields appends one "    - prefix.Field (tag): value" line per
// non-empty []byte field of s, then one line per leftover TLV held in a
// []bertlv.TLV field. A `fmt:"ascii"` or `fmt:"int"` tag adds a decoded
// rendering next to the hex. Lines are newline-separated with no trailing
// newline; a separator is written first when sb already holds text.
func WriteStructFields(sb *strings.Builder, prefix string, s any) {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	var lines []string
	for i := range v.NumField() {
		field, sf := v.Field(i), v.Type().Field(i)

		switch {
		case field.Type() == tlvSliceType:
			for _, p := range field.Interface().([]bertlv.TLV) {
				lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %X", prefix, strings.ToUpper(p.Tag), p.Value))
			}

		case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8 && field.Len() > 0:
			name := sf.Name
			if tag, _, _ := strings.Cut(sf.Tag.Get("tlv"), ","); tag != "" {
				name += " (" + strings.ToUpper(tag) + ")"
			}
			lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, name, render(field.Bytes(), sf.Tag.Get("fmt"))))
		}
	}

	if len(lines) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Join(lines, "\n"))
}

func render(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case "int":
		var n uint64
		for _, b := range data {
			n = n<<8 | uint64(b)
		}
		return fmt.Sprintf("%X (Dec: %d)", data, n)
	}
	return fmt.Sprintf("%X", data)
}

// MakeSafeASCII replaces every byte outside printable ASCII with '.'.
func MakeSafeASCII(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7E {
			b = '.'
		}
		out[i] = b
	}
	return string(out)
}
