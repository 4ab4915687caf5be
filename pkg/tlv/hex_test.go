package tlv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHex(t *testing.T) {
	tests := []struct {
		name      string
		parts     []string
		want      []byte
		wantPanic bool
	}{
		{"header fragments", []string{"B0 58", "00 00"}, []byte{0xB0, 0x58, 0x00, 0x00}, false},
		{"padded with spaces", []string{" 9C ", "12"}, []byte{0x9C, 0x12}, false},
		{"lower case", []string{"ff", "FF", "ff", "Fe"}, []byte{0xFF, 0xFF, 0xFF, 0xFE}, false},
		{"not hex", []string{"ZZ"}, nil, true},
		{"odd digits", []string{"B0 5"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); (r != nil) != tt.wantPanic {
					t.Errorf("panic = %v, wantPanic %v", r, tt.wantPanic)
				}
			}()

			got := Hex(tt.parts...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
