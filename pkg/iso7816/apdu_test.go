package iso7816

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestCommandAPDU_Encoding(t *testing.T) {
	muscle := MustClass(0xB0)
	iso := MustClass(0x00)

	tests := []struct {
		name string
		cmd  *CommandAPDU
		want string
	}{
		{"case 1", NewCommandAPDU(muscle, MustInstruction(0x42), 0x01, 0x00, nil, 0), "B0420100"},
		{"case 2, list objects", NewCommandAPDU(muscle, MustInstruction(0x58), 0x00, 0x00, nil, 14), "B05800000E"},
		{"case 2, Le 256 wraps", NewCommandAPDU(iso, MustInstruction(INS_GET_RESPONSE), 0x00, 0x00, nil, MaxShortLe), "00C0000000"},
		{"case 3, select", NewCommandAPDU(iso, MustInstruction(INS_SELECT), 0x04, 0x00, []byte{0xA0, 0x00, 0x00, 0x00, 0x01, 0x01}, 0), "00A4040006A00000000101"},
		{"case 4, read object", NewCommandAPDU(muscle, MustInstruction(0x56), 0x00, 0x00, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 2, 0x10}, 16), "B056000009FFFFFFFF00000002" + "1010"},
		{"case 2 extended", NewCommandAPDU(iso, MustInstruction(INS_READ_BINARY), 0x00, 0x00, nil, MaxExtendedLe), "00B00000000000"},
		{"case 3 extended", NewCommandAPDU(muscle, MustInstruction(0x54), 0x00, 0x00, make([]byte, 260), 0), "B0540000000104" + strings.Repeat("00", 260)},
		{"case 4 extended", NewCommandAPDU(muscle, MustInstruction(0x36), 0x00, 0x00, make([]byte, 2), 1024), "B0360000000002" + "0000" + "0400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Bytes() failed: %v", err)
			}
			if got := strings.ToUpper(hex.EncodeToString(raw)); got != tt.want {
				t.Errorf("Bytes() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseResponseAPDU(t *testing.T) {
	// Raw: 01 02 03 (Data) | 90 00 (SW)
	raw, _ := hex.DecodeString("0102039000")
	resp, err := ParseResponseAPDU(raw)

	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Errorf("Wrong data length: got %d, want 3", len(resp.Data))
	}
	if resp.Status != SW_NO_ERROR {
		t.Errorf("Wrong status: got %04X, want %04X", uint16(resp.Status), uint16(SW_NO_ERROR))
	}
}

func TestParseResponseAPDU_TooShort(t *testing.T) {
	// Only 1 byte, should fail
	raw := []byte{0x90}
	_, err := ParseResponseAPDU(raw)

	if err == nil {
		t.Error("Expected error for short response, got nil")
	}
}

func TestParseCommandAPDU_RoundTrip(t *testing.T) {
	proprietary := MustClass(0xB0)
	iso := MustClass(0x00)

	tests := []struct {
		name string
		cmd  *CommandAPDU
	}{
		{"Case 1", NewCommandAPDU(iso, MustInstruction(INS_SELECT), 0x04, 0x00, nil, 0)},
		{"Case 2 Short", NewCommandAPDU(proprietary, MustInstruction(0x58), 0x00, 0x00, nil, 14)},
		{"Case 2 Short Le=256", NewCommandAPDU(iso, MustInstruction(INS_READ_BINARY), 0x00, 0x00, nil, MaxShortLe)},
		{"Case 3 Short", NewCommandAPDU(proprietary, MustInstruction(0x52), 0x00, 0x01, []byte{0xFF, 0xFF, 0xFF, 0xFE}, 0)},
		{"Case 4 Short", NewCommandAPDU(proprietary, MustInstruction(0x56), 0x00, 0x00, make([]byte, 9), 255)},
		{"Case 3 Extended", NewCommandAPDU(iso, MustInstruction(INS_UPDATE_BINARY), 0x00, 0x00, make([]byte, 300), 0)},
		{"Case 4 Extended", NewCommandAPDU(iso, MustInstruction(INS_UPDATE_BINARY), 0x00, 0x00, make([]byte, 300), 1024)},
		{"Case 2 Extended", NewCommandAPDU(iso, MustInstruction(INS_READ_BINARY), 0x00, 0x00, nil, MaxExtendedLe)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Encoding failed: %v", err)
			}

			got, err := ParseCommandAPDU(raw)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if got.Class.Raw != tt.cmd.Class.Raw || got.Instruction.Raw != tt.cmd.Instruction.Raw {
				t.Errorf("Header mismatch: got %02X %02X", got.Class.Raw, byte(got.Instruction.Raw))
			}
			if got.P1 != tt.cmd.P1 || got.P2 != tt.cmd.P2 {
				t.Errorf("P1/P2 mismatch: got %02X %02X", got.P1, got.P2)
			}
			if len(got.Data) != len(tt.cmd.Data) {
				t.Errorf("Nc mismatch: got %d, want %d", len(got.Data), len(tt.cmd.Data))
			}
			if got.Ne != tt.cmd.Ne {
				t.Errorf("Ne mismatch: got %d, want %d", got.Ne, tt.cmd.Ne)
			}
		})
	}
}

func TestParseCommandAPDU_Invalid(t *testing.T) {
	for _, raw := range []string{
		"B058",             // header truncated
		"B0540000050102",   // Lc=5 but only 2 bytes
		"00B0000000000301", // extended Lc=3 with a single data byte
	} {
		b, _ := hex.DecodeString(raw)
		if _, err := ParseCommandAPDU(b); err == nil {
			t.Errorf("ParseCommandAPDU(%s) should fail", raw)
		}
	}
}

func TestCommandAPDU_BytesRejectsOversize(t *testing.T) {
	cmd := NewCommandAPDU(MustClass(0x00), MustInstruction(INS_UPDATE_BINARY), 0, 0, make([]byte, MaxExtendedLc+1), 0)
	if _, err := cmd.Bytes(); err == nil {
		t.Error("Expected error for data above the extended limit")
	}
}

func TestResponseAPDU_Bytes(t *testing.T) {
	resp := NewResponseAPDU([]byte{0x01, 0x02}, NewStatusWord(0x9C, 0x12))
	got := strings.ToUpper(hex.EncodeToString(resp.Bytes()))
	if got != "01029C12" {
		t.Errorf("Bytes() = %s, want 01029C12", got)
	}
}
