package wire

import "testing"

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"0", 0, true},
		{"5", 5, true},
		{"ff", 0xff, true},
		{"DEAD", 0xdead, true},
		{"  1a2b", 0x1a2b, true},
		{"10,4", 0x10, true},
		{"8000", 0x8000, true},
		{"ffffffffffffffff", ^uint64(0), true},
		{"", 0, false},
		{"  ", 0, false},
		{"zz", 0, false},
		{"10000000000000000", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseHex([]byte(tt.in))
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseHex(%q) = (%#x, %v), want (%#x, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUint64HexLittleEndian(t *testing.T) {
	b := NewBuffer(16)
	AppendUint64Hex(b, 0x12345678)
	if got := string(b.Bytes()); got != "7856341200000000" {
		t.Fatalf("encoded %q", got)
	}
	v, ok := ParseUint64Hex(b.Bytes())
	if !ok || v != 0x12345678 {
		t.Fatalf("decoded (%#x, %v)", v, ok)
	}
}

func TestParseUint64HexRejectsShortOrBadInput(t *testing.T) {
	if _, ok := ParseUint64Hex([]byte("1234")); ok {
		t.Fatal("accepted short input")
	}
	if _, ok := ParseUint64Hex([]byte("78563412000000zz")); ok {
		t.Fatal("accepted non-hex input")
	}
}
