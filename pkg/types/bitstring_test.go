package types

import "testing"

func TestBitStringRoundTrip(t *testing.T) {
	cases := []string{"0", "1", "1010", "101", "11111111", "100000001"}
	for _, text := range cases {
		t.Run(text, func(t *testing.T) {
			b, err := ParseBitString(text)
			if err != nil {
				t.Fatalf("ParseBitString(%q): %v", text, err)
			}
			if got := b.String(); got != text {
				t.Errorf("String() = %q, want %q", got, text)
			}
			decoded, err := DecodeBitStringBinary(b.EncodeBinary())
			if err != nil {
				t.Fatalf("DecodeBitStringBinary: %v", err)
			}
			if decoded.String() != text {
				t.Errorf("binary round trip = %q, want %q", decoded.String(), text)
			}
		})
	}
}

func TestParseBitStringInvalid(t *testing.T) {
	if _, err := ParseBitString("102"); err == nil {
		t.Fatalf("expected error for non-binary character")
	}
}

func TestDecodeBitStringBinaryShortBuffer(t *testing.T) {
	if _, err := DecodeBitStringBinary([]byte{0, 0}); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestDecodeBitStringBinaryLengthMismatch(t *testing.T) {
	bad := []byte{0, 0, 0, 9, 0} // claims 9 bits but only 1 packed byte
	if _, err := DecodeBitStringBinary(bad); err == nil {
		t.Fatalf("expected error for length mismatch")
	}
}
