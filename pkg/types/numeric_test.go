package types

import "testing"

func TestParseNumericNaN(t *testing.T) {
	n, err := ParseNumeric("NaN", 0, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !n.NaN {
		t.Errorf("expected NaN to be set")
	}
	if n.CanonicalText(0, false) != "NaN" {
		t.Errorf("CanonicalText = %q, want NaN", n.CanonicalText(0, false))
	}
}

func TestParseNumericInvalid(t *testing.T) {
	if _, err := ParseNumeric("not-a-number", 0, 0, false); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}

func TestParseNumericConstraintOverflow(t *testing.T) {
	if _, err := ParseNumeric("12345.6", 4, 1, true); err == nil {
		t.Fatalf("expected precision overflow error")
	}
}

func TestParseNumericConstraintRounds(t *testing.T) {
	n, err := ParseNumeric("1.239", 5, 2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := n.CanonicalText(2, true); got != "1.24" {
		t.Errorf("CanonicalText = %q, want 1.24", got)
	}
}

func TestNumericBinaryRoundTrip(t *testing.T) {
	cases := []string{"0", "1", "-1", "123.456", "-123.456", "0.001", "10000", "99999.9999"}
	for _, text := range cases {
		t.Run(text, func(t *testing.T) {
			n, err := ParseNumeric(text, 0, 0, false)
			if err != nil {
				t.Fatalf("ParseNumeric(%q): %v", text, err)
			}
			encoded := n.EncodeBinary()
			decoded, err := DecodeNumericBinary(encoded)
			if err != nil {
				t.Fatalf("DecodeNumericBinary: %v", err)
			}
			if !decoded.Value.Equal(n.Value) {
				t.Errorf("round trip mismatch: got %s, want %s", decoded.Value.String(), n.Value.String())
			}
		})
	}
}

func TestNumericBinaryNaNRoundTrip(t *testing.T) {
	n := Numeric{NaN: true}
	decoded, err := DecodeNumericBinary(n.EncodeBinary())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decoded.NaN {
		t.Errorf("expected NaN to round-trip")
	}
}

func TestDecodeNumericBinaryShortBuffer(t *testing.T) {
	if _, err := DecodeNumericBinary([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}
