package types

import "testing"

func TestParseMoney(t *testing.T) {
	cases := map[string]int64{
		"$1.00":     100,
		"1.00":      100,
		"$1,234.56": 123456,
		"-5.00":     -500,
		"(5.00)":    -500,
		"$0.05":     5,
		"10":        1000,
	}
	for in, want := range cases {
		got, err := ParseMoney(in)
		if err != nil {
			t.Fatalf("ParseMoney(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseMoney(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseMoneyInvalid(t *testing.T) {
	if _, err := ParseMoney("not money"); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}

func TestFormatMoney(t *testing.T) {
	cases := map[int64]string{
		100:  "$1.00",
		-500: "-$5.00",
		5:    "$0.05",
		0:    "$0.00",
	}
	for cents, want := range cases {
		if got := FormatMoney(cents); got != want {
			t.Errorf("FormatMoney(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyBinaryRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 100, -500, 123456789} {
		decoded, err := DecodeMoneyBinary(EncodeMoneyBinary(cents))
		if err != nil {
			t.Fatalf("DecodeMoneyBinary: %v", err)
		}
		if decoded != cents {
			t.Errorf("round trip = %d, want %d", decoded, cents)
		}
	}
}

func TestDecodeMoneyBinaryMalformed(t *testing.T) {
	if _, err := DecodeMoneyBinary([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for malformed binary")
	}
}
